package ports

import (
	"context"

	"github.com/jupiterclapton/relation-service/internal/core/domain"
)

// --- PORTS PRIMAIRES (Driving) ---
// L'API que l'hexagone expose au monde extérieur (HTTP, CLI, tests).
// L'identité de session est toujours passée en paramètre explicite,
// jamais lue depuis un état ambiant.

type RelationshipService interface {
	// ToggleFollow lit l'état commité, calcule l'union ou la différence des
	// deux ensembles, et soumet le tout en un seul EdgeChange sous CAS.
	// Retourne le nouvel état (!isFollowing). ErrConflict remonte au caller,
	// le moteur ne retente jamais de lui-même.
	ToggleFollow(ctx context.Context, currentUserID, targetUserID string) (following bool, err error)

	// RelationStatus retourne les deux sens de la paire.
	RelationStatus(ctx context.Context, currentUserID, targetUserID string) (*domain.RelationStatus, error)
}

type DiscoveryService interface {
	// SetQuery ingère une frappe clavier pour la session de l'utilisateur.
	// Le debounce et le discard des réponses périmées sont gérés en interne.
	SetQuery(currentUserID, query string)

	// Snapshot assemble le view model courant : listing complet (Idle) ou
	// résultats de la dernière recherche appliquée, avec flags follow.
	Snapshot(ctx context.Context, currentUserID string) (*domain.DiscoveryView, error)
}
