package ports

import (
	"context"

	"github.com/jupiterclapton/relation-service/internal/core/domain"
)

// --- PERSISTANCE (DB) ---

// UserStore est le port Driven vers le document store autoritatif.
// Aucun cache : chaque lecture reflète le dernier état commité.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// ListAll retourne les utilisateurs dans l'ordre de création.
	// Non repositionnable : un nouvel appel relit l'état courant.
	ListAll(ctx context.Context) ([]*domain.User, error)

	// ApplyEdgeChange est l'UNIQUE point d'entrée de mutation.
	// Les deux côtés (follower_ids / following_ids) sont écrits comme une
	// seule unité logique sous CAS ; une complétion partielle remonte
	// ErrConflict, jamais un succès silencieux.
	ApplyEdgeChange(ctx context.Context, change domain.EdgeChange) error
}

// UserSearcher résout une requête texte en sous-ensemble de ListAll,
// filtré par pertinence sur username / full name.
type UserSearcher interface {
	Search(ctx context.Context, query string) ([]*domain.User, error)
}

// --- MESSAGERIE (BROKER) ---

// EventPublisher est le port vers NATS. Il notifie les projections
// (graphe, notifications) qu'une relation a changé.
type EventPublisher interface {
	PublishRelationChanged(ctx context.Context, ev domain.RelationChanged) error
}

// --- PROJECTIONS ---

// GraphProjection est la vue Neo4j du graphe de follows, alimentée par les
// événements RelationChanged. Sert les requêtes de voisinage (suggestions).
type GraphProjection interface {
	ApplyRelationChanged(ctx context.Context, ev domain.RelationChanged) error
	SuggestedCreators(ctx context.Context, userID string, limit int) ([]domain.Suggestion, error)
}

// NotificationFeed est le fil Redis "X a commencé à vous suivre".
type NotificationFeed interface {
	PushFollow(ctx context.Context, targetID, actorID string, ev domain.RelationChanged) error
	List(ctx context.Context, userID string, limit int64) ([]domain.Notification, error)
}

// --- SÉCURITÉ ---

// TokenVerifier valide un bearer token émis par le service de comptes
// externe et retourne l'identité de session (UserID).
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}
