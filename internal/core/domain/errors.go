package domain

import "errors"

// --- ERREURS DU DOMAINE ---
// Taxonomie unique : les adapters (HTTP, DB) traduisent leurs erreurs
// techniques vers ces sentinelles, jamais l'inverse.
var (
	// Arguments invalides (terminal, pas de retry)
	ErrSelfFollow = errors.New("cannot follow yourself")
	ErrInvalidID  = errors.New("malformed user id")

	// Ressource absente (terminal)
	ErrUserNotFound = errors.New("user not found")

	// Écriture CAS rejetée : l'état a bougé entre la lecture et l'écriture.
	// Le caller doit relire puis retenter lui-même (jamais de retry automatique).
	ErrConflict = errors.New("stale write rejected, state changed since read")

	// Session
	ErrUnauthenticated = errors.New("no authenticated user")

	// Un toggle est déjà en vol pour la même paire (protection double-clic)
	ErrToggleInFlight = errors.New("toggle already in flight for this target")

	// Infra (récupérable côté caller)
	ErrTimeout     = errors.New("operation timed out")
	ErrUnavailable = errors.New("backing store unavailable")
)
