package domain

import "time"

// EdgeOp indique le sens d'une mutation de relation.
type EdgeOp string

const (
	EdgeAdd    EdgeOp = "ADD"
	EdgeRemove EdgeOp = "REMOVE"
)

// Edge représente le lien dirigé Follower -> Followee. Il n'est pas persisté
// en tant que tel : son existence est impliquée par la double appartenance
// dans les deux ensembles.
type Edge struct {
	FollowerID string // celui qui suit
	FolloweeID string // celui qui est suivi
}

// EdgeChange est l'unique point d'entrée de mutation du UserStore.
// Le moteur calcule les deux nouveaux ensembles à partir de l'état qu'il a lu,
// et joint les versions observées : le store rejette l'écriture (ErrConflict)
// si l'une des deux versions a bougé entre-temps. Les deux côtés sont écrits
// comme une seule unité logique, jamais partiellement.
type EdgeChange struct {
	Edge Edge
	Op   EdgeOp

	// Nouveaux ensembles calculés par le moteur
	NewFollowing []string // following_ids du follower après mutation
	NewFollowers []string // follower_ids du followee après mutation

	// Versions observées à la lecture (CAS)
	FollowerVersion int64
	FolloweeVersion int64
}

// RelationStatus décrit les deux sens d'une paire (pour l'UI).
type RelationStatus struct {
	IsFollowing  bool
	IsFollowedBy bool
}

// RelationChanged est l'événement publié après chaque toggle commité.
// Les projections (graphe Neo4j, notifications Redis) le consomment.
type RelationChanged struct {
	ActorID   string    `json:"actor_id"`
	TargetID  string    `json:"target_id"`
	Following bool      `json:"following"`
	At        time.Time `json:"at"`
}

// Suggestion est un candidat "à suivre", classé par follows mutuels.
type Suggestion struct {
	UserID string
	Mutual int64
}

// Notification est une entrée du fil "X a commencé à vous suivre".
type Notification struct {
	ActorID string
	At      time.Time
}
