package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// --- ENTITÉ ---

// User est l'enregistrement autoritatif d'un compte. Les deux ensembles
// FollowerIDs/FollowingIDs portent l'invariant de consistance mutuelle :
// B ∈ A.FollowingIDs  ⇔  A ∈ B.FollowerIDs.
// Version est incrémentée à chaque écriture commitée (support du CAS).
type User struct {
	ID           string
	Username     string
	FullName     string
	ImageURL     string
	FollowerIDs  []string
	FollowingIDs []string
	Version      int64
	CreatedAt    time.Time
}

// IsFollowing vérifie l'appartenance côté "following" (la source de vérité
// pour décider si un toggle est un follow ou un unfollow).
func (u *User) IsFollowing(targetID string) bool {
	return ContainsID(u.FollowingIDs, targetID)
}

// IsFollowedBy vérifie l'appartenance côté "follower".
func (u *User) IsFollowedBy(actorID string) bool {
	return ContainsID(u.FollowerIDs, actorID)
}

// ValidateUserID rejette les ids malformés à la frontière (pas au rendu).
func ValidateUserID(id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return ErrInvalidID
	}
	return nil
}

// --- OPÉRATIONS SUR ENSEMBLES ---
// Les ensembles sont stockés en slices ordonnées (ordre d'insertion).
// Les helpers retournent toujours une copie : l'entité lue n'est jamais
// mutée en place, le nouvel état est soumis au store via CAS.

func ContainsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// WithID retourne une copie avec id ajouté (union, sans doublon).
func WithID(ids []string, id string) []string {
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids...)
	if !ContainsID(out, id) {
		out = append(out, id)
	}
	return out
}

// WithoutID retourne une copie avec id retiré (différence).
func WithoutID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
