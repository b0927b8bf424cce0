package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/jupiterclapton/relation-service/internal/core/domain"
)

// MemoryStore implémente UserStore et UserSearcher en mémoire, avec la même
// sémantique CAS que Postgres. Utile pour les tests et le dev local.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	order []string // ordre d'insertion pour ListAll
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*domain.User),
	}
}

// Seed insère ou remplace un utilisateur (hors discipline CAS — réservé au
// setup de tests et au chargement de fixtures).
func (r *MemoryStore) Seed(user *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; !exists {
		r.order = append(r.order, user.ID)
	}
	r.users[user.ID] = cloneUser(user)
}

func (r *MemoryStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryStore) ListAll(ctx context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.User, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneUser(r.users[id]))
	}
	return out, nil
}

func (r *MemoryStore) Search(ctx context.Context, query string) ([]*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(query)
	var out []*domain.User
	for _, id := range r.order {
		u := r.users[id]
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.FullName), q) {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

// ApplyEdgeChange applique les deux côtés sous un seul verrou : les deux
// versions doivent correspondre AVANT la moindre écriture, sinon ErrConflict
// et aucun des deux enregistrements n'est touché.
func (r *MemoryStore) ApplyEdgeChange(ctx context.Context, change domain.EdgeChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	follower, ok := r.users[change.Edge.FollowerID]
	if !ok {
		return domain.ErrUserNotFound
	}
	followee, ok := r.users[change.Edge.FolloweeID]
	if !ok {
		return domain.ErrUserNotFound
	}

	if follower.Version != change.FollowerVersion || followee.Version != change.FolloweeVersion {
		return domain.ErrConflict
	}

	follower.FollowingIDs = append([]string(nil), change.NewFollowing...)
	follower.Version++
	followee.FollowerIDs = append([]string(nil), change.NewFollowers...)
	followee.Version++

	return nil
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.FollowerIDs = append([]string(nil), u.FollowerIDs...)
	c.FollowingIDs = append([]string(nil), u.FollowingIDs...)
	return &c
}
