package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jupiterclapton/relation-service/internal/core/domain"
	"github.com/jupiterclapton/relation-service/internal/core/ports"
)

// DiscoveryCoordinator compose le listing complet (UserStore), la recherche
// filtrée (Searcher) et l'état follow par carte (ensemble following du
// caller) en un view model unique. Une session de recherche par utilisateur,
// évincée après inactivité.
type DiscoveryCoordinator struct {
	store   ports.UserStore
	backend ports.UserSearcher

	debounce      time.Duration
	searchTimeout time.Duration
	sessionTTL    time.Duration

	mu       sync.Mutex
	sessions map[string]*discoverySession
}

type discoverySession struct {
	searcher    *Searcher
	lastTouched time.Time
}

func NewDiscoveryCoordinator(store ports.UserStore, backend ports.UserSearcher, debounce, searchTimeout, sessionTTL time.Duration) *DiscoveryCoordinator {
	return &DiscoveryCoordinator{
		store:         store,
		backend:       backend,
		debounce:      debounce,
		searchTimeout: searchTimeout,
		sessionTTL:    sessionTTL,
		sessions:      make(map[string]*discoverySession),
	}
}

func (c *DiscoveryCoordinator) SetQuery(currentUserID, query string) {
	c.session(currentUserID).SetQuery(query)
}

// Snapshot assemble la vue courante : listing complet quand la session est
// Idle, résultats de la dernière recherche appliquée sinon — jamais les deux.
func (c *DiscoveryCoordinator) Snapshot(ctx context.Context, currentUserID string) (*domain.DiscoveryView, error) {
	actor, err := c.store.GetByID(ctx, currentUserID)
	if err != nil {
		return nil, fmt.Errorf("read current user: %w", err)
	}

	searcher := c.session(currentUserID)
	state, results, failed := searcher.View()

	var users []*domain.User
	if state == domain.StateIdle {
		users, err = c.store.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
	} else {
		users = results
	}

	cards := make([]domain.UserCard, 0, len(users))
	for _, u := range users {
		cards = append(cards, domain.UserCard{
			User:        u,
			IsFollowing: actor.IsFollowing(u.ID),
		})
	}

	return &domain.DiscoveryView{
		State:        state,
		Cards:        cards,
		SearchFailed: failed,
	}, nil
}

// session retourne la session de l'utilisateur, en la créant au besoin.
// L'éviction des sessions inactives se fait au passage (pas de janitor).
func (c *DiscoveryCoordinator) session(userID string) *Searcher {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, sess := range c.sessions {
		if id != userID && now.Sub(sess.lastTouched) > c.sessionTTL {
			sess.searcher.Close()
			delete(c.sessions, id)
		}
	}

	sess, ok := c.sessions[userID]
	if !ok {
		sess = &discoverySession{
			searcher: NewSearcher(c.backend, c.debounce, c.searchTimeout),
		}
		c.sessions[userID] = sess
	}
	sess.lastTouched = now

	return sess.searcher
}
