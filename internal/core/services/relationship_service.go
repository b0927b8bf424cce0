package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jupiterclapton/relation-service/internal/core/domain"
	"github.com/jupiterclapton/relation-service/internal/core/ports"
)

// RelationshipEngine implémente ports.RelationshipService.
// Toute mutation suit la discipline read-then-CAS : l'état courant est lu,
// les deux nouveaux ensembles sont calculés localement, puis soumis au store
// avec les versions observées. Si le store a bougé entre-temps, ErrConflict.
type RelationshipEngine struct {
	store  ports.UserStore
	broker ports.EventPublisher

	// Borne de résolution d'un toggle (config). Au-delà : ErrTimeout.
	timeout time.Duration

	// Protection double-clic : au plus un toggle en vol par paire
	// (caller, target). Des cibles différentes restent indépendantes.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewRelationshipEngine(store ports.UserStore, broker ports.EventPublisher, timeout time.Duration) *RelationshipEngine {
	return &RelationshipEngine{
		store:    store,
		broker:   broker,
		timeout:  timeout,
		inFlight: make(map[string]struct{}),
	}
}

func (s *RelationshipEngine) ToggleFollow(ctx context.Context, currentUserID, targetUserID string) (bool, error) {
	if err := domain.ValidateUserID(currentUserID); err != nil {
		return false, err
	}
	if err := domain.ValidateUserID(targetUserID); err != nil {
		return false, err
	}
	if currentUserID == targetUserID {
		return false, domain.ErrSelfFollow
	}

	// Acquisition du verrou de paire. Un refus ici signifie qu'un toggle
	// précédent n'est pas encore résolu : le caller attend, il ne ré-émet pas.
	key := currentUserID + "|" + targetUserID
	if !s.acquire(key) {
		return false, domain.ErrToggleInFlight
	}
	defer s.release(key)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	following, err := s.toggle(ctx, currentUserID, targetUserID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, domain.ErrTimeout
		}
		return false, err
	}

	// Publication best effort : la projection rattrapera, on ne bloque pas
	// le retour caller sur le broker.
	if pubErr := s.broker.PublishRelationChanged(ctx, domain.RelationChanged{
		ActorID:   currentUserID,
		TargetID:  targetUserID,
		Following: following,
		At:        time.Now().UTC(),
	}); pubErr != nil {
		slog.Warn("relation.changed publish failed", "actor", currentUserID, "target", targetUserID, "error", pubErr)
	}

	return following, nil
}

// toggle porte la logique read -> compute -> CAS, sans le verrou ni l'event.
func (s *RelationshipEngine) toggle(ctx context.Context, currentUserID, targetUserID string) (bool, error) {
	actor, err := s.store.GetByID(ctx, currentUserID)
	if err != nil {
		return false, fmt.Errorf("read current user: %w", err)
	}

	target, err := s.store.GetByID(ctx, targetUserID)
	if err != nil {
		// Cible disparue : no-op, l'UI ne doit pas basculer en "following"
		return false, fmt.Errorf("read target user: %w", err)
	}

	isFollowing := actor.IsFollowing(targetUserID)

	change := domain.EdgeChange{
		Edge:            domain.Edge{FollowerID: actor.ID, FolloweeID: target.ID},
		FollowerVersion: actor.Version,
		FolloweeVersion: target.Version,
	}

	if isFollowing {
		change.Op = domain.EdgeRemove
		change.NewFollowing = domain.WithoutID(actor.FollowingIDs, target.ID)
		change.NewFollowers = domain.WithoutID(target.FollowerIDs, actor.ID)
	} else {
		change.Op = domain.EdgeAdd
		change.NewFollowing = domain.WithID(actor.FollowingIDs, target.ID)
		change.NewFollowers = domain.WithID(target.FollowerIDs, actor.ID)
	}

	if err := s.store.ApplyEdgeChange(ctx, change); err != nil {
		return false, err
	}

	return !isFollowing, nil
}

func (s *RelationshipEngine) RelationStatus(ctx context.Context, currentUserID, targetUserID string) (*domain.RelationStatus, error) {
	if err := domain.ValidateUserID(targetUserID); err != nil {
		return nil, err
	}

	actor, err := s.store.GetByID(ctx, currentUserID)
	if err != nil {
		return nil, err
	}

	// Les deux sens se lisent sur le seul enregistrement du caller :
	// l'invariant mutuel garantit que le record du target dirait pareil.
	return &domain.RelationStatus{
		IsFollowing:  actor.IsFollowing(targetUserID),
		IsFollowedBy: actor.IsFollowedBy(targetUserID),
	}, nil
}

func (s *RelationshipEngine) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *RelationshipEngine) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}
