package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/relation-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/relation-service/internal/core/domain"
)

// --- FIXTURES ---

func seedUser(t *testing.T, store *repository.MemoryStore, username string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		FullName:  username,
		CreatedAt: time.Now().UTC(),
	}
	store.Seed(u)
	return u
}

// recordingPublisher capture les événements publiés.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.RelationChanged
}

func (p *recordingPublisher) PublishRelationChanged(ctx context.Context, ev domain.RelationChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) all() []domain.RelationChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.RelationChanged(nil), p.events...)
}

// hookStore permet d'intercaler un écrivain externe entre la lecture du
// moteur et son écriture CAS.
type hookStore struct {
	*repository.MemoryStore
	beforeApply func()
}

func (s *hookStore) ApplyEdgeChange(ctx context.Context, change domain.EdgeChange) error {
	if s.beforeApply != nil {
		s.beforeApply()
	}
	return s.MemoryStore.ApplyEdgeChange(ctx, change)
}

// externalToggle simule une session concurrente qui passe par la même
// discipline read-then-CAS, directement sur le store.
func externalToggle(t *testing.T, store *repository.MemoryStore, actorID, targetID string) {
	t.Helper()
	ctx := context.Background()

	actor, err := store.GetByID(ctx, actorID)
	require.NoError(t, err)
	target, err := store.GetByID(ctx, targetID)
	require.NoError(t, err)

	require.NoError(t, store.ApplyEdgeChange(ctx, domain.EdgeChange{
		Edge:            domain.Edge{FollowerID: actorID, FolloweeID: targetID},
		Op:              domain.EdgeAdd,
		NewFollowing:    domain.WithID(actor.FollowingIDs, targetID),
		NewFollowers:    domain.WithID(target.FollowerIDs, actorID),
		FollowerVersion: actor.Version,
		FolloweeVersion: target.Version,
	}))
}

// assertMutualInvariant vérifie B ∈ A.following ⇔ A ∈ B.followers pour
// toutes les paires du store.
func assertMutualInvariant(t *testing.T, store *repository.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	users, err := store.ListAll(ctx)
	require.NoError(t, err)

	byID := make(map[string]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, a := range users {
		for _, b := range users {
			if a.ID == b.ID {
				continue
			}
			assert.Equal(t, a.IsFollowing(b.ID), b.IsFollowedBy(a.ID),
				"mutual invariant broken for %s -> %s", a.Username, b.Username)
		}
		assert.False(t, a.IsFollowing(a.ID), "self in following set")
		assert.False(t, a.IsFollowedBy(a.ID), "self in follower set")
	}
}

func newEngine(store *repository.MemoryStore) (*RelationshipEngine, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewRelationshipEngine(store, pub, time.Second), pub
}

// --- TESTS ---

func TestToggleFollow_FollowThenUnfollow(t *testing.T) {
	store := repository.NewMemoryStore()
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	engine, pub := newEngine(store)
	ctx := context.Background()

	// Premier toggle : follow
	following, err := engine.ToggleFollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)

	gotAlice, _ := store.GetByID(ctx, alice.ID)
	gotBob, _ := store.GetByID(ctx, bob.ID)
	assert.Equal(t, []string{bob.ID}, gotAlice.FollowingIDs)
	assert.Equal(t, []string{alice.ID}, gotBob.FollowerIDs)
	assertMutualInvariant(t, store)

	// Second toggle : unfollow, retour à l'état initial
	following, err = engine.ToggleFollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, following)

	gotAlice, _ = store.GetByID(ctx, alice.ID)
	gotBob, _ = store.GetByID(ctx, bob.ID)
	assert.Empty(t, gotAlice.FollowingIDs)
	assert.Empty(t, gotBob.FollowerIDs)
	assertMutualInvariant(t, store)

	events := pub.all()
	require.Len(t, events, 2)
	assert.True(t, events[0].Following)
	assert.False(t, events[1].Following)
}

func TestToggleFollow_SelfFollowRejected(t *testing.T) {
	store := repository.NewMemoryStore()
	alice := seedUser(t, store, "alice")
	engine, pub := newEngine(store)

	_, err := engine.ToggleFollow(context.Background(), alice.ID, alice.ID)
	assert.ErrorIs(t, err, domain.ErrSelfFollow)

	got, _ := store.GetByID(context.Background(), alice.ID)
	assert.Equal(t, alice.Version, got.Version, "state must not be mutated")
	assert.Empty(t, pub.all())
}

func TestToggleFollow_MalformedID(t *testing.T) {
	store := repository.NewMemoryStore()
	alice := seedUser(t, store, "alice")
	engine, _ := newEngine(store)

	_, err := engine.ToggleFollow(context.Background(), alice.ID, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestToggleFollow_TargetVanished(t *testing.T) {
	store := repository.NewMemoryStore()
	alice := seedUser(t, store, "alice")
	engine, pub := newEngine(store)

	_, err := engine.ToggleFollow(context.Background(), alice.ID, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	got, _ := store.GetByID(context.Background(), alice.ID)
	assert.Empty(t, got.FollowingIDs, "follow must be a no-op")
	assert.Empty(t, pub.all())
}

func TestToggleFollow_ConflictOnInterleavedWrite(t *testing.T) {
	inner := repository.NewMemoryStore()
	alice := seedUser(t, inner, "alice")
	bob := seedUser(t, inner, "bob")
	carol := seedUser(t, inner, "carol")

	// Entre la lecture du moteur et son écriture, carol suit bob : la
	// version de bob bouge, le CAS du moteur doit échouer.
	store := &hookStore{MemoryStore: inner}
	var once sync.Once
	store.beforeApply = func() {
		once.Do(func() { externalToggle(t, inner, carol.ID, bob.ID) })
	}

	pub := &recordingPublisher{}
	engine := NewRelationshipEngine(store, pub, time.Second)

	_, err := engine.ToggleFollow(context.Background(), alice.ID, bob.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Le store reste dans l'état de l'écrivain externe, pas un hybride.
	gotBob, _ := inner.GetByID(context.Background(), bob.ID)
	assert.Equal(t, []string{carol.ID}, gotBob.FollowerIDs)
	gotAlice, _ := inner.GetByID(context.Background(), alice.ID)
	assert.Empty(t, gotAlice.FollowingIDs)
	assertMutualInvariant(t, inner)
	assert.Empty(t, pub.all())

	// Après relecture, le retry du caller passe.
	following, err := engine.ToggleFollow(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)
	assertMutualInvariant(t, inner)
}

func TestToggleFollow_InFlightGuard(t *testing.T) {
	inner := repository.NewMemoryStore()
	alice := seedUser(t, inner, "alice")
	bob := seedUser(t, inner, "bob")

	gate := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	store := &hookStore{MemoryStore: inner, beforeApply: func() {
		once.Do(func() { close(entered) })
		<-gate
	}}

	engine := NewRelationshipEngine(store, &recordingPublisher{}, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := engine.ToggleFollow(context.Background(), alice.ID, bob.ID)
		done <- err
	}()

	<-entered // le premier toggle est en vol, bloqué dans l'écriture

	_, err := engine.ToggleFollow(context.Background(), alice.ID, bob.ID)
	assert.ErrorIs(t, err, domain.ErrToggleInFlight)

	close(gate)
	require.NoError(t, <-done)

	// Une fois résolu, la paire est de nouveau disponible.
	_, err = engine.ToggleFollow(context.Background(), alice.ID, bob.ID)
	assert.NoError(t, err)
}

func TestToggleFollow_IndependentTargetsNotSerialized(t *testing.T) {
	inner := repository.NewMemoryStore()
	alice := seedUser(t, inner, "alice")
	bob := seedUser(t, inner, "bob")
	carol := seedUser(t, inner, "carol")

	gate := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	store := &hookStore{MemoryStore: inner, beforeApply: func() {
		once.Do(func() {
			close(entered)
			<-gate
		})
	}}

	engine := NewRelationshipEngine(store, &recordingPublisher{}, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := engine.ToggleFollow(context.Background(), alice.ID, bob.ID)
		done <- err
	}()
	<-entered

	// Cible différente : pas de verrou partagé
	following, err := engine.ToggleFollow(context.Background(), alice.ID, carol.ID)
	require.NoError(t, err)
	assert.True(t, following)

	close(gate)
	require.NoError(t, <-done)
	assertMutualInvariant(t, inner)
}

func TestToggleFollow_Timeout(t *testing.T) {
	inner := repository.NewMemoryStore()
	alice := seedUser(t, inner, "alice")
	bob := seedUser(t, inner, "bob")

	store := &stallingStore{MemoryStore: inner}
	engine := NewRelationshipEngine(store, &recordingPublisher{}, 20*time.Millisecond)

	_, err := engine.ToggleFollow(context.Background(), alice.ID, bob.ID)
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

// stallingStore bloque l'écriture jusqu'à expiration du contexte.
type stallingStore struct {
	*repository.MemoryStore
}

func (s *stallingStore) ApplyEdgeChange(ctx context.Context, change domain.EdgeChange) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRelationStatus(t *testing.T) {
	store := repository.NewMemoryStore()
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	engine, _ := newEngine(store)
	ctx := context.Background()

	_, err := engine.ToggleFollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	status, err := engine.RelationStatus(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, status.IsFollowing)
	assert.False(t, status.IsFollowedBy)

	status, err = engine.RelationStatus(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, status.IsFollowing)
	assert.True(t, status.IsFollowedBy)
}
