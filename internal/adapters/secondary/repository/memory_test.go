package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/relation-service/internal/core/domain"
)

func TestMemoryStore_ListAllOrder(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(&domain.User{ID: "u1", Username: "alice"})
	store.Seed(&domain.User{ID: "u2", Username: "bob"})
	store.Seed(&domain.User{ID: "u3", Username: "carol"})

	users, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
	assert.Equal(t, "carol", users[2].Username)
}

func TestMemoryStore_GetByIDReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(&domain.User{ID: "u1", FollowingIDs: []string{"u2"}})

	got, err := store.GetByID(context.Background(), "u1")
	require.NoError(t, err)

	// Muter la copie ne doit pas toucher le store
	got.FollowingIDs[0] = "hacked"

	again, err := store.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, again.FollowingIDs)
}

func TestMemoryStore_ApplyEdgeChange(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(&domain.User{ID: "a"})
	store.Seed(&domain.User{ID: "b"})
	ctx := context.Background()

	err := store.ApplyEdgeChange(ctx, domain.EdgeChange{
		Edge:            domain.Edge{FollowerID: "a", FolloweeID: "b"},
		Op:              domain.EdgeAdd,
		NewFollowing:    []string{"b"},
		NewFollowers:    []string{"a"},
		FollowerVersion: 0,
		FolloweeVersion: 0,
	})
	require.NoError(t, err)

	a, _ := store.GetByID(ctx, "a")
	b, _ := store.GetByID(ctx, "b")
	assert.Equal(t, []string{"b"}, a.FollowingIDs)
	assert.Equal(t, []string{"a"}, b.FollowerIDs)
	assert.Equal(t, int64(1), a.Version)
	assert.Equal(t, int64(1), b.Version)
}

func TestMemoryStore_ApplyEdgeChange_StaleVersion(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(&domain.User{ID: "a", Version: 5})
	store.Seed(&domain.User{ID: "b"})
	ctx := context.Background()

	err := store.ApplyEdgeChange(ctx, domain.EdgeChange{
		Edge:            domain.Edge{FollowerID: "a", FolloweeID: "b"},
		Op:              domain.EdgeAdd,
		NewFollowing:    []string{"b"},
		NewFollowers:    []string{"a"},
		FollowerVersion: 4, // périmée
		FolloweeVersion: 0,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Aucun des deux côtés n'a été touché
	a, _ := store.GetByID(ctx, "a")
	b, _ := store.GetByID(ctx, "b")
	assert.Empty(t, a.FollowingIDs)
	assert.Empty(t, b.FollowerIDs)
	assert.Equal(t, int64(5), a.Version)
	assert.Equal(t, int64(0), b.Version)
}

func TestMemoryStore_ApplyEdgeChange_MissingUser(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(&domain.User{ID: "a"})

	err := store.ApplyEdgeChange(context.Background(), domain.EdgeChange{
		Edge:         domain.Edge{FollowerID: "a", FolloweeID: "ghost"},
		Op:           domain.EdgeAdd,
		NewFollowing: []string{"ghost"},
		NewFollowers: []string{"a"},
	})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestMemoryStore_Search(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(&domain.User{ID: "u1", Username: "alice", FullName: "Alice A"})
	store.Seed(&domain.User{ID: "u2", Username: "bob", FullName: "Bob B"})
	store.Seed(&domain.User{ID: "u3", Username: "malice", FullName: "Mal Ice"})

	got, err := store.Search(context.Background(), "ALICE")
	require.NoError(t, err)
	require.Len(t, got, 2, "case-insensitive match on username/full name")
	assert.Equal(t, "alice", got[0].Username)
	assert.Equal(t, "malice", got[1].Username)
}
