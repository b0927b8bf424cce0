package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, ValidateUserID(uuid.NewString()))
	assert.ErrorIs(t, ValidateUserID("not-a-uuid"), ErrInvalidID)
	assert.ErrorIs(t, ValidateUserID(""), ErrInvalidID)
}

func TestWithID(t *testing.T) {
	base := []string{"a", "b"}

	got := WithID(base, "c")
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, []string{"a", "b"}, base, "input slice must not be mutated")

	// union : pas de doublon
	assert.Equal(t, []string{"a", "b"}, WithID(base, "a"))
}

func TestWithoutID(t *testing.T) {
	base := []string{"a", "b", "c"}

	got := WithoutID(base, "b")
	assert.Equal(t, []string{"a", "c"}, got)
	assert.Equal(t, []string{"a", "b", "c"}, base, "input slice must not be mutated")

	assert.Equal(t, []string{"a", "b", "c"}, WithoutID(base, "zz"))
}

func TestUserMembership(t *testing.T) {
	u := &User{
		ID:           "u1",
		FollowerIDs:  []string{"u2"},
		FollowingIDs: []string{"u3"},
	}

	assert.True(t, u.IsFollowing("u3"))
	assert.False(t, u.IsFollowing("u2"))
	assert.True(t, u.IsFollowedBy("u2"))
	assert.False(t, u.IsFollowedBy("u3"))
}
