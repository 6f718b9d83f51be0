// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
)

func TestNewUser(t *testing.T) {
	t.Run("creates valid active user", func(t *testing.T) {
		user, err := auth.NewUser("alice", "alice@example.com", "somehash", auth.RoleUser)
		require.NoError(t, err)

		assert.NotEqual(t, ulid.ULID{}, user.ID)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, "somehash", user.PasswordHash)
		assert.Equal(t, auth.RoleUser, user.Role)
		assert.True(t, user.IsActive)
		assert.Zero(t, user.FailedAttempts)
		assert.False(t, user.CreatedAt.IsZero())
		assert.Equal(t, user.CreatedAt, user.UpdatedAt)
	})

	t.Run("rejects invalid username", func(t *testing.T) {
		_, err := auth.NewUser("1bad", "a@example.com", "somehash", auth.RoleUser)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrValidation)
	})

	t.Run("rejects empty password hash", func(t *testing.T) {
		_, err := auth.NewUser("alice", "a@example.com", "", auth.RoleUser)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrValidation)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := auth.NewUser("alice", "a@example.com", "somehash", auth.Role("superuser"))
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrValidation)
	})
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid simple", "alice", false},
		{"valid with numbers", "alice42", false},
		{"valid with underscores", "alice_the_admin", false},
		{"valid minimum length", "abc", false},
		{"valid maximum length", strings.Repeat("a", 30), false},
		{"empty", "", true},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", 31), true},
		{"starts with number", "1alice", true},
		{"starts with underscore", "_alice", true},
		{"contains space", "alice smith", true},
		{"contains hyphen", "alice-smith", true},
		{"contains unicode", "alicé", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateUsername(tt.username)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, auth.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, auth.RoleUser.Valid())
	assert.True(t, auth.RoleAdmin.Valid())
	assert.False(t, auth.Role("").Valid())
	assert.False(t, auth.Role("superuser").Valid())
}

func TestUserIsAdmin(t *testing.T) {
	admin, err := auth.NewUser("root_user", "root@example.com", "somehash", auth.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	user, err := auth.NewUser("alice", "alice@example.com", "somehash", auth.RoleUser)
	require.NoError(t, err)
	assert.False(t, user.IsAdmin())
}

func TestUserFailedAttempts(t *testing.T) {
	user, err := auth.NewUser("alice", "alice@example.com", "somehash", auth.RoleUser)
	require.NoError(t, err)

	t.Run("RecordFailure increments counter", func(t *testing.T) {
		user.RecordFailure()
		user.RecordFailure()
		assert.Equal(t, 2, user.FailedAttempts)
	})

	t.Run("RecordSuccess resets counter", func(t *testing.T) {
		user.RecordSuccess()
		assert.Zero(t, user.FailedAttempts)
	})
}

func TestUserDeactivate(t *testing.T) {
	user, err := auth.NewUser("alice", "alice@example.com", "somehash", auth.RoleUser)
	require.NoError(t, err)
	require.True(t, user.IsActive)

	user.Deactivate()
	assert.False(t, user.IsActive)
}
