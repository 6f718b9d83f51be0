// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the authorization role of a user account.
type Role string

// Known roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// User represents a user account.
type User struct {
	ID             ulid.ULID
	Username       string
	Email          string
	PasswordHash   string
	Role           Role
	IsActive       bool
	FailedAttempts int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a validated, active User. The role passed here is the
// role to attempt; the repository may commit a different role for the
// first user in an empty store (see UserRepository.Create).
func NewUser(username, email, passwordHash string, role Role) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_VALIDATION_FAILED").
			Wrapf(ErrValidation, "password hash cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code("AUTH_VALIDATION_FAILED").
			With("role", string(role)).
			Wrapf(ErrValidation, "unknown role %q", role)
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RecordFailure increments the failed login counter.
func (u *User) RecordFailure() {
	u.FailedAttempts++
	u.UpdatedAt = time.Now()
}

// RecordSuccess resets the failed login counter.
func (u *User) RecordSuccess() {
	u.FailedAttempts = 0
	u.UpdatedAt = time.Now()
}

// Deactivate marks the account inactive. Deactivated accounts fail
// login with ErrAccountDeactivated; existing sessions are not revoked.
func (u *User) Deactivate() {
	u.IsActive = false
	u.UpdatedAt = time.Now()
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_VALIDATION_FAILED").
			Wrapf(ErrValidation, "username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_VALIDATION_FAILED").
			With("min", MinUsernameLength).
			Wrapf(ErrValidation, "username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_VALIDATION_FAILED").
			With("max", MaxUsernameLength).
			Wrapf(ErrValidation, "username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_VALIDATION_FAILED").
			Wrapf(ErrValidation, "username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// UserRepository manages user persistence.
//
// Implementations must be safe for concurrent use; callers never hold
// locks around repository calls.
type UserRepository interface {
	// Create stores a new user. The duplicate-username check, the
	// insert, and the first-user role decision happen as one atomic
	// unit: if the store is empty at insert time the committed role is
	// RoleAdmin regardless of the requested role, and user.Role is
	// updated to the committed value. Returns ErrDuplicateUsername on
	// a username collision.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by username (case-insensitive).
	// Returns ErrNotFound if absent.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update persists mutated fields of an existing user.
	// Last write wins. Returns ErrNotFound if the user does not exist.
	Update(ctx context.Context, user *User) error

	// Count returns the number of stored users. Advisory only: callers
	// must not rely on it for the first-user role decision, which
	// Create makes atomically.
	Count(ctx context.Context) (int, error)

	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]*User, error)
}
