// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package memory provides in-memory repository implementations, used
// for tests and single-process deployments. All stores are internally
// synchronized; a fresh store per test gives full isolation.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// UserStore implements auth.UserRepository with a mutex-guarded map.
type UserStore struct {
	mu     sync.RWMutex
	byID   map[ulid.ULID]*auth.User
	byName map[string]ulid.ULID // key is lowercased username
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:   make(map[ulid.ULID]*auth.User),
		byName: make(map[string]ulid.ULID),
	}
}

// Create stores a new user. The duplicate check, insert, and
// first-user role decision happen under one lock, mirroring the
// transactional guarantee of the postgres repository.
func (s *UserStore) Create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Username)
	if _, exists := s.byName[key]; exists {
		return auth.ErrDuplicateUsername
	}

	// First committed user is admin regardless of the requested role.
	if len(s.byID) == 0 {
		user.Role = auth.RoleAdmin
	}

	stored := *user
	s.byID[user.ID] = &stored
	s.byName[key] = user.ID
	return nil
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

// GetByUsername retrieves a user by username (case-insensitive).
func (s *UserStore) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[strings.ToLower(username)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *s.byID[id]
	return &clone, nil
}

// Update persists mutated fields. Last write wins.
func (s *UserStore) Update(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[user.ID]; !ok {
		return auth.ErrNotFound
	}
	stored := *user
	s.byID[user.ID] = &stored
	return nil
}

// Count returns the number of stored users.
func (s *UserStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// List returns all users ordered by creation time.
func (s *UserStore) List(_ context.Context) ([]*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*auth.User, 0, len(s.byID))
	for _, u := range s.byID {
		clone := *u
		users = append(users, &clone)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID.Compare(users[j].ID) < 0
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// SessionStore implements auth.SessionRepository with a mutex-guarded map.
type SessionStore struct {
	mu      sync.RWMutex
	byToken map[string]*auth.Session // key is the token hash
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{byToken: make(map[string]*auth.Session)}
}

// Create stores a new session.
func (s *SessionStore) Create(_ context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *session
	s.byToken[session.TokenHash] = &stored
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (s *SessionStore) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.byToken[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *session
	return &clone, nil
}

// UpdateLastSeen updates the LastSeenAt timestamp for a session.
func (s *SessionStore) UpdateLastSeen(_ context.Context, id ulid.ULID, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.byToken {
		if session.ID.Compare(id) == 0 {
			session.LastSeenAt = lastSeen
			return nil
		}
	}
	return auth.ErrNotFound
}

// DeleteByTokenHash removes a session by its token hash.
func (s *SessionStore) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byToken[tokenHash]; !ok {
		return auth.ErrNotFound
	}
	delete(s.byToken, tokenHash)
	return nil
}

// DeleteByUser removes all sessions for a user.
func (s *SessionStore) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, session := range s.byToken {
		if session.UserID.Compare(userID) == 0 {
			delete(s.byToken, hash)
		}
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var deleted int64
	for hash, session := range s.byToken {
		if now.After(session.ExpiresAt) {
			delete(s.byToken, hash)
			deleted++
		}
	}
	return deleted, nil
}

// Compile-time interface checks.
var (
	_ auth.UserRepository    = (*UserStore)(nil)
	_ auth.SessionRepository = (*SessionStore)(nil)
)
