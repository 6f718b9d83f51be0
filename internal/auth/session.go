// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes    = 32             // 32 bytes = 64 hex chars
	DefaultSessionExpiry = 24 * time.Hour // default expiry when the Manager is given no TTL
)

// Session binds an opaque token to a user id. The plaintext token is
// sent to the client; only its SHA-256 hash is stored.
type Session struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// NewSession creates a validated Session instance.
func NewSession(userID ulid.ULID, tokenHash string, expiresAt time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	now := time.Now()
	return &Session{
		ID:         ulid.Make(),
		UserID:     userID,
		TokenHash:  tokenHash,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsExpiredAt returns true if the session would be expired at the given time.
// Useful for testing with deterministic time values.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashSessionToken(token)

	return token, hash, nil
}

// HashSessionToken computes the SHA-256 hash of a session token.
// This is used to securely store tokens in the database.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks if the plaintext token matches the stored
// hash using a constant-time comparison.
func VerifySessionToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashSessionToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// SessionRepository manages session persistence.
//
// Implementations must be safe for concurrent access to the same token.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	// Returns ErrNotFound if absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// UpdateLastSeen updates the LastSeenAt timestamp for a session.
	UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error

	// DeleteByTokenHash removes a session by its token hash.
	// Returns ErrNotFound if no such session exists.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByUser removes all sessions for a user. Removing zero
	// sessions is not an error.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes all expired sessions and returns the count
	// of deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}

// Manager issues, resolves and destroys session tokens on top of a
// SessionRepository.
type Manager struct {
	sessions SessionRepository
	ttl      time.Duration
}

// NewManager creates a session Manager. A non-positive ttl falls back
// to DefaultSessionExpiry.
func NewManager(sessions SessionRepository, ttl time.Duration) (*Manager, error) {
	if sessions == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("session repository is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionExpiry
	}
	return &Manager{sessions: sessions, ttl: ttl}, nil
}

// Create issues a new session for the user and returns the session
// together with the plaintext token.
func (m *Manager) Create(ctx context.Context, userID ulid.ULID) (*Session, string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", err
	}

	session, err := NewSession(userID, tokenHash, time.Now().Add(m.ttl))
	if err != nil {
		return nil, "", err
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, token, nil
}

// Resolve maps a token to the user id it is bound to. Unknown, empty
// and expired tokens resolve as (zero, false, nil), not as errors.
func (m *Manager) Resolve(ctx context.Context, token string) (ulid.ULID, bool, error) {
	if token == "" {
		return ulid.ULID{}, false, nil
	}

	session, err := m.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, false, nil
		}
		return ulid.ULID{}, false, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		// Lazy cleanup; the janitor sweep handles the rest.
		_ = m.sessions.DeleteByTokenHash(ctx, session.TokenHash) //nolint:errcheck // Best effort
		return ulid.ULID{}, false, nil
	}

	_ = m.sessions.UpdateLastSeen(ctx, session.ID, time.Now()) //nolint:errcheck // Best effort, resolution succeeds regardless

	return session.UserID, true, nil
}

// Destroy invalidates a session token. Destroying an unknown or
// already-destroyed token is not an error.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := m.sessions.DeleteByTokenHash(ctx, HashSessionToken(token))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// DestroyAllForUser invalidates every session bound to the user.
func (m *Manager) DestroyAllForUser(ctx context.Context, userID ulid.ULID) error {
	if err := m.sessions.DeleteByUser(ctx, userID); err != nil {
		return oops.Code("SESSION_DESTROY_ALL_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// Sweep removes expired sessions and returns the number deleted.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").Wrap(err)
	}
	return n, nil
}
