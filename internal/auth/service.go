// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// Service provides registration, login, logout and session identity
// resolution.
type Service struct {
	users    UserRepository
	sessions *Manager
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(users UserRepository, sessions *Manager, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("user repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session manager is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger,
	}, nil
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates a new user account. The first user committed to an
// empty store receives RoleAdmin; all later registrants receive
// RoleUser. The role decision is made atomically by the repository, so
// losing the first-user race silently yields RoleUser rather than an
// error. Only a true username collision returns ErrDuplicateUsername.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, oops.Code("AUTH_VALIDATION_FAILED").
			Wrapf(ErrValidation, "password cannot be empty")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	// Always attempt RoleUser; the repository promotes the first user
	// committed to an empty store at insert time.
	user, err := NewUser(username, email, hash, RoleUser)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, ErrDuplicateUsername) {
			return nil, oops.Code("AUTH_REGISTER_FAILED").
				With("operation", "create user").
				Wrap(err)
		}
		// Re-check once: a row that still exists is a true collision; a
		// row that vanished between insert and re-check gets one retry.
		if _, getErr := s.users.GetByUsername(ctx, username); getErr == nil {
			return nil, oops.Code("AUTH_DUPLICATE_USERNAME").
				With("username", username).
				Wrap(ErrDuplicateUsername)
		} else if !errors.Is(getErr, ErrNotFound) {
			return nil, oops.Code("STORE_UNAVAILABLE").
				With("operation", "re-check username").
				Wrap(getErr)
		}
		if retryErr := s.users.Create(ctx, user); retryErr != nil {
			if errors.Is(retryErr, ErrDuplicateUsername) {
				return nil, oops.Code("AUTH_DUPLICATE_USERNAME").
					With("username", username).
					Wrap(ErrDuplicateUsername)
			}
			return nil, oops.Code("AUTH_REGISTER_FAILED").
				With("operation", "create user").
				Wrap(retryErr)
		}
	}

	s.logger.Info("user registered",
		"user_id", user.ID.String(),
		"username", user.Username,
		"role", string(user.Role))

	return user, nil
}

// Login authenticates a user and creates a session. Returns the
// session, the plaintext token, and any error. Unknown usernames and
// wrong passwords return the same ErrInvalidCredentials; verification
// runs against a dummy hash for unknown users to keep response time
// flat.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, string, error) {
	user, lookupErr := s.users.GetByUsername(ctx, username)

	targetHash := dummyPasswordHash
	userExists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, "", oops.Code("STORE_UNAVAILABLE").
				With("operation", "get user by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify, even against the dummy hash.
	valid := s.hasher.Verify(password, targetHash)

	if !userExists || !valid {
		if userExists {
			user.RecordFailure()
			_ = s.users.Update(ctx, user) //nolint:errcheck // Best effort
		}
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	// Checked after password verification so the error only fires for
	// callers who actually hold the credentials.
	if !user.IsActive {
		return nil, "", oops.Code("AUTH_ACCOUNT_DEACTIVATED").
			With("username", user.Username).
			Wrap(ErrAccountDeactivated)
	}

	user.RecordSuccess()

	// Transparent rehash for legacy (pre-argon2id) hashes.
	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			user.PasswordHash = newHash
		}
	}
	_ = s.users.Update(ctx, user) //nolint:errcheck // Best effort, login succeeds regardless

	session, token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	s.logger.Info("user logged in",
		"user_id", user.ID.String(),
		"username", user.Username)

	return session, token, nil
}

// Logout destroys the session identified by the token. Logging out an
// unknown or already-destroyed session is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// CurrentIdentity resolves a session token into the user it belongs
// to. Returns (nil, nil) when the token is absent, expired, or the
// user no longer exists. Deactivation is intentionally not re-checked
// here; an existing session outlives deactivation of its user.
func (s *Service) CurrentIdentity(ctx context.Context, token string) (*User, error) {
	userID, ok, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("STORE_UNAVAILABLE").
			With("operation", "get user by id").
			Wrap(err)
	}
	return user, nil
}

// EnsureDefaultAdmin seeds a default admin account when the store is
// empty. Safe to run on every startup: it creates nothing once any
// user exists, and losing the creation race to a concurrent boot or
// registration is treated as success. The default credentials are a
// documented convenience, not a security mechanism.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, username, email, password string) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "count users").
			Wrap(err)
	}
	if count > 0 {
		return nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code("AUTH_SEED_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	admin, err := NewUser(username, email, hash, RoleAdmin)
	if err != nil {
		return err
	}

	if err := s.users.Create(ctx, admin); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			s.logger.Info("default admin already present, skipping seed", "username", username)
			return nil
		}
		return oops.Code("AUTH_SEED_FAILED").
			With("operation", "create default admin").
			Wrap(err)
	}

	s.logger.Info("default admin created",
		"user_id", admin.ID.String(),
		"username", admin.Username)
	return nil
}
