// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/postgres"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func testUser(t *testing.T) *auth.User {
	t.Helper()
	user, err := auth.NewUser("alice", "alice@example.com", "$argon2id$somehash", auth.RoleUser)
	require.NoError(t, err)
	return user
}

func userRows(users ...*auth.User) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "username", "email", "password_hash", "role",
		"is_active", "failed_attempts", "created_at", "updated_at",
	})
	for _, u := range users {
		rows.AddRow(
			u.ID.String(), u.Username, u.Email, u.PasswordHash, string(u.Role),
			u.IsActive, u.FailedAttempts, u.CreatedAt, u.UpdatedAt,
		)
	}
	return rows
}

func TestUserRepositoryCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("commits requested role into non-empty store", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)
		user := testUser(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(
				user.ID.String(), user.Username, user.Email, user.PasswordHash,
				string(auth.RoleUser), user.IsActive, user.FailedAttempts,
				user.CreatedAt, user.UpdatedAt,
			).
			WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow("user"))
		mock.ExpectCommit()
		mock.ExpectRollback()

		require.NoError(t, repo.Create(ctx, user))
		assert.Equal(t, auth.RoleUser, user.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("first user committed to empty store gets admin role", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)
		user := testUser(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(
				user.ID.String(), user.Username, user.Email, user.PasswordHash,
				string(auth.RoleUser), user.IsActive, user.FailedAttempts,
				user.CreatedAt, user.UpdatedAt,
			).
			WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow("admin"))
		mock.ExpectCommit()
		mock.ExpectRollback()

		require.NoError(t, repo.Create(ctx, user))
		assert.Equal(t, auth.RoleAdmin, user.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrDuplicateUsername", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)
		user := testUser(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(
				user.ID.String(), user.Username, user.Email, user.PasswordHash,
				string(auth.RoleUser), user.IsActive, user.FailedAttempts,
				user.CreatedAt, user.UpdatedAt,
			).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
		mock.ExpectRollback()

		err := repo.Create(ctx, user)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateUsername)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepositoryGetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored user", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)
		user := testUser(t)

		mock.ExpectQuery(`SELECT (.+) FROM users\s+WHERE id = \$1`).
			WithArgs(user.ID.String()).
			WillReturnRows(userRows(user))

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, user.Username, got.Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent user maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)
		id := ulid.Make()

		mock.ExpectQuery(`SELECT (.+) FROM users\s+WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByID(ctx, id)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepositoryGetByUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("matches case-insensitively", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)
		user := testUser(t)

		mock.ExpectQuery(`SELECT (.+) FROM users\s+WHERE LOWER\(username\) = LOWER\(\$1\)`).
			WithArgs("ALICE").
			WillReturnRows(userRows(user))

		got, err := repo.GetByUsername(ctx, "ALICE")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent user maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)

		mock.ExpectQuery(`SELECT (.+) FROM users\s+WHERE LOWER\(username\) = LOWER\(\$1\)`).
			WithArgs("mallory").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByUsername(ctx, "mallory")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepositoryUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("updates existing user", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)
		user := testUser(t)
		user.RecordFailure()

		mock.ExpectExec(`UPDATE users SET`).
			WithArgs(
				user.ID.String(), user.Email, user.PasswordHash, string(user.Role),
				user.IsActive, user.FailedAttempts, user.UpdatedAt,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.Update(ctx, user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent user maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)
		user := testUser(t)

		mock.ExpectExec(`UPDATE users SET`).
			WithArgs(
				user.ID.String(), user.Email, user.PasswordHash, string(user.Role),
				user.IsActive, user.FailedAttempts, user.UpdatedAt,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, user)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepositoryCount(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := postgres.NewUserRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users`)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryList(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := postgres.NewUserRepository(mock)

	first := testUser(t)
	second, err := auth.NewUser("bob", "bob@example.com", "$argon2id$otherhash", auth.RoleUser)
	require.NoError(t, err)
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	mock.ExpectQuery(`SELECT (.+) FROM users\s+ORDER BY created_at, id`).
		WillReturnRows(userRows(first, second))

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}
