// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/postgres"
)

func testSession(t *testing.T) *auth.Session {
	t.Helper()
	_, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	session, err := auth.NewSession(ulid.Make(), hash, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return session
}

func sessionRows(sessions ...*auth.Session) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "user_id", "token_hash", "expires_at", "created_at", "last_seen_at",
	})
	for _, s := range sessions {
		rows.AddRow(
			s.ID.String(), s.UserID.String(), s.TokenHash,
			s.ExpiresAt, s.CreatedAt, s.LastSeenAt,
		)
	}
	return rows
}

func TestSessionRepositoryCreate(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := postgres.NewSessionRepository(mock)
	session := testSession(t)

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(
			session.ID.String(), session.UserID.String(), session.TokenHash,
			session.ExpiresAt, session.CreatedAt, session.LastSeenAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(ctx, session))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryGetByTokenHash(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored session", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewSessionRepository(mock)
		session := testSession(t)

		mock.ExpectQuery(`SELECT (.+) FROM sessions\s+WHERE token_hash = \$1`).
			WithArgs(session.TokenHash).
			WillReturnRows(sessionRows(session))

		got, err := repo.GetByTokenHash(ctx, session.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, session.UserID, got.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent session maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewSessionRepository(mock)

		mock.ExpectQuery(`SELECT (.+) FROM sessions\s+WHERE token_hash = \$1`).
			WithArgs("unknown").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByTokenHash(ctx, "unknown")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepositoryUpdateLastSeen(t *testing.T) {
	ctx := context.Background()

	t.Run("updates existing session", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewSessionRepository(mock)
		id := ulid.Make()
		seen := time.Now()

		mock.ExpectExec(`UPDATE sessions SET last_seen_at = \$2\s+WHERE id = \$1`).
			WithArgs(id.String(), seen).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdateLastSeen(ctx, id, seen))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent session maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewSessionRepository(mock)
		id := ulid.Make()
		seen := time.Now()

		mock.ExpectExec(`UPDATE sessions SET last_seen_at = \$2\s+WHERE id = \$1`).
			WithArgs(id.String(), seen).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateLastSeen(ctx, id, seen)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepositoryDeleteByTokenHash(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes existing session", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewSessionRepository(mock)

		mock.ExpectExec(`DELETE FROM sessions WHERE token_hash = \$1`).
			WithArgs("somehash").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.DeleteByTokenHash(ctx, "somehash"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent session maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewSessionRepository(mock)

		mock.ExpectExec(`DELETE FROM sessions WHERE token_hash = \$1`).
			WithArgs("somehash").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := repo.DeleteByTokenHash(ctx, "somehash")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepositoryDeleteByUser(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := postgres.NewSessionRepository(mock)
	userID := ulid.Make()

	// Zero rows deleted is not an error.
	mock.ExpectExec(`DELETE FROM sessions WHERE user_id = \$1`).
		WithArgs(userID.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.DeleteByUser(ctx, userID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDeleteExpired(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := postgres.NewSessionRepository(mock)

	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at < \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
