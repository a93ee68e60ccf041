// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stornco/parking/internal/auth"
	"github.com/stornco/parking/pkg/errutil"
)

var userCols = []string{"id", "email", "phone", "password_hash", "is_active", "is_staff", "is_superuser", "last_login", "created_at", "updated_at"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	user, err := auth.NewUser("a@example.com", "5551234567", "hash", auth.RegularUser)
	require.NoError(t, err)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		code      string
	}{
		{
			name: "inserts user",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(user.ID.String(), "a@example.com", "5551234567", "hash", true, false, false,
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "email unique violation",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: emailUniqueIndex})
			},
			wantErr: auth.ErrDuplicateEmail,
			code:    "USER_DUPLICATE_EMAIL",
		},
		{
			name: "other unique violation is not a duplicate email",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_pkey"})
			},
			code: "USER_CREATE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			tt.setupMock(mock)

			err := NewUserRepository(mock).Create(ctx, user)
			if tt.code == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NotErrorIs(t, err, auth.ErrDuplicateEmail)
			}
		})
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
			WithArgs("a@example.com").
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow(id.String(), "a@example.com", "5551234567", "hash", true, true, false, nil, now, now))

		user, err := NewUserRepository(mock).GetByEmail(ctx, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.True(t, user.IsStaff)
		assert.Nil(t, user.LastLogin)
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
			WithArgs("ghost@example.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := NewUserRepository(mock).GetByEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("corrupt id", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow("not-a-ulid", "a@example.com", "5551234567", "hash", true, false, false, nil, now, now))

		_, err := NewUserRepository(mock).GetByEmail(ctx, "a@example.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_List(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("returns rows in order", func(t *testing.T) {
		mock := newMockPool(t)
		a, b := ulid.Make(), ulid.Make()
		mock.ExpectQuery(`SELECT .+ FROM users ORDER BY created_at, id`).
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow(a.String(), "a@example.com", "5551234567", "hash", true, false, false, nil, now, now).
				AddRow(b.String(), "b@example.com", "5551234567", "hash", true, false, false, nil, now, now))

		users, err := NewUserRepository(mock).List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, a, users[0].ID)
		assert.Equal(t, b, users[1].ID)
	})

	t.Run("empty table yields empty slice", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM users`).WillReturnRows(pgxmock.NewRows(userCols))

		users, err := NewUserRepository(mock).List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, users)
		assert.Empty(t, users)
	})

	t.Run("query error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM users`).WillReturnError(errors.New("connection refused"))

		_, err := NewUserRepository(mock).List(ctx)
		errutil.AssertErrorCode(t, err, "USER_LIST_FAILED")
	})
}

func TestUserRepository_Update(t *testing.T) {
	ctx := context.Background()
	user, err := auth.NewUser("a@example.com", "5551234567", "hash", auth.RegularUser)
	require.NoError(t, err)

	tests := []struct {
		name    string
		result  pgconn.CommandTag
		err     error
		wantErr error
	}{
		{name: "updated", result: pgxmock.NewResult("UPDATE", 1)},
		{name: "missing", result: pgxmock.NewResult("UPDATE", 0), wantErr: auth.ErrNotFound},
		{
			name:    "email taken",
			err:     &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: emailUniqueIndex},
			wantErr: auth.ErrDuplicateEmail,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			exp := mock.ExpectExec(`UPDATE users`).
				WithArgs(user.ID.String(), user.Email, user.Phone, true, false, false, pgxmock.AnyArg())
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnResult(tt.result)
			}

			err := NewUserRepository(mock).Update(ctx, user)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUserRepository_Writes(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("update password", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs(id.String(), "newhash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		assert.NoError(t, NewUserRepository(mock).UpdatePassword(ctx, id, "newhash"))
	})

	t.Run("update last login of missing user", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE users SET last_login`).
			WithArgs(id.String(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		assert.ErrorIs(t, NewUserRepository(mock).UpdateLastLogin(ctx, id, time.Now()), auth.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM users`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		assert.NoError(t, NewUserRepository(mock).Delete(ctx, id))
	})

	t.Run("delete missing", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM users`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		err := NewUserRepository(mock).Delete(ctx, id)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorContext(t, err, "id", id.String())
	})
}

var sessionCols = []string{"id", "user_id", "token_hash", "user_agent", "device", "ip_address", "expires_at", "created_at", "last_seen_at"}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()
	session, err := auth.NewWebSession(userID, "tokenhash", auth.SessionMeta{UserAgent: "curl/8.0", IPAddress: "192.0.2.1"}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	t.Run("create", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO web_sessions`).
			WithArgs(session.ID.String(), userID.String(), "tokenhash", "curl/8.0", session.Device, "192.0.2.1",
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		assert.NoError(t, NewSessionRepository(mock).Create(ctx, session))
	})

	t.Run("get by token hash", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM web_sessions WHERE token_hash`).
			WithArgs("tokenhash").
			WillReturnRows(pgxmock.NewRows(sessionCols).AddRow(
				session.ID.String(), userID.String(), "tokenhash", "curl/8.0", session.Device, "192.0.2.1",
				session.ExpiresAt, session.CreatedAt, session.LastSeenAt))

		got, err := NewSessionRepository(mock).GetByTokenHash(ctx, "tokenhash")
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, userID, got.UserID)
	})

	t.Run("get by unknown token hash", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM web_sessions WHERE token_hash`).
			WillReturnError(pgx.ErrNoRows)

		_, err := NewSessionRepository(mock).GetByTokenHash(ctx, "nope")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("delete by user tolerates no rows", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM web_sessions WHERE user_id`).
			WithArgs(userID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		assert.NoError(t, NewSessionRepository(mock).DeleteByUser(ctx, userID))
	})

	t.Run("delete expired reports count", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM web_sessions WHERE expires_at`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 4))
		n, err := NewSessionRepository(mock).DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("delete missing session", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM web_sessions WHERE id`).
			WithArgs(session.ID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		assert.ErrorIs(t, NewSessionRepository(mock).Delete(ctx, session.ID), auth.ErrNotFound)
	})
}
