// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionManager attaches identities to client sessions and resolves
// session tokens back to users.
//
// A client is either anonymous (no session) or authenticated as exactly
// one user. Login moves it to authenticated, Logout back to anonymous.
type SessionManager struct {
	sessions SessionRepository
	users    UserRepository
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionManager creates a SessionManager. A non-positive maxAge falls
// back to DefaultSessionMaxAge.
func NewSessionManager(sessions SessionRepository, users UserRepository, maxAge time.Duration, logger *slog.Logger) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("sessions repository is required")
	}
	if users == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("users repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return &SessionManager{
		sessions: sessions,
		users:    users,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Login establishes user on the client's session. When current already
// belongs to user it is kept and the returned token is empty. A session
// held by another user is ended first.
func (m *SessionManager) Login(ctx context.Context, current *WebSession, user *User, meta SessionMeta) (*WebSession, string, error) {
	if current != nil && current.UserID == user.ID && !current.IsExpiredAt(m.now()) {
		m.recordLogin(ctx, user)
		return current, "", nil
	}
	if current != nil {
		if err := m.Logout(ctx, current); err != nil {
			return nil, "", err
		}
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewWebSession(user.ID, tokenHash, meta, m.now().Add(m.maxAge))
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create web session").
			Wrap(err)
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	m.recordLogin(ctx, user)
	return session, token, nil
}

func (m *SessionManager) recordLogin(ctx context.Context, user *User) {
	now := m.now().UTC()
	if err := m.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		m.logger.WarnContext(ctx, "failed to record last login",
			"user_id", user.ID.String(),
			"error", err)
		return
	}
	user.LastLogin = &now
}

// Logout ends current. Logging out an anonymous client, or a session that
// is already gone, succeeds.
func (m *SessionManager) Logout(ctx context.Context, current *WebSession) error {
	if current == nil {
		return nil
	}
	err := m.sessions.Delete(ctx, current.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			With("session_id", current.ID.String()).
			Wrap(err)
	}
	return nil
}

// Authenticate resolves a session token to its session and user. Unknown,
// expired or orphaned sessions and inactive users all yield
// ErrUnauthenticated.
func (m *SessionManager) Authenticate(ctx context.Context, token string) (*WebSession, *User, error) {
	if token == "" {
		return nil, nil, oops.Code("SESSION_TOKEN_EMPTY").Wrap(ErrUnauthenticated)
	}

	session, err := m.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, oops.Code("SESSION_INVALID").Wrap(ErrUnauthenticated)
		}
		return nil, nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	now := m.now()
	if session.IsExpiredAt(now) {
		m.discard(ctx, session, "expired")
		return nil, nil, oops.Code("SESSION_EXPIRED").Wrap(ErrUnauthenticated)
	}

	user, err := m.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.discard(ctx, session, "user deleted")
			return nil, nil, oops.Code("SESSION_ORPHANED").Wrap(ErrUnauthenticated)
		}
		return nil, nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session user").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	if !user.IsActive {
		return nil, nil, oops.Code("SESSION_USER_INACTIVE").
			With("user_id", user.ID.String()).
			Wrap(ErrUnauthenticated)
	}

	if err := m.sessions.UpdateLastSeen(ctx, session.ID, now.UTC()); err != nil {
		m.logger.WarnContext(ctx, "failed to update session last seen",
			"session_id", session.ID.String(),
			"error", err)
	} else {
		session.LastSeenAt = now.UTC()
	}

	return session, user, nil
}

func (m *SessionManager) discard(ctx context.Context, session *WebSession, reason string) {
	if err := m.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
		m.logger.WarnContext(ctx, "failed to discard session",
			"session_id", session.ID.String(),
			"reason", reason,
			"error", err)
	}
}

// RevokeAll ends every session of a user.
func (m *SessionManager) RevokeAll(ctx context.Context, userID ulid.ULID) error {
	if err := m.sessions.DeleteByUser(ctx, userID); err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// ClearExpired deletes expired sessions and returns how many were removed.
func (m *SessionManager) ClearExpired(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("SESSION_CLEAR_EXPIRED_FAILED").Wrap(err)
	}
	return n, nil
}
