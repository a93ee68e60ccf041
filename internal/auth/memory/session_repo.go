// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/stornco/parking/internal/auth"
)

// SessionRepository implements auth.SessionRepository in memory.
type SessionRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.WebSession
	byToken map[string]ulid.ULID
}

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		byID:    make(map[ulid.ULID]*auth.WebSession),
		byToken: make(map[string]ulid.ULID),
	}
}

// Create stores a new web session.
func (r *SessionRepository) Create(_ context.Context, session *auth.WebSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[session.TokenHash]; ok {
		return oops.Code("SESSION_CREATE_FAILED").Errorf("token hash already in use")
	}
	stored := *session
	r.byID[session.ID] = &stored
	r.byToken[session.TokenHash] = session.ID
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.WebSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	c := *s
	return &c, nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.WebSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byToken[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	c := *r.byID[id]
	return &c, nil
}

// UpdateLastSeen updates the LastSeenAt timestamp for a session.
func (r *SessionRepository) UpdateLastSeen(_ context.Context, id ulid.ULID, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	s.LastSeenAt = lastSeen
	return nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.byToken, s.TokenHash)
	delete(r.byID, id)
	return nil
}

// DeleteByUser removes all sessions for a user.
func (r *SessionRepository) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.byID {
		if s.UserID == userID {
			delete(r.byToken, s.TokenHash)
			delete(r.byID, id)
		}
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (r *SessionRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var n int64
	for id, s := range r.byID {
		if s.IsExpiredAt(now) {
			delete(r.byToken, s.TokenHash)
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
