// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/stornco/parking/internal/auth"
)

// DefaultKeyPrefix namespaces every key the repository writes.
const DefaultKeyPrefix = "parking:"

// SessionRepository implements auth.SessionRepository on Redis.
//
// Layout:
//
//	<prefix>session:<id>           JSON record, expires with the session
//	<prefix>session:token:<hash>   session id, expires with the session
//	<prefix>user:<id>:sessions     set of session ids
//
// Expired records disappear on their own; their ids linger in the user set
// until the next read of that set or DeleteExpired.
type SessionRepository struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// Option configures a SessionRepository.
type Option func(*SessionRepository)

// WithKeyPrefix replaces DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(r *SessionRepository) {
		r.prefix = prefix
	}
}

// NewSessionRepository creates a SessionRepository on client.
func NewSessionRepository(client redis.UniversalClient, opts ...Option) *SessionRepository {
	r := &SessionRepository{client: client, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// sessionRecord is the stored JSON form of a WebSession.
type sessionRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	TokenHash  string    `json:"token_hash"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Device     string    `json:"device,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

func toRecord(s *auth.WebSession) sessionRecord {
	return sessionRecord{
		ID:         s.ID.String(),
		UserID:     s.UserID.String(),
		TokenHash:  s.TokenHash,
		UserAgent:  s.UserAgent,
		Device:     s.Device,
		IPAddress:  s.IPAddress,
		ExpiresAt:  s.ExpiresAt,
		CreatedAt:  s.CreatedAt,
		LastSeenAt: s.LastSeenAt,
	}
}

func (rec sessionRecord) session() (*auth.WebSession, error) {
	id, err := ulid.Parse(rec.ID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", rec.ID).Wrap(err)
	}
	userID, err := ulid.Parse(rec.UserID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").With("user_id", rec.UserID).Wrap(err)
	}
	return &auth.WebSession{
		ID:         id,
		UserID:     userID,
		TokenHash:  rec.TokenHash,
		UserAgent:  rec.UserAgent,
		Device:     rec.Device,
		IPAddress:  rec.IPAddress,
		ExpiresAt:  rec.ExpiresAt,
		CreatedAt:  rec.CreatedAt,
		LastSeenAt: rec.LastSeenAt,
	}, nil
}

func decodeRecord(data string) (*auth.WebSession, error) {
	var rec sessionRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}
	return rec.session()
}

func (r *SessionRepository) sessionKey(id string) string { return r.prefix + "session:" + id }
func (r *SessionRepository) tokenKey(hash string) string { return r.prefix + "session:token:" + hash }
func (r *SessionRepository) userKey(userID string) string {
	return r.prefix + "user:" + userID + ":sessions"
}

// Create stores a session. A session that is already expired is not
// written, matching what a later read would see.
func (r *SessionRepository) Create(ctx context.Context, session *auth.WebSession) error {
	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(toRecord(session))
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}

	id := session.ID.String()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(id), data, ttl)
		pipe.Set(ctx, r.tokenKey(session.TokenHash), id, ttl)
		pipe.SAdd(ctx, r.userKey(session.UserID.String()), id)
		return nil
	})
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "store session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.WebSession, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id.String())).Result()
	if errors.Is(err, redis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_ID_FAILED").With("id", id.String()).Wrap(err)
	}
	return decodeRecord(data)
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.WebSession, error) {
	id, err := r.client.Get(ctx, r.tokenKey(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").Wrap(err)
	}

	data, err := r.client.Get(ctx, r.sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").With("id", id).Wrap(err)
	}
	return decodeRecord(data)
}

// userSessions loads every session in the user set, oldest id first, and
// returns the ids whose records are gone.
func (r *SessionRepository) userSessions(ctx context.Context, userID string) ([]*auth.WebSession, []any, error) {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, nil, oops.Code("SESSION_GET_BY_USER_FAILED").With("user_id", userID).Wrap(err)
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}
	// ULID strings sort in creation order.
	slices.Sort(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.sessionKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, oops.Code("SESSION_GET_BY_USER_FAILED").With("user_id", userID).Wrap(err)
	}

	var (
		sessions []*auth.WebSession
		stale    []any
	)
	for i, v := range values {
		data, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		session, err := decodeRecord(data)
		if err != nil {
			return nil, nil, oops.With("user_id", userID).Wrap(err)
		}
		sessions = append(sessions, session)
	}
	return sessions, stale, nil
}

// UpdateLastSeen updates the LastSeenAt timestamp, keeping the key's TTL.
func (r *SessionRepository) UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	session.LastSeenAt = lastSeen
	data, err := json.Marshal(toRecord(session))
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}

	err = r.client.SetArgs(ctx, r.sessionKey(id.String()), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("SESSION_UPDATE_LAST_SEEN_FAILED").With("id", id.String()).Wrap(err)
	}
	return nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(session.ID.String()), r.tokenKey(session.TokenHash))
		pipe.SRem(ctx, r.userKey(session.UserID.String()), session.ID.String())
		return nil
	})
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	return nil
}

// DeleteByUser removes all sessions for a user.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	sessions, _, err := r.userSessions(ctx, userID.String())
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, s := range sessions {
			pipe.Del(ctx, r.sessionKey(s.ID.String()), r.tokenKey(s.TokenHash))
		}
		pipe.Del(ctx, r.userKey(userID.String()))
		return nil
	})
	if err != nil {
		return oops.Code("SESSION_DELETE_BY_USER_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}

// DeleteExpired prunes ids of expired sessions from every user set and
// returns how many it removed. The records themselves are already gone.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	var (
		removed int64
		cursor  uint64
	)
	pattern := r.prefix + "user:*:sessions"
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, oops.Code("SESSION_DELETE_EXPIRED_FAILED").With("operation", "scan user sets").Wrap(err)
		}
		for _, key := range keys {
			userID := strings.TrimSuffix(strings.TrimPrefix(key, r.prefix+"user:"), ":sessions")
			_, stale, err := r.userSessions(ctx, userID)
			if err != nil {
				return removed, oops.Code("SESSION_DELETE_EXPIRED_FAILED").Wrap(err)
			}
			if len(stale) == 0 {
				continue
			}
			n, err := r.client.SRem(ctx, key, stale...).Result()
			if err != nil {
				return removed, oops.Code("SESSION_DELETE_EXPIRED_FAILED").With("key", key).Wrap(err)
			}
			removed += n
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
