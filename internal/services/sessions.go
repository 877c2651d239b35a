package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrSessionNotFound signals an unknown, expired or revoked session.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps the server-side half of a login.
type SessionStore interface {
	// Create starts a session for userID and returns its id.
	Create(ctx context.Context, userID int64, ttl time.Duration) (string, error)
	// Lookup returns the account the session belongs to.
	Lookup(ctx context.Context, sessionID string) (int64, error)
	Revoke(ctx context.Context, sessionID string) error
	// RevokeAll ends every session of userID.
	RevokeAll(ctx context.Context, userID int64) error
}

// RedisSessionStore stores session:<id> -> account id, plus a
// user_sessions:<account id> set used by RevokeAll.
type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

func userSessionsKey(userID int64) string {
	return "user_sessions:" + strconv.FormatInt(userID, 10)
}

func (s *RedisSessionStore) Create(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	sid := uuid.NewString()
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(sid), userID, ttl)
	pipe.SAdd(ctx, userSessionsKey(userID), sid)
	pipe.Expire(ctx, userSessionsKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("sessions: create: %w", err)
	}
	return sid, nil
}

func (s *RedisSessionStore) Lookup(ctx context.Context, sessionID string) (int64, error) {
	userID, err := s.rdb.Get(ctx, sessionKey(sessionID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("sessions: lookup: %w", err)
	}
	return userID, nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, sessionID string) error {
	userID, err := s.Lookup(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.SRem(ctx, userSessionsKey(userID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sessions: revoke: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) RevokeAll(ctx context.Context, userID int64) error {
	ids, err := s.rdb.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("sessions: list: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userSessionsKey(userID))
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("sessions: revoke all: %w", err)
	}
	return nil
}

type memorySession struct {
	userID  int64
	expires time.Time
}

// MemorySessionStore keeps sessions in process memory. Sessions are lost on
// restart and are not shared between replicas.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Create(_ context.Context, userID int64, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, sess := range s.sessions {
		if !now.Before(sess.expires) {
			delete(s.sessions, id)
		}
	}
	sid := uuid.NewString()
	s.sessions[sid] = memorySession{userID: userID, expires: now.Add(ttl)}
	return sid, nil
}

func (s *MemorySessionStore) Lookup(_ context.Context, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return 0, ErrSessionNotFound
	}
	if !s.now().Before(sess.expires) {
		delete(s.sessions, sessionID)
		return 0, ErrSessionNotFound
	}
	return sess.userID, nil
}

func (s *MemorySessionStore) Revoke(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemorySessionStore) RevokeAll(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.userID == userID {
			delete(s.sessions, id)
		}
	}
	return nil
}
