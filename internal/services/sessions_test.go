package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore_Lifecycle(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()

	sid, err := s.Create(ctx, 7, time.Hour)
	require.NoError(t, err)

	uid, err := s.Lookup(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, int64(7), uid)

	require.NoError(t, s.Revoke(ctx, sid))
	_, err = s.Lookup(ctx, sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, s.Revoke(ctx, "unknown"))
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	s := NewMemorySessionStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	sid, err := s.Create(ctx, 7, time.Minute)
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = s.Lookup(ctx, sid)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = s.Lookup(ctx, sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStore_RevokeAll(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()

	a1, _ := s.Create(ctx, 1, time.Hour)
	a2, _ := s.Create(ctx, 1, time.Hour)
	b, _ := s.Create(ctx, 2, time.Hour)
	assert.NotEqual(t, a1, a2)

	require.NoError(t, s.RevokeAll(ctx, 1))

	_, err := s.Lookup(ctx, a1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.Lookup(ctx, a2)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	uid, err := s.Lookup(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), uid)
}

func TestRedisKeys(t *testing.T) {
	assert.Equal(t, "session:abc", sessionKey("abc"))
	assert.Equal(t, "user_sessions:42", userSessionsKey(42))
}

func newRedisSessionStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSessionStore(rdb), mr
}

func TestRedisSessionStore_Lifecycle(t *testing.T) {
	s, mr := newRedisSessionStore(t)
	ctx := context.Background()

	sid, err := s.Create(ctx, 7, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, time.Hour, mr.TTL(sessionKey(sid)))
	assert.Equal(t, time.Hour, mr.TTL(userSessionsKey(7)))
	member, err := mr.SIsMember(userSessionsKey(7), sid)
	require.NoError(t, err)
	assert.True(t, member)

	uid, err := s.Lookup(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, int64(7), uid)

	require.NoError(t, s.Revoke(ctx, sid))
	_, err = s.Lookup(ctx, sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, mr.Exists(sessionKey(sid)))
	assert.False(t, mr.Exists(userSessionsKey(7)))

	require.NoError(t, s.Revoke(ctx, sid))
	require.NoError(t, s.Revoke(ctx, "unknown"))
}

func TestRedisSessionStore_Expiry(t *testing.T) {
	s, mr := newRedisSessionStore(t)
	ctx := context.Background()

	sid, err := s.Create(ctx, 7, time.Minute)
	require.NoError(t, err)

	mr.FastForward(59 * time.Second)
	_, err = s.Lookup(ctx, sid)
	require.NoError(t, err)

	mr.FastForward(time.Second)
	_, err = s.Lookup(ctx, sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStore_RevokeAll(t *testing.T) {
	s, mr := newRedisSessionStore(t)
	ctx := context.Background()

	a1, err := s.Create(ctx, 1, time.Hour)
	require.NoError(t, err)
	a2, err := s.Create(ctx, 1, time.Hour)
	require.NoError(t, err)
	b, err := s.Create(ctx, 2, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a1, a2)

	require.NoError(t, s.RevokeAll(ctx, 1))

	_, err = s.Lookup(ctx, a1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.Lookup(ctx, a2)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, mr.Exists(userSessionsKey(1)))

	uid, err := s.Lookup(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), uid)

	require.NoError(t, s.RevokeAll(ctx, 99))
}

func TestRedisSessionStore_Unreachable(t *testing.T) {
	s, mr := newRedisSessionStore(t)
	ctx := context.Background()

	sid, err := s.Create(ctx, 7, time.Hour)
	require.NoError(t, err)
	mr.Close()

	_, err = s.Lookup(ctx, sid)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)

	_, err = s.Create(ctx, 7, time.Hour)
	assert.Error(t, err)
}
