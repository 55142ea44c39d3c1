package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "revoked_at:{42}", key(42))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	at, err := s.RevokedAt(ctx, 1)
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	t1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Revoke(ctx, 1, t1))
	at, _ = s.RevokedAt(ctx, 1)
	assert.Equal(t, t1, at)

	// an older mark never moves the cutoff back
	require.NoError(t, s.Revoke(ctx, 1, t1.Add(-time.Hour)))
	at, _ = s.RevokedAt(ctx, 1)
	assert.Equal(t, t1, at)

	other, _ := s.RevokedAt(ctx, 2)
	assert.True(t, other.IsZero())
}

func newRedisStore(t *testing.T, retention time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), Config{URL: "redis://" + srv.Addr(), Retention: retention})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, srv
}

func TestRedisStore(t *testing.T) {
	s, srv := newRedisStore(t, time.Hour)
	ctx := context.Background()

	at, err := s.RevokedAt(ctx, 1)
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	t1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Revoke(ctx, 1, t1))
	at, err = s.RevokedAt(ctx, 1)
	require.NoError(t, err)
	assert.True(t, t1.Equal(at), "got %v", at)
	assert.Equal(t, time.Hour, srv.TTL(key(1)))

	later := t1.Add(time.Minute)
	require.NoError(t, s.Revoke(ctx, 1, later))
	at, _ = s.RevokedAt(ctx, 1)
	assert.True(t, later.Equal(at), "got %v", at)

	other, _ := s.RevokedAt(ctx, 2)
	assert.True(t, other.IsZero())
}

func TestRedisStore_OlderMarkIsIgnored(t *testing.T) {
	s, _ := newRedisStore(t, time.Hour)
	ctx := context.Background()

	t1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Revoke(ctx, 1, t1))
	// another instance with a clock running behind
	require.NoError(t, s.Revoke(ctx, 1, t1.Add(-time.Hour)))

	at, err := s.RevokedAt(ctx, 1)
	require.NoError(t, err)
	assert.True(t, t1.Equal(at), "got %v", at)
}

func TestRedisStore_NoRetentionKeepsMark(t *testing.T) {
	s, srv := newRedisStore(t, 0)
	require.NoError(t, s.Revoke(context.Background(), 1, time.Now()))
	assert.Zero(t, srv.TTL(key(1)))
}

func TestRedisStore_ServerDown(t *testing.T) {
	srv, err := miniredis.Run()
	require.NoError(t, err)
	s := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}), time.Hour)
	srv.Close()

	_, err = s.RevokedAt(context.Background(), 1)
	require.Error(t, err)
	require.Error(t, s.Revoke(context.Background(), 1, time.Now()))
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), Config{URL: "http://not-redis"})
	require.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg := ConfigFromEnv(24 * time.Hour)
	assert.Equal(t, "redis://localhost:6379/0", cfg.URL)
	assert.Equal(t, 24*time.Hour, cfg.Retention)
}
