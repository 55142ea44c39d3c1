// Package revocation keeps, per user, the instant before which issued
// session tokens are no longer accepted.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	// URL is a redis:// or rediss:// URL. Empty selects the in-memory store.
	URL string
	// Retention bounds how long a mark is kept. Tokens older than this have
	// expired on their own, so it should be at least the session ttl.
	Retention time.Duration
}

func ConfigFromEnv(sessionTTL time.Duration) Config {
	return Config{URL: os.Getenv("REDIS_URL"), Retention: sessionTTL}
}

func key(userID int64) string {
	return "revoked_at:{" + strconv.FormatInt(userID, 10) + "}"
}

// RedisStore shares revocation marks across every API instance.
type RedisStore struct {
	client    redis.UniversalClient
	retention time.Duration
}

// NewRedisStore parses cfg.URL and pings the server.
func NewRedisStore(ctx context.Context, cfg Config) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(client, cfg.Retention), nil
}

func NewRedisStoreWithClient(client redis.UniversalClient, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func (s *RedisStore) RevokedAt(ctx context.Context, userID int64) (time.Time, error) {
	v, err := s.client.Get(ctx, key(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get revocation: %w", err)
	}
	return time.Unix(0, v), nil
}

// raiseMark stores ARGV[1] unless the current mark is already later, so a
// skewed clock on one instance cannot lower another's cutoff.
var raiseMark = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]))
local at = tonumber(ARGV[1])
if cur ~= nil and cur >= at then
	return 0
end
if tonumber(ARGV[2]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

func (s *RedisStore) Revoke(ctx context.Context, userID int64, at time.Time) error {
	err := raiseMark.Run(ctx, s.client, []string{key(userID)}, at.UnixNano(), s.retention.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("set revocation: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

// MemoryStore is the single-process fallback used when no Redis is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	marks map[int64]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{marks: make(map[int64]time.Time)}
}

func (s *MemoryStore) RevokedAt(_ context.Context, userID int64) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marks[userID], nil
}

func (s *MemoryStore) Revoke(_ context.Context, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at.After(s.marks[userID]) {
		s.marks[userID] = at
	}
	return nil
}
