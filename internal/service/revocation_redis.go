package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisRevocationStore shares the blacklist between instances. Each entry is
// a key with a TTL covering both the retention window and the token's own
// remaining lifetime, so Prune has nothing to do.
type RedisRevocationStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRedisRevocationStore stores entries under "<prefix>:revoked:<sha256>".
func NewRedisRevocationStore(client *redis.Client, prefix string, retention time.Duration, now func() time.Time) *RedisRevocationStore {
	if retention <= 0 {
		retention = DefaultBlacklistRetention
	}
	if now == nil {
		now = time.Now
	}
	return &RedisRevocationStore{client: client, prefix: prefix, retention: retention, now: now}
}

func (s *RedisRevocationStore) key(token string) string {
	return fmt.Sprintf("%s:revoked:%s", s.prefix, hashToken(token))
}

// Revoke implements RevocationStore.
func (s *RedisRevocationStore) Revoke(ctx context.Context, token string, tokenExpiresAt time.Time) error {
	now := s.now()
	ttl := s.retention
	if remaining := tokenExpiresAt.Sub(now); remaining > ttl {
		ttl = remaining
	}
	// SETNX keeps the first revocation time on repeat logouts.
	if err := s.client.SetNX(ctx, s.key(token), now.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked implements RevocationStore.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}

// Prune implements RevocationStore. Redis expires entries on its own.
func (s *RedisRevocationStore) Prune(context.Context, time.Duration) (int, error) {
	return 0, nil
}
