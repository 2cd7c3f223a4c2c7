package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix = "newsletter:cache:"
	scanBatchSize  = 100
)

// CacheStore keeps serialized provider lookups under a namespaced key with
// a per-entry TTL. Expiry is left to Redis.
type CacheStore struct {
	client *goredis.Client
}

func NewCacheStore(client *goredis.Client) (*CacheStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &CacheStore{client: client}, nil
}

// Get returns ok=false on a miss.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache key %q: %w", key, err)
	}
	return raw, true, nil
}

func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, cacheKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %q: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every entry whose key starts with prefix and
// returns how many were removed. An empty prefix clears the namespace.
func (s *CacheStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	pattern := cacheKeyPrefix + escapeGlob(prefix) + "*"

	deleted := 0
	iter := s.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	batch := make([]string, 0, scanBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if err := flush(); err != nil {
		return deleted, err
	}

	return deleted, nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
