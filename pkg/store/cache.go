package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// CacheSet stores a JSON-serialized value under key with the given TTL.
// Returns false on serialization or backend failure.
func (s *Store) CacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("failed to marshal cache value")
		return false
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.WithError(err).WithField("key", key).Error("failed to set cache value")
		return false
	}
	return true
}

// CacheGet reads a cached value into dest. Returns false on miss, expiry, or
// backend failure; a miss is never an error. Corrupt entries are deleted.
func (s *Store) CacheGet(ctx context.Context, key string, dest interface{}) bool {
	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false
	} else if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("failed to get cache value")
		return false
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		s.client.Del(ctx, key)
		s.logger.WithError(err).WithField("key", key).Warn("dropped corrupt cache entry")
		return false
	}
	return true
}

// CacheDelete removes a cached value
func (s *Store) CacheDelete(ctx context.Context, key string) bool {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.WithError(err).WithField("key", key).Error("failed to delete cache value")
		return false
	}
	return true
}
