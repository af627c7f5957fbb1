package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cleanward/internal/models"
)

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyLeaderboard is for the top-N citizen ranking
	CacheKeyLeaderboard CacheKeyType = "leaderboard"
	// CacheKeyRevoked is for signed-out session token ids
	CacheKeyRevoked CacheKeyType = "revoked"
)

// CacheService provides the Redis-backed caches of the service: the
// leaderboard cache and the session revocation list
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service. ttl applies to the leaderboard.
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, string(keyType))
	for _, p := range params {
		parts = append(parts, strings.ToLower(p))
	}
	return strings.Join(parts, ":")
}

// Set stores a JSON-encoded value with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a JSON-encoded value with a custom TTL
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if err := c.redis.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Get decodes a cached value into dest. It returns (false, nil) on a miss.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if IsMiss(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache: %w", err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Delete removes keys from the cache
func (c *CacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

func (c *CacheService) leaderboardKey(size int) string {
	return c.GenerateCacheKey(CacheKeyLeaderboard, "top", fmt.Sprint(size))
}

// GetLeaderboard returns the cached top-N ranking
func (c *CacheService) GetLeaderboard(ctx context.Context, size int) ([]models.LeaderboardEntry, bool, error) {
	var entries []models.LeaderboardEntry
	found, err := c.Get(ctx, c.leaderboardKey(size), &entries)
	if err != nil || !found {
		return nil, false, err
	}
	return entries, true, nil
}

// SetLeaderboard caches the top-N ranking
func (c *CacheService) SetLeaderboard(ctx context.Context, size int, entries []models.LeaderboardEntry) error {
	return c.Set(ctx, c.leaderboardKey(size), entries)
}

// InvalidateLeaderboard drops every cached ranking regardless of size
func (c *CacheService) InvalidateLeaderboard(ctx context.Context) error {
	client := c.redis.Client()
	iter := client.Scan(ctx, 0, string(CacheKeyLeaderboard)+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan leaderboard keys: %w", err)
	}
	return c.Delete(ctx, keys...)
}

// Revoke marks a session token id as signed out until its expiry
func (c *CacheService) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return c.redis.Set(ctx, c.GenerateCacheKey(CacheKeyRevoked, tokenID), "1", ttl)
}

// IsRevoked reports whether a session token id has been signed out
func (c *CacheService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return c.redis.Exists(ctx, c.GenerateCacheKey(CacheKeyRevoked, tokenID))
}
