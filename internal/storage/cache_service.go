package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CacheService provides the Redis read-through front for the term and
// scam-check caches. Postgres stays the durable copy; Redis only shortcuts
// repeat lookups within the TTL.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyTerm is for beginner-depth term explanations
	CacheKeyTerm CacheKeyType = "term"
	// CacheKeyScan is for text-only basic scan results
	CacheKeyScan CacheKeyType = "scan"
)

// GenerateCacheKey generates a cache key for a given type and parameters.
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	normalized := make([]string, len(params))
	for i, param := range params {
		normalized[i] = strings.ToLower(param)
	}

	parts := append([]string{string(keyType)}, normalized...)
	return strings.Join(parts, ":")
}

// TermKey generates a cache key for a normalized term
func (c *CacheService) TermKey(term string) string {
	return c.GenerateCacheKey(CacheKeyTerm, term)
}

// ScanKey generates a cache key for a scenario hash
func (c *CacheService) ScanKey(scenarioHash string) string {
	return c.GenerateCacheKey(CacheKeyScan, scenarioHash)
}

// ScenarioHash produces the stable digest of a scenario used to key the scan
// cache: trimmed, lower-cased, whitespace-collapsed text, sha256-hex.
func ScenarioHash(scenario string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(scenario)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.redis.Set(ctx, key, data, c.ttl)
}

// Get retrieves a value from cache and deserializes it. A miss is (false, nil).
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if err.Error() == "redis: nil" {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}
