package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scam-scanner/internal/models"
	"github.com/scam-scanner/internal/types"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*CacheService, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCacheService(NewRedisCacheFromClient(client), ttl), mr
}

func TestGenerateCacheKey(t *testing.T) {
	cache, _ := setupTestCache(t, time.Hour)

	assert.Equal(t, "term:rug pull", cache.GenerateCacheKey(CacheKeyTerm, "Rug Pull"))
	assert.Equal(t, "scan:abc123", cache.ScanKey("ABC123"))
	assert.Equal(t, "term:defi", cache.TermKey("defi"))
}

func TestScenarioHash(t *testing.T) {
	base := ScenarioHash("Someone promised me 10x returns")

	// Case and whitespace variants collapse to the same digest.
	assert.Equal(t, base, ScenarioHash("  someone   promised me\n10x RETURNS "))
	assert.NotEqual(t, base, ScenarioHash("someone promised me 100x returns"))
	assert.Len(t, base, 64)
}

func TestCacheService_SetGetRoundTrip(t *testing.T) {
	cache, _ := setupTestCache(t, time.Hour)
	ctx := context.Background()

	original := &models.CryptoTerm{
		Term:         "rug pull",
		Explanation:  "developers abandon a project and run off with investor funds",
		RelatedTerms: []string{"exit scam", "honeypot"},
	}
	require.NoError(t, cache.Set(ctx, cache.TermKey("rug pull"), original))

	var got models.CryptoTerm
	hit, err := cache.Get(ctx, cache.TermKey("rug pull"), &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, original.Explanation, got.Explanation)
	assert.Equal(t, original.RelatedTerms, got.RelatedTerms)
}

func TestCacheService_MissIsNotAnError(t *testing.T) {
	cache, _ := setupTestCache(t, time.Hour)

	var got models.CryptoTerm
	hit, err := cache.Get(context.Background(), cache.TermKey("unknown"), &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheService_TTLExpiry(t *testing.T) {
	cache, mr := setupTestCache(t, time.Minute)
	ctx := context.Background()

	check := &models.ScamCheck{ScenarioHash: "deadbeef", RiskLevel: types.RiskHigh, Summary: "scam"}
	require.NoError(t, cache.Set(ctx, cache.ScanKey("deadbeef"), check))

	// Before expiry: hit.
	var got models.ScamCheck
	hit, err := cache.Get(ctx, cache.ScanKey("deadbeef"), &got)
	require.NoError(t, err)
	assert.True(t, hit)

	// Past the TTL: miss.
	mr.FastForward(2 * time.Minute)
	hit, err = cache.Get(ctx, cache.ScanKey("deadbeef"), &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheService_Invalidate(t *testing.T) {
	cache, _ := setupTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, cache.TermKey("a"), &models.CryptoTerm{Term: "a"}))
	require.NoError(t, cache.Invalidate(ctx, cache.TermKey("a")))

	var got models.CryptoTerm
	hit, err := cache.Get(ctx, cache.TermKey("a"), &got)
	require.NoError(t, err)
	assert.False(t, hit)

	// Invalidating nothing is a no-op.
	require.NoError(t, cache.Invalidate(ctx))
}
