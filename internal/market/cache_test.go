package market

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/ees/internal/domain"
)

func setupMiniRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, mr
}

func testQuote(symbol string) domain.Quote {
	return domain.Quote{
		Symbol:    symbol,
		Bid:       domain.Micros(100_000000),
		Ask:       domain.Micros(100_050000),
		Last:      domain.Micros(100_020000),
		Volume:    12345,
		Provider:  "broker",
		Timestamp: time.Now().Truncate(time.Second),
	}
}

func TestTieredCache_L1OnlyWhenRedisNil(t *testing.T) {
	c := NewTieredCache(nil, 10, time.Minute, time.Minute, time.Minute, zerolog.Nop())
	ctx := context.Background()

	q := testQuote("SOXL")
	c.Set(ctx, quoteKey("broker", "SOXL"), q, time.Minute)

	var got domain.Quote
	ok := c.Get(ctx, quoteKey("broker", "SOXL"), &got)
	require.True(t, ok)
	assert.Equal(t, q.Symbol, got.Symbol)
	assert.Equal(t, q.Last, got.Last)
}

func TestTieredCache_MissWhenEmpty(t *testing.T) {
	c := NewTieredCache(nil, 10, time.Minute, time.Minute, time.Minute, zerolog.Nop())
	var got domain.Quote
	ok := c.Get(context.Background(), quoteKey("broker", "TQQQ"), &got)
	assert.False(t, ok)
}

func TestTieredCache_RedisBackedRoundTrip(t *testing.T) {
	client, _ := setupMiniRedis(t)
	c := NewTieredCache(client, 10, time.Minute, time.Minute, time.Minute, zerolog.Nop())
	ctx := context.Background()

	q := testQuote("SOXS")
	c.Set(ctx, quoteKey("polygon", "SOXS"), q, time.Minute)

	var got domain.Quote
	ok := c.Get(ctx, quoteKey("polygon", "SOXS"), &got)
	require.True(t, ok)
	assert.Equal(t, q.Symbol, got.Symbol)
}

func TestTieredCache_L2HitAfterL1Eviction(t *testing.T) {
	client, _ := setupMiniRedis(t)
	c := NewTieredCache(client, 1, time.Minute, time.Minute, time.Minute, zerolog.Nop())
	ctx := context.Background()

	q1 := testQuote("SOXL")
	q2 := testQuote("SOXS")
	c.Set(ctx, quoteKey("broker", "SOXL"), q1, time.Minute)
	c.Set(ctx, quoteKey("broker", "SOXS"), q2, time.Minute)

	// L1 is capped at size 1, so the first key may have been evicted
	// already; the value must still be served from Redis.
	var got domain.Quote
	ok := c.Get(ctx, quoteKey("broker", "SOXL"), &got)
	require.True(t, ok)
	assert.Equal(t, q1.Symbol, got.Symbol)
}

func TestTieredCache_RedisDownFallsBackToMiss(t *testing.T) {
	client, mr := setupMiniRedis(t)
	c := NewTieredCache(client, 10, time.Minute, time.Minute, time.Minute, zerolog.Nop())
	ctx := context.Background()

	mr.Close()

	var got domain.Quote
	ok := c.Get(ctx, quoteKey("broker", "SOXL"), &got)
	assert.False(t, ok)
}

func TestTieredCache_ExpiredEntryIsMiss(t *testing.T) {
	client, mr := setupMiniRedis(t)
	c := NewTieredCache(client, 10, time.Minute, time.Minute, time.Minute, zerolog.Nop())
	ctx := context.Background()

	q := testQuote("SOXL")
	c.Set(ctx, quoteKey("broker", "SOXL"), q, 50*time.Millisecond)
	// miniredis expires only on FastForward; the L1 tier uses the real clock.
	mr.FastForward(100 * time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	var got domain.Quote
	ok := c.Get(ctx, quoteKey("broker", "SOXL"), &got)
	assert.False(t, ok)
}

func TestTieredCache_HitRateTracksGauge(t *testing.T) {
	c := NewTieredCache(nil, 10, time.Minute, time.Minute, time.Minute, zerolog.Nop())
	ctx := context.Background()

	var got domain.Quote
	c.Get(ctx, quoteKey("broker", "NOPE"), &got) // miss
	c.Set(ctx, quoteKey("broker", "SOXL"), testQuote("SOXL"), time.Minute)
	c.Get(ctx, quoteKey("broker", "SOXL"), &got) // hit

	assert.Equal(t, int64(1), c.hits)
	assert.Equal(t, int64(1), c.misses)
}
