package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiters_UnregisteredProviderIsUnthrottled(t *testing.T) {
	r := NewRateLimiters()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Wait(ctx, "nonexistent"))
}

func TestRateLimiters_RegisteredProviderThrottles(t *testing.T) {
	r := NewRateLimiters()
	r.Register("broker", 1, 1)

	ctx := context.Background()
	require.NoError(t, r.Wait(ctx, "broker"))

	start := time.Now()
	require.NoError(t, r.Wait(ctx, "broker"))
	assert.Greater(t, time.Since(start), 100*time.Millisecond)
}
