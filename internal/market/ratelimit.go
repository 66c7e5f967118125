package market

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiters owns one token-bucket limiter per provider, so a noisy
// symbol universe against a cheap provider never starves requests against
// a stricter one.
type RateLimiters struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiters constructs an empty set; call Register per provider.
func NewRateLimiters() *RateLimiters {
	return &RateLimiters{limiters: make(map[string]*rate.Limiter)}
}

// Register sets provider's sustained rate (requests/sec) and burst.
func (r *RateLimiters) Register(provider string, perSec float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[provider] = rate.NewLimiter(rate.Limit(perSec), burst)
}

// Wait blocks until provider's limiter admits one request, or ctx is
// cancelled. A provider with no registered limiter is unthrottled.
func (r *RateLimiters) Wait(ctx context.Context, provider string) error {
	r.mu.RLock()
	lim, ok := r.limiters[provider]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return lim.Wait(ctx)
}
