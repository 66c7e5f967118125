package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/ajitpratap0/ees/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrNoProviderAvailable is returned when every registered provider's
// circuit breaker is open.
var ErrNoProviderAvailable = errors.New("market: no provider available")

// Fabric is the single entry point strategies and the sizer use for
// quotes, bars, and indicators. It tries providers in registration order,
// skipping any whose breaker is open, and caches aggressively to keep
// provider call volume within each provider's daily/per-minute budget.
type Fabric struct {
	providers []Provider
	breakers  *BreakerManager
	limiters  *RateLimiters
	cache     *TieredCache
	batchSize int
	log       zerolog.Logger

	mu     sync.RWMutex
	health map[string]*ProviderHealth
}

// FabricConfig configures the fabric's behavior independent of which
// providers are wired in.
type FabricConfig struct {
	BatchSize int
}

// NewFabric builds a fabric over providers, tried in the given order.
// providers[0] is the primary (typically the broker itself).
func NewFabric(providers []Provider, cfg FabricConfig, redisClient *redis.Client, l1Size int, quoteTTL, barTTL, indicatorTTL time.Duration, log zerolog.Logger) *Fabric {
	breakers := NewBreakerManager()
	limiters := NewRateLimiters()
	health := make(map[string]*ProviderHealth, len(providers))
	for _, p := range providers {
		breakers.Register(p.Name(), DefaultBreakerSettings())
		health[p.Name()] = &ProviderHealth{Name: p.Name()}
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	return &Fabric{
		providers: providers,
		breakers:  breakers,
		limiters:  limiters,
		cache:     NewTieredCache(redisClient, l1Size, quoteTTL, barTTL, indicatorTTL, log),
		batchSize: batchSize,
		log:       log,
		health:    health,
	}
}

// RegisterRateLimit sets the per-provider token-bucket limits.
func (f *Fabric) RegisterRateLimit(provider string, perSec float64, burst int) {
	f.limiters.Register(provider, perSec, burst)
}

// GetQuote returns a fresh-enough quote for symbol, serving from cache
// when possible and falling over to the next provider on failure.
func (f *Fabric) GetQuote(ctx context.Context, symbol string, forceRefresh bool) (domain.Quote, error) {
	key := quoteKey("fabric", symbol)
	var cached domain.Quote
	if !forceRefresh && f.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	q, err := f.tryProviders(ctx, func(p Provider) (interface{}, error) {
		return p.GetQuote(ctx, symbol)
	})
	if err != nil {
		return domain.Quote{}, err
	}
	quote := q.(domain.Quote)
	f.cache.Set(ctx, key, quote, f.cache.QuoteTTL())
	return quote, nil
}

// BatchQuotes fetches quotes for symbols, chunked into groups of at most
// the fabric's configured batch size and dispatched concurrently. Partial
// results are tolerated: a symbol whose lookup failed is simply absent
// from the returned map, and its error is logged, not propagated.
func (f *Fabric) BatchQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	result := make(map[string]domain.Quote, len(symbols))
	var mu sync.Mutex

	for start := 0; start < len(symbols); start += f.batchSize {
		end := start + f.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		chunk := symbols[start:end]

		g, gctx := errgroup.WithContext(ctx)
		for _, sym := range chunk {
			sym := sym
			g.Go(func() error {
				q, err := f.GetQuote(gctx, sym, false)
				if err != nil {
					f.log.Warn().Err(err).Str("symbol", sym).Msg("batch quote lookup failed, dropping symbol")
					return nil
				}
				mu.Lock()
				result[sym] = q
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return result, err
		}
	}
	return result, nil
}

// GetBars returns up to count bars for symbol at timeframe, most recent
// last, falling back across providers and caching the result.
func (f *Fabric) GetBars(ctx context.Context, symbol, timeframe string, count int) ([]domain.Bar, error) {
	key := barsKey("fabric", symbol, timeframe)
	var cached []domain.Bar
	if f.cache.Get(ctx, key, &cached) && len(cached) >= count {
		return cached, nil
	}

	b, err := f.tryProviders(ctx, func(p Provider) (interface{}, error) {
		return p.GetBars(ctx, symbol, timeframe, count)
	})
	if err != nil {
		return nil, err
	}
	bars := b.([]domain.Bar)

	ttl := f.cache.BarTTL()
	if timeframeMinutes(timeframe) >= 60 {
		ttl = 24 * time.Hour
	}
	f.cache.Set(ctx, key, bars, ttl)
	return bars, nil
}

// tryProviders runs op against providers in order, skipping any with an
// open breaker, returning the first success and recording per-provider
// health as it goes.
func (f *Fabric) tryProviders(ctx context.Context, op func(Provider) (interface{}, error)) (interface{}, error) {
	var lastErr error
	for _, p := range f.providers {
		name := p.Name()
		if f.breakers.State(name) == StateOpen {
			continue
		}
		if err := f.limiters.Wait(ctx, name); err != nil {
			lastErr = err
			continue
		}

		result, err := f.breakers.Execute(name, func() (interface{}, error) { return op(p) })
		if err != nil {
			lastErr = err
			f.recordFailure(name, err)
			continue
		}
		f.recordSuccess(name)
		return result, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error from %s: %v", ErrNoProviderAvailable, f.providers[len(f.providers)-1].Name(), lastErr)
	}
	return nil, ErrNoProviderAvailable
}

func (f *Fabric) recordSuccess(provider string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.health[provider]; ok {
		h.LastSuccessAt = time.Now()
		h.BreakerState = f.breakers.State(provider)
	}
	metrics.UpdateCircuitBreaker(provider, f.breakers.State(provider) == StateOpen)
}

func (f *Fabric) recordFailure(provider string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.health[provider]; ok {
		h.LastErrorAt = time.Now()
		h.LastError = err.Error()
		h.BreakerState = f.breakers.State(provider)
	}
	open := f.breakers.State(provider) == StateOpen
	metrics.UpdateCircuitBreaker(provider, open)
	metrics.RecordProviderAPICall(provider, "fetch", 0, err)
	if open {
		metrics.RecordCircuitBreakerTrip(provider, err.Error())
	}
}

// ProviderStatus reports the current health of every registered
// provider, for the status API and alerting.
func (f *Fabric) ProviderStatus() []ProviderHealth {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]ProviderHealth, 0, len(f.health))
	for _, p := range f.providers {
		h := *f.health[p.Name()]
		h.BreakerState = f.breakers.State(p.Name())
		out = append(out, h)
	}
	return out
}

func timeframeMinutes(tf string) int {
	switch tf {
	case "1m":
		return 1
	case "5m":
		return 5
	case "15m":
		return 15
	case "1h":
		return 60
	case "1d":
		return 1440
	default:
		return 0
	}
}
