// Package market is the data fabric: it fans a quote/bar request out across
// providers in preference order, with per-provider circuit breakers, rate
// limiting, and a two-tier cache sitting in front of all of them.
package market

import (
	"context"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
)

// Provider is anything that can answer quote/bar requests for a
// symbol. broker.Client satisfies this directly; Polygon/AlphaVantage/
// Yahoo adapters wrap their own REST clients behind the same shape.
type Provider interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) (domain.Quote, error)
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error)
}

// ProviderHealth is a point-in-time snapshot of one provider's circuit
// breaker state and its last success and last error, surfaced by the
// status API.
type ProviderHealth struct {
	Name          string
	BreakerState  string
	LastSuccessAt time.Time
	LastErrorAt   time.Time
	LastError     string
}
