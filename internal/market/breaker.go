package market

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Circuit breaker states for Prometheus metrics.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

// BreakerSettings holds circuit breaker configuration for one data
// provider. Generalized from the teacher's three fixed named breakers
// (exchange/llm/database) to N dynamically registered providers.
type BreakerSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// DefaultBreakerSettings mirrors the teacher's exchange breaker defaults.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:     5,
		FailureRatio:    0.6,
		OpenTimeout:     30 * time.Second,
		HalfOpenMaxReqs: 3,
		CountInterval:   10 * time.Second,
	}
}

var (
	globalBreakerMetrics *breakerMetrics
	breakerMetricsOnce   sync.Once
)

type breakerMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func initBreakerMetrics() *breakerMetrics {
	breakerMetricsOnce.Do(func() {
		globalBreakerMetrics = &breakerMetrics{
			state: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "market_provider_breaker_state",
					Help: "Market data provider circuit breaker state (0=closed, 1=open, 2=half_open)",
				},
				[]string{"provider"},
			),
			requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "market_provider_requests_total",
					Help: "Total requests to a market data provider through its circuit breaker",
				},
				[]string{"provider", "result"},
			),
			failures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "market_provider_failures_total",
					Help: "Total failures recorded for a market data provider",
				},
				[]string{"provider"},
			),
		}
	})
	return globalBreakerMetrics
}

// BreakerManager owns one gobreaker.CircuitBreaker per registered
// provider name, plus the Prometheus instrumentation shared across them.
type BreakerManager struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
	metrics  *breakerMetrics
}

// NewBreakerManager constructs an empty manager; call Register per
// provider before use.
func NewBreakerManager() *BreakerManager {
	return &BreakerManager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		metrics:  initBreakerMetrics(),
	}
}

// Register creates (or replaces) the circuit breaker for provider.
func (m *BreakerManager) Register(provider string, settings BreakerSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: settings.HalfOpenMaxReqs,
		Interval:    settings.CountInterval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= settings.MinRequests && ratio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.updateMetrics(name, to)
		},
	})
	m.breakers[provider] = cb
	m.updateMetrics(provider, cb.State())
}

// Execute runs operation through provider's breaker, recording metrics.
func (m *BreakerManager) Execute(provider string, operation func() (interface{}, error)) (interface{}, error) {
	m.mu.RLock()
	cb, ok := m.breakers[provider]
	m.mu.RUnlock()
	if !ok {
		return nil, gobreaker.ErrOpenState
	}

	result, err := cb.Execute(operation)
	m.metrics.requests.WithLabelValues(provider, resultLabel(err)).Inc()
	if err != nil {
		m.metrics.failures.WithLabelValues(provider).Inc()
	}
	return result, err
}

// State returns the current state label for provider, or "unknown" if it
// has not been registered.
func (m *BreakerManager) State(provider string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cb, ok := m.breakers[provider]
	if !ok {
		return "unknown"
	}
	return stateLabel(cb.State())
}

func (m *BreakerManager) updateMetrics(provider string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateClosed:
		v = 0
	case gobreaker.StateOpen:
		v = 1
	case gobreaker.StateHalfOpen:
		v = 2
	}
	m.metrics.state.WithLabelValues(provider).Set(v)
}

func resultLabel(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

func stateLabel(s gobreaker.State) string {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
