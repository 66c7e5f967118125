// Package metrics exposes Prometheus counters, gauges, and histograms for
// the trading system: session/trade performance, provider and broker
// call health, circuit breaker state, and the event bus and API surface
// that sit around them.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded cardinality constants for metric labels.
// These ensure metrics don't have unbounded label values which can cause memory issues.
const (
	// Circuit breaker trip reasons (bounded set)
	ReasonMaxDrawdown    = "max_drawdown"
	ReasonHighVolatility = "high_volatility"
	ReasonRateLimit      = "rate_limit"
	ReasonManualHalt     = "manual_halt"
	ReasonOther          = "other"

	// Provider/broker API error categories (bounded set)
	ProviderErrorTimeout     = "timeout"
	ProviderErrorRateLimit   = "rate_limit"
	ProviderErrorAuth        = "authentication"
	ProviderErrorNetwork     = "network"
	ProviderErrorInvalidReq  = "invalid_request"
	ProviderErrorServerError = "server_error"
	ProviderErrorOther       = "other"
)

// NormalizeCircuitBreakerReason maps arbitrary reasons to bounded set
func NormalizeCircuitBreakerReason(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "drawdown"):
		return ReasonMaxDrawdown
	case strings.Contains(lower, "volatility"):
		return ReasonHighVolatility
	case strings.Contains(lower, "rate") || strings.Contains(lower, "limit"):
		return ReasonRateLimit
	case strings.Contains(lower, "manual") || strings.Contains(lower, "halt"):
		return ReasonManualHalt
	default:
		return ReasonOther
	}
}

// NormalizeProviderError maps arbitrary error messages to a bounded set
// of categories, so a flaky provider can't blow up label cardinality.
func NormalizeProviderError(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return ProviderErrorTimeout
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "429"):
		return ProviderErrorRateLimit
	case strings.Contains(errStr, "auth") || strings.Contains(errStr, "401") || strings.Contains(errStr, "403"):
		return ProviderErrorAuth
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection"):
		return ProviderErrorNetwork
	case strings.Contains(errStr, "400") || strings.Contains(errStr, "invalid"):
		return ProviderErrorInvalidReq
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") || strings.Contains(errStr, "503"):
		return ProviderErrorServerError
	default:
		return ProviderErrorOther
	}
}

// Trading performance metrics
var (
	TotalPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ees_total_pnl",
		Help: "Total realized profit and loss in USD",
	})

	WinRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ees_win_rate",
		Help: "Win rate as a ratio (0.0 to 1.0), updated at end of day",
	})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ees_open_positions",
		Help: "Number of currently open positions",
	})

	TotalTrades = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ees_total_trades",
		Help: "Total number of trades executed",
	})

	PositionValueBySymbol = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ees_position_value_by_symbol",
		Help: "Position value in USD by trading symbol",
	}, []string{"symbol"})

	WinningTradesValue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ees_winning_trades_value",
		Help: "Total value of winning trades in USD",
	})

	LosingTradesValue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ees_losing_trades_value",
		Help: "Total value (absolute) of losing trades in USD",
	})

	// Signals evaluated and accepted by the multi-strategy engine
	SignalsEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ees_signals_evaluated_total",
		Help: "Total signal evaluations by strategy and outcome",
	}, []string{"strategy", "outcome"})

	SignalConfidence = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ees_signal_confidence",
		Help: "Most recent signal confidence by strategy",
	}, []string{"strategy"})
)

// System health metrics
var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ees_active_sessions",
		Help: "Number of currently active trading sessions",
	})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ees_database_connections_active",
		Help: "Number of active database connections",
	})

	DatabaseConnectionsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ees_database_connections_idle",
		Help: "Number of idle database connections",
	})

	RedisCacheHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ees_redis_cache_hit_rate",
		Help: "Tiered market-data cache hit rate as a ratio (0.0 to 1.0)",
	})

	RedisOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ees_redis_operations_total",
		Help: "Total number of Redis operations by type",
	}, []string{"operation"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ees_api_request_duration_ms",
		Help:    "Status API request duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "path", "status_code"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ees_http_requests_total",
		Help: "Total number of status API HTTP requests",
	}, []string{"method", "path", "status_code"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ees_errors_total",
		Help: "Total number of errors by type and component",
	}, []string{"type", "component"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ees_database_query_duration_ms",
		Help:    "Archival store query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query_type"})

	NATSMessagesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ees_nats_messages_published_total",
		Help: "Total number of event-bus messages published to NATS",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ees_events_published_total",
		Help: "Total number of events published on the in-process bus by kind",
	}, []string{"kind"})
)

// Circuit breaker metrics
var (
	CircuitBreakerStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ees_circuit_breaker_status",
		Help: "Provider circuit breaker status (1 = open/tripped, 0 = closed)",
	}, []string{"provider"})

	CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ees_circuit_breaker_trips_total",
		Help: "Total number of provider circuit breaker trips",
	}, []string{"provider", "reason"})
)

// Provider and broker API metrics
var (
	ProviderAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ees_provider_api_latency_ms",
		Help:    "Market-data/broker provider API latency in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"provider", "operation"})

	ProviderAPIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ees_provider_api_errors_total",
		Help: "Total provider API errors by normalized category",
	}, []string{"provider", "error_type"})

	OrderExecutionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ees_order_execution_latency_ms",
		Help:    "Order placement-to-terminal-status latency in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})
)

// UpdateDatabaseConnections updates database connection metrics
func UpdateDatabaseConnections(active, idle int32) {
	DatabaseConnectionsActive.Set(float64(active))
	DatabaseConnectionsIdle.Set(float64(idle))
}

// RecordAPIRequest records a status API request with duration
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	Errors.WithLabelValues(errorType, component).Inc()
}

// RecordDatabaseQuery records an archival store query
func RecordDatabaseQuery(queryType string, durationMs float64) {
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(durationMs)
}

// RecordSignalEvaluation records a strategy's vote and, when accepted,
// its confidence.
func RecordSignalEvaluation(strategy, outcome string, confidence float64) {
	SignalsEvaluated.WithLabelValues(strategy, outcome).Inc()
	if outcome == "accept" {
		SignalConfidence.WithLabelValues(strategy).Set(confidence)
	}
}

// RecordTrade records a completed trade's realized P&L
func RecordTrade(profitLoss float64) {
	TotalTrades.Inc()
	TotalPnL.Add(profitLoss)
	if profitLoss > 0 {
		WinningTradesValue.Add(profitLoss)
	} else {
		LosingTradesValue.Add(-profitLoss)
	}
}

// UpdatePositionValue updates position value for a symbol
func UpdatePositionValue(symbol string, value float64) {
	PositionValueBySymbol.WithLabelValues(symbol).Set(value)
}

// RecordRedisOperation records a Redis operation
func RecordRedisOperation(operation string) {
	RedisOperations.WithLabelValues(operation).Inc()
}

// UpdateCircuitBreaker updates a provider's circuit breaker status
func UpdateCircuitBreaker(provider string, open bool) {
	status := 0.0
	if open {
		status = 1.0
	}
	CircuitBreakerStatus.WithLabelValues(provider).Set(status)
}

// RecordCircuitBreakerTrip records a circuit breaker trip with normalized reason
func RecordCircuitBreakerTrip(provider, reason string) {
	normalizedReason := NormalizeCircuitBreakerReason(reason)
	CircuitBreakerTrips.WithLabelValues(provider, normalizedReason).Inc()
}

// RecordProviderAPICall records a provider/broker API call with normalized error category
func RecordProviderAPICall(provider, operation string, durationMs float64, err error) {
	ProviderAPILatency.WithLabelValues(provider, operation).Observe(durationMs)
	if err != nil {
		errorCategory := NormalizeProviderError(err)
		ProviderAPIErrors.WithLabelValues(provider, errorCategory).Inc()
	}
}

// RecordOrderExecution records order execution latency
func RecordOrderExecution(durationMs float64) {
	OrderExecutionLatency.Observe(durationMs)
}

// UpdateActiveSessions updates the number of active trading sessions
func UpdateActiveSessions(count int) {
	ActiveSessions.Set(float64(count))
}

// RecordEventPublished records a bus event by kind, and separately its
// NATS fan-out when the bus is configured with one.
func RecordEventPublished(kind string, viaNATS bool) {
	EventsPublished.WithLabelValues(kind).Inc()
	if viaNATS {
		NATSMessagesPublished.Inc()
	}
}
