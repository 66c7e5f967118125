package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateDatabaseConnections(t *testing.T) {
	assert.NotPanics(t, func() {
		UpdateDatabaseConnections(10, 3)
		UpdateDatabaseConnections(0, 0)
		UpdateDatabaseConnections(100, 50)
	})
}

func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		statusCode string
		durationMs float64
	}{
		{name: "GET session success", method: "GET", path: "/session", statusCode: "200", durationMs: 45.5},
		{name: "GET positions not found", method: "GET", path: "/positions", statusCode: "404", durationMs: 5.2},
		{name: "GET providers error", method: "GET", path: "/providers", statusCode: "503", durationMs: 250.8},
		{name: "zero duration health check", method: "GET", path: "/health", statusCode: "200", durationMs: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordAPIRequest(tt.method, tt.path, tt.statusCode, tt.durationMs)
			})
		})
	}
}

func TestRecordError(t *testing.T) {
	tests := []struct {
		name      string
		errorType string
		component string
	}{
		{name: "database error", errorType: "database_timeout", component: "archive"},
		{name: "broker error", errorType: "rate_limit", component: "broker"},
		{name: "provider error", errorType: "timeout", component: "fabric"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordError(tt.errorType, tt.component)
			})
		})
	}
}

func TestRecordDatabaseQuery(t *testing.T) {
	tests := []struct {
		name       string
		queryType  string
		durationMs float64
	}{
		{name: "SELECT query fast", queryType: "SELECT", durationMs: 2.5},
		{name: "INSERT query", queryType: "INSERT", durationMs: 15.3},
		{name: "UPDATE query slow", queryType: "UPDATE", durationMs: 250.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordDatabaseQuery(tt.queryType, tt.durationMs)
			})
		})
	}
}

func TestRecordSignalEvaluation(t *testing.T) {
	tests := []struct {
		name       string
		strategy   string
		outcome    string
		confidence float64
	}{
		{name: "trend-sma enters high confidence", strategy: "trend-sma", outcome: "enter", confidence: 0.85},
		{name: "momentum-rsi exits medium confidence", strategy: "momentum-rsi", outcome: "exit", confidence: 0.65},
		{name: "macd skips", strategy: "macd", outcome: "skip", confidence: 0.0},
		{name: "composite accepted", strategy: "composite", outcome: "accept", confidence: 0.95},
		{name: "composite rejected", strategy: "composite", outcome: "reject", confidence: 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordSignalEvaluation(tt.strategy, tt.outcome, tt.confidence)
			})
		})
	}
}

func TestRecordTrade(t *testing.T) {
	tests := []struct {
		name       string
		profitLoss float64
	}{
		{name: "winning trade", profitLoss: 150.50},
		{name: "losing trade", profitLoss: -75.25},
		{name: "breakeven trade", profitLoss: 0.0},
		{name: "large winning trade", profitLoss: 1000.00},
		{name: "large losing trade", profitLoss: -500.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordTrade(tt.profitLoss)
			})
		})
	}
}

func TestUpdatePositionValue(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		value  float64
	}{
		{name: "SOXL position", symbol: "SOXL", value: 50000.00},
		{name: "SOXS position", symbol: "SOXS", value: 10000.00},
		{name: "zero value position", symbol: "TQQQ", value: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdatePositionValue(tt.symbol, tt.value)
			})
		})
	}
}

func TestRecordRedisOperation(t *testing.T) {
	for _, op := range []string{"get", "set", "del", "exists", "expire"} {
		t.Run(op, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordRedisOperation(op)
			})
		})
	}
}

func TestUpdateCircuitBreaker(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		open     bool
	}{
		{name: "broker breaker open", provider: "broker", open: true},
		{name: "polygon breaker closed", provider: "polygon", open: false},
		{name: "yahoo breaker open", provider: "yahoo", open: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateCircuitBreaker(tt.provider, tt.open)
			})
		})
	}
}

func TestRecordCircuitBreakerTrip(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		reason   string
	}{
		{name: "broker drawdown trip", provider: "broker", reason: "exceeded max drawdown"},
		{name: "polygon rate limit trip", provider: "polygon", reason: "too many requests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordCircuitBreakerTrip(tt.provider, tt.reason)
			})
		})
	}
}

func TestRecordProviderAPICall(t *testing.T) {
	tests := []struct {
		name       string
		provider   string
		operation  string
		durationMs float64
		err        error
	}{
		{name: "successful broker quote", provider: "broker", operation: "GetQuote", durationMs: 50.5, err: nil},
		{name: "failed polygon bars", provider: "polygon", operation: "GetBars", durationMs: 250.3, err: errors.New("timeout")},
		{name: "slow alphavantage quote", provider: "alphavantage", operation: "GetQuote", durationMs: 1500.7, err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordProviderAPICall(tt.provider, tt.operation, tt.durationMs, tt.err)
			})
		})
	}
}

func TestRecordOrderExecution(t *testing.T) {
	for _, d := range []float64{100.5, 500.3, 2500.7} {
		t.Run("duration", func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordOrderExecution(d)
			})
		})
	}
}

func TestUpdateActiveSessions(t *testing.T) {
	assert.NotPanics(t, func() {
		UpdateActiveSessions(0)
		UpdateActiveSessions(1)
	})
}

func TestRecordEventPublished(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordEventPublished("order_placed", false)
		RecordEventPublished("position_closed", true)
	})
}
