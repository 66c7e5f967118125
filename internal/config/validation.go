package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nplease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs configuration validation, returning every violation
// found rather than stopping at the first one.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateApp()...)
	errs = append(errs, c.validateSession()...)
	errs = append(errs, c.validateMarket()...)
	errs = append(errs, c.validateBroker()...)
	errs = append(errs, c.validateSignal()...)
	errs = append(errs, c.validateSizing()...)
	errs = append(errs, c.validateTrailing()...)
	errs = append(errs, c.validateExecution()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errs ValidationErrors
	switch c.App.Environment {
	case "development", "sandbox", "production":
	default:
		errs = append(errs, ValidationError{"app.environment", "must be one of: development, sandbox, production"})
	}
	return errs
}

func (c *Config) validateSession() ValidationErrors {
	var errs ValidationErrors
	if c.Session.ExchangeTimezone == "" {
		errs = append(errs, ValidationError{"session.exchange_timezone", "must not be empty"})
	}
	if c.Session.ScanIntervalSec <= 0 {
		errs = append(errs, ValidationError{"session.scan_interval_sec", "must be positive"})
	}
	if c.Session.PositionIntervalSec <= 0 {
		errs = append(errs, ValidationError{"session.position_interval_sec", "must be positive"})
	}
	if c.Session.StatePath == "" {
		errs = append(errs, ValidationError{"session.state_path", "must not be empty"})
	}
	if c.Session.UniversePath == "" {
		errs = append(errs, ValidationError{"session.universe_path", "must not be empty"})
	}
	return errs
}

func (c *Config) validateMarket() ValidationErrors {
	var errs ValidationErrors
	if len(c.Market.Providers) == 0 {
		errs = append(errs, ValidationError{"market.providers", "must list at least one provider"})
	}
	if c.Market.L1CacheSize <= 0 {
		errs = append(errs, ValidationError{"market.l1_cache_size", "must be positive"})
	}
	if c.Market.BreakerFailureRatio <= 0 || c.Market.BreakerFailureRatio > 1 {
		errs = append(errs, ValidationError{"market.breaker_failure_ratio", "must be in (0, 1]"})
	}
	if c.Market.RateLimitPerSec <= 0 {
		errs = append(errs, ValidationError{"market.rate_limit_per_sec", "must be positive"})
	}
	return errs
}

func (c *Config) validateBroker() ValidationErrors {
	var errs ValidationErrors
	switch c.Broker.Environment {
	case "sandbox", "production":
	default:
		errs = append(errs, ValidationError{"broker.environment", "must be one of: sandbox, production"})
	}
	if c.Broker.IdleExpiryMin <= 0 {
		errs = append(errs, ValidationError{"broker.idle_expiry_min", "must be positive"})
	}
	if c.Broker.ConsumerKeySecret == "" || c.Broker.ConsumerSecretSecret == "" {
		errs = append(errs, ValidationError{"broker.consumer_key_secret", "consumer key/secret secret names must be set"})
	}
	if c.Broker.ClockSkewToleranceSec <= 0 {
		errs = append(errs, ValidationError{"broker.clock_skew_tolerance_sec", "must be positive"})
	}
	return errs
}

func (c *Config) validateSignal() ValidationErrors {
	var errs ValidationErrors
	if c.Signal.MinAgreeingStrategies < 1 {
		errs = append(errs, ValidationError{"signal.min_agreeing_strategies", "must be at least 1"})
	}
	if len(c.Signal.EnabledStrategies) == 0 {
		errs = append(errs, ValidationError{"signal.enabled_strategies", "must list at least one strategy"})
	}
	if c.Signal.MinAgreeingStrategies > len(c.Signal.EnabledStrategies) {
		errs = append(errs, ValidationError{"signal.min_agreeing_strategies", "cannot exceed the number of enabled strategies"})
	}
	return errs
}

func (c *Config) validateSizing() ValidationErrors {
	var errs ValidationErrors
	if c.Sizing.BaseRiskPct <= 0 || c.Sizing.BaseRiskPct > 1 {
		errs = append(errs, ValidationError{"sizing.base_risk_pct", "must be in (0, 1]"})
	}
	if c.Sizing.MaxUtilizationPct <= 0 || c.Sizing.MaxUtilizationPct > 1 {
		errs = append(errs, ValidationError{"sizing.max_utilization_pct", "must be in (0, 1]"})
	}
	if c.Sizing.MaxPositions <= 0 {
		errs = append(errs, ValidationError{"sizing.max_positions", "must be positive"})
	}
	return errs
}

func (c *Config) validateTrailing() ValidationErrors {
	var errs ValidationErrors
	if c.Trailing.BreakevenTriggerPct <= 0 {
		errs = append(errs, ValidationError{"trailing.breakeven_trigger_pct", "must be positive"})
	}
	if c.Trailing.TrailingTriggerPct <= c.Trailing.BreakevenTriggerPct {
		errs = append(errs, ValidationError{"trailing.trailing_trigger_pct", "must exceed breakeven_trigger_pct"})
	}
	if c.Trailing.ExplosiveTriggerPct <= c.Trailing.TrailingTriggerPct {
		errs = append(errs, ValidationError{"trailing.explosive_trigger_pct", "must exceed trailing_trigger_pct"})
	}
	if c.Trailing.MoonTriggerPct <= c.Trailing.ExplosiveTriggerPct {
		errs = append(errs, ValidationError{"trailing.moon_trigger_pct", "must exceed explosive_trigger_pct"})
	}
	if c.Trailing.HardStopPct <= 0 {
		errs = append(errs, ValidationError{"trailing.hard_stop_pct", "must be positive"})
	}
	return errs
}

func (c *Config) validateExecution() ValidationErrors {
	var errs ValidationErrors
	if c.Execution.MaxRetries < 0 {
		errs = append(errs, ValidationError{"execution.max_retries", "must not be negative"})
	}
	if c.Execution.InitialBackoffMs <= 0 {
		errs = append(errs, ValidationError{"execution.initial_backoff_ms", "must be positive"})
	}
	if c.Execution.MaxBackoffMs < c.Execution.InitialBackoffMs {
		errs = append(errs, ValidationError{"execution.max_backoff_ms", "must be >= initial_backoff_ms"})
	}
	if c.Execution.ReconcileIntervalMin <= 0 {
		errs = append(errs, ValidationError{"execution.reconcile_interval_min", "must be positive"})
	}
	return errs
}
