// Package retry provides the exponential-backoff retry helper shared by
// the market-data fabric and the broker client, so every outbound HTTP
// call in the system backs off the same way instead of each provider
// reinventing its own loop.
package retry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config configures retry behavior for an operation.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultConfig returns sane defaults for provider/broker HTTP calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
	}
}

// IsRetryable reports whether err looks like a transient failure worth
// retrying: network hiccups, rate limiting, EOF, or a 502/503/504 from the
// broker/data provider. Anything else (auth failures, bad requests, rejects,
// other 5xx codes such as 500) is considered permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, substr := range []string{
		"connection refused", "connection reset", "timeout",
		"temporary failure", "too many requests", "rate limit",
		"503", "502", "504", "eof",
	} {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// Operation is a unit of work that can be retried.
type Operation func() error

// Do executes operation with exponential backoff, honoring ctx
// cancellation both between attempts and during the backoff sleep. It
// stops immediately (without retrying) for errors IsRetryable rejects.
func Do(ctx context.Context, cfg Config, operation Operation) error {
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				log.Info().Int("attempt", attempt+1).Msg("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", cfg.MaxRetries+1).
			Dur("backoff", backoff).
			Msg("operation failed, retrying with backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled during backoff: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}
