package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ValidatorOptions contains options for configuration validation.
type ValidatorOptions struct {
	VerifyConnectivity bool // check archival database/Redis connectivity
	Timeout            time.Duration
}

// DefaultValidatorOptions returns default validator options for startup.
func DefaultValidatorOptions() ValidatorOptions {
	return ValidatorOptions{
		VerifyConnectivity: true,
		Timeout:            5 * time.Second,
	}
}

// Validator handles configuration validation at startup.
type Validator struct {
	config  *Config
	options ValidatorOptions
}

// NewValidator creates a new configuration validator.
func NewValidator(config *Config, options ValidatorOptions) *Validator {
	return &Validator{config: config, options: options}
}

// ValidateStartup performs comprehensive startup validation. It should be
// called before starting the scheduler.
func (v *Validator) ValidateStartup(ctx context.Context) error {
	log.Info().Msg("validating configuration")

	if err := v.validateProductionRequirements(); err != nil {
		return fmt.Errorf("production requirements validation failed: %w", err)
	}

	if v.options.VerifyConnectivity {
		if err := v.checkDatabaseConnectivity(ctx); err != nil {
			return fmt.Errorf("database connectivity check failed: %w", err)
		}
		if err := v.checkRedisConnectivity(ctx); err != nil {
			return fmt.Errorf("redis connectivity check failed: %w", err)
		}
	}

	log.Info().Msg("configuration validation completed successfully")
	return nil
}

// validateProductionRequirements enforces hardening rules once
// app.environment is "production" — the broker is trading real money at
// that point, so a misconfigured secret store or a placeholder credential
// is not something to discover after the first order fills.
func (v *Validator) validateProductionRequirements() error {
	if v.config.App.Environment != "production" {
		log.Info().Str("environment", v.config.App.Environment).Msg("non-production environment, skipping production requirements")
		return nil
	}

	log.Info().Msg("production environment detected, enforcing production security requirements")

	var errs []string

	if v.config.Vault.Adapter != "vault" {
		errs = append(errs, "vault.adapter must be \"vault\" in production (env-var secrets are for development/sandbox only)")
	}
	if v.config.Vault.Adapter == "vault" && v.config.Vault.Address == "" {
		errs = append(errs, "vault.address must be set when vault.adapter is \"vault\"")
	}
	if v.config.Broker.Environment != "production" {
		log.Warn().Msg("app.environment is production but broker.environment is not — orders will route to sandbox")
	}
	if strings.Contains(v.config.Database.GetDSN(), "sslmode=disable") {
		errs = append(errs, "database.ssl_mode cannot be \"disable\" in production")
	}
	if isPlaceholderValue(v.config.Database.Password) {
		errs = append(errs, "database.password cannot be a placeholder value in production")
	}

	if len(errs) > 0 {
		var sb strings.Builder
		sb.WriteString("production security requirements not met:\n\n")
		for i, e := range errs {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, e))
		}
		return fmt.Errorf("%s", sb.String())
	}

	log.Info().Msg("production security requirements validated")
	return nil
}

// checkDatabaseConnectivity tests the archival store connection with a
// timeout so a bad DSN fails fast at startup rather than during the first
// reconciliation pass.
func (v *Validator) checkDatabaseConnectivity(ctx context.Context) error {
	connCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	connString := v.config.Database.GetDSN()
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		connString = dbURL
	}

	pool, err := pgxpool.New(connCtx, connString)
	if err != nil {
		return fmt.Errorf("failed to create database connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(connCtx); err != nil {
		return fmt.Errorf("failed to ping archival database: %w", err)
	}

	log.Info().
		Str("host", v.config.Database.Host).
		Int("port", v.config.Database.Port).
		Msg("database connectivity check passed")
	return nil
}

// checkRedisConnectivity tests the L2 cache connection with a timeout.
func (v *Validator) checkRedisConnectivity(ctx context.Context) error {
	connCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:     v.config.Redis.GetRedisAddr(),
		Password: v.config.Redis.Password,
		DB:       v.config.Redis.DB,
	})
	defer client.Close()

	if err := client.Ping(connCtx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().Str("addr", v.config.Redis.GetRedisAddr()).Msg("redis connectivity check passed")
	return nil
}

// isPlaceholderValue checks if a value is likely a placeholder rather
// than a real credential.
func isPlaceholderValue(value string) bool {
	lower := strings.ToLower(value)
	placeholders := []string{
		"your_api_key", "your_secret", "changeme",
		"placeholder", "example", "test", "sample", "demo",
	}
	for _, p := range placeholders {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
