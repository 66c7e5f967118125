// Package config provides configuration management for the trading system.
// This file centralizes all port constants to avoid duplication and ensure consistency.
package config

// ============================================================================
// CENTRALIZED PORT CONFIGURATION
// ============================================================================
//
// Port Allocation Strategy:
//   8080-8099: API servers and web services
//   8200-8299: Infrastructure services (Vault, etc.)
//   9100-9199: Prometheus metrics endpoints
//
// ============================================================================

// API and Web Service Ports
const (
	// StatusAPIPort is the port for the read-only status API server.
	StatusAPIPort = 8081
)

// Infrastructure Service Ports
const (
	// VaultPort is the default port for HashiCorp Vault.
	VaultPort = 8200

	// PostgresPort is the default port for the PostgreSQL archival store.
	PostgresPort = 5432

	// RedisPort is the default port for the Redis L2 cache.
	RedisPort = 6379

	// NATSPort is the default port for the optional NATS event fan-out.
	NATSPort = 4222
)

// Monitoring Service Ports
const (
	// SchedulerMetricsPort is where the trader binary serves Prometheus metrics.
	SchedulerMetricsPort = 9100

	// PrometheusPort is the default port for Prometheus itself.
	PrometheusPort = 9090

	// GrafanaPort is the default port for Grafana.
	GrafanaPort = 3000
)
