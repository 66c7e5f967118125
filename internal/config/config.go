package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Session    SessionConfig    `mapstructure:"session"`
	Market     MarketConfig     `mapstructure:"market"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Signal     SignalConfig     `mapstructure:"signal"`
	Sentiment  SentimentConfig  `mapstructure:"sentiment"`
	Sizing     SizingConfig     `mapstructure:"sizing"`
	Trailing   TrailingConfig   `mapstructure:"trailing"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Vault      VaultEnvConfig   `mapstructure:"vault"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	API        APIConfig        `mapstructure:"api"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, sandbox, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// DatabaseConfig contains PostgreSQL archival-store settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings for the L2 quote/bar/sentiment cache.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS settings for the optional multi-process event
// bus fan-out.
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// SessionConfig drives the session scheduler (spec §4.1).
type SessionConfig struct {
	ExchangeTimezone   string `mapstructure:"exchange_timezone"`
	ScanIntervalSec    int    `mapstructure:"scan_interval_sec"`
	PositionIntervalSec int   `mapstructure:"position_interval_sec"`
	PrepWindowMin      int    `mapstructure:"prep_window_min"`
	CooldownWindowMin  int    `mapstructure:"cooldown_window_min"`
	HolidayFile        string `mapstructure:"holiday_file"`
	UniversePath       string `mapstructure:"universe_path"`
	StatePath          string `mapstructure:"state_path"`
}

// MarketConfig drives the market-data fabric (spec §4.2).
type MarketConfig struct {
	Providers         []string `mapstructure:"providers"` // ordered preference: broker, polygon, alphavantage, yahoo
	QuoteCacheTTLSec  int      `mapstructure:"quote_cache_ttl_sec"`
	BarCacheTTLSec    int      `mapstructure:"bar_cache_ttl_sec"`
	IndicatorCacheTTLSec int   `mapstructure:"indicator_cache_ttl_sec"`
	L1CacheSize       int      `mapstructure:"l1_cache_size"`
	BatchSize         int      `mapstructure:"batch_size"`
	RateLimitPerSec   float64  `mapstructure:"rate_limit_per_sec"`
	BreakerMinRequests  uint32 `mapstructure:"breaker_min_requests"`
	BreakerFailureRatio float64 `mapstructure:"breaker_failure_ratio"`
	BreakerOpenTimeoutSec int  `mapstructure:"breaker_open_timeout_sec"`
}

// BrokerConfig drives the OAuth 1.0a broker session manager (spec §4.3).
type BrokerConfig struct {
	Environment        string `mapstructure:"environment"` // sandbox | production
	ConsumerKeySecret   string `mapstructure:"consumer_key_secret"`
	ConsumerSecretSecret string `mapstructure:"consumer_secret_secret"`
	TokenSecret         string `mapstructure:"token_secret"`
	TokenSecretSecret   string `mapstructure:"token_secret_secret"`
	BaseURLSandbox      string `mapstructure:"base_url_sandbox"`
	BaseURLProduction   string `mapstructure:"base_url_production"`
	IdleExpiryMin       int    `mapstructure:"idle_expiry_min"`
	DailyExpiryHour     int    `mapstructure:"daily_expiry_hour"` // exchange-local hour tokens expire
	KeepAliveIntervalMin int   `mapstructure:"keepalive_interval_min"`
	SecretWatchIntervalSec int `mapstructure:"secret_watch_interval_sec"`
	ClockSkewToleranceSec int `mapstructure:"clock_skew_tolerance_sec"` // max |local - broker| clock skew before signing is refused
}

// SignalConfig drives the multi-strategy engine (spec §4.4).
type SignalConfig struct {
	MinAgreeingStrategies int      `mapstructure:"min_agreeing_strategies"`
	StrategyTimeoutMs     int      `mapstructure:"strategy_timeout_ms"`
	EnabledStrategies     []string `mapstructure:"enabled_strategies"`
	VetoStrategies        []string `mapstructure:"veto_strategies"`
}

// SentimentConfig drives the bull/bear sentiment filter (spec §4.5).
type SentimentConfig struct {
	Sources           []string `mapstructure:"sources"`
	CacheTTLSec       int      `mapstructure:"cache_ttl_sec"`
	BoostThreshold    float64  `mapstructure:"boost_threshold"`
	BlockThreshold    float64  `mapstructure:"block_threshold"`
	MinSourceHits     int      `mapstructure:"min_source_hits"`
	MappingPath       string   `mapstructure:"mapping_path"`
}

// SizingConfig drives the position sizer (spec §4.6).
type SizingConfig struct {
	BaseRiskPct          float64 `mapstructure:"base_risk_pct"`
	ConfidenceMultMax    float64 `mapstructure:"confidence_mult_max"`
	AgreementBonusPct    float64 `mapstructure:"agreement_bonus_pct"`
	MaxUtilizationPct    float64 `mapstructure:"max_utilization_pct"`
	MaxPositions         int     `mapstructure:"max_positions"`
	MinPositionValue     float64 `mapstructure:"min_position_value"`
}

// TrailingConfig drives the stealth trailing engine (spec §4.7).
type TrailingConfig struct {
	BreakevenTriggerPct float64 `mapstructure:"breakeven_trigger_pct"`
	TrailingTriggerPct  float64 `mapstructure:"trailing_trigger_pct"`
	TrailingDistancePct float64 `mapstructure:"trailing_distance_pct"`
	ExplosiveTriggerPct float64 `mapstructure:"explosive_trigger_pct"`
	ExplosiveDistancePct float64 `mapstructure:"explosive_distance_pct"`
	MoonTriggerPct      float64 `mapstructure:"moon_trigger_pct"`
	MoonDistancePct     float64 `mapstructure:"moon_distance_pct"`
	HardStopPct         float64 `mapstructure:"hard_stop_pct"`
}

// ExecutionConfig drives the order executor + reconciler (spec §4.8).
type ExecutionConfig struct {
	ReconcileIntervalMin int `mapstructure:"reconcile_interval_min"`
	OrderPollIntervalSec int `mapstructure:"order_poll_interval_sec"`
	MaxRetries           int `mapstructure:"max_retries"`
	InitialBackoffMs     int `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs         int `mapstructure:"max_backoff_ms"`
}

// VaultEnvConfig configures the SecretStore (spec §6.3).
type VaultEnvConfig struct {
	Adapter string `mapstructure:"adapter"` // "vault" | "env"
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
}

// AlertsConfig configures the event-sink adapter(s) (spec §6.4).
type AlertsConfig struct {
	Console     bool                `mapstructure:"console"`
	MinSeverity string              `mapstructure:"min_severity"`
	Telegram    TelegramAlertConfig `mapstructure:"telegram"`
}

// TelegramAlertConfig is the thin external adapter's own settings.
type TelegramAlertConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	BotTokenSecret string `mapstructure:"bot_token_secret"`
	ChatIDs      []int64 `mapstructure:"chat_ids"`
}

// APIConfig contains the read-only status API settings.
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MonitoringConfig contains Prometheus settings.
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("EES")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ees")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "ees")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject", "ees.events")

	v.SetDefault("session.exchange_timezone", "America/New_York")
	v.SetDefault("session.scan_interval_sec", 60)
	v.SetDefault("session.position_interval_sec", 15)
	v.SetDefault("session.prep_window_min", 30)
	v.SetDefault("session.cooldown_window_min", 15)
	v.SetDefault("session.holiday_file", "configs/holidays.json")
	v.SetDefault("session.universe_path", "configs/universe.json")
	v.SetDefault("session.state_path", "data/session_state.json")

	v.SetDefault("market.providers", []string{"broker", "polygon", "alphavantage", "yahoo"})
	v.SetDefault("market.quote_cache_ttl_sec", 5)
	v.SetDefault("market.bar_cache_ttl_sec", 60)
	v.SetDefault("market.indicator_cache_ttl_sec", 60)
	v.SetDefault("market.l1_cache_size", 1024)
	v.SetDefault("market.batch_size", 50)
	v.SetDefault("market.rate_limit_per_sec", 5.0)
	v.SetDefault("market.breaker_min_requests", 5)
	v.SetDefault("market.breaker_failure_ratio", 0.6)
	v.SetDefault("market.breaker_open_timeout_sec", 30)

	v.SetDefault("broker.environment", "sandbox")
	v.SetDefault("broker.consumer_key_secret", "broker/consumer_key")
	v.SetDefault("broker.consumer_secret_secret", "broker/consumer_secret")
	v.SetDefault("broker.token_secret_secret", "broker/access_token")
	v.SetDefault("broker.base_url_sandbox", "https://apisb.broker.example.com")
	v.SetDefault("broker.base_url_production", "https://api.broker.example.com")
	v.SetDefault("broker.idle_expiry_min", 120)
	v.SetDefault("broker.daily_expiry_hour", 0)
	v.SetDefault("broker.keepalive_interval_min", 20)
	v.SetDefault("broker.secret_watch_interval_sec", 30)
	v.SetDefault("broker.clock_skew_tolerance_sec", 120)

	v.SetDefault("signal.min_agreeing_strategies", 3)
	v.SetDefault("signal.strategy_timeout_ms", 500)
	v.SetDefault("signal.enabled_strategies", []string{
		"trend-sma", "momentum-rsi", "macd", "volume-surge",
		"orb-breakout", "bollinger-expansion", "news-sentiment", "pattern",
	})
	v.SetDefault("signal.veto_strategies", []string{"news-sentiment"})

	v.SetDefault("sentiment.sources", []string{"broker_news"})
	v.SetDefault("sentiment.cache_ttl_sec", 300)
	v.SetDefault("sentiment.boost_threshold", 0.35)
	v.SetDefault("sentiment.block_threshold", 0.3)
	v.SetDefault("sentiment.min_source_hits", 1)
	v.SetDefault("sentiment.mapping_path", "configs/universe.json")

	v.SetDefault("sizing.base_risk_pct", 0.01)
	v.SetDefault("sizing.confidence_mult_max", 1.5)
	v.SetDefault("sizing.agreement_bonus_pct", 0.1)
	v.SetDefault("sizing.max_utilization_pct", 0.8)
	v.SetDefault("sizing.max_positions", 5)
	v.SetDefault("sizing.min_position_value", 500.0)

	v.SetDefault("trailing.breakeven_trigger_pct", 0.01)
	v.SetDefault("trailing.trailing_trigger_pct", 0.02)
	v.SetDefault("trailing.trailing_distance_pct", 0.01)
	v.SetDefault("trailing.explosive_trigger_pct", 0.05)
	v.SetDefault("trailing.explosive_distance_pct", 0.02)
	v.SetDefault("trailing.moon_trigger_pct", 0.10)
	v.SetDefault("trailing.moon_distance_pct", 0.04)
	v.SetDefault("trailing.hard_stop_pct", 0.03)

	v.SetDefault("execution.reconcile_interval_min", 5)
	v.SetDefault("execution.order_poll_interval_sec", 2)
	v.SetDefault("execution.max_retries", 3)
	v.SetDefault("execution.initial_backoff_ms", 200)
	v.SetDefault("execution.max_backoff_ms", 5000)

	v.SetDefault("vault.adapter", "env")
	v.SetDefault("vault.address", "http://127.0.0.1:8200")
	v.SetDefault("vault.mount_path", "secret")

	v.SetDefault("alerts.console", true)
	v.SetDefault("alerts.min_severity", "warning")
	v.SetDefault("alerts.telegram.enabled", false)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8081)

	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)
}

// GetDSN returns the PostgreSQL connection string for the archival store.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the status API listen address.
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BaseURL returns the broker base URL for the configured environment.
func (c *BrokerConfig) BaseURL() string {
	if c.Environment == "production" {
		return c.BaseURLProduction
	}
	return c.BaseURLSandbox
}

// IdleExpiry returns the idle-expiry window as a time.Duration.
func (c *BrokerConfig) IdleExpiry() time.Duration {
	return time.Duration(c.IdleExpiryMin) * time.Minute
}
