// Command trader is the top-level process: it wires the session
// scheduler to the market-data fabric, sentiment filter, signal engine,
// sizer, executor, reconciler, and trailing engine, and embeds the
// read-only status API and archival store alongside them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/ees/internal/alerts"
	"github.com/ajitpratap0/ees/internal/broker"
	"github.com/ajitpratap0/ees/internal/config"
	"github.com/ajitpratap0/ees/internal/db"
	"github.com/ajitpratap0/ees/internal/events"
	"github.com/ajitpratap0/ees/internal/execution"
	"github.com/ajitpratap0/ees/internal/market"
	"github.com/ajitpratap0/ees/internal/metrics"
	"github.com/ajitpratap0/ees/internal/secrets"
	"github.com/ajitpratap0/ees/internal/sentiment"
	"github.com/ajitpratap0/ees/internal/session"
	tradesignal "github.com/ajitpratap0/ees/internal/signal"
	"github.com/ajitpratap0/ees/internal/sizing"
	"github.com/ajitpratap0/ees/internal/statusapi"
	"github.com/ajitpratap0/ees/internal/trailing"
)

const databaseURLSecret = "database/url"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	secretStore, err := secrets.NewStore(cfg.Vault.Adapter, cfg.Vault.Address, cfg.Vault.Token, cfg.Vault.MountPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct secret store")
	}
	if err := secretStore.Put(ctx, databaseURLSecret, []byte(cfg.Database.GetDSN())); err != nil {
		log.Fatal().Err(err).Msg("failed to seed database DSN secret")
	}

	archive, err := db.New(ctx, secretStore, databaseURLSecret, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to archival store")
	}
	defer archive.Close()
	sessionStore := db.NewPostgresSessionStore(archive)

	bus := events.NewBus()

	brokerSession, err := broker.NewSession(ctx, broker.SessionConfig{
		Environment:           broker.Environment(cfg.Broker.Environment),
		ConsumerKeySecret:     cfg.Broker.ConsumerKeySecret,
		ConsumerSecretSecret:  cfg.Broker.ConsumerSecretSecret,
		TokenSecretName:       cfg.Broker.TokenSecret,
		TokenSecretSecretName: cfg.Broker.TokenSecretSecret,
		IdleExpiry:            time.Duration(cfg.Broker.IdleExpiryMin) * time.Minute,
		DailyExpiryHour:       cfg.Broker.DailyExpiryHour,
		KeepAliveInterval:     time.Duration(cfg.Broker.KeepAliveIntervalMin) * time.Minute,
		ClockSkewTolerance:    time.Duration(cfg.Broker.ClockSkewToleranceSec) * time.Second,
	}, secretStore, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to establish broker session")
	}

	baseURL := cfg.Broker.BaseURLSandbox
	if broker.Environment(cfg.Broker.Environment) == broker.EnvironmentProduction {
		baseURL = cfg.Broker.BaseURLProduction
	}
	brokerClient := broker.NewClient(baseURL, brokerSession, log.Logger)

	universe, err := session.LoadUniverse(cfg.Session.UniversePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load symbol universe")
	}
	holidays, err := session.LoadHolidayCalendar(cfg.Session.HolidayFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load holiday calendar")
	}

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	providers := buildProviders(cfg, brokerClient)
	fabric := market.NewFabric(providers, market.FabricConfig{BatchSize: cfg.Market.BatchSize},
		redisClient, cfg.Market.L1CacheSize,
		time.Duration(cfg.Market.QuoteCacheTTLSec)*time.Second,
		time.Duration(cfg.Market.BarCacheTTLSec)*time.Second,
		time.Duration(cfg.Market.IndicatorCacheTTLSec)*time.Second,
		log.Logger)
	for _, p := range providers {
		fabric.RegisterRateLimit(p.Name(), cfg.Market.RateLimitPerSec, int(cfg.Market.RateLimitPerSec))
	}

	sentimentCache := market.NewTieredCache(redisClient, cfg.Market.L1CacheSize,
		time.Duration(cfg.Sentiment.CacheTTLSec)*time.Second,
		time.Duration(cfg.Sentiment.CacheTTLSec)*time.Second,
		time.Duration(cfg.Sentiment.CacheTTLSec)*time.Second, log.Logger)
	sentimentFilter := sentiment.NewFilter(sentiment.Config{
		BlockThreshold: cfg.Sentiment.BlockThreshold,
		BoostThreshold: cfg.Sentiment.BoostThreshold,
		CacheTTL:       time.Duration(cfg.Sentiment.CacheTTLSec) * time.Second,
	}, []sentiment.NewsSource{brokerClient}, sentiment.NewLexiconScorer(), sentimentCache, log.Logger)

	signalEngine := tradesignal.NewEngine(buildStrategies(cfg.Signal.EnabledStrategies), tradesignal.Config{
		MinAgreeingStrategies: cfg.Signal.MinAgreeingStrategies,
		MinConfidence:         0.90,
		StrategyTimeout:       time.Duration(cfg.Signal.StrategyTimeoutMs) * time.Millisecond,
	}, log.Logger)

	trailCfg := trailing.DefaultConfig()
	trailCfg.BreakevenTriggerPct = cfg.Trailing.BreakevenTriggerPct
	trailCfg.TrailingActivatePct = cfg.Trailing.TrailingTriggerPct
	trailCfg.MinTrailPct = cfg.Trailing.TrailingDistancePct
	trailCfg.MaxTrailPct = cfg.Trailing.TrailingDistancePct
	trailCfg.ExplosiveTriggerPct = cfg.Trailing.ExplosiveTriggerPct
	trailCfg.ExplosiveTakeProfitPct = cfg.Trailing.ExplosiveDistancePct
	trailCfg.MoonTriggerPct = cfg.Trailing.MoonTriggerPct
	trailCfg.MoonTakeProfitPct = cfg.Trailing.MoonDistancePct
	trailCfg.InitialStopPct = cfg.Trailing.HardStopPct
	trailEngine := trailing.NewEngine(trailCfg, log.Logger)

	execCfg := execution.DefaultConfig()
	execCfg.MaxPositions = cfg.Sizing.MaxPositions
	executor := execution.NewExecutor(brokerClient, trailEngine, bus, execCfg, log.Logger)
	reconciler := execution.NewReconciler(brokerClient, trailEngine, bus, time.Duration(cfg.Execution.ReconcileIntervalMin)*time.Minute, log.Logger)

	alertManager := alerts.NewManager(alerts.ParseSeverity(cfg.Alerts.MinSeverity), buildAlerters(cfg)...)
	bus.Subscribe(ctx, alertManager)

	t := &trader{
		universe:     universe,
		fabric:       fabric,
		sentiment:    sentimentFilter,
		signals:      signalEngine,
		trail:        trailEngine,
		executor:     executor,
		broker:       brokerClient,
		archive:      archive,
		bus:          bus,
		log:          log.Logger,
		maxPositions: cfg.Sizing.MaxPositions,
	}

	sessionCfg := session.DefaultConfig()
	sessionCfg.ExchangeTimezone = cfg.Session.ExchangeTimezone
	sessionCfg.ScanInterval = time.Duration(cfg.Session.ScanIntervalSec) * time.Second
	sessionCfg.PositionInterval = time.Duration(cfg.Session.PositionIntervalSec) * time.Second
	sessionCfg.PrepTime = sessionCfg.OpenTime - time.Duration(cfg.Session.PrepWindowMin)*time.Minute
	sessionCfg.DarkTime = sessionCfg.CooldownTime + time.Duration(cfg.Session.CooldownWindowMin)*time.Minute

	scheduler, err := session.NewScheduler(sessionCfg, holidays, sessionStore, session.Callbacks{
		OnPhaseEnter:   t.onPhaseEnter,
		OnScanTick:     t.onScanTick,
		OnPositionTick: t.onPositionTick,
		OnEndOfDay:     t.onEndOfDay,
		FatalCheck: func() (bool, string) {
			if fatal, skew := brokerSession.ClockSkewFatal(); fatal {
				return true, fmt.Sprintf("clock skew %s exceeds tolerance of %s", skew, time.Duration(cfg.Broker.ClockSkewToleranceSec)*time.Second)
			}
			return false, ""
		},
	}, bus, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct session scheduler")
	}
	t.scheduler = scheduler

	statusServer := statusapi.NewServer(statusapi.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Source: statusapi.LiveSource{
			Scheduler: scheduler,
			Trail:     trailEngine,
			Fabric:    fabric,
		},
	})

	go func() {
		if err := statusServer.Start(); err != nil {
			log.Error().Err(err).Msg("status API server stopped with error")
		}
	}()
	go reconciler.Run(ctx)

	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, log.Logger)
		if err := metricsServer.Start(); err != nil {
			log.Error().Err(err).Msg("metrics server failed to start")
		}
		go reportPoolMetrics(ctx, archive)
	}

	schedulerErrCh := make(chan error, 1)
	go func() { schedulerErrCh <- scheduler.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutdown signal received")
	case err := <-schedulerErrCh:
		if err != nil {
			log.Error().Err(err).Msg("scheduler stopped with error")
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := statusServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during status API shutdown")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during metrics server shutdown")
		}
	}
}

func buildProviders(cfg *config.Config, brokerClient *broker.Client) []market.Provider {
	providers := make([]market.Provider, 0, len(cfg.Market.Providers))
	for _, name := range cfg.Market.Providers {
		switch name {
		case "broker":
			providers = append(providers, brokerClient)
		case "polygon":
			providers = append(providers, market.NewPolygonProvider(os.Getenv("POLYGON_API_KEY"), log.Logger))
		case "alphavantage":
			providers = append(providers, market.NewAlphaVantageProvider(os.Getenv("ALPHAVANTAGE_API_KEY"), log.Logger))
		case "yahoo":
			providers = append(providers, market.NewYahooProvider(log.Logger))
		}
	}
	if len(providers) == 0 {
		providers = append(providers, brokerClient)
	}
	return providers
}

func buildStrategies(enabled []string) []tradesignal.Strategy {
	catalog := map[string]tradesignal.Strategy{
		"trend-sma":           tradesignal.NewTrendSMA(1.0),
		"momentum-rsi":        tradesignal.NewMomentumRSI(1.0),
		"macd":                tradesignal.NewMACDStrategy(1.0),
		"volume-surge":        tradesignal.NewVolumeSurge(0.75),
		"orb-breakout":        tradesignal.NewORBBreakout(1.0),
		"bollinger-expansion": tradesignal.NewBollingerExpansion(0.75),
		"news-sentiment":      tradesignal.NewNewsSentiment(0.5),
		"pattern":             tradesignal.NewPattern(0.75),
	}
	if len(enabled) == 0 {
		out := make([]tradesignal.Strategy, 0, len(catalog))
		for _, s := range catalog {
			out = append(out, s)
		}
		return out
	}
	out := make([]tradesignal.Strategy, 0, len(enabled))
	for _, name := range enabled {
		if s, ok := catalog[name]; ok {
			out = append(out, s)
		}
	}
	return out
}

func buildAlerters(cfg *config.Config) []alerts.Alerter {
	var out []alerts.Alerter
	if cfg.Alerts.Console {
		out = append(out, alerts.NewConsoleAlerter())
	}
	out = append(out, alerts.NewLogAlerter())
	if cfg.Alerts.Telegram.Enabled {
		if tg, err := alerts.NewTelegramAlerter(os.Getenv("TELEGRAM_BOT_TOKEN"), cfg.Alerts.Telegram.ChatIDs); err == nil {
			out = append(out, tg)
		} else {
			log.Error().Err(err).Msg("failed to construct telegram alerter, continuing without it")
		}
	}
	return out
}

// reportPoolMetrics samples the archival store's connection pool
// periodically, feeding the same gauges a teacher-style metrics updater
// would, without needing a separate dedicated poller type.
func reportPoolMetrics(ctx context.Context, archive *db.DB) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := archive.Pool().Stat()
			metrics.UpdateDatabaseConnections(stat.AcquiredConns(), stat.IdleConns())
		}
	}
}

