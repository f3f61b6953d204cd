package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketdata-service/internal/application"
	"marketdata-service/internal/config"
	"marketdata-service/internal/infrastructure/alerts"
	"marketdata-service/internal/infrastructure/github"
	httpserver "marketdata-service/internal/infrastructure/http"
	"marketdata-service/internal/infrastructure/httpx"
	"marketdata-service/internal/infrastructure/logx"
	"marketdata-service/internal/infrastructure/pg"
	"marketdata-service/internal/infrastructure/provider"
	"marketdata-service/internal/infrastructure/ratelimit"
	redisstore "marketdata-service/internal/infrastructure/redis"
)

var ErrMissingDBURL = errors.New("DATABASE_URL is required")

func ProvideLogger() *zap.Logger { return logx.L() }

func ProvideConfig() config.Config { return config.Load() }

func ProvideDB(ctx context.Context, log *zap.Logger, cfg config.Config) (*pg.DB, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, func() {}, ErrMissingDBURL
	}
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, func() {}, err
	}
	if err := pg.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, func() {}, err
	}
	cleanup := func() {
		if log != nil {
			log.Info("closing pg")
		}
		db.Close()
	}
	return db, cleanup, nil
}

func ProvideFailureRepo(db *pg.DB) application.FailureRepo { return pg.NewFailureRepo(db) }

func ProvideRedisClient(cfg config.Config) (*redis.Client, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return client, func() { _ = client.Close() }, nil
}

func ProvideCache(client *redis.Client) application.CacheStore { return redisstore.New(client) }

func ProvideAlerts(cfg config.Config) application.AlertNotifier {
	return &alerts.WebhookNotifier{
		URL:    cfg.AlertWebhookURL,
		Client: &httpx.Client{HTTP: &http.Client{Timeout: 5 * time.Second}},
	}
}

func ProvideTelemetry(failures application.FailureRepo, notifier application.AlertNotifier, cfg config.Config, log *zap.Logger) *application.Telemetry {
	return application.NewTelemetry(failures, notifier,
		application.WithSampleRate(cfg.AlertSampleRate),
		application.WithTelemetryLogger(log),
	)
}

func ProvideSnapshotTransport(cfg config.Config) application.SnapshotTransport {
	return &github.Store{
		Client: &httpx.Client{
			HTTP:  &http.Client{Timeout: 10 * time.Second},
			Token: cfg.GitHubToken,
		},
		Owner:  cfg.GitHubOwner,
		Repo:   cfg.GitHubRepo,
		Branch: cfg.GitHubBranch,
	}
}

func ProvideFallbackStore(cache application.CacheStore, transport application.SnapshotTransport, failures application.FailureRepo, cfg config.Config, log *zap.Logger) *application.FallbackStore {
	opts := []application.FallbackOption{
		application.WithSnapshotTTL(cfg.SnapshotTTL),
		application.WithStaleWindow(cfg.StaleWindow),
		application.WithFallbackLogger(log),
	}
	if !cfg.IsProduction() {
		opts = append(opts, application.WithBundledSnapshot(github.Bundled))
	}
	return application.NewFallbackStore(cache, transport, failures, opts...)
}

func ProvideOrchestrator(cache application.CacheStore, telemetry *application.Telemetry, fallback *application.FallbackStore, log *zap.Logger) *application.Orchestrator {
	return application.NewOrchestrator(cache, telemetry, fallback, application.WithLogger(log))
}

func ProvideExchangeRateSource(cfg config.Config) application.SourceFetcher {
	switch cfg.Provider {
	case "exchangeratesapi":
		return &provider.ExchangeRatesAPIProvider{
			BaseURL: cfg.ExchangeAPIBase,
			APIKey:  cfg.ExchangeAPIKey,
			Client:  &httpx.Client{HTTP: &http.Client{Timeout: 4 * time.Second}},
		}
	default:
		return provider.NewFake(1.2345)
	}
}

func ProvideRateLimiter(cfg config.Config) *ratelimit.PerClient {
	if cfg.RateLimitPerMinute <= 0 {
		return nil
	}
	return ratelimit.NewPerClient(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
}

func ProvideServer(orch *application.Orchestrator, telemetry *application.Telemetry, fallback *application.FallbackStore, cache application.CacheStore, cfg config.Config) *httpserver.Server {
	return httpserver.NewServer(orch, telemetry, fallback, cache,
		sourceRegistry(cfg), defaultRegistry(), fetchOptions(cfg))
}
