package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"marketdata-service/internal/bootstrap"
	infraconfig "marketdata-service/internal/infrastructure/config"
	httpserver "marketdata-service/internal/infrastructure/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

func main() {
	ctx := context.Background()
	logger := bootstrap.ProvideLogger()
	cfg := bootstrap.ProvideConfig()
	addr := ":" + cfg.Port

	db, closeDB, err := bootstrap.ProvideDB(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("bootstrap pg", zap.Error(err))
	}
	defer closeDB()

	rdb, closeRedis, err := bootstrap.ProvideRedisClient(cfg)
	if err != nil {
		logger.Fatal("bootstrap redis", zap.Error(err))
	}
	defer closeRedis()

	cache := bootstrap.ProvideCache(rdb)
	failures := bootstrap.ProvideFailureRepo(db)
	telemetry := bootstrap.ProvideTelemetry(failures, bootstrap.ProvideAlerts(cfg), cfg, logger)
	fallback := bootstrap.ProvideFallbackStore(cache, bootstrap.ProvideSnapshotTransport(cfg), failures, cfg, logger)
	orch := bootstrap.ProvideOrchestrator(cache, telemetry, fallback, logger)

	srv := bootstrap.ProvideServer(orch, telemetry, fallback, cache, cfg)
	srv.SetReadyCheck(db.Ping)
	mux := httpserver.NewRouter(srv, bootstrap.ProvideRateLimiter(cfg))

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("server started", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, shCancel := context.WithTimeout(context.Background(), infraconfig.DefaultShutdownTimeout)
	defer shCancel()
	_ = server.Shutdown(shutdownCtx)
	logger.Info("server stopped")
}
