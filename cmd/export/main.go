package main

import (
	"context"
	"time"

	"marketdata-service/internal/bootstrap"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

// One-shot snapshot export: merges recent failures' last-good cached
// values into the external fallback dataset. Run from cron.
func main() {
	log := bootstrap.ProvideLogger()
	cfg := bootstrap.ProvideConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, closeDB, err := bootstrap.ProvideDB(ctx, log, cfg)
	if err != nil {
		log.Fatal("bootstrap pg", zap.Error(err))
	}
	defer closeDB()

	rdb, closeRedis, err := bootstrap.ProvideRedisClient(cfg)
	if err != nil {
		log.Fatal("bootstrap redis", zap.Error(err))
	}
	defer closeRedis()

	cache := bootstrap.ProvideCache(rdb)
	failures := bootstrap.ProvideFailureRepo(db)
	fallback := bootstrap.ProvideFallbackStore(cache, bootstrap.ProvideSnapshotTransport(cfg), failures, cfg, log)

	n, err := fallback.ExportSnapshot(ctx)
	if err != nil {
		log.Fatal("snapshot export failed", zap.Error(err))
	}
	log.Info("snapshot export complete", zap.Int("merged", n))
}
