package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Common
	Env      string
	LogLevel string
	// API
	Port        string
	DatabaseURL string
	// Redis (quote cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Fetch pacing
	CacheTTL        time.Duration
	BatchSize       int
	InterBatchDelay time.Duration
	RequestTimeout  time.Duration
	// Failure telemetry
	AlertSampleRate float64
	AlertWebhookURL string
	// Fallback snapshot store
	GitHubToken    string
	GitHubOwner    string
	GitHubRepo     string
	GitHubBranch   string
	SnapshotTTL    time.Duration
	StaleWindow    time.Duration
	// Rate limiting
	RateLimitPerMinute float64
	RateLimitBurst     int
	// Provider
	Provider        string
	ExchangeAPIBase string
	ExchangeAPIKey  string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiDef(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func atofDef(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

// Load reads environment variables and applies defaults.
func Load() Config {
	return Config{
		Env:                getEnv("ENV", "local"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            atoiDef(getEnv("REDIS_DB", "0"), 0),
		CacheTTL:           time.Duration(atoiDef(getEnv("CACHE_TTL_SECONDS", "3600"), 3600)) * time.Second,
		BatchSize:          atoiDef(getEnv("FETCH_BATCH_SIZE", "10"), 10),
		InterBatchDelay:    time.Duration(atoiDef(getEnv("INTER_BATCH_DELAY_MS", "1000"), 1000)) * time.Millisecond,
		RequestTimeout:     time.Duration(atoiDef(getEnv("REQUEST_TIMEOUT_MS", "3000"), 3000)) * time.Millisecond,
		AlertSampleRate:    atofDef(getEnv("ALERT_SAMPLE_RATE", "0.1"), 0.1),
		AlertWebhookURL:    getEnv("ALERT_WEBHOOK_URL", ""),
		GitHubToken:        getEnv("GITHUB_TOKEN", ""),
		GitHubOwner:        getEnv("GITHUB_FALLBACK_OWNER", ""),
		GitHubRepo:         getEnv("GITHUB_FALLBACK_REPO", ""),
		GitHubBranch:       getEnv("GITHUB_FALLBACK_BRANCH", "main"),
		SnapshotTTL:        time.Duration(atoiDef(getEnv("SNAPSHOT_TTL_SECONDS", "3600"), 3600)) * time.Second,
		StaleWindow:        time.Duration(atoiDef(getEnv("SNAPSHOT_STALE_SECONDS", "86400"), 86400)) * time.Second,
		RateLimitPerMinute: atofDef(getEnv("RATE_LIMIT_PER_MINUTE", "60"), 60),
		RateLimitBurst:     atoiDef(getEnv("RATE_LIMIT_BURST", "10"), 10),
		Provider:           getEnv("PROVIDER", "fake"),
		ExchangeAPIBase:    getEnv("EXCHANGE_API_BASE", "https://api.exchangeratesapi.io"),
		ExchangeAPIKey:     getEnv("EXCHANGE_API_KEY", ""),
	}
}

// IsProduction gates the bundled-snapshot fallback, which only non-prod
// deployments may serve.
func (c Config) IsProduction() bool { return c.Env == "prod" || c.Env == "production" }
