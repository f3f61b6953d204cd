package config

import "time"

const (
	DefaultHTTPPort        = "8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultPGMaxConns      = 5
	DefaultPGMinConns      = 1

	// Live quote types share one TTL; daily historical datasets keep a
	// full-day one.
	DefaultCacheTTL    = time.Hour
	HistoricalCacheTTL = 24 * time.Hour
)
