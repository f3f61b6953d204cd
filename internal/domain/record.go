package domain

import (
	"math"
	"time"
)

// Source labels stamped on records so consumers can tell live data from
// degraded data.
const (
	SourceAPI              = "API"
	SourceCache            = "Cache"
	SourceCacheRateLimited = "Cache (Rate Limited)"
	SourceFallbackData     = "Fallback Data"
	SourceDefaultFallback  = "Default Fallback"
	SourceGitHubFallback   = "GitHub Fallback"
)

// QuoteRecord is the normalized payload served for every symbol, whatever
// path produced it.
type QuoteRecord struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change,omitempty"`
	ChangePercent float64 `json:"changePercent,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	Name          string  `json:"name,omitempty"`
	LastUpdated   string  `json:"lastUpdated,omitempty"`
	Source        string  `json:"source,omitempty"`
	IsDefault     bool    `json:"isDefault,omitempty"`
	IsStale       bool    `json:"isStale,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// HasValidPrice reports whether the record carries a usable price. A record
// without one is treated as a fetch failure even when the upstream call
// itself succeeded.
func (r QuoteRecord) HasValidPrice() bool {
	return r.Price > 0 && !math.IsNaN(r.Price) && !math.IsInf(r.Price, 0)
}

// DefaultRecord synthesizes the clearly-flagged placeholder returned when
// every source for a symbol has failed.
func DefaultRecord(symbol string, defaults QuoteRecord, now time.Time) QuoteRecord {
	rec := defaults
	rec.Ticker = symbol
	rec.IsDefault = true
	rec.Source = SourceDefaultFallback
	rec.LastUpdated = now.UTC().Format(time.RFC3339)
	return rec
}
