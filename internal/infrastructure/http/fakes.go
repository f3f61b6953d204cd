package httpserver

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"marketdata-service/internal/application"
	"marketdata-service/internal/domain"
)

// In-memory collaborators for router-level tests and local wiring.

var _ application.CacheStore = (*memCache)(nil)
var _ application.FailureRepo = (*memFailureRepo)(nil)
var _ application.SnapshotTransport = (*memTransport)(nil)

type memCache struct {
	mu      sync.Mutex
	entries map[string]json.RawMessage
}

func newMemCache() *memCache { return &memCache{entries: map[string]json.RawMessage{}} }

func (c *memCache) Get(_ context.Context, key string) (application.CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return application.CacheEntry{}, false, nil
	}
	return application.CacheEntry{Data: raw, TTL: time.Hour}, true, nil
}

func (c *memCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = raw
	c.mu.Unlock()
	return nil
}

func (c *memCache) GetWithPrefix(_ context.Context, prefix string) ([]application.PrefixEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []application.PrefixEntry
	for k, raw := range c.entries {
		if strings.HasPrefix(k, prefix) {
			out = append(out, application.PrefixEntry{Key: k, Data: raw, TTL: time.Hour})
		}
	}
	return out, nil
}

func (c *memCache) Clear(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

type memFailureRepo struct {
	mu   sync.Mutex
	recs []domain.FailureRecord
}

func (f *memFailureRepo) Record(_ context.Context, rec domain.FailureRecord) error {
	f.mu.Lock()
	f.recs = append(f.recs, rec)
	f.mu.Unlock()
	return nil
}

func (f *memFailureRepo) ListSince(_ context.Context, from time.Time) ([]domain.FailureRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.FailureRecord
	for _, rec := range f.recs {
		if !rec.OccurredAt.Before(from) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *memFailureRepo) FailedSymbols(_ context.Context, dateKey string, dt domain.DataType) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, rec := range f.recs {
		if rec.DateKey != dateKey || (dt != "" && rec.DataType != dt) || seen[rec.Symbol] {
			continue
		}
		seen[rec.Symbol] = true
		out = append(out, rec.Symbol)
	}
	return out, nil
}

type memTransport struct {
	writable bool
	snap     domain.FallbackSnapshot
}

func (t *memTransport) FetchAll(context.Context) (domain.FallbackSnapshot, error) {
	return t.snap.Clone(), nil
}

func (t *memTransport) WriteAll(_ context.Context, snap domain.FallbackSnapshot) error {
	t.snap = snap.Clone()
	return nil
}

func (t *memTransport) CanWrite() bool { return t.writable }

type staticSource struct {
	price float64
	err   error
}

func (s staticSource) Fetch(_ context.Context, symbol string) (domain.QuoteRecord, error) {
	if s.err != nil {
		return domain.QuoteRecord{}, s.err
	}
	return domain.QuoteRecord{Ticker: symbol, Price: s.price}, nil
}

// NewInMemoryServer wires a Server against in-memory collaborators, one
// source per data type. Used by router tests and available for local dev.
func NewInMemoryServer(price float64) (*Server, *memCache, *memFailureRepo, *memTransport) {
	cache := newMemCache()
	failures := &memFailureRepo{}
	transport := &memTransport{snap: domain.EmptySnapshot()}

	telemetry := application.NewTelemetry(failures, nil, application.WithSampleRate(0))
	fallback := application.NewFallbackStore(cache, transport, failures)
	orch := application.NewOrchestrator(cache, telemetry, fallback)

	sources := map[domain.DataType][]application.SourceFetcher{}
	defaults := map[domain.DataType]domain.QuoteRecord{}
	for _, dt := range []domain.DataType{
		domain.DataTypeUSStock, domain.DataTypeJPStock, domain.DataTypeETF,
		domain.DataTypeMutualFund, domain.DataTypeExchangeRate,
	} {
		sources[dt] = []application.SourceFetcher{staticSource{price: price}}
		defaults[dt] = domain.QuoteRecord{Price: 100, Currency: "USD", Name: "Default"}
	}
	options := func(domain.DataType) application.FetchOptions {
		return application.FetchOptions{CacheTTL: time.Hour}
	}
	srv := NewServer(orch, telemetry, fallback, cache, sources, defaults, options)
	return srv, cache, failures, transport
}
