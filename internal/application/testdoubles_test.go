package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"marketdata-service/internal/domain"
)

var ErrStore = errors.New("store error")

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

type cacheWrite struct {
	Value any
	TTL   time.Duration
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
	writes  map[string]cacheWrite
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]CacheEntry{}, writes: map[string]cacheWrite{}}
}

func (f *fakeCache) put(key string, rec domain.QuoteRecord, ttl time.Duration) {
	b, _ := json.Marshal(rec)
	f.mu.Lock()
	f.entries[key] = CacheEntry{Data: b, TTL: ttl}
	f.mu.Unlock()
}

func (f *fakeCache) Get(_ context.Context, key string) (CacheEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return CacheEntry{}, false, f.getErr
	}
	e, ok := f.entries[key]
	return e, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.writes[key] = cacheWrite{Value: v, TTL: ttl}
	b, _ := json.Marshal(v)
	f.entries[key] = CacheEntry{Data: b, TTL: ttl}
	return nil
}

func (f *fakeCache) GetWithPrefix(_ context.Context, prefix string) ([]PrefixEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PrefixEntry
	for k, e := range f.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, PrefixEntry{Key: k, Data: e.Data, TTL: e.TTL})
		}
	}
	return out, nil
}

func (f *fakeCache) Clear(_ context.Context, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

// countingSource wraps a SourceFunc and remembers how often it ran.
type countingSource struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, symbol string) (domain.QuoteRecord, error)
}

func (c *countingSource) Fetch(ctx context.Context, symbol string) (domain.QuoteRecord, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.fn(ctx, symbol)
}

func (c *countingSource) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func failingSource() *countingSource {
	return &countingSource{fn: func(context.Context, string) (domain.QuoteRecord, error) {
		return domain.QuoteRecord{}, errors.New("upstream down")
	}}
}

func priceSource(price float64) *countingSource {
	return &countingSource{fn: func(_ context.Context, symbol string) (domain.QuoteRecord, error) {
		return domain.QuoteRecord{Ticker: symbol, Price: price}, nil
	}}
}

type fakeFailureRepo struct {
	mu      sync.Mutex
	records []domain.FailureRecord
	err     error
	listErr error
}

func (f *fakeFailureRepo) Record(_ context.Context, rec domain.FailureRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeFailureRepo) ListSince(_ context.Context, from time.Time) ([]domain.FailureRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.FailureRecord
	for _, r := range f.records {
		if !r.OccurredAt.Before(from) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeFailureRepo) FailedSymbols(_ context.Context, dateKey string, dt domain.DataType) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, r := range f.records {
		if r.DateKey != dateKey || (dt != "" && r.DataType != dt) || seen[r.Symbol] {
			continue
		}
		seen[r.Symbol] = true
		out = append(out, r.Symbol)
	}
	return out, nil
}

type fakeAlerts struct {
	mu   sync.Mutex
	sent []Alert
	err  error
}

func (f *fakeAlerts) Notify(_ context.Context, a Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, a)
	return nil
}

func (f *fakeAlerts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeTransport struct {
	mu       sync.Mutex
	snap     domain.FallbackSnapshot
	fetchErr error
	writeErr error
	writable bool
	fetches  int
	written  []domain.FallbackSnapshot
}

func (f *fakeTransport) FetchAll(context.Context) (domain.FallbackSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return domain.FallbackSnapshot{}, f.fetchErr
	}
	return f.snap, nil
}

func (f *fakeTransport) WriteAll(_ context.Context, snap domain.FallbackSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, snap)
	return nil
}

func (f *fakeTransport) CanWrite() bool { return f.writable }

// sleepRecorder captures pacing delays instead of sleeping.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
}

func quietTelemetry(repo FailureRepo, alerts AlertNotifier, rng func() float64) *Telemetry {
	opts := []TelemetryOption{}
	if rng != nil {
		opts = append(opts, WithRand(rng))
	}
	return NewTelemetry(repo, alerts, opts...)
}
