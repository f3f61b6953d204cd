package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"marketdata-service/internal/domain"

	"go.uber.org/zap"
)

const defaultBatchSize = 10

// FetchOptions tunes one fetch: Refresh skips the cache read (the cache is
// still written on success), CacheTTL is the write TTL, BatchSize and
// InterBatchDelay pace batch fan-out against upstream rate limits.
type FetchOptions struct {
	Refresh         bool
	CacheTTL        time.Duration
	BatchSize       int
	InterBatchDelay time.Duration
}

type FetchRequest struct {
	Symbol   string
	DataType domain.DataType
	Sources  []SourceFetcher
	Defaults domain.QuoteRecord
	Options  FetchOptions
}

type BatchRequest struct {
	Symbols  []string
	DataType domain.DataType
	Sources  []SourceFetcher
	Defaults domain.QuoteRecord
	Options  FetchOptions
}

// Orchestrator resolves symbols through the cache-first ordered fallback
// chain. Apart from input validation it never returns an error: every
// degradation is converted into a marked record.
type Orchestrator struct {
	cache     CacheStore
	telemetry *Telemetry
	fallback  FallbackLookup
	clock     Clock
	sleep     func(ctx context.Context, d time.Duration)
	log       *zap.Logger
}

type Option func(*Orchestrator)

func WithClock(c Clock) Option { return func(o *Orchestrator) { o.clock = c } }
func WithSleeper(s func(context.Context, time.Duration)) Option {
	return func(o *Orchestrator) { o.sleep = s }
}
func WithLogger(l *zap.Logger) Option { return func(o *Orchestrator) { o.log = l } }

// NewOrchestrator wires the orchestrator. fallback may be nil, in which case
// exhaustion goes straight to the synthesized default.
func NewOrchestrator(cache CacheStore, telemetry *Telemetry, fallback FallbackLookup, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cache:     cache,
		telemetry: telemetry,
		fallback:  fallback,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.clock == nil {
		o.clock = realClock{}
	}
	if o.sleep == nil {
		o.sleep = sleepCtx
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}

// Fetch resolves one symbol: CHECK_CACHE, then each source in order, then
// the secondary fallback store, then the synthesized default.
func (o *Orchestrator) Fetch(ctx context.Context, req FetchRequest) (domain.QuoteRecord, error) {
	if req.Symbol == "" || req.DataType == "" || len(req.Sources) == 0 {
		return domain.QuoteRecord{}, fmt.Errorf("%w: symbol, data type and at least one source are required", ErrBadRequest)
	}

	key := domain.CacheKey(req.DataType, req.Symbol)
	if !req.Options.Refresh {
		if rec, ok := o.cachedRecord(ctx, key); ok {
			return rec, nil
		}
	}

	rec, reason, ok := o.trySources(ctx, req.Sources, req.Symbol)
	if ok {
		if rec.Ticker == "" {
			rec.Ticker = req.Symbol
		}
		if rec.Source == "" {
			rec.Source = domain.SourceAPI
		}
		o.writeCache(ctx, key, rec, req.Options.CacheTTL)
		return rec, nil
	}
	return o.resolveFailure(ctx, req, key, reason), nil
}

// FetchBatch fans a symbol set out across Fetch calls in rate-safe windows.
// The result always carries one entry per distinct requested symbol.
func (o *Orchestrator) FetchBatch(ctx context.Context, req BatchRequest) (map[string]domain.QuoteRecord, error) {
	if len(req.Symbols) == 0 {
		return nil, fmt.Errorf("%w: symbols must not be empty", ErrBadRequest)
	}
	if req.DataType == "" || len(req.Sources) == 0 {
		return nil, fmt.Errorf("%w: data type and at least one source are required", ErrBadRequest)
	}

	results := make(map[string]domain.QuoteRecord, len(req.Symbols))
	seen := make(map[string]bool, len(req.Symbols))
	pending := make([]string, 0, len(req.Symbols))
	for _, sym := range req.Symbols {
		if seen[sym] {
			continue
		}
		seen[sym] = true
		if !req.Options.Refresh {
			if rec, ok := o.cachedRecord(ctx, domain.CacheKey(req.DataType, sym)); ok {
				results[sym] = rec
				continue
			}
		}
		pending = append(pending, sym)
	}

	batchSize := req.Options.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	// Per-symbol requests skip the cache read: everything in pending already
	// missed (or Refresh was set), and re-reading would race the window.
	symReq := FetchRequest{
		DataType: req.DataType,
		Sources:  req.Sources,
		Defaults: req.Defaults,
		Options:  req.Options,
	}
	symReq.Options.Refresh = true

	var mu sync.Mutex
	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		var wg sync.WaitGroup
		for _, sym := range pending[start:end] {
			wg.Add(1)
			go func(sym string) {
				defer wg.Done()
				r := symReq
				r.Symbol = sym
				rec, err := o.Fetch(ctx, r)
				if err != nil {
					// Cannot happen for a validated batch, but coverage wins
					// over dropping the symbol.
					rec = domain.DefaultRecord(sym, req.Defaults, o.clock.Now())
				}
				mu.Lock()
				results[sym] = rec
				mu.Unlock()
			}(sym)
		}
		wg.Wait()
		if end < len(pending) && req.Options.InterBatchDelay > 0 {
			o.sleep(ctx, req.Options.InterBatchDelay)
		}
	}
	return results, nil
}

func (o *Orchestrator) cachedRecord(ctx context.Context, key string) (domain.QuoteRecord, bool) {
	entry, found, err := o.cache.Get(ctx, key)
	if err != nil {
		o.log.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
		return domain.QuoteRecord{}, false
	}
	if !found {
		return domain.QuoteRecord{}, false
	}
	var rec domain.QuoteRecord
	if err := json.Unmarshal(entry.Data, &rec); err != nil {
		o.log.Warn("cache entry corrupt, treating as miss", zap.String("key", key), zap.Error(err))
		return domain.QuoteRecord{}, false
	}
	return rec, true
}

// trySources walks the chain strictly in order. A source succeeds only when
// it returns a record with a usable price; rejections, invalid prices and
// panics all advance to the next source.
func (o *Orchestrator) trySources(ctx context.Context, sources []SourceFetcher, symbol string) (domain.QuoteRecord, string, bool) {
	reason := "no source produced a usable price"
	for i, src := range sources {
		rec, err := fetchFrom(ctx, src, symbol)
		if err != nil {
			reason = err.Error()
			o.log.Debug("source failed", zap.String("symbol", symbol), zap.Int("source", i), zap.Error(err))
			continue
		}
		if !rec.HasValidPrice() {
			reason = fmt.Sprintf("source %d returned no usable price", i)
			continue
		}
		return rec, "", true
	}
	return domain.QuoteRecord{}, reason, false
}

// fetchFrom shields the chain from panicking sources.
func fetchFrom(ctx context.Context, src SourceFetcher, symbol string) (rec domain.QuoteRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source panic: %v", r)
		}
	}()
	return src.Fetch(ctx, symbol)
}

func (o *Orchestrator) resolveFailure(ctx context.Context, req FetchRequest, key, reason string) domain.QuoteRecord {
	if o.telemetry != nil {
		o.telemetry.RecordFailure(ctx, req.Symbol, req.DataType, reason)
	}
	if o.fallback != nil {
		if rec, ok := o.fallback.GetForSymbol(ctx, req.Symbol, req.DataType); ok && rec.HasValidPrice() {
			rec.IsStale = true
			o.writeCache(ctx, key, rec, req.Options.CacheTTL)
			return rec
		}
	}
	// Caching the default keeps a storm of identical failures from
	// re-triggering every source within the TTL window.
	rec := domain.DefaultRecord(req.Symbol, req.Defaults, o.clock.Now())
	rec.Error = reason
	o.writeCache(ctx, key, rec, req.Options.CacheTTL)
	return rec
}

func (o *Orchestrator) writeCache(ctx context.Context, key string, rec domain.QuoteRecord, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := o.cache.Set(ctx, key, rec, ttl); err != nil {
		o.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
