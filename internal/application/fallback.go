package application

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"marketdata-service/internal/domain"

	"go.uber.org/zap"
)

// FallbackKeyPrefix namespaces last-known-good records in the cache so they
// never collide with live quote entries.
const FallbackKeyPrefix = "fallback:"

const (
	defaultSnapshotTTL = time.Hour
	// How long a stale in-memory snapshot may still be served after the
	// external source becomes unreachable.
	defaultStaleWindow = 24 * time.Hour
	// Export considers failures from this many past days.
	exportLookbackDays = 7
)

// FallbackStore owns the externally persisted last-known-good dataset. The
// in-process copy is refreshed lazily on its own TTL; all mutation happens
// inside the refresh routine and the export operation.
type FallbackStore struct {
	cache     CacheStore
	transport SnapshotTransport
	failures  FailureRepo
	bundled   func() domain.FallbackSnapshot

	snapshotTTL time.Duration
	staleWindow time.Duration
	clock       Clock
	log         *zap.Logger

	mu       sync.Mutex
	snap     domain.FallbackSnapshot
	loadedAt time.Time
	loaded   bool
}

type FallbackOption func(*FallbackStore)

func WithSnapshotTTL(d time.Duration) FallbackOption {
	return func(s *FallbackStore) { s.snapshotTTL = d }
}
func WithStaleWindow(d time.Duration) FallbackOption {
	return func(s *FallbackStore) { s.staleWindow = d }
}

// WithBundledSnapshot installs the locally bundled dataset used as a last
// resort in non-production deployments.
func WithBundledSnapshot(f func() domain.FallbackSnapshot) FallbackOption {
	return func(s *FallbackStore) { s.bundled = f }
}
func WithFallbackClock(c Clock) FallbackOption {
	return func(s *FallbackStore) { s.clock = c }
}
func WithFallbackLogger(l *zap.Logger) FallbackOption {
	return func(s *FallbackStore) { s.log = l }
}

func NewFallbackStore(cache CacheStore, transport SnapshotTransport, failures FailureRepo, opts ...FallbackOption) *FallbackStore {
	s := &FallbackStore{
		cache:       cache,
		transport:   transport,
		failures:    failures,
		snapshotTTL: defaultSnapshotTTL,
		staleWindow: defaultStaleWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Snapshot returns the current fallback dataset, refreshing it from the
// external source when the in-memory copy is expired or force is set. It
// never fails: transport errors degrade to the stale copy, then to the
// bundled dataset, then to an empty structure.
func (s *FallbackStore) Snapshot(ctx context.Context, force bool) domain.FallbackSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.loaded && !force && now.Sub(s.loadedAt) < s.snapshotTTL {
		s.log.Debug("using cached fallback data")
		return s.snap
	}

	snap, err := s.transport.FetchAll(ctx)
	if err == nil {
		s.snap = snap
		s.loadedAt = now
		s.loaded = true
		s.log.Info("fallback data refreshed", zap.Int("records", snap.Size()))
		return snap
	}
	s.log.Error("fallback snapshot fetch failed", zap.Error(err))

	if s.loaded && now.Sub(s.loadedAt) < s.staleWindow {
		s.log.Warn("using stale fallback data")
		return s.snap
	}
	if s.bundled != nil {
		s.log.Info("using bundled fallback data")
		return s.bundled()
	}
	return domain.EmptySnapshot()
}

// GetForSymbol answers the orchestrator's last-resort lookup: the dedicated
// cache namespace first, then the snapshot partition for the data type.
func (s *FallbackStore) GetForSymbol(ctx context.Context, symbol string, dt domain.DataType) (domain.QuoteRecord, bool) {
	key := FallbackKeyPrefix + domain.CacheKey(dt, symbol)
	entry, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Debug("fallback cache read failed", zap.String("key", key), zap.Error(err))
	} else if found {
		var rec domain.QuoteRecord
		if err := json.Unmarshal(entry.Data, &rec); err == nil {
			return s.normalize(rec, symbol), true
		}
	}

	snap := s.Snapshot(ctx, false)
	rec, ok := snap.Partition(dt)[symbol]
	if !ok {
		return domain.QuoteRecord{}, false
	}
	return s.normalize(rec, symbol), true
}

func (s *FallbackStore) normalize(rec domain.QuoteRecord, symbol string) domain.QuoteRecord {
	if rec.Ticker == "" {
		rec.Ticker = symbol
	}
	if rec.LastUpdated == "" {
		rec.LastUpdated = s.clock.Now().UTC().Format(time.RFC3339)
	}
	if rec.Source == "" {
		rec.Source = domain.SourceGitHubFallback
	}
	return rec
}

// ExportSnapshot heals the external dataset: recent failure records select
// candidate symbols, each candidate's most recent good cached value is merged
// into the snapshot, and all partitions are written back. Without a write
// credential it is a no-op failure. Returns the number of merged records.
func (s *FallbackStore) ExportSnapshot(ctx context.Context) (int, error) {
	if !s.transport.CanWrite() {
		s.log.Error("snapshot export skipped: no write credential")
		return 0, ErrExportUnauthorized
	}

	from := s.clock.Now().AddDate(0, 0, -exportLookbackDays)
	recs, err := s.failures.ListSince(ctx, from)
	if err != nil {
		return 0, err
	}

	snap := s.Snapshot(ctx, true).Clone()
	merged := 0
	seen := map[string]bool{}
	for _, f := range recs {
		key := domain.CacheKey(f.DataType, f.Symbol)
		if seen[key] {
			continue
		}
		seen[key] = true
		entry, found, err := s.cache.Get(ctx, key)
		if err != nil || !found {
			continue
		}
		var rec domain.QuoteRecord
		if err := json.Unmarshal(entry.Data, &rec); err != nil {
			continue
		}
		if !rec.HasValidPrice() || rec.IsDefault {
			continue
		}
		snap.Put(f.DataType, f.Symbol, rec)
		merged++
	}

	if err := s.transport.WriteAll(ctx, snap); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.snap = snap
	s.loadedAt = s.clock.Now()
	s.loaded = true
	s.mu.Unlock()

	s.log.Info("fallback snapshot exported", zap.Int("merged", merged), zap.Int("total", snap.Size()))
	return merged, nil
}
