package application

import (
	"context"
	"encoding/json"
	"time"

	"marketdata-service/internal/domain"
)

// CacheEntry is a cache hit: the stored payload plus the time it has left.
type CacheEntry struct {
	Data json.RawMessage
	TTL  time.Duration
}

// PrefixEntry is one element of a prefix scan.
type PrefixEntry struct {
	Key  string
	Data json.RawMessage
	TTL  time.Duration
}

// CacheStore is the TTL-keyed persistent store the orchestrator reads and
// writes. Implementations must treat entries past their expiry as absent
// even when the backing store has not physically removed them yet.
type CacheStore interface {
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	GetWithPrefix(ctx context.Context, prefix string) ([]PrefixEntry, error)
	Clear(ctx context.Context, prefix string) (int, error)
}

// SourceFetcher is one upstream provider adapter in a fallback chain.
type SourceFetcher interface {
	Fetch(ctx context.Context, symbol string) (domain.QuoteRecord, error)
}

// SourceFunc adapts a bare function to SourceFetcher.
type SourceFunc func(ctx context.Context, symbol string) (domain.QuoteRecord, error)

func (f SourceFunc) Fetch(ctx context.Context, symbol string) (domain.QuoteRecord, error) {
	return f(ctx, symbol)
}

// Alert describes one exhaustive fetch failure worth surfacing.
type Alert struct {
	Symbol   string
	DataType domain.DataType
	Reason   string
	At       time.Time
}

// AlertNotifier delivers sampled failure alerts to an external collaborator.
type AlertNotifier interface {
	Notify(ctx context.Context, a Alert) error
}

// FailureRepo durably records exhaustive fetch failures.
type FailureRepo interface {
	Record(ctx context.Context, rec domain.FailureRecord) error
	ListSince(ctx context.Context, from time.Time) ([]domain.FailureRecord, error)
	// FailedSymbols lists the distinct symbols that failed on a given day,
	// optionally filtered by data type (empty means all types).
	FailedSymbols(ctx context.Context, dateKey string, dt domain.DataType) ([]string, error)
}

// SnapshotTransport moves the fallback snapshot to and from its external
// store. CanWrite reports whether a write credential is configured.
type SnapshotTransport interface {
	FetchAll(ctx context.Context) (domain.FallbackSnapshot, error)
	WriteAll(ctx context.Context, snap domain.FallbackSnapshot) error
	CanWrite() bool
}

// FallbackLookup is the read-only view the orchestrator gets of the
// secondary fallback store.
type FallbackLookup interface {
	GetForSymbol(ctx context.Context, symbol string, dt domain.DataType) (domain.QuoteRecord, bool)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
