package application

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"marketdata-service/internal/domain"

	"go.uber.org/zap"
)

// DefaultAlertSampleRate keeps a broadly-down upstream from alert-storming
// while still surfacing the condition.
const DefaultAlertSampleRate = 0.1

const mostFailedLimit = 10

// Telemetry records every exhaustive failure durably and forwards a sampled
// fraction of them to the alert collaborator.
type Telemetry struct {
	failures   FailureRepo
	alerts     AlertNotifier
	sampleRate float64
	rng        func() float64
	clock      Clock
	log        *zap.Logger
}

type TelemetryOption func(*Telemetry)

func WithSampleRate(r float64) TelemetryOption {
	return func(t *Telemetry) { t.sampleRate = r }
}
func WithRand(f func() float64) TelemetryOption {
	return func(t *Telemetry) { t.rng = f }
}
func WithTelemetryClock(c Clock) TelemetryOption {
	return func(t *Telemetry) { t.clock = c }
}
func WithTelemetryLogger(l *zap.Logger) TelemetryOption {
	return func(t *Telemetry) { t.log = l }
}

func NewTelemetry(failures FailureRepo, alerts AlertNotifier, opts ...TelemetryOption) *Telemetry {
	t := &Telemetry{
		failures:   failures,
		alerts:     alerts,
		sampleRate: DefaultAlertSampleRate,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.rng == nil {
		t.rng = rand.Float64
	}
	if t.clock == nil {
		t.clock = realClock{}
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	return t
}

// RecordFailure persists the failure and, on a sampled draw, notifies the
// alert collaborator. Telemetry errors are logged and swallowed so the
// caller's degraded response is never blocked.
func (t *Telemetry) RecordFailure(ctx context.Context, symbol string, dt domain.DataType, reason string) {
	now := t.clock.Now()
	rec := domain.FailureRecord{
		Symbol:     symbol,
		DataType:   dt,
		Reason:     reason,
		OccurredAt: now,
		DateKey:    domain.DayKey(now),
	}
	if err := t.failures.Record(ctx, rec); err != nil {
		t.log.Warn("failure record write failed", zap.String("symbol", symbol), zap.Error(err))
	}
	if t.alerts == nil || t.rng() >= t.sampleRate {
		return
	}
	a := Alert{Symbol: symbol, DataType: dt, Reason: reason, At: now}
	if err := t.alerts.Notify(ctx, a); err != nil {
		t.log.Warn("alert delivery failed", zap.String("symbol", symbol), zap.Error(err))
	}
}

// Statistics aggregates the failures of the last `days` days: totals,
// per-day and per-type breakdowns, and the most-failing symbols.
func (t *Telemetry) Statistics(ctx context.Context, days int) (domain.FailureStats, error) {
	if days <= 0 {
		days = 1
	}
	from := t.clock.Now().UTC().AddDate(0, 0, -(days - 1)).Truncate(24 * time.Hour)
	recs, err := t.failures.ListSince(ctx, from)
	if err != nil {
		return domain.FailureStats{}, err
	}

	stats := domain.FailureStats{
		ByDate: map[string]domain.DailyFailures{},
		ByType: map[string]int{},
	}
	bySymbol := map[string]int{}
	for _, r := range recs {
		stats.TotalFailures++
		stats.ByType[string(r.DataType)]++
		day := stats.ByDate[r.DateKey]
		if day.ByType == nil {
			day.ByType = map[string]int{}
		}
		day.Total++
		day.ByType[string(r.DataType)]++
		stats.ByDate[r.DateKey] = day
		bySymbol[r.Symbol]++
	}

	for sym, n := range bySymbol {
		stats.MostFailedSymbols = append(stats.MostFailedSymbols, domain.SymbolFailures{Symbol: sym, Failures: n})
	}
	sort.Slice(stats.MostFailedSymbols, func(i, j int) bool {
		a, b := stats.MostFailedSymbols[i], stats.MostFailedSymbols[j]
		if a.Failures != b.Failures {
			return a.Failures > b.Failures
		}
		return a.Symbol < b.Symbol
	})
	if len(stats.MostFailedSymbols) > mostFailedLimit {
		stats.MostFailedSymbols = stats.MostFailedSymbols[:mostFailedLimit]
	}
	return stats, nil
}
