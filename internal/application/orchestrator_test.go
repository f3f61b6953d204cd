package application

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"marketdata-service/internal/domain"

	"github.com/stretchr/testify/require"
)

func singleReq(sources ...SourceFetcher) FetchRequest {
	return FetchRequest{
		Symbol:   "AAPL",
		DataType: domain.DataTypeUSStock,
		Sources:  sources,
		Defaults: domain.QuoteRecord{Price: 0},
		Options:  FetchOptions{CacheTTL: time.Hour},
	}
}

func Test_Fetch_CacheHit(t *testing.T) {
	t.Parallel()
	cache := newFakeCache()
	cache.put("US_STOCK:AAPL", domain.QuoteRecord{Ticker: "AAPL", Price: 150}, time.Hour)
	src := priceSource(999)
	o := NewOrchestrator(cache, quietTelemetry(&fakeFailureRepo{}, nil, nil), nil)

	rec, err := o.Fetch(context.Background(), singleReq(src))
	require.NoError(t, err)
	require.Equal(t, "AAPL", rec.Ticker)
	require.InDelta(t, 150, rec.Price, 1e-9)
	require.Zero(t, src.count())
}

func Test_Fetch_SuccessCachesRecord(t *testing.T) {
	t.Parallel()
	cache := newFakeCache()
	src := priceSource(150.5)
	o := NewOrchestrator(cache, quietTelemetry(&fakeFailureRepo{}, nil, nil), nil)

	rec, err := o.Fetch(context.Background(), FetchRequest{
		Symbol:   "AAPL",
		DataType: domain.DataTypeUSStock,
		Sources:  []SourceFetcher{src},
		Options:  FetchOptions{CacheTTL: 3600 * time.Second},
	})
	require.NoError(t, err)
	require.Equal(t, "AAPL", rec.Ticker)
	require.InDelta(t, 150.5, rec.Price, 1e-9)
	require.Equal(t, domain.SourceAPI, rec.Source)

	w, ok := cache.writes["US_STOCK:AAPL"]
	require.True(t, ok)
	require.Equal(t, 3600*time.Second, w.TTL)
	cached, ok := w.Value.(domain.QuoteRecord)
	require.True(t, ok)
	require.InDelta(t, 150.5, cached.Price, 1e-9)
}

func Test_Fetch_FallbackShortCircuit(t *testing.T) {
	t.Parallel()
	cache := newFakeCache()
	s1, s2, s3, s4 := failingSource(), failingSource(), priceSource(42), priceSource(7)
	o := NewOrchestrator(cache, quietTelemetry(&fakeFailureRepo{}, nil, nil), nil)

	rec, err := o.Fetch(context.Background(), singleReq(s1, s2, s3, s4))
	require.NoError(t, err)
	require.InDelta(t, 42, rec.Price, 1e-9)
	require.Equal(t, 1, s1.count())
	require.Equal(t, 1, s2.count())
	require.Equal(t, 1, s3.count())
	require.Zero(t, s4.count())
}

func Test_Fetch_InvalidPriceAdvancesChain(t *testing.T) {
	t.Parallel()
	cases := map[string]domain.QuoteRecord{
		"nan price": {Price: math.NaN()},
		"no price":  {},
		"inf price": {Price: math.Inf(1)},
	}
	for name, bad := range cases {
		bad := bad
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			first := &countingSource{fn: func(context.Context, string) (domain.QuoteRecord, error) {
				return bad, nil
			}}
			second := priceSource(100)
			o := NewOrchestrator(newFakeCache(), quietTelemetry(&fakeFailureRepo{}, nil, nil), nil)

			rec, err := o.Fetch(context.Background(), singleReq(first, second))
			require.NoError(t, err)
			require.Equal(t, 1, first.count())
			require.Equal(t, 1, second.count())
			require.InDelta(t, 100, rec.Price, 1e-9)
		})
	}
}

func Test_Fetch_PanickingSourceAdvancesChain(t *testing.T) {
	t.Parallel()
	angry := &countingSource{fn: func(context.Context, string) (domain.QuoteRecord, error) {
		panic("scraper blew up")
	}}
	second := priceSource(12.5)
	o := NewOrchestrator(newFakeCache(), quietTelemetry(&fakeFailureRepo{}, nil, nil), nil)

	rec, err := o.Fetch(context.Background(), singleReq(angry, second))
	require.NoError(t, err)
	require.InDelta(t, 12.5, rec.Price, 1e-9)
}

func Test_Fetch_ExhaustionSynthesizesDefault(t *testing.T) {
	t.Parallel()
	cache := newFakeCache()
	repo := &fakeFailureRepo{}
	now := time.Date(2025, 5, 18, 12, 0, 0, 0, time.UTC)
	o := NewOrchestrator(cache, quietTelemetry(repo, nil, nil), nil, WithClock(fakeClock{t: now}))

	rec, err := o.Fetch(context.Background(), FetchRequest{
		Symbol:   "IBM",
		DataType: domain.DataTypeUSStock,
		Sources:  []SourceFetcher{failingSource(), failingSource()},
		Defaults: domain.QuoteRecord{Price: 100, Currency: "USD"},
		Options:  FetchOptions{CacheTTL: time.Hour},
	})
	require.NoError(t, err)
	require.Equal(t, "IBM", rec.Ticker)
	require.InDelta(t, 100, rec.Price, 1e-9)
	require.True(t, rec.IsDefault)
	require.Equal(t, domain.SourceDefaultFallback, rec.Source)
	require.Equal(t, now.Format(time.RFC3339), rec.LastUpdated)

	// Failure is durably recorded and the default is cached so a failure
	// storm does not re-run the chain on every request.
	require.Len(t, repo.records, 1)
	require.Equal(t, "IBM", repo.records[0].Symbol)
	require.Contains(t, cache.writes, "US_STOCK:IBM")
}

func Test_Fetch_ExhaustionUsesSecondaryFallback(t *testing.T) {
	t.Parallel()
	cache := newFakeCache()
	fb := NewFallbackStore(newFakeCache(), &fakeTransport{snap: func() domain.FallbackSnapshot {
		s := domain.EmptySnapshot()
		s.Stocks["IBM"] = domain.QuoteRecord{Price: 135.5, Name: "IBM Corp."}
		return s
	}()}, &fakeFailureRepo{})
	o := NewOrchestrator(cache, quietTelemetry(&fakeFailureRepo{}, nil, nil), fb)

	rec, err := o.Fetch(context.Background(), FetchRequest{
		Symbol:   "IBM",
		DataType: domain.DataTypeUSStock,
		Sources:  []SourceFetcher{failingSource()},
		Options:  FetchOptions{CacheTTL: time.Hour},
	})
	require.NoError(t, err)
	require.InDelta(t, 135.5, rec.Price, 1e-9)
	require.Equal(t, "IBM", rec.Ticker)
	require.Equal(t, domain.SourceGitHubFallback, rec.Source)
	require.True(t, rec.IsStale)
	require.False(t, rec.IsDefault)
}

func Test_Fetch_RefreshSkipsCacheRead(t *testing.T) {
	t.Parallel()
	cache := newFakeCache()
	cache.put("US_STOCK:AAPL", domain.QuoteRecord{Ticker: "AAPL", Price: 150}, time.Hour)
	src := priceSource(200)
	o := NewOrchestrator(cache, quietTelemetry(&fakeFailureRepo{}, nil, nil), nil)

	req := singleReq(src)
	req.Options.Refresh = true
	rec, err := o.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.InDelta(t, 200, rec.Price, 1e-9)
	require.Equal(t, 1, src.count())
	// Cache is still written on success.
	require.Contains(t, cache.writes, "US_STOCK:AAPL")
}

func Test_Fetch_CacheReadErrorTreatedAsMiss(t *testing.T) {
	t.Parallel()
	cache := newFakeCache()
	cache.getErr = ErrStore
	src := priceSource(100)
	o := NewOrchestrator(cache, quietTelemetry(&fakeFailureRepo{}, nil, nil), nil)

	rec, err := o.Fetch(context.Background(), singleReq(src))
	require.NoError(t, err)
	require.InDelta(t, 100, rec.Price, 1e-9)
	require.Equal(t, 1, src.count())
}

func Test_Fetch_CacheWriteErrorSwallowed(t *testing.T) {
	t.Parallel()
	cache := newFakeCache()
	cache.setErr = ErrStore
	o := NewOrchestrator(cache, quietTelemetry(&fakeFailureRepo{}, nil, nil), nil)

	rec, err := o.Fetch(context.Background(), singleReq(priceSource(100)))
	require.NoError(t, err)
	require.InDelta(t, 100, rec.Price, 1e-9)
}

func Test_Fetch_InputErrors(t *testing.T) {
	t.Parallel()
	o := NewOrchestrator(newFakeCache(), quietTelemetry(&fakeFailureRepo{}, nil, nil), nil)

	_, err := o.Fetch(context.Background(), FetchRequest{})
	require.ErrorIs(t, err, ErrBadRequest)

	_, err = o.Fetch(context.Background(), FetchRequest{Symbol: "AAPL", DataType: domain.DataTypeUSStock})
	require.ErrorIs(t, err, ErrBadRequest)
}

func Test_Fetch_LastSourceErrorLandsInDefaultRecord(t *testing.T) {
	t.Parallel()
	src := &countingSource{fn: func(context.Context, string) (domain.QuoteRecord, error) {
		return domain.QuoteRecord{}, errors.New("rate limit exceeded")
	}}
	o := NewOrchestrator(newFakeCache(), quietTelemetry(&fakeFailureRepo{}, nil, nil), nil)

	rec, err := o.Fetch(context.Background(), singleReq(src))
	require.NoError(t, err)
	require.True(t, rec.IsDefault)
	require.Equal(t, "rate limit exceeded", rec.Error)
}
