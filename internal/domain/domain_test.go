package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	t.Parallel()
	require.Equal(t, "US_STOCK:AAPL", CacheKey(DataTypeUSStock, "AAPL"))
	require.Equal(t, "EXCHANGE_RATE:USD-JPY", CacheKeyForPair(DataTypeExchangeRate, "USD", "JPY"))
}

func TestCacheKeyForSymbols_OrderIndependent(t *testing.T) {
	t.Parallel()
	a := CacheKeyForSymbols(DataTypeETF, []string{"VTI", "SPY", "QQQ"})
	b := CacheKeyForSymbols(DataTypeETF, []string{"QQQ", "VTI", "SPY"})
	require.Equal(t, a, b)
	require.Equal(t, "ETF:QQQ,SPY,VTI", a)
}

func TestCacheKeyForSymbols_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	in := []string{"VTI", "SPY"}
	_ = CacheKeyForSymbols(DataTypeETF, in)
	require.Equal(t, []string{"VTI", "SPY"}, in)
}

func TestParseDataType(t *testing.T) {
	t.Parallel()
	cases := map[string]DataType{
		"US_STOCK":      DataTypeUSStock,
		"us-stock":      DataTypeUSStock,
		"jp_stock":      DataTypeJPStock,
		"ETF":           DataTypeETF,
		"mutual-fund":   DataTypeMutualFund,
		"EXCHANGE_RATE": DataTypeExchangeRate,
	}
	for in, want := range cases {
		got, err := ParseDataType(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}
	_, err := ParseDataType("BOND")
	require.Error(t, err)
}

func TestHasValidPrice(t *testing.T) {
	t.Parallel()
	require.True(t, QuoteRecord{Price: 0.01}.HasValidPrice())
	require.False(t, QuoteRecord{Price: 0}.HasValidPrice())
	require.False(t, QuoteRecord{Price: -3}.HasValidPrice())
	require.False(t, QuoteRecord{Price: math.NaN()}.HasValidPrice())
	require.False(t, QuoteRecord{Price: math.Inf(1)}.HasValidPrice())
}

func TestDefaultRecord(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)
	rec := DefaultRecord("AAPL", QuoteRecord{Price: 100, Currency: "USD"}, now)
	require.Equal(t, "AAPL", rec.Ticker)
	require.True(t, rec.IsDefault)
	require.Equal(t, SourceDefaultFallback, rec.Source)
	require.Equal(t, "2025-07-01T09:30:00Z", rec.LastUpdated)
	require.Equal(t, 100.0, rec.Price)
}

func TestValidatePair(t *testing.T) {
	t.Parallel()
	require.True(t, ValidatePair("USD-JPY"))
	require.False(t, ValidatePair("USD-USD"))
	require.False(t, ValidatePair("usd-jpy"))
	require.False(t, ValidatePair("USDJPY"))

	base, target, ok := SplitPair("EUR-USD")
	require.True(t, ok)
	require.Equal(t, "EUR", base)
	require.Equal(t, "USD", target)
	_, _, ok = SplitPair("EURUSD")
	require.False(t, ok)
}

func TestDayKey(t *testing.T) {
	t.Parallel()
	// Late evening in UTC-5 is already the next UTC day.
	est := time.FixedZone("EST", -5*3600)
	require.Equal(t, "2025-07-02", DayKey(time.Date(2025, 7, 1, 23, 0, 0, 0, est)))
}

func TestSnapshotPartitionAndPut(t *testing.T) {
	t.Parallel()
	snap := EmptySnapshot()
	snap.Put(DataTypeUSStock, "AAPL", QuoteRecord{Ticker: "AAPL"})
	snap.Put(DataTypeJPStock, "7203", QuoteRecord{Ticker: "7203"})
	snap.Put(DataTypeETF, "VTI", QuoteRecord{Ticker: "VTI"})
	snap.Put(DataTypeMutualFund, "X1", QuoteRecord{Ticker: "X1"})
	snap.Put(DataTypeExchangeRate, "USD-JPY", QuoteRecord{Ticker: "USD-JPY"})

	// US and JP stocks share a partition.
	require.Len(t, snap.Stocks, 2)
	require.Len(t, snap.Partition(DataTypeJPStock), 2)
	require.Len(t, snap.ETFs, 1)
	require.Len(t, snap.MutualFunds, 1)
	require.Len(t, snap.ExchangeRates, 1)
	require.Equal(t, 5, snap.Size())
}

func TestSnapshotClone_Independent(t *testing.T) {
	t.Parallel()
	snap := EmptySnapshot()
	snap.Put(DataTypeUSStock, "AAPL", QuoteRecord{Ticker: "AAPL"})
	cp := snap.Clone()
	cp.Put(DataTypeUSStock, "MSFT", QuoteRecord{Ticker: "MSFT"})
	require.Len(t, snap.Stocks, 1)
	require.Len(t, cp.Stocks, 2)
}
