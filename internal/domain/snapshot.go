package domain

// FallbackSnapshot is the externally persisted last-known-good dataset,
// partitioned the way the external store lays it out.
type FallbackSnapshot struct {
	Stocks        map[string]QuoteRecord `json:"stocks"`
	ETFs          map[string]QuoteRecord `json:"etfs"`
	MutualFunds   map[string]QuoteRecord `json:"mutualFunds"`
	ExchangeRates map[string]QuoteRecord `json:"exchangeRates"`
}

func EmptySnapshot() FallbackSnapshot {
	return FallbackSnapshot{
		Stocks:        map[string]QuoteRecord{},
		ETFs:          map[string]QuoteRecord{},
		MutualFunds:   map[string]QuoteRecord{},
		ExchangeRates: map[string]QuoteRecord{},
	}
}

// Partition returns the partition holding records of the given type.
// Stock-like types (US, JP) share the stocks partition.
func (s *FallbackSnapshot) Partition(dt DataType) map[string]QuoteRecord {
	switch dt {
	case DataTypeETF:
		return s.ETFs
	case DataTypeMutualFund:
		return s.MutualFunds
	case DataTypeExchangeRate:
		return s.ExchangeRates
	default:
		return s.Stocks
	}
}

// Put stores rec in the partition for dt, allocating it if needed.
func (s *FallbackSnapshot) Put(dt DataType, symbol string, rec QuoteRecord) {
	switch dt {
	case DataTypeETF:
		if s.ETFs == nil {
			s.ETFs = map[string]QuoteRecord{}
		}
		s.ETFs[symbol] = rec
	case DataTypeMutualFund:
		if s.MutualFunds == nil {
			s.MutualFunds = map[string]QuoteRecord{}
		}
		s.MutualFunds[symbol] = rec
	case DataTypeExchangeRate:
		if s.ExchangeRates == nil {
			s.ExchangeRates = map[string]QuoteRecord{}
		}
		s.ExchangeRates[symbol] = rec
	default:
		if s.Stocks == nil {
			s.Stocks = map[string]QuoteRecord{}
		}
		s.Stocks[symbol] = rec
	}
}

// Size is the total record count across all partitions.
func (s FallbackSnapshot) Size() int {
	return len(s.Stocks) + len(s.ETFs) + len(s.MutualFunds) + len(s.ExchangeRates)
}

// Clone deep-copies the snapshot so refresh and export can mutate their own
// working copy.
func (s FallbackSnapshot) Clone() FallbackSnapshot {
	out := EmptySnapshot()
	for k, v := range s.Stocks {
		out.Stocks[k] = v
	}
	for k, v := range s.ETFs {
		out.ETFs[k] = v
	}
	for k, v := range s.MutualFunds {
		out.MutualFunds[k] = v
	}
	for k, v := range s.ExchangeRates {
		out.ExchangeRates[k] = v
	}
	return out
}
