package provider

import (
	"context"
	"time"

	"marketdata-service/internal/application"
	"marketdata-service/internal/domain"
)

// Ensure Fake implements application.SourceFetcher.
var _ application.SourceFetcher = (*Fake)(nil)

// Fake serves a fixed price for any symbol, for dev wiring and tests.
type Fake struct {
	price float64
}

func NewFake(price float64) *Fake { return &Fake{price: price} }

func (f *Fake) Fetch(_ context.Context, symbol string) (domain.QuoteRecord, error) {
	return domain.QuoteRecord{
		Ticker:      symbol,
		Price:       f.price,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}, nil
}
