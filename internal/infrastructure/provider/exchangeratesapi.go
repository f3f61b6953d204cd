package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"marketdata-service/internal/application"
	"marketdata-service/internal/domain"
	"marketdata-service/internal/infrastructure/httpx"
)

const exchangeRatesLatestPath = "/v1/latest"

// ExchangeRatesAPIProvider fetches exchange-rate quotes for "BASE-TARGET"
// symbols. The free plan only serves EUR-based rates, so arbitrary pairs
// are derived as a cross rate.
type ExchangeRatesAPIProvider struct {
	BaseURL string
	APIKey  string
	Client  *httpx.Client
}

var _ application.SourceFetcher = (*ExchangeRatesAPIProvider)(nil)

type xrLatestResp struct {
	Success   bool               `json:"success"`
	Timestamp int64              `json:"timestamp"`
	Base      string             `json:"base"`
	Date      string             `json:"date"`
	Rates     map[string]float64 `json:"rates"`
	Error     *struct {
		Code int    `json:"code"`
		Info string `json:"info"`
	} `json:"error,omitempty"`
}

func (p *ExchangeRatesAPIProvider) Fetch(ctx context.Context, symbol string) (domain.QuoteRecord, error) {
	if p.BaseURL == "" || p.APIKey == "" {
		return domain.QuoteRecord{}, errors.New("exchangeratesapi: missing configuration")
	}

	baseCur, targetCur, ok := domain.SplitPair(symbol)
	if !ok {
		return domain.QuoteRecord{}, fmt.Errorf("invalid pair format: %s", symbol)
	}

	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return domain.QuoteRecord{}, fmt.Errorf("exchangeratesapi: invalid base url: %w", err)
	}
	u.Path = exchangeRatesLatestPath
	q := u.Query()
	q.Set("access_key", p.APIKey)
	q.Set("symbols", baseCur+","+targetCur)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.QuoteRecord{}, fmt.Errorf("exchangeratesapi: create request: %w", err)
	}

	client := p.Client
	if client == nil {
		client = &httpx.Client{}
	}
	var body xrLatestResp
	if err := client.DoJSON(ctx, req, &body); err != nil {
		return domain.QuoteRecord{}, fmt.Errorf("exchangeratesapi: do request: %w", err)
	}
	if !body.Success {
		if body.Error != nil {
			return domain.QuoteRecord{}, fmt.Errorf("exchangeratesapi: %d %s", body.Error.Code, body.Error.Info)
		}
		return domain.QuoteRecord{}, errors.New("exchangeratesapi: unsuccessful response")
	}

	apiTo := func(c string) (float64, error) {
		if c == body.Base {
			return 1.0, nil
		}
		v, ok := body.Rates[c]
		if !ok {
			return 0, fmt.Errorf("exchangeratesapi: missing rate for %s", c)
		}
		return v, nil
	}

	toBase, err := apiTo(baseCur)
	if err != nil {
		return domain.QuoteRecord{}, err
	}
	toTarget, err := apiTo(targetCur)
	if err != nil {
		return domain.QuoteRecord{}, err
	}

	var price float64
	switch {
	case baseCur == body.Base:
		price = toTarget
	case targetCur == body.Base:
		if toBase == 0 {
			return domain.QuoteRecord{}, errors.New("exchangeratesapi: zero rate for base currency")
		}
		price = 1.0 / toBase
	default:
		if toBase == 0 {
			return domain.QuoteRecord{}, errors.New("exchangeratesapi: zero rate for base currency")
		}
		price = toTarget / toBase
	}

	updatedAt := time.Now().UTC()
	if body.Timestamp > 0 {
		updatedAt = time.Unix(body.Timestamp, 0).UTC()
	}

	return domain.QuoteRecord{
		Ticker:      symbol,
		Price:       price,
		Currency:    targetCur,
		Name:        baseCur + "/" + targetCur,
		LastUpdated: updatedAt.Format(time.RFC3339),
	}, nil
}
