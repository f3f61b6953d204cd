package bootstrap

import (
	"marketdata-service/internal/application"
	"marketdata-service/internal/config"
	"marketdata-service/internal/domain"
	"marketdata-service/internal/infrastructure/provider"
)

// sourceRegistry maps each data type to its ordered fallback chain. The
// chains are deliberately thin: providers are opaque fetch functions to
// the orchestrator, and deployments swap them via configuration. The fake
// chain keeps non-FX types servable in local deployments until real quote
// adapters are configured.
func sourceRegistry(cfg config.Config) map[domain.DataType][]application.SourceFetcher {
	placeholder := []application.SourceFetcher{provider.NewFake(1.2345)}
	return map[domain.DataType][]application.SourceFetcher{
		domain.DataTypeUSStock:      placeholder,
		domain.DataTypeJPStock:      placeholder,
		domain.DataTypeETF:          placeholder,
		domain.DataTypeMutualFund:   placeholder,
		domain.DataTypeExchangeRate: {ProvideExchangeRateSource(cfg)},
	}
}

func defaultRegistry() map[domain.DataType]domain.QuoteRecord {
	return map[domain.DataType]domain.QuoteRecord{
		domain.DataTypeUSStock:      {Currency: "USD", Name: "Unknown US Stock"},
		domain.DataTypeJPStock:      {Currency: "JPY", Name: "Unknown JP Stock"},
		domain.DataTypeETF:          {Currency: "USD", Name: "Unknown ETF"},
		domain.DataTypeMutualFund:   {Currency: "JPY", Name: "Unknown Mutual Fund"},
		domain.DataTypeExchangeRate: {Currency: "", Name: "Unknown Pair"},
	}
}

func fetchOptions(cfg config.Config) func(domain.DataType) application.FetchOptions {
	return func(domain.DataType) application.FetchOptions {
		return application.FetchOptions{
			CacheTTL:        cfg.CacheTTL,
			BatchSize:       cfg.BatchSize,
			InterBatchDelay: cfg.InterBatchDelay,
		}
	}
}
