package github

import (
	"embed"
	"encoding/json"

	"marketdata-service/internal/domain"
)

//go:embed bundled/*.json
var bundledFS embed.FS

// Bundled returns the snapshot shipped with the binary, used as a
// non-production fallback when the remote store is unreachable and no
// stale in-memory copy exists.
func Bundled() domain.FallbackSnapshot {
	snap := domain.EmptySnapshot()
	for file, part := range map[string]*map[string]domain.QuoteRecord{
		"bundled/" + fileStocks:        &snap.Stocks,
		"bundled/" + fileETFs:          &snap.ETFs,
		"bundled/" + fileMutualFunds:   &snap.MutualFunds,
		"bundled/" + fileExchangeRates: &snap.ExchangeRates,
	} {
		raw, err := bundledFS.ReadFile(file)
		if err != nil {
			continue
		}
		m := map[string]domain.QuoteRecord{}
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		*part = m
	}
	return snap
}
