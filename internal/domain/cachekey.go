package domain

import (
	"sort"
	"strings"
)

// CacheKey returns the cache key for a single symbol: "TYPE:SYMBOL".
func CacheKey(dt DataType, symbol string) string {
	return string(dt) + ":" + symbol
}

// CacheKeyForSymbols returns one key for a whole symbol set. The list is
// sorted before joining so that key generation is order-independent.
func CacheKeyForSymbols(dt DataType, symbols []string) string {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	return string(dt) + ":" + strings.Join(sorted, ",")
}

// CacheKeyForPair returns the key for a currency pair: "TYPE:BASE-TARGET".
func CacheKeyForPair(dt DataType, base, target string) string {
	return string(dt) + ":" + base + "-" + target
}
