package domain

import (
	"fmt"
	"strings"
)

// DataType classifies quotes for cache keying, failure bucketing and
// fallback-snapshot partitioning.
type DataType string

const (
	DataTypeUSStock      DataType = "US_STOCK"
	DataTypeJPStock      DataType = "JP_STOCK"
	DataTypeETF          DataType = "ETF"
	DataTypeMutualFund   DataType = "MUTUAL_FUND"
	DataTypeExchangeRate DataType = "EXCHANGE_RATE"
)

// ParseDataType accepts both the canonical form ("US_STOCK") and the
// kebab-case form ("us-stock") used by older clients.
func ParseDataType(s string) (DataType, error) {
	canon := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	switch dt := DataType(canon); dt {
	case DataTypeUSStock, DataTypeJPStock, DataTypeETF, DataTypeMutualFund, DataTypeExchangeRate:
		return dt, nil
	}
	return "", fmt.Errorf("unknown data type %q", s)
}
