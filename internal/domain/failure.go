package domain

import "time"

// FailureRecord is one durably recorded exhaustive fetch failure.
type FailureRecord struct {
	Symbol     string
	DataType   DataType
	Reason     string
	OccurredAt time.Time
	DateKey    string
}

// DayKey buckets a timestamp into its UTC day, the granularity used for
// failure statistics and export candidate selection.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// FailureStats summarizes recorded failures over a query window.
type FailureStats struct {
	TotalFailures     int                      `json:"totalFailures"`
	ByDate            map[string]DailyFailures `json:"byDate"`
	ByType            map[string]int           `json:"byType"`
	MostFailedSymbols []SymbolFailures         `json:"mostFailedSymbols"`
}

type DailyFailures struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"byType"`
}

type SymbolFailures struct {
	Symbol   string `json:"symbol"`
	Failures int    `json:"failures"`
}
