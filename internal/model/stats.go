package model

import "time"

// Stage identifies one ETL pass.
type Stage string

const (
	StageSymbols      Stage = "SYMBOLS"
	StageFundamentals Stage = "FUNDAMENTALS"
	StagePrices       Stage = "PRICES"
	StageFull         Stage = "FULL"
)

// ETLStats holds the counters of a single stage (or full pipeline) invocation.
type ETLStats struct {
	Stage                 Stage     `json:"stage"`
	SymbolsProcessed      int       `json:"symbolsProcessed"`
	SymbolsCreated        int       `json:"symbolsCreated"`
	FundamentalsProcessed int       `json:"fundamentalsProcessed"`
	PricesProcessed       int       `json:"pricesProcessed"`
	Errors                int       `json:"errors"`
	StartTime             time.Time `json:"startTime"`
	EndTime               time.Time `json:"endTime"`
}

// Duration returns the wall time of the run.
func (s ETLStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Merge adds the counters of other into s and widens the time range.
func (s ETLStats) Merge(other ETLStats) ETLStats {
	s.SymbolsProcessed += other.SymbolsProcessed
	s.SymbolsCreated += other.SymbolsCreated
	s.FundamentalsProcessed += other.FundamentalsProcessed
	s.PricesProcessed += other.PricesProcessed
	s.Errors += other.Errors
	if s.StartTime.IsZero() || (!other.StartTime.IsZero() && other.StartTime.Before(s.StartTime)) {
		s.StartTime = other.StartTime
	}
	if other.EndTime.After(s.EndTime) {
		s.EndTime = other.EndTime
	}
	return s
}
