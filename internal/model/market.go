package model

import "time"

// Instrument is a tracked equity identified by its ticker symbol.
type Instrument struct {
	ID        string
	Symbol    string
	Name      string
	Sector    *string
	Industry  *string
	MarketCap *int64 // millions
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InstrumentRef is the minimal projection the ETL stages iterate over.
type InstrumentRef struct {
	ID     string
	Symbol string
}

// PERatio is a daily price-to-earnings observation.
type PERatio struct {
	ID           string
	InstrumentID string
	Ratio        float64
	Date         time.Time
}

// PriceBar is a daily OHLCV record.
type PriceBar struct {
	ID           string
	InstrumentID string
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       int64
	Date         time.Time
}

// DayBucket truncates t to midnight UTC, the key used for P/E and price rows.
func DayBucket(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
