package collector

import "context"

// SymbolSource lists the tradable symbols of an exchange.
type SymbolSource interface {
	GetSymbols(ctx context.Context, exchange string) ([]SymbolRecord, error)
}

// CandleSource returns a daily candle series, or false when no usable data exists.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol, resolution string, from, to int64) (*CandleSeries, bool)
}

// FundamentalsSource returns the basic financial metrics of a symbol.
type FundamentalsSource interface {
	GetBasicFinancials(ctx context.Context, symbol string) (*Financials, bool)
}

// ProfileSource returns company reference data.
type ProfileSource interface {
	GetCompanyProfile(ctx context.Context, symbol string) (*CompanyProfile, bool)
}

// QuoteSource returns the latest quote.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, bool)
}

// Source is everything the ETL pipeline reads from the upstream API.
type Source interface {
	SymbolSource
	CandleSource
	FundamentalsSource
	ProfileSource
	QuoteSource
	Name() string
}
