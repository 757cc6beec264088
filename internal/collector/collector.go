package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Price source names accepted by NewCandleSource.
const (
	PriceSourceFinnhub      = "finnhub"
	PriceSourceAlphaVantage = "alphavantage"
)

// NewCandleSource picks the candle provider for price ingestion. Finnhub is
// used unless Alpha Vantage is requested and has an API key.
func NewCandleSource(name string, finnhub *FinnhubFetcher, av *AlphaVantageFetcher) (CandleSource, error) {
	switch strings.ToLower(name) {
	case "", PriceSourceFinnhub:
		return finnhub, nil
	case PriceSourceAlphaVantage:
		if av == nil || av.APIKey == "" {
			log.Warn().Msg("alpha vantage requested without api key, falling back to finnhub")
			return finnhub, nil
		}
		return av, nil
	default:
		return nil, fmt.Errorf("unknown price source %q", name)
	}
}

// MockSource serves fixed data for development and tests.
type MockSource struct {
	Symbols      []SymbolRecord
	Financials   map[string]*Financials
	Profiles     map[string]*CompanyProfile
	Quotes       map[string]*Quote
	Candles      map[string]*CandleSeries
	SymbolsError error
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) GetSymbols(_ context.Context, _ string) ([]SymbolRecord, error) {
	if m.SymbolsError != nil {
		return nil, m.SymbolsError
	}
	return m.Symbols, nil
}

func (m *MockSource) GetCandles(_ context.Context, symbol, _ string, _, _ int64) (*CandleSeries, bool) {
	c, ok := m.Candles[symbol]
	return c, ok && c.Len() > 0
}

func (m *MockSource) GetBasicFinancials(_ context.Context, symbol string) (*Financials, bool) {
	f, ok := m.Financials[symbol]
	return f, ok
}

func (m *MockSource) GetCompanyProfile(_ context.Context, symbol string) (*CompanyProfile, bool) {
	p, ok := m.Profiles[symbol]
	return p, ok
}

func (m *MockSource) GetQuote(_ context.Context, symbol string) (*Quote, bool) {
	q, ok := m.Quotes[symbol]
	return q, ok
}

// GenerateMockCandles builds count daily candles ending yesterday, drifting
// around basePrice.
func GenerateMockCandles(basePrice float64, count int) *CandleSeries {
	c := &CandleSeries{Status: "ok"}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		c.Open = append(c.Open, p*0.999)
		c.High = append(c.High, p*1.005)
		c.Low = append(c.Low, p*0.995)
		c.Close = append(c.Close, p)
		c.Volume = append(c.Volume, 1000000)
		c.Timestamp = append(c.Timestamp, today.AddDate(0, 0, -(count-i)).Unix())
	}
	return c
}
