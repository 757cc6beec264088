package collector

import (
	"encoding/json"
	"math"
)

// SymbolRecord is one entry of the exchange symbol list.
type SymbolRecord struct {
	Symbol        string `json:"symbol"`
	Description   string `json:"description"`
	DisplaySymbol string `json:"displaySymbol"`
	Type          string `json:"type"`
	MIC           string `json:"mic,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

// CommonStock is the instrument type kept by symbol ingestion.
const CommonStock = "Common Stock"

// IsCommonStock reports whether the record is a common equity with a display symbol.
func (s SymbolRecord) IsCommonStock() bool {
	return s.Type == CommonStock && s.DisplaySymbol != ""
}

// CandleSeries holds parallel OHLCV arrays as returned by the candle endpoint.
type CandleSeries struct {
	Open      []float64 `json:"o"`
	High      []float64 `json:"h"`
	Low       []float64 `json:"l"`
	Close     []float64 `json:"c"`
	Volume    []float64 `json:"v"`
	Timestamp []int64   `json:"t"`
	Status    string    `json:"s"`
}

// Len returns the number of complete points in the series.
func (c *CandleSeries) Len() int {
	if c == nil {
		return 0
	}
	n := len(c.Close)
	for _, l := range []int{len(c.Open), len(c.High), len(c.Low), len(c.Volume), len(c.Timestamp)} {
		if l < n {
			n = l
		}
	}
	return n
}

// Financials is the basic financials payload; Metric values are numbers or null.
type Financials struct {
	Symbol     string                     `json:"symbol"`
	MetricType string                     `json:"metricType"`
	Metric     map[string]json.RawMessage `json:"metric"`
}

// Float returns the numeric metric stored under key.
func (f *Financials) Float(key string) (float64, bool) {
	if f == nil || f.Metric == nil {
		return 0, false
	}
	raw, ok := f.Metric[key]
	if !ok {
		return 0, false
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil || v == nil || math.IsNaN(*v) {
		return 0, false
	}
	return *v, true
}

// Quote is the latest price snapshot.
type Quote struct {
	Current       float64 `json:"c"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// CompanyProfile is the company reference payload.
type CompanyProfile struct {
	Country              string  `json:"country"`
	Currency             string  `json:"currency"`
	Exchange             string  `json:"exchange"`
	FinnhubIndustry      string  `json:"finnhubIndustry"`
	IPO                  string  `json:"ipo"`
	Logo                 string  `json:"logo"`
	MarketCapitalization float64 `json:"marketCapitalization"`
	Name                 string  `json:"name"`
	Phone                string  `json:"phone"`
	ShareOutstanding     float64 `json:"shareOutstanding"`
	Ticker               string  `json:"ticker"`
	WebURL               string  `json:"weburl"`
}
