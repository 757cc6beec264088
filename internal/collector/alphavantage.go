package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultAlphaVantageURL is the Alpha Vantage query endpoint.
const DefaultAlphaVantageURL = "https://www.alphavantage.co/query"

// AlphaVantageFetcher reads daily series and quotes from Alpha Vantage.
// It implements CandleSource so it can replace Finnhub for price ingestion.
type AlphaVantageFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewAlphaVantageFetcher creates a fetcher with optional proxy support.
func NewAlphaVantageFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration) *AlphaVantageFetcher {
	if baseURL == "" {
		baseURL = DefaultAlphaVantageURL
	}
	return &AlphaVantageFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (f *AlphaVantageFetcher) Name() string { return "alphavantage" }

// DailyBar is one day of TIME_SERIES_DAILY. Every value arrives as a string.
type DailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// GlobalQuote is the GLOBAL_QUOTE payload.
type GlobalQuote struct {
	Symbol string `json:"01. symbol"`
	Open   string `json:"02. open"`
	High   string `json:"03. high"`
	Low    string `json:"04. low"`
	Price  string `json:"05. price"`
	Volume string `json:"06. volume"`
}

// GetDailyTimeSeries returns the daily series keyed by YYYY-MM-DD, or false when unavailable.
func (f *AlphaVantageFetcher) GetDailyTimeSeries(ctx context.Context, symbol, outputSize string) (map[string]DailyBar, bool) {
	var result struct {
		Series map[string]DailyBar `json:"Time Series (Daily)"`
	}
	params := url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {symbol},
		"outputsize": {outputSize},
	}
	if err := f.get(ctx, params, &result); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("failed to fetch daily time series")
		return nil, false
	}
	if len(result.Series) == 0 {
		return nil, false
	}
	return result.Series, true
}

// GetGlobalQuote returns the latest quote, or false when unavailable.
func (f *AlphaVantageFetcher) GetGlobalQuote(ctx context.Context, symbol string) (*GlobalQuote, bool) {
	var result struct {
		Quote *GlobalQuote `json:"Global Quote"`
	}
	params := url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {symbol}}
	if err := f.get(ctx, params, &result); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("failed to fetch global quote")
		return nil, false
	}
	if result.Quote == nil || result.Quote.Symbol == "" {
		return nil, false
	}
	return result.Quote, true
}

// GetCandles adapts the daily series to a CandleSeries within [from, to].
// Only daily resolution is supported.
func (f *AlphaVantageFetcher) GetCandles(ctx context.Context, symbol, resolution string, from, to int64) (*CandleSeries, bool) {
	if resolution != "D" {
		return nil, false
	}
	series, ok := f.GetDailyTimeSeries(ctx, symbol, "full")
	if !ok {
		return nil, false
	}
	return toCandles(series, from, to)
}

func toCandles(series map[string]DailyBar, from, to int64) (*CandleSeries, bool) {
	type point struct {
		ts  int64
		bar DailyBar
	}
	points := make([]point, 0, len(series))
	for day, bar := range series {
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		ts := t.Unix()
		if ts < from || ts > to {
			continue
		}
		points = append(points, point{ts: ts, bar: bar})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].ts < points[j].ts })

	c := &CandleSeries{Status: "ok"}
	for _, p := range points {
		o, err1 := strconv.ParseFloat(p.bar.Open, 64)
		h, err2 := strconv.ParseFloat(p.bar.High, 64)
		l, err3 := strconv.ParseFloat(p.bar.Low, 64)
		cl, err4 := strconv.ParseFloat(p.bar.Close, 64)
		v, err5 := strconv.ParseFloat(p.bar.Volume, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		c.Open = append(c.Open, o)
		c.High = append(c.High, h)
		c.Low = append(c.Low, l)
		c.Close = append(c.Close, cl)
		c.Volume = append(c.Volume, v)
		c.Timestamp = append(c.Timestamp, p.ts)
	}
	if len(c.Close) == 0 {
		return nil, false
	}
	return c, true
}

func (f *AlphaVantageFetcher) get(ctx context.Context, params url.Values, dst any) error {
	params.Set("apikey", f.APIKey)
	endpoint := f.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("alphavantage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Endpoint: params.Get("function"), Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("alphavantage decode: %w", err)
	}
	return nil
}
