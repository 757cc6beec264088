package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultFinnhubURL is the Finnhub REST base URL.
	DefaultFinnhubURL = "https://finnhub.io/api/v1"
	// DefaultTimeout bounds every upstream request.
	DefaultTimeout = 10 * time.Second
)

// FinnhubFetcher implements Source using the Finnhub REST API.
type FinnhubFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewFinnhubFetcher creates a fetcher with optional proxy support.
func NewFinnhubFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration) *FinnhubFetcher {
	if baseURL == "" {
		baseURL = DefaultFinnhubURL
	}
	return &FinnhubFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (f *FinnhubFetcher) Name() string { return "finnhub" }

// GetSymbols returns the exchange symbol list. Transport and decode
// failures are returned because nothing can be ingested without the list.
func (f *FinnhubFetcher) GetSymbols(ctx context.Context, exchange string) ([]SymbolRecord, error) {
	body, err := f.get(ctx, "/stock/symbol", url.Values{"exchange": {exchange}})
	if err != nil {
		log.Error().Err(err).Str("exchange", exchange).Msg("failed to fetch symbols from finnhub")
		return nil, fmt.Errorf("fetch symbols: %w", err)
	}
	if isEmptyBody(body) {
		return []SymbolRecord{}, nil
	}
	var symbols []SymbolRecord
	if err := json.Unmarshal(body, &symbols); err != nil {
		return nil, fmt.Errorf("decode symbols: %w", err)
	}
	return symbols, nil
}

// GetCandles returns the candle series, or false when the payload has no close
// prices or the request failed.
func (f *FinnhubFetcher) GetCandles(ctx context.Context, symbol, resolution string, from, to int64) (*CandleSeries, bool) {
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {resolution},
		"from":       {strconv.FormatInt(from, 10)},
		"to":         {strconv.FormatInt(to, 10)},
	}
	var series CandleSeries
	if !f.getJSON(ctx, "/stock/candle", params, &series, symbol, "candles") {
		return nil, false
	}
	if series.Close == nil || series.Status == "no_data" {
		return nil, false
	}
	return &series, true
}

// GetBasicFinancials returns all basic metrics for symbol.
func (f *FinnhubFetcher) GetBasicFinancials(ctx context.Context, symbol string) (*Financials, bool) {
	var fin Financials
	if !f.getJSON(ctx, "/stock/metric", url.Values{"symbol": {symbol}, "metric": {"all"}}, &fin, symbol, "basic financials") {
		return nil, false
	}
	return &fin, true
}

// GetQuote returns the latest quote, or false when the current price is missing.
func (f *FinnhubFetcher) GetQuote(ctx context.Context, symbol string) (*Quote, bool) {
	var q Quote
	if !f.getJSON(ctx, "/quote", url.Values{"symbol": {symbol}}, &q, symbol, "quote") {
		return nil, false
	}
	if q.Current == 0 {
		return nil, false
	}
	return &q, true
}

// GetCompanyProfile returns the company profile, or false for unknown tickers.
func (f *FinnhubFetcher) GetCompanyProfile(ctx context.Context, symbol string) (*CompanyProfile, bool) {
	var p CompanyProfile
	if !f.getJSON(ctx, "/stock/profile2", url.Values{"symbol": {symbol}}, &p, symbol, "company profile") {
		return nil, false
	}
	if p.Ticker == "" {
		return nil, false
	}
	return &p, true
}

// getJSON decodes the response into dst. Failures are logged and reported as false.
func (f *FinnhubFetcher) getJSON(ctx context.Context, path string, params url.Values, dst any, symbol, what string) bool {
	body, err := f.get(ctx, path, params)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msgf("failed to fetch %s", what)
		return false
	}
	if isEmptyBody(body) {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msgf("failed to decode %s", what)
		return false
	}
	return true
}

func (f *FinnhubFetcher) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("token", f.APIKey)
	endpoint := fmt.Sprintf("%s%s?%s", f.BaseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("finnhub %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("finnhub %s read body: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Endpoint: path, Body: string(body)}
	}
	return body, nil
}

// APIError is a non-200 upstream response.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream %s: status %d, body: %s", e.Endpoint, e.StatusCode, e.Body)
}

func isEmptyBody(body []byte) bool {
	b := bytes.TrimSpace(body)
	return len(b) == 0 || bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte("{}"))
}

func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
