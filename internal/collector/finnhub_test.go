package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFinnhub(t *testing.T, handler http.HandlerFunc) *FinnhubFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFinnhubFetcher(srv.URL, "test-key", "", time.Second)
}

func TestGetSymbols(t *testing.T) {
	f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/symbol", r.URL.Path)
		assert.Equal(t, "US", r.URL.Query().Get("exchange"))
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		w.Write([]byte(`[
			{"symbol":"AAPL","description":"APPLE INC","displaySymbol":"AAPL","type":"Common Stock"},
			{"symbol":"SPY","description":"SPDR S&P 500","displaySymbol":"SPY","type":"ETP"}
		]`))
	})

	symbols, err := f.GetSymbols(context.Background(), "US")
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	assert.True(t, symbols[0].IsCommonStock())
	assert.False(t, symbols[1].IsCommonStock())
}

func TestGetSymbols_EmptyBody(t *testing.T) {
	f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {})

	symbols, err := f.GetSymbols(context.Background(), "US")
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestGetSymbols_UpstreamError(t *testing.T) {
	f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "API limit reached", http.StatusTooManyRequests)
	})

	_, err := f.GetSymbols(context.Background(), "US")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestGetCandles(t *testing.T) {
	f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "D", r.URL.Query().Get("resolution"))
		assert.Equal(t, "100", r.URL.Query().Get("from"))
		assert.Equal(t, "200", r.URL.Query().Get("to"))
		w.Write([]byte(`{"o":[1,2],"h":[3,4],"l":[0.5,1],"c":[2,3],"v":[10,20],"t":[100,186500],"s":"ok"}`))
	})

	series, ok := f.GetCandles(context.Background(), "AAPL", "D", 100, 200)
	require.True(t, ok)
	assert.Equal(t, 2, series.Len())
	assert.Equal(t, []float64{2, 3}, series.Close)
}

func TestGetCandles_Absent(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"no data", http.StatusOK, `{"s":"no_data"}`},
		{"missing close", http.StatusOK, `{"o":[1],"s":"ok"}`},
		{"server error", http.StatusInternalServerError, `oops`},
		{"empty object", http.StatusOK, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.payload))
			})
			series, ok := f.GetCandles(context.Background(), "AAPL", "D", 0, 1)
			assert.False(t, ok)
			assert.Nil(t, series)
		})
	}
}

func TestGetBasicFinancials(t *testing.T) {
	f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/metric", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("metric"))
		w.Write([]byte(`{"symbol":"AAPL","metricType":"all","metric":{"10P":28.4,"P/E":null,"marketCapitalization":2800000000000}}`))
	})

	fin, ok := f.GetBasicFinancials(context.Background(), "AAPL")
	require.True(t, ok)

	pe, ok := fin.Float("10P")
	require.True(t, ok)
	assert.InDelta(t, 28.4, pe, 1e-9)

	_, ok = fin.Float("P/E")
	assert.False(t, ok, "null metric is not a number")

	_, ok = fin.Float("missing")
	assert.False(t, ok)
}

func TestGetQuote_ZeroPriceIsAbsent(t *testing.T) {
	f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c":0,"h":0,"l":0,"o":0,"pc":0,"t":0}`))
	})

	_, ok := f.GetQuote(context.Background(), "NOPE")
	assert.False(t, ok)
}

func TestGetCompanyProfile(t *testing.T) {
	f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "AAPL" {
			w.Write([]byte(`{"ticker":"AAPL","name":"Apple Inc","finnhubIndustry":"Technology"}`))
			return
		}
		w.Write([]byte(`{}`))
	})

	p, ok := f.GetCompanyProfile(context.Background(), "AAPL")
	require.True(t, ok)
	assert.Equal(t, "Technology", p.FinnhubIndustry)

	_, ok = f.GetCompanyProfile(context.Background(), "ZZZZ")
	assert.False(t, ok)
}
