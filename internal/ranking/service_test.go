package ranking

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockLens/internal/model"
	"StockLens/internal/store"
)

// countingReader wraps a Reader and counts calls.
type countingReader struct {
	store.Reader
	calls int
}

func (c *countingReader) CountInstruments(ctx context.Context, f store.Filter) (int, error) {
	c.calls++
	return c.Reader.CountInstruments(ctx, f)
}

func (c *countingReader) CountInstrumentsWithPE(ctx context.Context, f store.Filter) (int, error) {
	c.calls++
	return c.Reader.CountInstrumentsWithPE(ctx, f)
}

func (c *countingReader) LatestPERatios(ctx context.Context, q store.PEQuery) ([]model.InstrumentPE, error) {
	c.calls++
	return c.Reader.LatestPERatios(ctx, q)
}

func (c *countingReader) RecentBars(ctx context.Context, q store.BarsQuery) ([]model.InstrumentBars, error) {
	c.calls++
	return c.Reader.RecentBars(ctx, q)
}

// mapCache is an in-memory cache.Cache.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (m *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *mapCache) Invalidate(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *mapCache) Close() error { return nil }

type fixture struct {
	t     *testing.T
	store *store.SQLiteStore
	today time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "ranking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &fixture{t: t, store: s, today: model.DayBucket(time.Now())}
}

func (f *fixture) instrument(symbol, name, sector string) *model.Instrument {
	f.t.Helper()
	inst := &model.Instrument{Symbol: symbol, Name: name}
	if sector != "" {
		inst.Sector = &sector
	}
	require.NoError(f.t, f.store.CreateInstrument(context.Background(), inst))
	return inst
}

func (f *fixture) pe(inst *model.Instrument, ratio float64) {
	f.t.Helper()
	require.NoError(f.t, f.store.CreatePERatio(context.Background(), &model.PERatio{InstrumentID: inst.ID, Ratio: ratio, Date: f.today}))
}

// closes stores bars oldest first ending today.
func (f *fixture) closes(inst *model.Instrument, closes ...float64) {
	f.t.Helper()
	for i, c := range closes {
		day := f.today.AddDate(0, 0, i-len(closes)+1)
		require.NoError(f.t, f.store.UpsertPriceBar(context.Background(), &model.PriceBar{InstrumentID: inst.ID, Close: c, Date: day}))
	}
}

func symbols[T any](rows []T, get func(T) string) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = get(r)
	}
	return out
}

func peSymbols(rows []model.PERow) []string {
	return symbols(rows, func(r model.PERow) string { return r.Symbol })
}

func declineSymbols(rows []model.DeclineRow) []string {
	return symbols(rows, func(r model.DeclineRow) string { return r.Symbol })
}

func TestInvalidParamsNeverReachTheStore(t *testing.T) {
	f := newFixture(t)
	reader := &countingReader{Reader: f.store}
	svc := NewService(reader, nil, PagingGlobal, 0)

	cases := []Params{
		{Page: 0, Limit: 10},
		{Page: 1, Limit: 0},
		{Page: 1, Limit: 101},
		{Page: MaxPage + 1, Limit: 10},
		{Page: 92233720368547760, Limit: 100},
		{Page: 1, Limit: 10, SortBy: "marketCap"},
		{Page: 1, Limit: 10, SortOrder: "sideways"},
	}
	for _, p := range cases {
		_, err := svc.LowestPE(context.Background(), p)
		assert.ErrorIs(t, err, ErrInvalidParams, "%+v", p)
		_, err = svc.LargestDeclines(context.Background(), p)
		assert.ErrorIs(t, err, ErrInvalidParams, "%+v", p)
	}

	_, err := svc.LowestPE(context.Background(), Params{Page: 1, Limit: 10, SortBy: SortPriceChange})
	assert.ErrorIs(t, err, ErrInvalidParams, "priceChange is not a P/E sort key")

	assert.Zero(t, reader.calls)
}

func TestSortOrderIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	a := f.instrument("A", "Alpha", "")
	b := f.instrument("B", "Beta", "")
	f.pe(a, 15.3)
	f.pe(b, 25.5)
	svc := NewService(f.store, nil, PagingGlobal, 0)

	page, err := svc.LowestPE(context.Background(), Params{Page: 1, Limit: 10, SortOrder: "DESC"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, peSymbols(page.Data))
}

func TestLowestPE(t *testing.T) {
	for _, paging := range []Paging{PagingGlobal, PagingWindow} {
		t.Run(string(paging), func(t *testing.T) {
			f := newFixture(t)
			a := f.instrument("A", "Alpha", "Tech")
			b := f.instrument("B", "Beta", "Tech")
			c := f.instrument("C", "Gamma", "Energy")
			f.instrument("D", "Delta", "Tech")
			f.pe(a, 15.3)
			f.pe(b, 25.5)
			f.pe(c, 5)
			svc := NewService(f.store, nil, paging, 0)
			ctx := context.Background()

			asc, err := svc.LowestPE(ctx, Params{Page: 1, Limit: 25, Sector: "Tech"})
			require.NoError(t, err)
			assert.Equal(t, []string{"A", "B"}, peSymbols(asc.Data), "unobserved D is excluded")
			assert.Equal(t, 15.3, asc.Data[0].PERatio)

			desc, err := svc.LowestPE(ctx, Params{Page: 1, Limit: 25, SortOrder: SortDesc, Sector: "Tech"})
			require.NoError(t, err)
			assert.Equal(t, []string{"B", "A"}, peSymbols(desc.Data))

			byName, err := svc.LowestPE(ctx, Params{Page: 1, Limit: 25, SortBy: SortName})
			require.NoError(t, err)
			assert.Equal(t, []string{"A", "B", "C"}, peSymbols(byName.Data))

			none, err := svc.LowestPE(ctx, Params{Page: 1, Limit: 25, Sector: "Utilities"})
			require.NoError(t, err)
			assert.Empty(t, none.Data)
			assert.Equal(t, 0, none.Pagination.TotalPages)
		})
	}
}

func TestLowestPE_Totals(t *testing.T) {
	f := newFixture(t)
	for _, sym := range []string{"A", "B", "C", "D", "E"} {
		inst := f.instrument(sym, sym, "")
		if sym != "E" {
			f.pe(inst, float64(len(sym))+float64(sym[0]))
		}
	}
	ctx := context.Background()

	global, err := NewService(f.store, nil, PagingGlobal, 0).LowestPE(ctx, Params{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, model.Pagination{Page: 2, Limit: 3, Total: 4, TotalPages: 2}, global.Pagination)
	assert.Len(t, global.Data, 1)

	window, err := NewService(f.store, nil, PagingWindow, 0).LowestPE(ctx, Params{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, window.Pagination.Total, "window total counts every filtered instrument")
	assert.Equal(t, 2, window.Pagination.TotalPages)
	assert.LessOrEqual(t, len(window.Data), 3)
}

func TestLargestDeclines_Ordering(t *testing.T) {
	f := newFixture(t)
	f.closes(f.instrument("AAA", "Alpha", ""), 155, 150)
	f.closes(f.instrument("BBB", "Beta", ""), 310, 300)
	f.closes(f.instrument("CCC", "Gamma", ""), 100, 90)
	f.closes(f.instrument("DDD", "Delta", ""), 100, 120)
	f.closes(f.instrument("EEE", "Epsilon", ""), 50) // single bar
	svc := NewService(f.store, nil, PagingGlobal, 0)
	ctx := context.Background()

	page, err := svc.LargestDeclines(ctx, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, []string{"CCC", "AAA", "BBB", "DDD"}, declineSymbols(page.Data))
	assert.InDelta(t, -3.2258, page.Data[1].PriceChange, 1e-4)
	assert.InDelta(t, page.Data[1].PriceChange, page.Data[2].PriceChange, 1e-12)
	assert.Equal(t, 4, page.Pagination.Total, "single-bar instrument is not ranked")

	desc, err := svc.LargestDeclines(ctx, Params{Page: 1, Limit: 25, SortOrder: SortDesc})
	require.NoError(t, err)
	assert.Equal(t, "DDD", desc.Data[0].Symbol)

	bySymbol, err := svc.LargestDeclines(ctx, Params{Page: 1, Limit: 2, SortBy: SortSymbol, SortOrder: SortDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"DDD", "CCC"}, declineSymbols(bySymbol.Data))
	assert.Equal(t, 2, bySymbol.Pagination.TotalPages)
}

// In window mode the page is cut before derivation, so instruments without
// enough bars leave holes and ordering only holds inside the window.
func TestLargestDeclines_PagingPolicies(t *testing.T) {
	f := newFixture(t)
	f.closes(f.instrument("A", "A", ""), 100, 99)  // -1%
	f.instrument("B", "B", "")                     // no bars
	f.closes(f.instrument("C", "C", ""), 100, 50)  // -50%
	f.closes(f.instrument("D", "D", ""), 100, 80)  // -20%
	f.closes(f.instrument("E", "E", ""), 100, 110) // +10%
	ctx := context.Background()
	p := Params{Page: 1, Limit: 2}

	global, err := NewService(f.store, nil, PagingGlobal, 0).LargestDeclines(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, declineSymbols(global.Data), "globally correct top two")
	assert.Equal(t, model.Pagination{Page: 1, Limit: 2, Total: 4, TotalPages: 2}, global.Pagination)

	window, err := NewService(f.store, nil, PagingWindow, 0).LargestDeclines(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, declineSymbols(window.Data), "window holds A and B, B has no bars")
	assert.Equal(t, model.Pagination{Page: 1, Limit: 2, Total: 5, TotalPages: 3}, window.Pagination)

	window2, err := NewService(f.store, nil, PagingWindow, 0).LargestDeclines(ctx, Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, declineSymbols(window2.Data), "sorted within the window")

	beyond, err := NewService(f.store, nil, PagingGlobal, 0).LargestDeclines(ctx, Params{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Data)
	assert.Equal(t, 4, beyond.Pagination.Total)
}

func TestLargestDeclines_SectorFilter(t *testing.T) {
	f := newFixture(t)
	f.closes(f.instrument("JPM", "JPMorgan", "Financial Services"), 200, 190)
	f.closes(f.instrument("AAPL", "Apple", "Technology"), 200, 150)

	page, err := NewService(f.store, nil, PagingGlobal, 0).LargestDeclines(context.Background(),
		Params{Page: 1, Limit: 10, Sector: "Financial Services"})
	require.NoError(t, err)
	assert.Equal(t, []string{"JPM"}, declineSymbols(page.Data))
}

func TestPagesAreCached(t *testing.T) {
	f := newFixture(t)
	f.pe(f.instrument("A", "Alpha", ""), 10)
	reader := &countingReader{Reader: f.store}
	c := newMapCache()
	svc := NewService(reader, c, PagingGlobal, time.Minute)
	ctx := context.Background()

	first, err := svc.LowestPE(ctx, DefaultParams())
	require.NoError(t, err)
	calls := reader.calls
	require.Positive(t, calls)

	second, err := svc.LowestPE(ctx, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, calls, reader.calls, "served from cache")
	assert.Equal(t, first, second)

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.LowestPE(ctx, DefaultParams())
	require.NoError(t, err)
	assert.Greater(t, reader.calls, calls)
}

func TestLastAllowedPage(t *testing.T) {
	f := newFixture(t)
	a := f.instrument("A", "Alpha", "")
	f.pe(a, 12)
	f.closes(a, 100, 90)

	for _, paging := range []Paging{PagingGlobal, PagingWindow} {
		svc := NewService(f.store, nil, paging, 0)
		p := Params{Page: MaxPage, Limit: MaxLimit}

		pe, err := svc.LowestPE(context.Background(), p)
		require.NoError(t, err)
		assert.Empty(t, pe.Data, paging)
		assert.Equal(t, MaxPage, pe.Pagination.Page)

		dec, err := svc.LargestDeclines(context.Background(), p)
		require.NoError(t, err)
		assert.Empty(t, dec.Data, paging)
	}
}

func TestPageSliceOutOfRange(t *testing.T) {
	rows := []int{1, 2, 3}
	assert.Empty(t, pageSlice(rows, -1, 2))
	assert.Empty(t, pageSlice(rows, 3, 2))
	assert.Equal(t, []int{3}, pageSlice(rows, 2, 2))
}

func TestCacheKeyKeepsFiltersApart(t *testing.T) {
	a := cacheKey("low-pe", Params{Page: 1, Limit: 10, Sector: "a:", Industry: "b"})
	b := cacheKey("low-pe", Params{Page: 1, Limit: 10, Sector: "a", Industry: ":b"})
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, CachePrefix))
}

func TestPaginationMath(t *testing.T) {
	assert.Equal(t, 3, model.NewPagination(1, 10, 21).TotalPages)
	assert.Equal(t, 2, model.NewPagination(1, 10, 20).TotalPages)
	assert.Equal(t, 0, model.NewPagination(1, 10, 0).TotalPages)
	assert.Equal(t, 40, Params{Page: 3, Limit: 20}.Offset())
}
