package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

	require.NoError(t, Seed(ctx, s, DemoInstruments, now))
	// Second run must not duplicate anything.
	require.NoError(t, Seed(ctx, s, DemoInstruments, now))

	n, err := s.CountInstruments(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, len(DemoInstruments), n)

	n, err = s.CountInstrumentsWithPE(ctx, Filter{Sector: "Finance"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	inst, err := s.FindInstrumentBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, inst.Industry)
	assert.Equal(t, "Consumer Electronics", *inst.Industry)
	require.NotNil(t, inst.MarketCap)
	assert.Equal(t, int64(2_800_000), *inst.MarketCap)

	got, err := s.RecentBars(ctx, BarsQuery{Filter: Filter{Industry: "Software"}, N: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Bars, 2)
	assert.Equal(t, 410.2, got[0].Bars[0].Close)
	assert.Equal(t, "2025-03-13", got[0].Bars[1].Date.Format(time.DateOnly))
}
