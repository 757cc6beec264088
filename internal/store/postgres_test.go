package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockLens/internal/model"
)

func TestPostgres_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, PostgresConfig{URL: url, MaxConns: 4})
	require.NoError(t, err)
	defer s.Close()

	symbol := "T" + uuid.NewString()[:8]
	inst := &model.Instrument{Symbol: symbol, Name: "Postgres Test"}
	require.NoError(t, s.CreateInstrument(ctx, inst))

	found, err := s.FindInstrumentBySymbol(ctx, symbol)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, found.ID)

	require.NoError(t, s.CreatePERatio(ctx, &model.PERatio{InstrumentID: inst.ID, Ratio: 12, Date: today}))
	has, err := s.HasPERatio(ctx, inst.ID, today)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.UpsertPriceBar(ctx, &model.PriceBar{InstrumentID: inst.ID, Close: 1, Date: yesterday}))
	require.NoError(t, s.UpsertPriceBar(ctx, &model.PriceBar{InstrumentID: inst.ID, Close: 2, Date: today}))
	require.NoError(t, s.UpsertPriceBar(ctx, &model.PriceBar{InstrumentID: inst.ID, Close: 3, Date: today}))

	bars, err := s.RecentBars(ctx, BarsQuery{N: 2})
	require.NoError(t, err)
	for _, ib := range bars {
		if ib.Instrument.ID != inst.ID {
			continue
		}
		require.Len(t, ib.Bars, 2)
		assert.Equal(t, 3.0, ib.Bars[0].Close)
		assert.True(t, ib.Bars[0].Date.Equal(today))
	}
}
