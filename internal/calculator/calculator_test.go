package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockLens/internal/model"
)

func bars(closes ...float64) []model.PriceBar {
	out := make([]model.PriceBar, len(closes))
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = model.PriceBar{Close: c, Date: day.AddDate(0, 0, -i)}
	}
	return out
}

func TestPriceChange(t *testing.T) {
	a, err := PriceChange(bars(150, 155))
	require.NoError(t, err)
	b, err := PriceChange(bars(300, 310))
	require.NoError(t, err)

	assert.InDelta(t, -3.2258, a, 1e-4)
	assert.InDelta(t, a, b, 1e-12, "same ratio gives same change")
}

func TestPriceChange_UsesTwoNewest(t *testing.T) {
	c, err := PriceChange(bars(110, 100, 1))
	require.NoError(t, err)
	assert.InDelta(t, 10.0, c, 1e-9)
}

func TestPriceChange_InsufficientData(t *testing.T) {
	_, err := PriceChange(bars(100))
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = PriceChange(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestPercentChange_ZeroBase(t *testing.T) {
	_, err := PercentChange(0, 10)
	assert.ErrorIs(t, err, ErrZeroBase)
}

func TestFirstNonZero(t *testing.T) {
	v, ok := FirstNonZero(0, 12.5, 8)
	require.True(t, ok)
	assert.Equal(t, 12.5, v)

	v, ok = FirstNonZero(-3, 12.5)
	require.True(t, ok)
	assert.Equal(t, -3.0, v, "a negative primary value does not fall through")

	_, ok = FirstNonZero(0, 0)
	assert.False(t, ok)
}

func TestMarketCapMillions(t *testing.T) {
	v, ok := MarketCapMillions(2_845_678_901_234)
	require.True(t, ok)
	assert.Equal(t, int64(2_845_678), v)

	_, ok = MarketCapMillions(0)
	assert.False(t, ok)
}
