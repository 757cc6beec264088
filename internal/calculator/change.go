package calculator

import (
	"errors"

	"StockLens/internal/model"
)

var (
	// ErrInsufficientData means fewer bars than the calculation needs.
	ErrInsufficientData = errors.New("not enough data")
	// ErrZeroBase means the reference price is zero.
	ErrZeroBase = errors.New("reference price is zero")
)

// PercentChange returns (latest - previous) / previous * 100.
func PercentChange(previous, latest float64) (float64, error) {
	if previous == 0 {
		return 0, ErrZeroBase
	}
	return (latest - previous) / previous * 100, nil
}

// PriceChange computes the percent change between the two most recent closes.
// bars must be ordered newest first.
func PriceChange(bars []model.PriceBar) (float64, error) {
	if len(bars) < 2 {
		return 0, ErrInsufficientData
	}
	return PercentChange(bars[1].Close, bars[0].Close)
}
