package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockLens/internal/model"
)

// SeedInstrument is one demo row written by Seed.
type SeedInstrument struct {
	Symbol    string
	Name      string
	Sector    string
	Industry  string
	MarketCap int64 // millions
	PERatio   float64
	Closes    [2]float64 // today, yesterday
}

// DemoInstruments is the fixed data set used by `stocklens seed`.
var DemoInstruments = []SeedInstrument{
	{"AAPL", "Apple Inc", "Technology", "Consumer Electronics", 2_800_000, 29.4, [2]float64{189.5, 192.3}},
	{"MSFT", "Microsoft Corporation", "Technology", "Software", 2_500_000, 34.1, [2]float64{410.2, 405.8}},
	{"JPM", "JPMorgan Chase & Co", "Finance", "Banking", 450_000, 11.2, [2]float64{172.6, 176.9}},
	{"BAC", "Bank of America Corp", "Finance", "Banking", 320_000, 10.3, [2]float64{33.8, 34.9}},
	{"KO", "The Coca-Cola Company", "Consumer Staples", "Beverages", 280_000, 24.7, [2]float64{59.4, 58.7}},
}

// Seed writes instruments with classification, market cap, one P/E for
// today and bars for today and yesterday. Running it again only refreshes
// the bars and the instrument columns.
func Seed(ctx context.Context, w Writer, items []SeedInstrument, now time.Time) error {
	today := model.DayBucket(now)
	for _, it := range items {
		inst, err := w.FindInstrumentBySymbol(ctx, it.Symbol)
		if errors.Is(err, ErrNotFound) {
			inst = &model.Instrument{Symbol: it.Symbol, Name: it.Name}
			err = w.CreateInstrument(ctx, inst)
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", it.Symbol, err)
		}

		sector, industry := it.Sector, it.Industry
		if err := w.UpdateClassification(ctx, inst.ID, &sector, &industry); err != nil {
			return fmt.Errorf("seed %s: %w", it.Symbol, err)
		}
		if err := w.UpdateMarketCap(ctx, inst.ID, it.MarketCap); err != nil {
			return fmt.Errorf("seed %s: %w", it.Symbol, err)
		}

		has, err := w.HasPERatio(ctx, inst.ID, today)
		if err != nil {
			return fmt.Errorf("seed %s: %w", it.Symbol, err)
		}
		if !has {
			if err := w.CreatePERatio(ctx, &model.PERatio{InstrumentID: inst.ID, Ratio: it.PERatio, Date: today}); err != nil {
				return fmt.Errorf("seed %s: %w", it.Symbol, err)
			}
		}

		for i, px := range it.Closes {
			bar := &model.PriceBar{
				InstrumentID: inst.ID,
				Open:         px,
				High:         px + 5,
				Low:          px - 5,
				Close:        px,
				Volume:       10_000_000,
				Date:         today.AddDate(0, 0, -i),
			}
			if err := w.UpsertPriceBar(ctx, bar); err != nil {
				return fmt.Errorf("seed %s: %w", it.Symbol, err)
			}
		}
	}
	return nil
}
