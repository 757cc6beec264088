package store

import (
	"context"
	"errors"
	"time"

	"StockLens/internal/model"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Filter restricts rankings to an exact sector and/or industry. Empty fields match anything.
type Filter struct {
	Sector   string
	Industry string
}

// PESort is the column a P/E listing is ordered by.
type PESort string

const (
	SortByRatio  PESort = "ratio"
	SortBySymbol PESort = "symbol"
	SortByName   PESort = "name"
)

// PEQuery selects instruments with their latest P/E ratio.
type PEQuery struct {
	Filter
	SortBy PESort
	Desc   bool
	// OnlyObserved drops instruments without any P/E observation before
	// paging. When false, every filtered instrument is paged and Ratio is
	// nil for the unobserved ones.
	OnlyObserved bool
	Offset       int
	Limit        int // <= 0 returns every row
}

// BarsQuery selects instruments ordered by symbol with up to N newest bars each.
type BarsQuery struct {
	Filter
	N      int
	Offset int
	Limit  int // <= 0 returns every instrument
}

// Writer is the ETL side of the store.
type Writer interface {
	FindInstrumentBySymbol(ctx context.Context, symbol string) (*model.Instrument, error)
	CreateInstrument(ctx context.Context, inst *model.Instrument) error
	ListInstrumentRefs(ctx context.Context) ([]model.InstrumentRef, error)
	HasPERatio(ctx context.Context, instrumentID string, day time.Time) (bool, error)
	CreatePERatio(ctx context.Context, pe *model.PERatio) error
	UpdateMarketCap(ctx context.Context, instrumentID string, millions int64) error
	// UpdateClassification sets sector and industry; nil arguments leave the column unchanged.
	UpdateClassification(ctx context.Context, instrumentID string, sector, industry *string) error
	UpsertPriceBar(ctx context.Context, bar *model.PriceBar) error
}

// Reader is the read-only side used by the ranking service.
type Reader interface {
	CountInstruments(ctx context.Context, f Filter) (int, error)
	CountInstrumentsWithPE(ctx context.Context, f Filter) (int, error)
	LatestPERatios(ctx context.Context, q PEQuery) ([]model.InstrumentPE, error)
	RecentBars(ctx context.Context, q BarsQuery) ([]model.InstrumentBars, error)
}

// Store is a full persistence backend.
type Store interface {
	Reader
	Writer
	Ping(ctx context.Context) error
	Close() error
}
