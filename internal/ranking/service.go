package ranking

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"StockLens/internal/cache"
	"StockLens/internal/calculator"
	"StockLens/internal/model"
	"StockLens/internal/store"
)

// Paging decides where pagination happens relative to derivation.
type Paging string

const (
	// PagingGlobal derives the metric for the whole filtered population, then sorts and pages.
	PagingGlobal Paging = "global"
	// PagingWindow pages instruments in the store first and derives inside the window.
	// Pages can come back short and ordering is only window-local.
	PagingWindow Paging = "window"
)

// CachePrefix namespaces every ranking entry in the cache.
const CachePrefix = "ranking:"

// DefaultCacheTTL bounds staleness between ETL runs.
const DefaultCacheTTL = 10 * time.Minute

// Service serves the lowest P/E and largest decline rankings.
type Service struct {
	store  store.Reader
	cache  cache.Cache
	paging Paging
	ttl    time.Duration
}

// NewService creates a Service. A nil cache disables caching.
func NewService(r store.Reader, c cache.Cache, paging Paging, ttl time.Duration) *Service {
	if c == nil {
		c = cache.NewNoopCache()
	}
	if paging != PagingWindow {
		paging = PagingGlobal
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{store: r, cache: c, paging: paging, ttl: ttl}
}

// Paging reports the active paging policy.
func (s *Service) Paging() Paging { return s.paging }

// LowestPE ranks instruments by their latest P/E ratio. Instruments without
// an observation are excluded.
func (s *Service) LowestPE(ctx context.Context, p Params) (*model.Page[model.PERow], error) {
	p, err := normalize(p, SortPERatio, []string{SortPERatio, SortSymbol, SortName})
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, "low-pe", p, func() (*model.Page[model.PERow], error) {
		return s.lowestPE(ctx, p)
	})
}

func (s *Service) lowestPE(ctx context.Context, p Params) (*model.Page[model.PERow], error) {
	f := store.Filter{Sector: p.Sector, Industry: p.Industry}
	q := store.PEQuery{
		Filter: f,
		SortBy: peSortColumn(p.SortBy),
		Desc:   p.desc(),
		Offset: p.Offset(),
		Limit:  p.Limit,
	}

	var total int
	var err error
	if s.paging == PagingGlobal {
		q.OnlyObserved = true
		total, err = s.store.CountInstrumentsWithPE(ctx, f)
	} else {
		total, err = s.store.CountInstruments(ctx, f)
	}
	if err != nil {
		return nil, fmt.Errorf("count instruments: %w", err)
	}

	items, err := s.store.LatestPERatios(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load pe ratios: %w", err)
	}

	rows := make([]model.PERow, 0, len(items))
	for _, it := range items {
		if it.Ratio == nil {
			continue
		}
		inst := it.Instrument
		rows = append(rows, model.PERow{
			ID: inst.ID, Symbol: inst.Symbol, Name: inst.Name,
			Sector: inst.Sector, Industry: inst.Industry,
			PERatio: *it.Ratio,
		})
	}
	return &model.Page[model.PERow]{Data: rows, Pagination: model.NewPagination(p.Page, p.Limit, total)}, nil
}

func peSortColumn(sortBy string) store.PESort {
	switch sortBy {
	case SortSymbol:
		return store.SortBySymbol
	case SortName:
		return store.SortByName
	default:
		return store.SortByRatio
	}
}

// LargestDeclines ranks instruments by the percent change between their two
// most recent closes. Instruments with fewer than two bars are excluded.
func (s *Service) LargestDeclines(ctx context.Context, p Params) (*model.Page[model.DeclineRow], error) {
	p, err := normalize(p, SortPriceChange, []string{SortPriceChange, SortSymbol, SortName})
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, "largest-declines", p, func() (*model.Page[model.DeclineRow], error) {
		return s.largestDeclines(ctx, p)
	})
}

func (s *Service) largestDeclines(ctx context.Context, p Params) (*model.Page[model.DeclineRow], error) {
	f := store.Filter{Sector: p.Sector, Industry: p.Industry}
	q := store.BarsQuery{Filter: f, N: 2}

	var total int
	if s.paging == PagingWindow {
		var err error
		if total, err = s.store.CountInstruments(ctx, f); err != nil {
			return nil, fmt.Errorf("count instruments: %w", err)
		}
		q.Offset, q.Limit = p.Offset(), p.Limit
	}

	items, err := s.store.RecentBars(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load recent bars: %w", err)
	}

	rows := make([]model.DeclineRow, 0, len(items))
	for _, it := range items {
		change, err := calculator.PriceChange(it.Bars)
		if err != nil {
			continue
		}
		inst := it.Instrument
		rows = append(rows, model.DeclineRow{
			ID: inst.ID, Symbol: inst.Symbol, Name: inst.Name,
			Sector: inst.Sector, Industry: inst.Industry,
			PriceChange: change,
		})
	}
	sortDeclines(rows, p.SortBy, p.desc())

	if s.paging == PagingGlobal {
		total = len(rows)
		rows = pageSlice(rows, p.Offset(), p.Limit)
	} else if len(rows) > p.Limit {
		rows = rows[:p.Limit]
	}
	return &model.Page[model.DeclineRow]{Data: rows, Pagination: model.NewPagination(p.Page, p.Limit, total)}, nil
}

func sortDeclines(rows []model.DeclineRow, sortBy string, desc bool) {
	slices.SortStableFunc(rows, func(a, b model.DeclineRow) int {
		var c int
		switch sortBy {
		case SortSymbol:
			c = strings.Compare(a.Symbol, b.Symbol)
		case SortName:
			c = strings.Compare(a.Name, b.Name)
		default:
			c = cmp.Compare(a.PriceChange, b.PriceChange)
		}
		if desc {
			c = -c
		}
		if c == 0 {
			c = strings.Compare(a.Symbol, b.Symbol)
		}
		return c
	})
}

func pageSlice[T any](rows []T, offset, limit int) []T {
	if offset < 0 || offset >= len(rows) {
		return []T{}
	}
	end := min(offset+limit, len(rows))
	return rows[offset:end]
}

// Invalidate drops every cached ranking page.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, CachePrefix)
}

func cacheKey(name string, p Params) string {
	return fmt.Sprintf("%s%s:%d:%d:%s:%s:%q:%q", CachePrefix, name,
		p.Page, p.Limit, p.SortBy, p.SortOrder, p.Sector, p.Industry)
}

// cached serves a page from the cache or computes and stores it.
func cached[T any](ctx context.Context, s *Service, name string, p Params, load func() (*model.Page[T], error)) (*model.Page[T], error) {
	key := cacheKey(name, p)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var page model.Page[T]
		if err := json.Unmarshal(raw, &page); err == nil {
			return &page, nil
		}
		log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	page, err := load()
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(page); err == nil {
		s.cache.Set(ctx, key, raw, s.ttl)
	}
	return page, nil
}
