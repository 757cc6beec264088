package etl

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"StockLens/internal/calculator"
	"StockLens/internal/collector"
	"StockLens/internal/model"
	"StockLens/internal/ratelimit"
	"StockLens/internal/store"
)

const (
	DefaultExchange  = "US"
	DefaultBatchSize = 10
	DefaultPriceDays = 730
)

// Sources groups the upstream readers used by the stages. Profiles is only
// needed when profile enrichment is enabled.
type Sources struct {
	Symbols      collector.SymbolSource
	Fundamentals collector.FundamentalsSource
	Candles      collector.CandleSource
	Profiles     collector.ProfileSource
}

// SourcesFrom uses one upstream for every role.
func SourcesFrom(src collector.Source) Sources {
	return Sources{Symbols: src, Fundamentals: src, Candles: src, Profiles: src}
}

// Options tunes a Pipeline.
type Options struct {
	BatchSize      int
	EnrichProfiles bool
	Now            func() time.Time
}

// Pipeline ingests symbols, fundamentals and prices into the store.
type Pipeline struct {
	src     Sources
	store   store.Writer
	limiter *ratelimit.Limiter
	opts    Options
}

// NewPipeline creates a pipeline. Every upstream call goes through limiter.
func NewPipeline(src Sources, w store.Writer, limiter *ratelimit.Limiter, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{src: src, store: w, limiter: limiter, opts: opts}
}

// counters is the concurrent accumulator behind one stage's ETLStats.
type counters struct {
	symbolsProcessed      atomic.Int64
	symbolsCreated        atomic.Int64
	fundamentalsProcessed atomic.Int64
	pricesProcessed       atomic.Int64
	errors                atomic.Int64
}

func (c *counters) snapshot(stage model.Stage, start, end time.Time) model.ETLStats {
	return model.ETLStats{
		Stage:                 stage,
		SymbolsProcessed:      int(c.symbolsProcessed.Load()),
		SymbolsCreated:        int(c.symbolsCreated.Load()),
		FundamentalsProcessed: int(c.fundamentalsProcessed.Load()),
		PricesProcessed:       int(c.pricesProcessed.Load()),
		Errors:                int(c.errors.Load()),
		StartTime:             start,
		EndTime:               end,
	}
}

// FetchAndStoreSymbols creates an instrument for every new common stock on exchange.
func (p *Pipeline) FetchAndStoreSymbols(ctx context.Context, exchange string) model.ETLStats {
	if exchange == "" {
		exchange = DefaultExchange
	}
	start := p.opts.Now()
	var c counters
	logger := log.With().Str("stage", string(model.StageSymbols)).Str("exchange", exchange).Logger()
	logger.Info().Msg("starting symbol fetch")

	symbols, err := ratelimit.Execute(ctx, p.limiter, func(ctx context.Context) ([]collector.SymbolRecord, error) {
		return p.src.Symbols.GetSymbols(ctx, exchange)
	})
	if err != nil {
		logger.Error().Err(err).Msg("symbol fetch failed")
		c.errors.Add(1)
		return c.snapshot(model.StageSymbols, start, p.opts.Now())
	}
	if len(symbols) == 0 {
		logger.Warn().Msg("no symbols returned from upstream")
		return c.snapshot(model.StageSymbols, start, p.opts.Now())
	}

	stocks := make([]collector.SymbolRecord, 0, len(symbols))
	for _, s := range symbols {
		if s.IsCommonStock() {
			stocks = append(stocks, s)
		}
	}
	logger.Info().Int("fetched", len(symbols)).Int("common_stock", len(stocks)).Msg("filtered symbol list")

	runBatches(ctx, stocks, p.opts.BatchSize, func(ctx context.Context, s collector.SymbolRecord) {
		created, err := p.storeSymbol(ctx, s)
		if err != nil {
			logger.Warn().Err(err).Str("symbol", s.DisplaySymbol).Msg("failed to store symbol")
			c.errors.Add(1)
			return
		}
		if created {
			c.symbolsCreated.Add(1)
		}
	})
	c.symbolsProcessed.Store(int64(len(stocks)))

	stats := c.snapshot(model.StageSymbols, start, p.opts.Now())
	logger.Info().Int("processed", stats.SymbolsProcessed).Int("created", stats.SymbolsCreated).
		Int("errors", stats.Errors).Dur("duration", stats.Duration()).Msg("symbol fetch completed")
	return stats
}

func (p *Pipeline) storeSymbol(ctx context.Context, s collector.SymbolRecord) (bool, error) {
	_, err := p.store.FindInstrumentBySymbol(ctx, s.DisplaySymbol)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	inst := &model.Instrument{Symbol: s.DisplaySymbol, Name: s.Description}
	if err := p.store.CreateInstrument(ctx, inst); err != nil {
		return false, err
	}
	log.Debug().Str("symbol", s.DisplaySymbol).Msg("created instrument")
	return true, nil
}

// FetchAndStoreFundamentals records today's P/E ratio and the market cap of
// every stored instrument.
func (p *Pipeline) FetchAndStoreFundamentals(ctx context.Context) model.ETLStats {
	start := p.opts.Now()
	var c counters
	logger := log.With().Str("stage", string(model.StageFundamentals)).Logger()
	logger.Info().Msg("starting fundamentals fetch")

	refs, err := p.store.ListInstrumentRefs(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("fundamentals fetch failed")
		c.errors.Add(1)
		return c.snapshot(model.StageFundamentals, start, p.opts.Now())
	}
	logger.Info().Int("instruments", len(refs)).Msg("processing fundamentals")

	runBatches(ctx, refs, p.opts.BatchSize, func(ctx context.Context, ref model.InstrumentRef) {
		if err := p.storeFundamentals(ctx, ref); err != nil {
			logger.Warn().Err(err).Str("symbol", ref.Symbol).Msg("failed to store fundamentals")
			c.errors.Add(1)
		}
	})
	c.fundamentalsProcessed.Store(int64(len(refs)))

	stats := c.snapshot(model.StageFundamentals, start, p.opts.Now())
	logger.Info().Int("processed", stats.FundamentalsProcessed).Int("errors", stats.Errors).
		Dur("duration", stats.Duration()).Msg("fundamentals fetch completed")
	return stats
}

func (p *Pipeline) storeFundamentals(ctx context.Context, ref model.InstrumentRef) error {
	fin, err := ratelimit.Execute(ctx, p.limiter, func(ctx context.Context) (*collector.Financials, error) {
		f, _ := p.src.Fundamentals.GetBasicFinancials(ctx, ref.Symbol)
		return f, nil
	})
	if err != nil {
		return err
	}
	if fin == nil || fin.Metric == nil {
		log.Debug().Str("symbol", ref.Symbol).Msg("no fundamentals data")
		return nil
	}

	pe10, _ := fin.Float("10P")
	pe, _ := fin.Float("P/E")
	if ratio, ok := calculator.FirstNonZero(pe10, pe); ok && ratio > 0 {
		day := model.DayBucket(p.opts.Now())
		exists, err := p.store.HasPERatio(ctx, ref.ID, day)
		if err != nil {
			return err
		}
		if !exists {
			if err := p.store.CreatePERatio(ctx, &model.PERatio{InstrumentID: ref.ID, Ratio: ratio, Date: day}); err != nil {
				return err
			}
			log.Debug().Str("symbol", ref.Symbol).Float64("pe", ratio).Msg("stored pe ratio")
		}
	}

	raw, _ := fin.Float("marketCapitalization")
	if millions, ok := calculator.MarketCapMillions(raw); ok {
		if err := p.store.UpdateMarketCap(ctx, ref.ID, millions); err != nil {
			return err
		}
	}

	if p.opts.EnrichProfiles && p.src.Profiles != nil {
		return p.enrichProfile(ctx, ref)
	}
	return nil
}

// enrichProfile copies the upstream industry classification onto the instrument.
func (p *Pipeline) enrichProfile(ctx context.Context, ref model.InstrumentRef) error {
	profile, err := ratelimit.Execute(ctx, p.limiter, func(ctx context.Context) (*collector.CompanyProfile, error) {
		prof, _ := p.src.Profiles.GetCompanyProfile(ctx, ref.Symbol)
		return prof, nil
	})
	if err != nil {
		return err
	}
	if profile == nil || profile.FinnhubIndustry == "" {
		return nil
	}
	industry := profile.FinnhubIndustry
	return p.store.UpdateClassification(ctx, ref.ID, nil, &industry)
}

// FetchAndStoreHistoricalPrices upserts daily bars for the last days days.
func (p *Pipeline) FetchAndStoreHistoricalPrices(ctx context.Context, days int) model.ETLStats {
	if days <= 0 {
		days = DefaultPriceDays
	}
	start := p.opts.Now()
	var c counters
	logger := log.With().Str("stage", string(model.StagePrices)).Int("days", days).Logger()
	logger.Info().Msg("starting historical prices fetch")

	refs, err := p.store.ListInstrumentRefs(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("historical prices fetch failed")
		c.errors.Add(1)
		return c.snapshot(model.StagePrices, start, p.opts.Now())
	}
	logger.Info().Int("instruments", len(refs)).Msg("processing prices")

	to := p.opts.Now()
	from := to.Add(-time.Duration(days) * 24 * time.Hour)
	runBatches(ctx, refs, p.opts.BatchSize, func(ctx context.Context, ref model.InstrumentRef) {
		p.storeHistoricalPrices(ctx, ref, from.Unix(), to.Unix(), &c)
	})
	c.pricesProcessed.Store(int64(len(refs)))

	stats := c.snapshot(model.StagePrices, start, p.opts.Now())
	logger.Info().Int("processed", stats.PricesProcessed).Int("errors", stats.Errors).
		Dur("duration", stats.Duration()).Msg("historical prices fetch completed")
	return stats
}

func (p *Pipeline) storeHistoricalPrices(ctx context.Context, ref model.InstrumentRef, from, to int64, c *counters) {
	series, err := ratelimit.Execute(ctx, p.limiter, func(ctx context.Context) (*collector.CandleSeries, error) {
		s, _ := p.src.Candles.GetCandles(ctx, ref.Symbol, "D", from, to)
		return s, nil
	})
	if err != nil {
		log.Warn().Err(err).Str("symbol", ref.Symbol).Msg("failed to fetch historical prices")
		c.errors.Add(1)
		return
	}
	n := series.Len()
	if n == 0 {
		log.Debug().Str("symbol", ref.Symbol).Msg("no price data")
		return
	}

	stored := 0
	for i := 0; i < n; i++ {
		bar := &model.PriceBar{
			InstrumentID: ref.ID,
			Open:         series.Open[i],
			High:         series.High[i],
			Low:          series.Low[i],
			Close:        series.Close[i],
			Volume:       int64(series.Volume[i]),
			Date:         model.DayBucket(time.Unix(series.Timestamp[i], 0)),
		}
		if err := p.store.UpsertPriceBar(ctx, bar); err != nil {
			log.Warn().Err(err).Str("symbol", ref.Symbol).Time("date", bar.Date).Msg("failed to upsert price bar")
			c.errors.Add(1)
			continue
		}
		stored++
	}
	log.Debug().Str("symbol", ref.Symbol).Int("bars", stored).Msg("stored price bars")
}

// RunFull runs the three stages in order and merges their statistics.
func (p *Pipeline) RunFull(ctx context.Context, exchange string, days int) model.ETLStats {
	stats := model.ETLStats{Stage: model.StageFull}
	stats = stats.Merge(p.FetchAndStoreSymbols(ctx, exchange))
	stats = stats.Merge(p.FetchAndStoreFundamentals(ctx))
	stats = stats.Merge(p.FetchAndStoreHistoricalPrices(ctx, days))
	return stats
}
