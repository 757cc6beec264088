package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"StockLens/internal/model"
	"StockLens/internal/notifier"
)

// Runner is the ETL pipeline as seen by the scheduler.
type Runner interface {
	FetchAndStoreSymbols(ctx context.Context, exchange string) model.ETLStats
	FetchAndStoreFundamentals(ctx context.Context) model.ETLStats
	FetchAndStoreHistoricalPrices(ctx context.Context, days int) model.ETLStats
	RunFull(ctx context.Context, exchange string, days int) model.ETLStats
}

// Invalidator drops derived data after a run, such as cached ranking pages.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Config holds cron expressions (with seconds) and run defaults.
type Config struct {
	FullCron   string
	PricesCron string
	Exchange   string
	PriceDays  int
}

// Scheduler guards ETL runs so at most one is active per process and
// triggers them on a cron schedule.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Runner
	Notifier notifier.Notifier
	Cache    Invalidator
	Ctx      context.Context
	cfg      Config

	running atomic.Bool
	runs    sync.WaitGroup // background runs started outside cron
	mu      sync.RWMutex
	last    *model.ETLStats
}

// NewScheduler creates a scheduler. Notifier and cache may be nil.
func NewScheduler(ctx context.Context, runner Runner, n notifier.Notifier, c Invalidator, cfg Config) *Scheduler {
	if n == nil {
		n = notifier.NoopNotifier{}
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   runner,
		Notifier: n,
		Cache:    c,
		Ctx:      ctx,
		cfg:      cfg,
	}
}

// RegisterAll registers the full pipeline and the price refresh. Empty
// expressions are skipped.
func (s *Scheduler) RegisterAll() error {
	if s.cfg.FullCron != "" {
		if _, err := s.Cron.AddFunc(s.cfg.FullCron, func() { s.RunFullPipeline(s.Ctx, s.cfg.PriceDays) }); err != nil {
			return fmt.Errorf("register full pipeline: %w", err)
		}
	}
	if s.cfg.PricesCron != "" {
		if _, err := s.Cron.AddFunc(s.cfg.PricesCron, func() { s.RunPricesOnly(s.Ctx, s.cfg.PriceDays) }); err != nil {
			return fmt.Errorf("register price refresh: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Str("full_cron", s.cfg.FullCron).Str("prices_cron", s.cfg.PricesCron).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs, including those
// started by RunFullInBackground, to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.runs.Wait()
	log.Info().Msg("scheduler stopped")
}

// IsRunning reports whether a guarded run is in progress.
func (s *Scheduler) IsRunning() bool { return s.running.Load() }

// LastRun returns the statistics of the last completed run, or nil.
func (s *Scheduler) LastRun() *model.ETLStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}

func (s *Scheduler) RunSymbolsOnly(ctx context.Context) (model.ETLStats, bool) {
	return s.guard(ctx, "symbol fetch", func() model.ETLStats {
		return s.Runner.FetchAndStoreSymbols(ctx, s.cfg.Exchange)
	})
}

func (s *Scheduler) RunFundamentalsOnly(ctx context.Context) (model.ETLStats, bool) {
	return s.guard(ctx, "fundamentals fetch", func() model.ETLStats {
		return s.Runner.FetchAndStoreFundamentals(ctx)
	})
}

func (s *Scheduler) RunPricesOnly(ctx context.Context, days int) (model.ETLStats, bool) {
	return s.guard(ctx, "historical prices fetch", func() model.ETLStats {
		return s.Runner.FetchAndStoreHistoricalPrices(ctx, days)
	})
}

func (s *Scheduler) RunFullPipeline(ctx context.Context, days int) (model.ETLStats, bool) {
	return s.guard(ctx, "full pipeline", func() model.ETLStats {
		return s.Runner.RunFull(ctx, s.cfg.Exchange, days)
	})
}

// RunFullInBackground starts a guarded full run in its own goroutine. Stop
// waits for it.
func (s *Scheduler) RunFullInBackground(ctx context.Context, days int) {
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		s.RunFullPipeline(ctx, days)
	}()
}

// guard runs fn unless another run holds the flag. A skipped call returns
// immediately with ran=false.
func (s *Scheduler) guard(ctx context.Context, name string, fn func() model.ETLStats) (model.ETLStats, bool) {
	if !s.running.CompareAndSwap(false, true) {
		log.Warn().Str("run", name).Msg("ETL pipeline already running, skipping this execution")
		return model.ETLStats{}, false
	}
	defer s.running.Store(false)

	log.Info().Str("run", name).Msg("starting ETL run")
	stats := s.safeRun(name, fn)
	log.Info().Str("run", name).Int("errors", stats.Errors).Dur("duration", stats.Duration()).Msg("ETL run finished")

	s.mu.Lock()
	s.last = &stats
	s.mu.Unlock()

	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to invalidate ranking cache")
		}
	}
	if err := s.Notifier.SendWithRetry(ctx, notifier.FormatRunSummary(stats), 3); err != nil {
		log.Error().Err(err).Msg("failed to send run summary")
	}
	return stats, true
}

// safeRun converts a panic inside a run into a counted error so the guard
// is always released and the process keeps serving.
func (s *Scheduler) safeRun(name string, fn func() model.ETLStats) (stats model.ETLStats) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("run", name).Interface("panic", r).Msg("ETL run panicked")
			stats = model.ETLStats{Errors: 1, StartTime: start, EndTime: time.Now()}
		}
	}()
	return fn()
}

// HandleCommand answers a chat command.
func (s *Scheduler) HandleCommand(_ context.Context, command string) string {
	var verb string
	if fields := strings.Fields(command); len(fields) > 0 {
		verb = strings.ToLower(fields[0])
	}
	switch verb {
	case "/status":
		return notifier.FormatStatus(s.IsRunning(), s.LastRun())
	case "/run":
		if s.IsRunning() {
			return "ETL pipeline already running"
		}
		s.RunFullInBackground(s.Ctx, s.cfg.PriceDays)
		return "Full ETL pipeline started"
	default:
		return notifier.FormatHelp()
	}
}
