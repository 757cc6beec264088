package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"StockLens/internal/model"
)

// PostgresConfig holds pool settings for NewPostgresStore.
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// PostgresStore persists market data to PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	d    dialect
}

// NewPostgresStore connects, verifies the connection and runs migrations.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, d: postgresDialect}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("host", poolCfg.ConnConfig.Host).Str("database", poolCfg.ConnConfig.Database).Msg("postgres store opened")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, stmt := range schema(s.d) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	log.Info().Msg("closing postgres store")
	s.pool.Close()
	return nil
}

func (s *PostgresStore) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.pool.Exec(ctx, rebind(s.d, query), args...)
	return err
}

func (s *PostgresStore) FindInstrumentBySymbol(ctx context.Context, symbol string) (*model.Instrument, error) {
	var row instrumentRow
	err := s.pool.QueryRow(ctx, rebind(s.d, sqlFindBySymbol), symbol).Scan(row.dest()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find instrument %s: %w", symbol, err)
	}
	inst := row.instrument()
	return &inst, nil
}

func (s *PostgresStore) CreateInstrument(ctx context.Context, inst *model.Instrument) error {
	prepareInstrument(inst)
	err := s.exec(ctx, sqlCreateInstrument,
		inst.ID, inst.Symbol, inst.Name, inst.Sector, inst.Industry, inst.MarketCap,
		inst.CreatedAt.Unix(), inst.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create instrument %s: %w", inst.Symbol, err)
	}
	return nil
}

func (s *PostgresStore) ListInstrumentRefs(ctx context.Context) ([]model.InstrumentRef, error) {
	rows, err := s.pool.Query(ctx, sqlListRefs)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.InstrumentRef, error) {
		var r model.InstrumentRef
		err := row.Scan(&r.ID, &r.Symbol)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	return refs, nil
}

func (s *PostgresStore) HasPERatio(ctx context.Context, instrumentID string, day time.Time) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, rebind(s.d, sqlHasPERatio), instrumentID, s.d.dayArg(day)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check pe ratio: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) CreatePERatio(ctx context.Context, pe *model.PERatio) error {
	if pe.ID == "" {
		pe.ID = uuid.NewString()
	}
	pe.Date = model.DayBucket(pe.Date)
	if err := s.exec(ctx, sqlCreatePERatio, pe.ID, pe.InstrumentID, pe.Ratio, s.d.dayArg(pe.Date)); err != nil {
		return fmt.Errorf("create pe ratio: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMarketCap(ctx context.Context, instrumentID string, millions int64) error {
	if err := s.exec(ctx, sqlUpdateMarketCap, millions, time.Now().Unix(), instrumentID); err != nil {
		return fmt.Errorf("update market cap: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateClassification(ctx context.Context, instrumentID string, sector, industry *string) error {
	if err := s.exec(ctx, sqlUpdateClass, sector, industry, time.Now().Unix(), instrumentID); err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertPriceBar(ctx context.Context, bar *model.PriceBar) error {
	if bar.ID == "" {
		bar.ID = uuid.NewString()
	}
	bar.Date = model.DayBucket(bar.Date)
	err := s.exec(ctx, sqlUpsertBar, bar.ID, bar.InstrumentID,
		bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, s.d.dayArg(bar.Date))
	if err != nil {
		return fmt.Errorf("upsert price bar: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountInstruments(ctx context.Context, f Filter) (int, error) {
	return s.count(ctx, countQuery(s.d, f, false))
}

func (s *PostgresStore) CountInstrumentsWithPE(ctx context.Context, f Filter) (int, error) {
	return s.count(ctx, countQuery(s.d, f, true))
}

func (s *PostgresStore) count(ctx context.Context, b *builder) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, b.String(), b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count instruments: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) LatestPERatios(ctx context.Context, q PEQuery) ([]model.InstrumentPE, error) {
	b, err := latestPEQuery(s.d, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, b.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("query latest pe ratios: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.InstrumentPE, error) {
		return scanInstrumentPE(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan latest pe ratios: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) RecentBars(ctx context.Context, q BarsQuery) ([]model.InstrumentBars, error) {
	b := recentBarsQuery(s.d, q)
	rows, err := s.pool.Query(ctx, b.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("query recent bars: %w", err)
	}
	joined, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (barRow, error) {
		return scanBarRow(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan recent bars: %w", err)
	}
	return groupBars(joined)
}
