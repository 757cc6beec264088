package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"StockLens/internal/model"
)

// SQLiteStore persists market data to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	d  dialect
	mu sync.Mutex // serializes writes
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps writers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, d: sqliteDialect}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	for _, stmt := range schema(s.d) {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error {
	log.Info().Msg("closing sqlite store")
	return s.db.Close()
}

func (s *SQLiteStore) FindInstrumentBySymbol(ctx context.Context, symbol string) (*model.Instrument, error) {
	var row instrumentRow
	err := s.db.QueryRowContext(ctx, sqlFindBySymbol, symbol).Scan(row.dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find instrument %s: %w", symbol, err)
	}
	inst := row.instrument()
	return &inst, nil
}

func (s *SQLiteStore) CreateInstrument(ctx context.Context, inst *model.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepareInstrument(inst)
	_, err := s.db.ExecContext(ctx, sqlCreateInstrument,
		inst.ID, inst.Symbol, inst.Name, inst.Sector, inst.Industry, inst.MarketCap,
		inst.CreatedAt.Unix(), inst.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create instrument %s: %w", inst.Symbol, err)
	}
	return nil
}

func (s *SQLiteStore) ListInstrumentRefs(ctx context.Context) ([]model.InstrumentRef, error) {
	rows, err := s.db.QueryContext(ctx, sqlListRefs)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	var refs []model.InstrumentRef
	for rows.Next() {
		var r model.InstrumentRef
		if err := rows.Scan(&r.ID, &r.Symbol); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func (s *SQLiteStore) HasPERatio(ctx context.Context, instrumentID string, day time.Time) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, sqlHasPERatio, instrumentID, s.d.dayArg(day)).Scan(&n); err != nil {
		return false, fmt.Errorf("check pe ratio: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) CreatePERatio(ctx context.Context, pe *model.PERatio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pe.ID == "" {
		pe.ID = uuid.NewString()
	}
	pe.Date = model.DayBucket(pe.Date)
	_, err := s.db.ExecContext(ctx, sqlCreatePERatio, pe.ID, pe.InstrumentID, pe.Ratio, s.d.dayArg(pe.Date))
	if err != nil {
		return fmt.Errorf("create pe ratio: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateMarketCap(ctx context.Context, instrumentID string, millions int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, sqlUpdateMarketCap, millions, time.Now().Unix(), instrumentID)
	if err != nil {
		return fmt.Errorf("update market cap: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateClassification(ctx context.Context, instrumentID string, sector, industry *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, sqlUpdateClass, sector, industry, time.Now().Unix(), instrumentID)
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertPriceBar(ctx context.Context, bar *model.PriceBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bar.ID == "" {
		bar.ID = uuid.NewString()
	}
	bar.Date = model.DayBucket(bar.Date)
	_, err := s.db.ExecContext(ctx, sqlUpsertBar, bar.ID, bar.InstrumentID,
		bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, s.d.dayArg(bar.Date))
	if err != nil {
		return fmt.Errorf("upsert price bar: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountInstruments(ctx context.Context, f Filter) (int, error) {
	return s.count(ctx, countQuery(s.d, f, false))
}

func (s *SQLiteStore) CountInstrumentsWithPE(ctx context.Context, f Filter) (int, error) {
	return s.count(ctx, countQuery(s.d, f, true))
}

func (s *SQLiteStore) count(ctx context.Context, b *builder) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, b.String(), b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count instruments: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) LatestPERatios(ctx context.Context, q PEQuery) ([]model.InstrumentPE, error) {
	b, err := latestPEQuery(s.d, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("query latest pe ratios: %w", err)
	}
	defer rows.Close()

	var out []model.InstrumentPE
	for rows.Next() {
		item, err := scanInstrumentPE(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RecentBars(ctx context.Context, q BarsQuery) ([]model.InstrumentBars, error) {
	b := recentBarsQuery(s.d, q)
	rows, err := s.db.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("query recent bars: %w", err)
	}
	defer rows.Close()

	var joined []barRow
	for rows.Next() {
		r, err := scanBarRow(rows)
		if err != nil {
			return nil, err
		}
		joined = append(joined, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupBars(joined)
}

func prepareInstrument(inst *model.Instrument) {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = now
	}
	inst.UpdatedAt = now
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
