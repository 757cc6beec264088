package store

// schema returns the migration statements. SQLite keeps dates as
// YYYY-MM-DD text, Postgres as DATE. Timestamps are unix seconds in both.
func schema(d dialect) []string {
	dateType := "TEXT"
	if d.name == postgresDialect.name {
		dateType = "DATE"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS instruments (
			id         TEXT PRIMARY KEY,
			symbol     TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			sector     TEXT,
			industry   TEXT,
			market_cap BIGINT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_instruments_sector ON instruments(sector)`,
		`CREATE INDEX IF NOT EXISTS idx_instruments_industry ON instruments(industry)`,

		`CREATE TABLE IF NOT EXISTS pe_ratios (
			id            TEXT PRIMARY KEY,
			instrument_id TEXT NOT NULL REFERENCES instruments(id),
			ratio         DOUBLE PRECISION NOT NULL,
			date          ` + dateType + ` NOT NULL,
			UNIQUE (instrument_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pe_ratios_date ON pe_ratios(instrument_id, date)`,

		`CREATE TABLE IF NOT EXISTS price_bars (
			id            TEXT PRIMARY KEY,
			instrument_id TEXT NOT NULL REFERENCES instruments(id),
			open          DOUBLE PRECISION NOT NULL,
			high          DOUBLE PRECISION NOT NULL,
			low           DOUBLE PRECISION NOT NULL,
			close         DOUBLE PRECISION NOT NULL,
			volume        BIGINT NOT NULL,
			date          ` + dateType + ` NOT NULL,
			UNIQUE (instrument_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_bars_date ON price_bars(instrument_id, date)`,
	}
}

// Writer statements, written with ? and rebound per dialect.
const (
	sqlFindBySymbol = `SELECT id, symbol, name, sector, industry, market_cap, created_at, updated_at
		FROM instruments WHERE symbol = ?`
	sqlCreateInstrument = `INSERT INTO instruments (id, symbol, name, sector, industry, market_cap, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	sqlListRefs       = `SELECT id, symbol FROM instruments ORDER BY symbol`
	sqlHasPERatio     = `SELECT COUNT(*) FROM pe_ratios WHERE instrument_id = ? AND date = ?`
	sqlCreatePERatio  = `INSERT INTO pe_ratios (id, instrument_id, ratio, date) VALUES (?, ?, ?, ?)
		ON CONFLICT (instrument_id, date) DO NOTHING`
	sqlUpdateMarketCap = `UPDATE instruments SET market_cap = ?, updated_at = ? WHERE id = ?`
	sqlUpdateClass     = `UPDATE instruments SET sector = COALESCE(?, sector), industry = COALESCE(?, industry),
		updated_at = ? WHERE id = ?`
	sqlUpsertBar = `INSERT INTO price_bars (id, instrument_id, open, high, low, close, volume, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (instrument_id, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume`
)
