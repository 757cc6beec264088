package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"StockLens/internal/model"
)

const dayLayout = "2006-01-02"

// dialect captures the few SQL differences between SQLite and Postgres.
type dialect struct {
	name     string
	numbered bool // $1, $2 placeholders instead of ?
	// dayText renders a date column as YYYY-MM-DD text.
	dayText func(col string) string
	// dayArg converts a bucketed day into a bind parameter.
	dayArg func(t time.Time) any
}

var (
	sqliteDialect = dialect{
		name:    "sqlite",
		dayText: func(col string) string { return col },
		dayArg:  func(t time.Time) any { return dayKey(t) },
	}
	postgresDialect = dialect{
		name:     "postgres",
		numbered: true,
		dayText:  func(col string) string { return "to_char(" + col + ", 'YYYY-MM-DD')" },
		dayArg:   func(t time.Time) any { return model.DayBucket(t) },
	}
)

// builder accumulates SQL text and its positional arguments.
type builder struct {
	d    dialect
	sb   strings.Builder
	args []any
}

func newBuilder(d dialect) *builder { return &builder{d: d} }

func (b *builder) write(s string) *builder {
	b.sb.WriteString(s)
	return b
}

func (b *builder) arg(v any) *builder {
	b.args = append(b.args, v)
	if b.d.numbered {
		b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
	} else {
		b.sb.WriteString("?")
	}
	return b
}

func (b *builder) String() string { return b.sb.String() }

func (b *builder) where(alias string, f Filter) *builder {
	b.write(" WHERE 1=1")
	if f.Sector != "" {
		b.write(" AND " + alias + ".sector = ").arg(f.Sector)
	}
	if f.Industry != "" {
		b.write(" AND " + alias + ".industry = ").arg(f.Industry)
	}
	return b
}

func (b *builder) page(offset, limit int) *builder {
	if limit <= 0 {
		return b
	}
	b.write(" LIMIT ").arg(limit)
	if offset > 0 {
		b.write(" OFFSET ").arg(offset)
	}
	return b
}

// rebind rewrites ? placeholders for dialects that number them.
func rebind(d dialect, query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

const instrumentCols = "i.id, i.symbol, i.name, i.sector, i.industry, i.market_cap, i.created_at, i.updated_at"

const latestPE = `latest_pe AS (
	SELECT instrument_id, ratio FROM (
		SELECT instrument_id, ratio,
			ROW_NUMBER() OVER (PARTITION BY instrument_id ORDER BY date DESC) AS rn
		FROM pe_ratios
	) ranked WHERE rn = 1
)`

func countQuery(d dialect, f Filter, withPE bool) *builder {
	b := newBuilder(d)
	if withPE {
		b.write("WITH " + latestPE + " SELECT COUNT(*) FROM instruments i JOIN latest_pe l ON l.instrument_id = i.id")
	} else {
		b.write("SELECT COUNT(*) FROM instruments i")
	}
	return b.where("i", f)
}

func latestPEQuery(d dialect, q PEQuery) (*builder, error) {
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	var order string
	switch q.SortBy {
	case SortByRatio, "":
		order = "(l.ratio IS NULL), l.ratio " + dir + ", i.symbol ASC"
	case SortBySymbol:
		order = "i.symbol " + dir
	case SortByName:
		order = "i.name " + dir + ", i.symbol ASC"
	default:
		return nil, fmt.Errorf("unsupported sort column %q", q.SortBy)
	}

	join := "LEFT JOIN"
	if q.OnlyObserved {
		join = "JOIN"
	}
	b := newBuilder(d)
	b.write("WITH " + latestPE + " SELECT " + instrumentCols + ", l.ratio FROM instruments i " +
		join + " latest_pe l ON l.instrument_id = i.id")
	b.where("i", q.Filter)
	b.write(" ORDER BY " + order)
	b.page(q.Offset, q.Limit)
	return b, nil
}

func recentBarsQuery(d dialect, q BarsQuery) *builder {
	n := q.N
	if n <= 0 {
		n = 2
	}
	b := newBuilder(d)
	b.write("WITH page AS (SELECT " + instrumentCols + " FROM instruments i")
	b.where("i", q.Filter)
	b.write(" ORDER BY i.symbol ASC")
	b.page(q.Offset, q.Limit)
	b.write(`), ranked AS (
		SELECT pb.id, pb.instrument_id, pb.open, pb.high, pb.low, pb.close, pb.volume, ` + d.dayText("pb.date") + ` AS day,
			ROW_NUMBER() OVER (PARTITION BY pb.instrument_id ORDER BY pb.date DESC) AS rn
		FROM price_bars pb JOIN page ON page.id = pb.instrument_id
	)
	SELECT page.id, page.symbol, page.name, page.sector, page.industry, page.market_cap, page.created_at, page.updated_at,
		r.id, r.open, r.high, r.low, r.close, r.volume, r.day
	FROM page LEFT JOIN ranked r ON r.instrument_id = page.id AND r.rn <= `)
	b.arg(n)
	b.write(" ORDER BY page.symbol ASC, r.day DESC")
	return b
}

// scanner is satisfied by *sql.Row, *sql.Rows and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

type instrumentRow struct {
	inst      model.Instrument
	createdAt int64
	updatedAt int64
}

func (r *instrumentRow) dest() []any {
	return []any{&r.inst.ID, &r.inst.Symbol, &r.inst.Name, &r.inst.Sector, &r.inst.Industry,
		&r.inst.MarketCap, &r.createdAt, &r.updatedAt}
}

func (r *instrumentRow) instrument() model.Instrument {
	r.inst.CreatedAt = time.Unix(r.createdAt, 0).UTC()
	r.inst.UpdatedAt = time.Unix(r.updatedAt, 0).UTC()
	return r.inst
}

func scanInstrumentPE(s scanner) (model.InstrumentPE, error) {
	var row instrumentRow
	var ratio *float64
	if err := s.Scan(append(row.dest(), &ratio)...); err != nil {
		return model.InstrumentPE{}, err
	}
	return model.InstrumentPE{Instrument: row.instrument(), Ratio: ratio}, nil
}

// barRow is one line of the recent-bars join; bar columns are NULL for
// instruments without bars.
type barRow struct {
	instrumentRow
	barID  *string
	open   *float64
	high   *float64
	low    *float64
	close  *float64
	volume *int64
	day    *string
}

func scanBarRow(s scanner) (barRow, error) {
	var r barRow
	dest := append(r.instrumentRow.dest(), &r.barID, &r.open, &r.high, &r.low, &r.close, &r.volume, &r.day)
	if err := s.Scan(dest...); err != nil {
		return barRow{}, err
	}
	return r, nil
}

// groupBars folds joined rows into one entry per instrument, preserving row order.
func groupBars(rows []barRow) ([]model.InstrumentBars, error) {
	var out []model.InstrumentBars
	for _, r := range rows {
		if len(out) == 0 || out[len(out)-1].Instrument.ID != r.inst.ID {
			out = append(out, model.InstrumentBars{Instrument: r.instrument()})
		}
		if r.barID == nil || r.close == nil || r.day == nil {
			continue
		}
		day, err := time.Parse(dayLayout, *r.day)
		if err != nil {
			return nil, fmt.Errorf("parse bar date %q: %w", *r.day, err)
		}
		cur := &out[len(out)-1]
		cur.Bars = append(cur.Bars, model.PriceBar{
			ID:           *r.barID,
			InstrumentID: r.inst.ID,
			Open:         deref(r.open),
			High:         deref(r.high),
			Low:          deref(r.low),
			Close:        *r.close,
			Volume:       deref(r.volume),
			Date:         day,
		})
	}
	return out, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func dayKey(t time.Time) string {
	return model.DayBucket(t).Format(dayLayout)
}
