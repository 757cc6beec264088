package model

// InstrumentPE pairs an instrument with its most recent P/E ratio.
// Ratio is nil when the instrument has no observations.
type InstrumentPE struct {
	Instrument Instrument
	Ratio      *float64
}

// InstrumentBars pairs an instrument with its most recent closes, newest first.
type InstrumentBars struct {
	Instrument Instrument
	Bars       []PriceBar
}

// PERow is one row of the lowest P/E ranking.
type PERow struct {
	ID       string  `json:"id"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Sector   *string `json:"sector"`
	Industry *string `json:"industry"`
	PERatio  float64 `json:"peRatio"`
}

// DeclineRow is one row of the largest decline ranking.
type DeclineRow struct {
	ID          string  `json:"id"`
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	Sector      *string `json:"sector"`
	Industry    *string `json:"industry"`
	PriceChange float64 `json:"priceChange"`
}

// Pagination describes a page of a ranking.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Page is a paginated ranking response.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// NewPagination computes totalPages as ceil(total/limit).
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}
