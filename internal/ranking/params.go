package ranking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultPage  = 1
	DefaultLimit = 25
	MaxLimit     = 100
	// MaxPage keeps (page-1)*limit far from int overflow.
	MaxPage = 1_000_000

	SortAsc  = "asc"
	SortDesc = "desc"

	SortPERatio     = "peRatio"
	SortPriceChange = "priceChange"
	SortSymbol      = "symbol"
	SortName        = "name"
)

// ErrInvalidParams is wrapped by every validation failure.
var ErrInvalidParams = errors.New("invalid parameters")

// Params selects one page of a ranking. Empty SortBy and SortOrder fall back
// to the ranking's defaults.
type Params struct {
	Page      int    `validate:"min=1,max=1000000"`
	Limit     int    `validate:"min=1,max=100"`
	SortBy    string `validate:"required"`
	SortOrder string `validate:"oneof=asc desc"`
	Sector    string
	Industry  string
}

// DefaultParams returns the first page with the default limit.
func DefaultParams() Params {
	return Params{Page: DefaultPage, Limit: DefaultLimit}
}

// Offset is the number of rows skipped before the page.
func (p Params) Offset() int { return (p.Page - 1) * p.Limit }

func (p Params) desc() bool { return p.SortOrder == SortDesc }

var validate = validator.New()

// normalize fills defaults and validates p against the sort vocabulary.
func normalize(p Params, defaultSort string, sortable []string) (Params, error) {
	if p.SortBy == "" {
		p.SortBy = defaultSort
	}
	p.SortOrder = strings.ToLower(p.SortOrder)
	if p.SortOrder == "" {
		p.SortOrder = SortAsc
	}

	if err := validate.Struct(p); err != nil {
		return p, invalid(err)
	}
	if err := validate.Var(p.SortBy, "oneof="+strings.Join(sortable, " ")); err != nil {
		return p, fmt.Errorf("%w: sortBy must be one of %s", ErrInvalidParams, strings.Join(sortable, ", "))
	}
	return p, nil
}

func invalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	fe := verrs[0]
	var msg string
	switch fe.Field() {
	case "Page":
		msg = fmt.Sprintf("page must be between 1 and %d", MaxPage)
	case "Limit":
		msg = fmt.Sprintf("limit must be between 1 and %d", MaxLimit)
	case "SortOrder":
		msg = "sortOrder must be asc or desc"
	default:
		msg = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %s", ErrInvalidParams, msg)
}
