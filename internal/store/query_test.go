package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = ? AND b = ?", rebind(sqliteDialect, "a = ? AND b = ?"))
	assert.Equal(t, "a = $1 AND b = $2", rebind(postgresDialect, "a = ? AND b = ?"))
}

func TestLatestPEQuery_Placeholders(t *testing.T) {
	b, err := latestPEQuery(postgresDialect, PEQuery{
		Filter: Filter{Sector: "Tech", Industry: "Software"},
		SortBy: SortByName,
		Offset: 50,
		Limit:  25,
	})
	require.NoError(t, err)
	assert.Contains(t, b.String(), "i.sector = $1")
	assert.Contains(t, b.String(), "i.industry = $2")
	assert.Contains(t, b.String(), "LIMIT $3 OFFSET $4")
	assert.Contains(t, b.String(), "LEFT JOIN latest_pe")
	assert.Equal(t, []any{"Tech", "Software", 25, 50}, b.args)
}

func TestRecentBarsQuery_NoLimit(t *testing.T) {
	b := recentBarsQuery(sqliteDialect, BarsQuery{N: 2, Offset: 10})
	assert.NotContains(t, b.String(), "LIMIT")
	assert.Equal(t, []any{2}, b.args)
}
