package notifier

import (
	"fmt"
	"strings"
	"time"

	"StockLens/internal/model"
)

// FormatRunSummary renders the counters of a finished ETL run.
func FormatRunSummary(stats model.ETLStats) string {
	var b strings.Builder

	icon := "✅"
	if stats.Errors > 0 {
		icon = "⚠️"
	}
	fmt.Fprintf(&b, "%s <b>StockLens ETL</b> | %s\n\n", icon, stats.Stage)
	switch stats.Stage {
	case model.StageSymbols:
		fmt.Fprintf(&b, "Symbols: %d processed, %d created\n", stats.SymbolsProcessed, stats.SymbolsCreated)
	case model.StageFundamentals:
		fmt.Fprintf(&b, "Fundamentals: %d processed\n", stats.FundamentalsProcessed)
	case model.StagePrices:
		fmt.Fprintf(&b, "Prices: %d processed\n", stats.PricesProcessed)
	default:
		fmt.Fprintf(&b, "Symbols: %d processed, %d created\n", stats.SymbolsProcessed, stats.SymbolsCreated)
		fmt.Fprintf(&b, "Fundamentals: %d processed\n", stats.FundamentalsProcessed)
		fmt.Fprintf(&b, "Prices: %d processed\n", stats.PricesProcessed)
	}
	fmt.Fprintf(&b, "Errors: %d\n", stats.Errors)
	fmt.Fprintf(&b, "Duration: %s\n", stats.Duration().Round(time.Second))
	return b.String()
}

// FormatStatus renders the guard state and the last completed run.
func FormatStatus(running bool, last *model.ETLStats) string {
	var b strings.Builder
	b.WriteString("📋 <b>StockLens status</b>\n\n")
	if running {
		b.WriteString("ETL: running\n")
	} else {
		b.WriteString("ETL: idle\n")
	}
	if last == nil {
		b.WriteString("Last run: none\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Last run: %s finished %s\n", last.Stage, last.EndTime.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Errors: %d\n", last.Errors)
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "Available commands:\n• /status\n• /run"
}
