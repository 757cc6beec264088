package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"StockLens/internal/cache"
	"StockLens/internal/etl"
	"StockLens/internal/model"
	"StockLens/internal/ranking"
)

var exchange string

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Run ETL stages once",
	Long: `Run one ETL stage (or all of them) against the configured database.

Examples:
  stocklens etl symbols --exchange US
  stocklens etl fundamentals
  stocklens etl prices 30
  stocklens etl full`,
}

var etlSymbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "Fetch the symbol list and create missing instruments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), func(ctx context.Context, p *etl.Pipeline) model.ETLStats {
			return p.FetchAndStoreSymbols(ctx, exchange)
		})
	},
}

var etlFundamentalsCmd = &cobra.Command{
	Use:   "fundamentals",
	Short: "Record today's P/E ratio and market cap for every instrument",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), func(ctx context.Context, p *etl.Pipeline) model.ETLStats {
			return p.FetchAndStoreFundamentals(ctx)
		})
	},
}

var etlPricesCmd = &cobra.Command{
	Use:   "prices [days]",
	Short: "Upsert daily price bars for the trailing window",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, err := daysArg(args)
		if err != nil {
			return err
		}
		return runStage(cmd.Context(), func(ctx context.Context, p *etl.Pipeline) model.ETLStats {
			return p.FetchAndStoreHistoricalPrices(ctx, days)
		})
	},
}

var etlFullCmd = &cobra.Command{
	Use:   "full [days]",
	Short: "Run symbols, fundamentals and prices in order",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, err := daysArg(args)
		if err != nil {
			return err
		}
		return runStage(cmd.Context(), func(ctx context.Context, p *etl.Pipeline) model.ETLStats {
			return p.RunFull(ctx, exchange, days)
		})
	},
}

func init() {
	etlCmd.PersistentFlags().StringVar(&exchange, "exchange", etl.DefaultExchange, "exchange code passed to the symbol listing")
	etlCmd.AddCommand(etlSymbolsCmd, etlFundamentalsCmd, etlPricesCmd, etlFullCmd)
}

func daysArg(args []string) (int, error) {
	if len(args) == 0 {
		return cfg.ETL.PriceDays, nil
	}
	days, err := strconv.Atoi(args[0])
	if err != nil || days < 1 {
		return 0, fmt.Errorf("days must be a positive integer, got %q", args[0])
	}
	return days, nil
}

// runStage opens the store, runs one stage and prints its summary.
// Per-record failures are counted in the stats and do not fail the command.
func runStage(ctx context.Context, run func(context.Context, *etl.Pipeline) model.ETLStats) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := newPipeline(cfg, st)
	if err != nil {
		return err
	}

	rc := openCache(ctx, cfg)
	defer rc.Close()

	stats := executeStage(ctx, p, rc, run)
	printStats(stats)
	return nil
}

// executeStage runs one stage, then drops cached ranking pages so a running
// server does not keep serving pre-run results.
func executeStage(ctx context.Context, p *etl.Pipeline, c cache.Cache, run func(context.Context, *etl.Pipeline) model.ETLStats) model.ETLStats {
	stats := run(ctx, p)
	if err := c.Invalidate(ctx, ranking.CachePrefix); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate ranking cache")
	}
	return stats
}

func printStats(s model.ETLStats) {
	fmt.Printf("Stage:                  %s\n", s.Stage)
	fmt.Printf("Symbols processed:      %d\n", s.SymbolsProcessed)
	fmt.Printf("Symbols created:        %d\n", s.SymbolsCreated)
	fmt.Printf("Fundamentals processed: %d\n", s.FundamentalsProcessed)
	fmt.Printf("Prices processed:       %d\n", s.PricesProcessed)
	fmt.Printf("Errors:                 %d\n", s.Errors)
	fmt.Printf("Duration:               %s\n", s.Duration())
}
