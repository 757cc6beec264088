package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"StockLens/internal/collector"
	"StockLens/internal/ratelimit"
)

var quoteCmd = &cobra.Command{
	Use:   "quote SYMBOL",
	Short: "Print the live quote and company profile for a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireFinnhub(); err != nil {
			return err
		}
		ctx := cmd.Context()
		symbol := strings.ToUpper(args[0])
		fh := newFinnhub(cfg)
		lim := newLimiter(cfg)

		q, err := ratelimit.Execute(ctx, lim, func(ctx context.Context) (*collector.Quote, error) {
			q, _ := fh.GetQuote(ctx, symbol)
			return q, nil
		})
		if err != nil {
			return err
		}
		p, err := ratelimit.Execute(ctx, lim, func(ctx context.Context) (*collector.CompanyProfile, error) {
			p, _ := fh.GetCompanyProfile(ctx, symbol)
			return p, nil
		})
		if err != nil {
			return err
		}
		if q == nil && p == nil {
			return fmt.Errorf("no data for %s", symbol)
		}

		fmt.Printf("%s\n", symbol)
		if p != nil {
			fmt.Printf("  Name:       %s\n", p.Name)
			fmt.Printf("  Industry:   %s\n", p.FinnhubIndustry)
			fmt.Printf("  Exchange:   %s\n", p.Exchange)
			fmt.Printf("  Market cap: %.0fM %s\n", p.MarketCapitalization, p.Currency)
		}
		if q != nil {
			fmt.Printf("  Price:      %.2f (prev close %.2f)\n", q.Current, q.PreviousClose)
			fmt.Printf("  Day range:  %.2f - %.2f\n", q.Low, q.High)
		}
		return nil
	},
}
