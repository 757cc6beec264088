package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"StockLens/internal/ranking"
	"StockLens/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a small demo data set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := store.Seed(ctx, st, store.DemoInstruments, time.Now()); err != nil {
			return err
		}
		rc := openCache(ctx, cfg)
		defer rc.Close()
		if err := rc.Invalidate(ctx, ranking.CachePrefix); err != nil {
			return err
		}
		fmt.Printf("Seeded %d instruments\n", len(store.DemoInstruments))
		return nil
	},
}
