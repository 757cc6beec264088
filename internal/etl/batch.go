package etl

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// runBatches calls fn for every item, size items at a time. Items within a
// batch run concurrently; the next batch starts once the whole batch has
// settled. Cancelling ctx stops before the next batch.
func runBatches[T any](ctx context.Context, items []T, size int, fn func(context.Context, T)) {
	if size <= 0 {
		size = DefaultBatchSize
	}
	for start := 0; start < len(items); start += size {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Int("done", start).Int("total", len(items)).Msg("batch run cancelled")
			return
		}
		end := min(start+size, len(items))

		var g errgroup.Group
		for _, item := range items[start:end] {
			g.Go(func() error {
				fn(ctx, item)
				return nil
			})
		}
		_ = g.Wait()

		log.Info().Int("done", end).Int("total", len(items)).Msg("batch processed")
	}
}
