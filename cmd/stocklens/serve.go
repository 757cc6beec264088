package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"StockLens/internal/api"
	"StockLens/internal/notifier"
	"StockLens/internal/ranking"
	"StockLens/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ranking API and the ETL scheduler",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rc := openCache(ctx, cfg)
	defer rc.Close()

	svc := ranking.NewService(st, rc, ranking.Paging(cfg.Ranking.Paging), cfg.Redis.TTL)

	var n notifier.Notifier = notifier.NoopNotifier{}
	var tg *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tg = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		n = tg
	}

	var status api.ETLStatus
	if p, err := newPipeline(cfg, st); err != nil {
		log.Warn().Err(err).Msg("etl disabled, serving rankings only")
	} else {
		sched := scheduler.NewScheduler(ctx, p, n, svc, scheduler.Config{
			FullCron:   cfg.Schedule.FullCron,
			PricesCron: cfg.Schedule.PricesCron,
			Exchange:   cfg.ETL.Exchange,
			PriceDays:  cfg.ETL.PriceDays,
		})
		if err := sched.RegisterAll(); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		status = sched

		if tg != nil {
			go tg.StartPolling(ctx, sched.HandleCommand)
			log.Info().Msg("telegram polling started")
		}
		if cfg.Schedule.RunOnStart {
			log.Info().Msg("run_on_start enabled, starting full pipeline")
			sched.RunFullInBackground(ctx, cfg.ETL.PriceDays)
		}
	}

	srv := api.NewServer(svc, status, api.Options{
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	log.Info().Str("paging", string(svc.Paging())).Msg("StockLens is running, press Ctrl+C to stop")
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
