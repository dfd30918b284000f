package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"showtimes/internal/collector"
	"showtimes/internal/config"
	"showtimes/internal/extract"
	"showtimes/internal/fetch"
	"showtimes/internal/merge"
	"showtimes/internal/planner"
	"showtimes/internal/storage"
	"showtimes/internal/supervisor"
)

func init() {
	rootCmd.AddCommand(collectCmd)
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run a supervised collection pass over all subscribed zip codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		return runCollect(cmd.Context(), cfg, store, log)
	},
}

func runCollect(ctx context.Context, cfg *config.Config, store storage.Store, log *slog.Logger) error {
	client := fetch.New(fetch.Options{
		BaseURL:        cfg.BaseURL,
		PageTimeout:    cfg.PageTimeout,
		PageAttempts:   cfg.PageAttempts,
		OfflineBackoff: cfg.OfflineBackoff,
		PacingMin:      cfg.PacingMin,
		PacingMax:      cfg.PacingMax,
	})
	coll := collector.New(
		store,
		client,
		extract.New(cfg.BaseURL, log),
		merge.New(store, log),
		planner.New(cfg.StalenessDays),
		log,
	)

	sup := supervisor.New(cfg.Cooldown, cfg.NoProgressCeiling, log)
	return sup.Run(ctx, coll.Run)
}
