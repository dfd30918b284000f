package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"showtimes/internal/archiver"
	"showtimes/internal/config"
	"showtimes/internal/storage"
)

func init() {
	rootCmd.AddCommand(archiveCmd)
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move long-past showtimes into the archive table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		return runArchive(cmd.Context(), cfg, store, log)
	},
}

func runArchive(ctx context.Context, cfg *config.Config, store storage.Store, log *slog.Logger) error {
	arch := archiver.New(store, cfg.RetentionMonths, log)
	archived, err := arch.Run(ctx)
	if err != nil {
		return err
	}
	log.Info("archive pass finished", "archived", archived)
	return nil
}
