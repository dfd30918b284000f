package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"showtimes/internal/config"
	"showtimes/internal/notify"
	"showtimes/internal/schedule"
	"showtimes/internal/storage"
)

func init() {
	rootCmd.AddCommand(notifyCmd)
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Build and email weekly schedules to all subscribers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		return runNotify(cmd.Context(), cfg, store, log)
	},
}

func runNotify(ctx context.Context, cfg *config.Config, store storage.Store, log *slog.Logger) error {
	if !cfg.SMTPConfigured() {
		return fmt.Errorf("SMTP_HOST, SMTP_EMAIL and SMTP_PASSWORD must be set to send schedules")
	}

	builder := schedule.NewBuilder(store, cfg.GraceDays, cfg.LimitedMax, log)
	schedules, err := builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("build schedules: %w", err)
	}

	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPEmail, cfg.SMTPPassword, cfg.ErrorEmail, log)
	results := mailer.SendSchedules(schedules)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Info("schedule delivery finished", "sent", len(results)-failed, "failed", failed)
	return nil
}
