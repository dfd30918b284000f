package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"showtimes/internal/notify"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full weekly job: collect, notify, then archive",
	Long: `Run executes the unattended weekly job: a supervised collection pass,
schedule delivery to all subscribers, then an archive pass. If a step fails,
a failure report is emailed to the operator address and the job stops.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		ctx := cmd.Context()

		steps := []struct {
			name string
			run  func() error
		}{
			{"collect", func() error { return runCollect(ctx, cfg, store, log) }},
			{"notify", func() error { return runNotify(ctx, cfg, store, log) }},
			{"archive", func() error { return runArchive(ctx, cfg, store, log) }},
		}

		for _, step := range steps {
			log.Info("starting step", "step", step.name)
			if err := step.run(); err != nil {
				log.Error("step failed", "step", step.name, "error", err)
				if cfg.SMTPConfigured() && cfg.ErrorEmail != "" {
					mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPEmail, cfg.SMTPPassword, cfg.ErrorEmail, log)
					if mailErr := mailer.SendFailureReport(step.name, err); mailErr != nil {
						log.Error("failure report not delivered", "error", mailErr)
					}
				}
				return fmt.Errorf("step %s: %w", step.name, err)
			}
			log.Info("step done", "step", step.name)
		}
		return nil
	},
}
