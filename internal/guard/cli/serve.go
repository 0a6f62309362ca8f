package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(st *state, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Runs the hostguard API on api.listen. Blocking starts disabled; enable it with
POST /api/v1/enable. On SIGINT or SIGTERM the override file is restored if
blocking is still enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := st.cfg
			st.logger.Info(map[string]any{
				"version":    version,
				"env":        cfg.Env,
				"log_level":  cfg.Log.Level,
				"hosts":      cfg.Hosts.Path,
				"keywords":   cfg.Keywords.Path,
				"journal":    cfg.Journal.Path,
				"listen":     cfg.API.Listen,
				"classifier": cfg.Classifier.URL != "",
			}, "Starting hostguard")

			app, err := buildApplication(cfg, st.logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := app.Run(ctx); err != nil {
				return err
			}
			st.logger.Info(nil, "hostguard stopped gracefully")
			return nil
		},
	}
}
