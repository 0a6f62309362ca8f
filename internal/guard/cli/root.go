package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haukened/hostguard/internal/guard/common/log"
	"github.com/haukened/hostguard/internal/guard/config"
)

// loadConfig is the configuration seam; tests replace it.
var loadConfig = config.Load

// state carries the loaded configuration from the root pre-run to subcommands.
type state struct {
	cfg    *config.AppConfig
	logger log.Logger
}

// NewRootCmd creates the hostguard root command.
func NewRootCmd(version string) *cobra.Command {
	st := &state{}

	cmd := &cobra.Command{
		Use:   "hostguard",
		Short: "Local content blocking through the hosts file",
		Long: `hostguard blocks sites by mapping them to 127.0.0.1 in the system hosts file
and scores text or web pages against explicit and moderate keyword lists.

Configuration is read from defaults, an optional YAML file named by
GUARD_CONFIG_FILE, and GUARD_* environment variables, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
				return fmt.Errorf("logging configuration error: %w", err)
			}
			st.cfg = cfg
			st.logger = log.GetLogger()
			return nil
		},
	}

	cmd.AddCommand(
		newServeCmd(st, version),
		newCheckCmd(st),
		newInspectCmd(st),
		newKeywordsCmd(st),
		newRecoverCmd(st),
		NewVersionCmd(version),
	)
	return cmd
}
