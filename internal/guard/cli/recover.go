package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haukened/hostguard/internal/guard/domain"
	"github.com/haukened/hostguard/internal/guard/gateways/osfs"
	"github.com/haukened/hostguard/internal/guard/services/session"
)

func newRecoverCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Restore the override file after a crash",
		Long: `Restores the override file from the journal snapshot when a previous
hostguard process exited while blocking was enabled. Does nothing otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(st.cfg)
			if err != nil {
				return err
			}
			defer j.Close()

			snap, err := session.Recover(st.cfg.Hosts.Path, osfs.New(), j, st.logger)
			switch {
			case errors.Is(err, domain.ErrNoSnapshot):
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to recover")
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s from snapshot %s taken %s\n",
				st.cfg.Hosts.Path, snap.ID, snap.TakenAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}
