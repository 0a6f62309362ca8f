package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/haukened/hostguard/internal/guard/domain"
)

type checkOutput struct {
	ShouldBlock bool               `json:"should_block"`
	Score       domain.ScoreResult `json:"score"`
}

func newCheckCmd(st *state) *cobra.Command {
	var failOnBlock bool

	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Score text from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			text, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			content, err := buildContentStack(st.cfg, st.logger)
			if err != nil {
				return err
			}
			block, score := content.scorer.Check(string(text), content.keywords.Snapshot())
			if err := printJSON(cmd.OutOrStdout(), checkOutput{ShouldBlock: block, Score: score}); err != nil {
				return err
			}
			if block && failOnBlock {
				return errBlocked
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failOnBlock, "fail", false, "Exit non-zero when the content would be blocked")
	return cmd
}

func newInspectCmd(st *state) *cobra.Command {
	var failOnBlock bool

	cmd := &cobra.Command{
		Use:   "inspect <url>",
		Short: "Fetch a web page and report whether it would be blocked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := buildContentStack(st.cfg, st.logger)
			if err != nil {
				return err
			}
			v := content.inspector.Inspect(cmd.Context(), args[0])
			if err := printJSON(cmd.OutOrStdout(), v); err != nil {
				return err
			}
			if v.ShouldBlock && failOnBlock {
				return errBlocked
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failOnBlock, "fail", false, "Exit non-zero when the page would be blocked")
	return cmd
}
