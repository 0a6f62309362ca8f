package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haukened/hostguard/internal/guard/repos/keywords"
)

func newKeywordsCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Manage the keyword lists",
	}

	open := func() (*keywords.Store, error) {
		if err := ensureParentDir(st.cfg.Keywords.Path); err != nil {
			return nil, err
		}
		return keywords.Open(st.cfg.Keywords.Path, st.logger)
	}

	var listCategory string
	list := &cobra.Command{
		Use:   "list",
		Short: "Print keywords as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			if listCategory != "" {
				words := s.List(listCategory)
				if words == nil {
					words = []string{}
				}
				return printJSON(cmd.OutOrStdout(), map[string][]string{listCategory: words})
			}
			return printJSON(cmd.OutOrStdout(), s.Snapshot())
		},
	}
	list.Flags().StringVarP(&listCategory, "category", "c", "", "Only list this category")

	var addCategory string
	add := &cobra.Command{
		Use:   "add <word>",
		Short: "Add a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			category := addCategory
			if category == "" {
				category = st.cfg.Keywords.DefaultCategory
			}
			added, err := s.Add(args[0], category)
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintf(cmd.OutOrStdout(), "%q already in %s\n", args[0], category)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %q to %s\n", args[0], category)
			return nil
		},
	}
	add.Flags().StringVarP(&addCategory, "category", "c", "", "Category (default keywords.default_category)")

	var removeCategory string
	remove := &cobra.Command{
		Use:   "remove <word>",
		Short: "Remove a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			category := removeCategory
			if category == "" {
				category = st.cfg.Keywords.DefaultCategory
			}
			removed, err := s.Remove(args[0], category)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%q not in %s\n", args[0], category)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %q from %s\n", args[0], category)
			return nil
		},
	}
	remove.Flags().StringVarP(&removeCategory, "category", "c", "", "Category (default keywords.default_category)")

	imp := &cobra.Command{
		Use:   "import <file.yaml|->",
		Short: "Merge keywords from a YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			n, err := s.ImportYAML(in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d keywords\n", n)
			return nil
		},
	}

	exp := &cobra.Command{
		Use:   "export [file.yaml]",
		Short: "Write keywords as YAML to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			if len(args) == 0 || args[0] == "-" {
				return s.ExportYAML(cmd.OutOrStdout())
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := s.ExportYAML(f); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.AddCommand(list, add, remove, imp, exp)
	return cmd
}
