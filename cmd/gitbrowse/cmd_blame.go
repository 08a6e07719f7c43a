package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odvcencio/gitbrowse/pkg/view"
)

func newBlameCmd() *cobra.Command {
	var rev string

	cmd := &cobra.Command{
		Use:   "blame <path>",
		Short: "Show which commit last changed each line of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			ctx, err := view.ResolveRev(r, rev, args[0])
			if err != nil {
				return err
			}
			v, err := view.Blame(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			yellow := color.New(color.FgYellow)
			width := len(fmt.Sprint(len(v.Rows)))
			for _, row := range v.Rows {
				if row.SameAsAbove {
					fmt.Fprintf(out, "%-10s %-20s", "", "")
				} else {
					yellow.Fprintf(out, "%-10s", row.Commit.Hash.Short())
					fmt.Fprintf(out, " %-20.20s", row.Commit.Author.Name)
				}
				fmt.Fprintf(out, " %*d  %s\n", width, row.Lineno, row.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&rev, "rev", "r", "", "Revision to annotate (default branch when empty)")
	return cmd
}
