package main

import (
	"github.com/spf13/cobra"

	"github.com/odvcencio/gitbrowse/pkg/view"
)

func newCatCmd() *cobra.Command {
	var rev string

	cmd := &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a file as stored in a revision",
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
			res, err := view.RawBlob(ctx)
			if err != nil {
				return err
			}
			return res.(view.RawResponse).Body(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&rev, "rev", "r", "", "Revision to read from (default branch when empty)")
	return cmd
}
