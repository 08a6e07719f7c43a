package main

import (
	"github.com/spf13/cobra"

	"github.com/odvcencio/gitbrowse/pkg/view"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [rev]",
		Short: "Print a commit as a mail-style patch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			ctx, err := resolveArgs(r, args)
			if err != nil {
				return err
			}
			res, err := view.RawPatch(ctx)
			if err != nil {
				return err
			}
			return res.(view.RawResponse).Body(cmd.OutOrStdout())
		},
	}
}
