package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odvcencio/gitbrowse/pkg/repo"
	"github.com/odvcencio/gitbrowse/pkg/view"
)

func newBranchesCmd() *cobra.Command {
	var tags bool

	cmd := &cobra.Command{
		Use:   "branches",
		Short: "List branches (or tags), most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			var refs []repo.RefInfo
			if tags {
				refs, err = r.Tags()
			} else {
				refs, err = r.Branches()
			}
			if err != nil {
				return err
			}
			def, _, err := r.DefaultBranch()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			green := color.New(color.FgGreen)
			now := time.Now()
			for _, ref := range refs {
				if !tags && ref.Name == def {
					green.Fprintf(out, "* %s", ref.Name)
				} else {
					fmt.Fprintf(out, "  %s", ref.Name)
				}
				if !ref.Time.IsZero() {
					fmt.Fprintf(out, "  %s", view.TimeSince(ref.Time, now))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&tags, "tags", "t", false, "List tags instead of branches")
	return cmd
}
