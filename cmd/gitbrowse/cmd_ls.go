package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/odvcencio/gitbrowse/pkg/repo"
	"github.com/odvcencio/gitbrowse/pkg/view"
)

func newLsCmd() *cobra.Command {
	var byUpdate bool
	var query string
	var namespace string

	cmd := &cobra.Command{
		Use:   "ls <root>",
		Short: "List the repositories found in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repos, err := repo.Discover(args[0], repo.Options{Namespace: namespace})
			if err != nil {
				return err
			}
			defer closeRepos(repos)

			order := view.OrderName
			if byUpdate {
				order = view.OrderLastUpdated
			}
			list, err := view.RepoList(repos, order, query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			faint := color.New(color.Faint)
			now := time.Now()
			for _, s := range list {
				bold.Fprint(out, s.FullName)
				if !s.LastUpdated.IsZero() {
					faint.Fprintf(out, "  %s", view.TimeSince(s.LastUpdated, now))
				}
				fmt.Fprintln(out)
				if s.Description != "" {
					fmt.Fprintf(out, "    %s\n", s.Description)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&byUpdate, "recent", "r", false, "Order by last update instead of name")
	cmd.Flags().StringVarP(&query, "filter", "f", "", "Only list names containing this text")
	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace to prefix repository names with")
	return cmd
}
