package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int
	var skip int

	cmd := &cobra.Command{
		Use:   "log [rev] [path]",
		Short: "Show commit history, optionally restricted to a path",
		Args:  cobra.MaximumNArgs(2),
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
			commits, err := r.History(ctx.Commit, ctx.Path, limit, skip)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			yellow := color.New(color.FgYellow)
			for _, c := range commits {
				if oneline {
					yellow.Fprintf(out, "%s ", c.Hash.Short())
					fmt.Fprintln(out, c.Subject())
					continue
				}
				yellow.Fprintf(out, "commit %s\n", c.Hash)
				fmt.Fprintf(out, "Author: %s\n", c.Author)
				fmt.Fprintf(out, "Date:   %s\n\n", c.Author.When.Format("2006-01-02 15:04:05 -0700"))
				for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "Show each commit on a single line")
	cmd.Flags().IntVarP(&limit, "max-count", "n", 20, "Limit the number of commits to show")
	cmd.Flags().IntVar(&skip, "skip", 0, "Skip this many matching commits first")
	return cmd
}
