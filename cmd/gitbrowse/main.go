package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitbrowse/pkg/repo"
	"github.com/odvcencio/gitbrowse/pkg/view"
)

const version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gitbrowse",
		Short:         "Browse Git repositories on the web and the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("repo", "C", ".", "Repository to read (working tree or Git directory)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newLsCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newBlameCmd())
	root.AddCommand(newArchiveCmd())
	root.AddCommand(newCatCmd())
	root.AddCommand(newBranchesCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gitbrowse %s\n", version)
		},
	}
}

// openRepo opens the repository named by the --repo flag. The caller
// closes it.
func openRepo(cmd *cobra.Command) (*repo.Repo, error) {
	path, err := cmd.Flags().GetString("repo")
	if err != nil {
		return nil, err
	}
	return repo.Open(path, repo.Options{})
}

// resolveArgs resolves optional [rev] [path] arguments. An empty rev means
// the default branch.
func resolveArgs(r *repo.Repo, args []string) (*view.Context, error) {
	var rev, p string
	if len(args) > 0 {
		rev = args[0]
	}
	if len(args) > 1 {
		p = args[1]
	}
	return view.ResolveRev(r, rev, p)
}
