package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitbrowse/pkg/archive"
)

func newArchiveCmd() *cobra.Command {
	var format string
	var output string
	var prefix string

	cmd := &cobra.Command{
		Use:   "archive [rev]",
		Short: "Write the tree of a revision as a tar archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			r, err := openRepo(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			ctx, err := resolveArgs(r, args)
			if err != nil {
				return err
			}
			f, err := archive.ParseFormat(format)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output == "" {
				output = archive.Filename(r.Name, ctx.Rev, f)
			}
			if output != "-" {
				file, ferr := os.Create(output)
				if ferr != nil {
					return ferr
				}
				defer func() {
					if cerr := file.Close(); err == nil {
						err = cerr
					}
				}()
				w = file
			}

			opts := archive.Options{MTime: ctx.Commit.CommitTime(), Format: f, Prefix: prefix}
			for chunk, err := range archive.Stream(r.Store, ctx.Commit.Tree, opts) {
				if err != nil {
					return err
				}
				if _, err := w.Write(chunk); err != nil {
					return err
				}
			}
			if output != "-" {
				fmt.Fprintln(cmd.ErrOrStderr(), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "tar.gz", "Archive format: tar, tar.gz or tar.zst")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, - for stdout (default name@rev.format)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Path prefix for every entry, for example project/")
	return cmd
}
