package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const logDateFormat = "Mon Jan 2 15:04:05 2006 -0700"

func newLogCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log [revision]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			rev := "HEAD"
			if len(args) > 0 {
				rev = args[0]
			}
			start, _, err := r.ResolveRevision(rev)
			if err != nil {
				return fmt.Errorf("cannot resolve %s: %w", rev, err)
			}

			entries, err := r.Log(start, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, e := range entries {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "commit %s\n", e.Hash)
				fmt.Fprintf(out, "Author: %s\n", e.Commit.Author.Identity)
				fmt.Fprintf(out, "Date:   %s\n\n", e.Commit.Author.When.Format(logDateFormat))
				for _, line := range strings.Split(strings.TrimSuffix(e.Commit.Message, "\n"), "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits shown (0 = all)")
	return cmd
}
