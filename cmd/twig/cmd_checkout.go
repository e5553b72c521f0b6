package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <branch|commit>",
		Short: "Switch the work tree to a branch or commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			if err := r.Checkout(args[0]); err != nil {
				return err
			}

			head, err := r.Head()
			if err != nil {
				return err
			}
			if head.Detached() {
				fmt.Fprintf(cmd.OutOrStdout(), "HEAD is now at %s\n", head.Hash.Short())
			} else {
				branch, _ := r.CurrentBranch()
				fmt.Fprintf(cmd.OutOrStdout(), "Switched to branch '%s'\n", branch)
			}
			return nil
		},
	}
}
