package main

import (
	"fmt"
	"time"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/spf13/cobra"
)

func newWriteTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "write-tree",
		Short: "Write tree objects for the index and print the root hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			entries, err := r.ReadIndex()
			if err != nil {
				return err
			}
			h, err := r.WriteTree(entries)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

func newCommitTreeCmd(a *app) *cobra.Command {
	var message, parent, author string

	cmd := &cobra.Command{
		Use:   "commit-tree <tree> -m <message> [-p <parent>]",
		Short: "Create a commit object without moving any ref",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			tree, _, err := r.ResolveRevision(args[0])
			if err != nil {
				return err
			}
			var parentHash object.Hash
			if parent != "" {
				if parentHash, _, err = r.ResolveRevision(parent); err != nil {
					return err
				}
			}

			id, err := a.author(r, author)
			if err != nil {
				return err
			}
			sig := object.Signature{Identity: id, When: time.Now().Truncate(time.Second)}
			h, err := r.CommitTree(tree, message, parentHash, sig)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "parent commit")
	cmd.Flags().StringVar(&author, "author", "", `override author ("Name <email>")`)
	return cmd
}

func newUpdateRefCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update-ref <ref> <revision>",
		Short: "Point a ref at an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			h, _, err := r.ResolveRevision(args[1])
			if err != nil {
				return err
			}
			return r.UpdateRef(args[0], string(h))
		},
	}
}

func newSymbolicRefCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "symbolic-ref <name> [<ref>]",
		Short: "Read or set a symbolic ref",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			if len(args) == 2 {
				return r.SymbolicRef(args[0], args[1])
			}
			target, err := r.ReadSymbolicRef(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}
}

func newRevParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rev-parse <revision>",
		Short: "Print the object hash a revision names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			h, _, err := r.ResolveRevision(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}
