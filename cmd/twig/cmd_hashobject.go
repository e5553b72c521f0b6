package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/repo"
	"github.com/spf13/cobra"
)

func newHashObjectCmd(a *app) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "hash-object [-w] <path>",
		Short: "Compute a blob hash, optionally storing the blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				// Hashing alone works outside a repository.
				if write || !errors.Is(err, repo.ErrRepositoryNotFound) {
					return err
				}
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("hash-object: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), object.HashObject(object.KindBlob, data))
				return nil
			}

			h, err := r.HashFile(args[0], write)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the blob into the object store")
	return cmd
}
