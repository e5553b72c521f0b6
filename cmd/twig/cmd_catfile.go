package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newCatFileCmd(a *app) *cobra.Command {
	var pretty, showType bool

	cmd := &cobra.Command{
		Use:   "cat-file [-p | -t] <object>",
		Short: "Print the content or kind of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pretty && showType {
				return fmt.Errorf("-p and -t are mutually exclusive")
			}
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			kind, content, err := r.CatObject(args[0], pretty)
			if err != nil {
				return err
			}
			if showType {
				fmt.Fprintln(cmd.OutOrStdout(), kind)
				return nil
			}
			_, err = io.WriteString(cmd.OutOrStdout(), content)
			return err
		},
	}

	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "pretty-print tree objects")
	cmd.Flags().BoolVarP(&showType, "type", "t", false, "print the object kind")
	return cmd
}
