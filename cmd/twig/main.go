package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/odvcencio/twig/pkg/index"
	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/repo"
	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitNotRepo     = 2
	exitNoObject    = 3
	exitInvalidRef  = 4
	exitCorruptData = 5
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line args and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
	return exitCode(err)
}

func newRootCmd() *cobra.Command {
	a := newApp()
	root := &cobra.Command{
		Use:           "twig",
		Short:         "A small content-addressed version control system",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	a.bindFlags(root)

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newAddCmd(a))
	root.AddCommand(newRmCmd(a))
	root.AddCommand(newCommitCmd(a))
	root.AddCommand(newCheckoutCmd(a))
	root.AddCommand(newLogCmd(a))
	root.AddCommand(newCatFileCmd(a))
	root.AddCommand(newLsFilesCmd(a))
	root.AddCommand(newHashObjectCmd(a))
	root.AddCommand(newWriteTreeCmd(a))
	root.AddCommand(newCommitTreeCmd(a))
	root.AddCommand(newUpdateRefCmd(a))
	root.AddCommand(newSymbolicRefCmd(a))
	root.AddCommand(newRevParseCmd(a))
	root.AddCommand(newReflogCmd(a))
	root.AddCommand(newStatusCmd(a))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "twig 0.1.0-dev")
		},
	}
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, repo.ErrRepositoryNotFound):
		return exitNotRepo
	case errors.Is(err, object.ErrObjectNotFound), errors.Is(err, object.ErrAmbiguousObject):
		return exitNoObject
	case errors.Is(err, repo.ErrInvalidRef):
		return exitInvalidRef
	case errors.Is(err, object.ErrCorruptObject), errors.Is(err, index.ErrCorruptIndex):
		return exitCorruptData
	default:
		return exitFailure
	}
}
