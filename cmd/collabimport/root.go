package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "collabimport",
		Short:         "Bulk collaborator import tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newCheckCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		os.Exit(code)
	}
}
