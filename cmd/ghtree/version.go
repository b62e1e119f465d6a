package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/ghtree/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ghtree %s\n", version.String())
		},
	}
}
