package main

import (
	"fmt"
	"runtime"

	"github.com/inoxlang/lspcore/internal/lsp"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s version %s\n", COMMAND_NAME, version)
			fmt.Fprintf(out, "LSP version: %s\n", lsp.DEFAULT_PROTOCOL_VERSION)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
