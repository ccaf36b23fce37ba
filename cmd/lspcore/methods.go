package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/inoxlang/lspcore/internal/lsp"
	"github.com/spf13/cobra"
)

func newMethodsCommand() *cobra.Command {
	var protocolVersion string

	cmd := &cobra.Command{
		Use:   "methods",
		Short: "List the methods available in a version of the protocol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, _, err := lsp.NewStandardRegistry(protocolVersion)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tKIND\tORIGIN\tSINCE\tWORK DONE\tPARTIAL RESULT")

			for _, desc := range registry.Methods() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					desc.Name, desc.Direction, desc.Origin, desc.Since,
					yesNo(desc.SupportsWorkDone), yesNo(desc.SupportsPartialResult))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&protocolVersion, "protocol-version", lsp.DEFAULT_PROTOCOL_VERSION, "LSP version")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
