package main

import (
	"fmt"
	"io"
	"os"

	"github.com/inoxlang/lspcore/internal/config"
	"github.com/spf13/cobra"
)

const (
	ERROR_STATUS_CODE = 1

	COMMAND_NAME = config.APP_NAME
)

// set by the linker.
var version = "dev"

func main() {
	os.Exit(_main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func _main(args []string, inR io.Reader, outW, errW io.Writer) (exitCode int) {
	root := newRootCommand(inR, outW, errW)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(errW, "%s: %s\n", COMMAND_NAME, err)
		return ERROR_STATUS_CODE
	}
	return 0
}

func newRootCommand(inR io.Reader, outW, errW io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           COMMAND_NAME,
		Short:         "Language Server Protocol server for plain text documents",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetIn(inR)
	root.SetOut(outW)
	root.SetErr(errW)

	root.PersistentFlags().String(CONFIG_FLAG, "", "configuration file (JSON or YAML), defaults to $XDG_CONFIG_HOME/"+config.CONFIG_FILE_RELPATH)

	root.AddCommand(
		newServeCommand(),
		newMethodsCommand(),
		newConfigCommand(),
		newVersionCommand(),
	)
	return root
}
