package main

import (
	"fmt"

	"github.com/inoxlang/lspcore/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration",
	}

	var asJSON bool

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration of the serve command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, err := cmd.Flags().GetString(CONFIG_FLAG)
			if err != nil {
				return err
			}

			serverConfig, err := config.Load(viper.New(), configFile)
			if err != nil {
				return err
			}

			var content []byte
			if asJSON {
				content, err = serverConfig.JSON()
			} else {
				content, err = serverConfig.YAML()
			}
			if err != nil {
				return err
			}

			if serverConfig.File != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "configuration file: %s\n", serverConfig.File)
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		},
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of YAML")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefaultFile()
			if err != nil {
				return fmt.Errorf("failed to write the configuration file: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.AddCommand(showCmd, initCmd)
	return cmd
}
