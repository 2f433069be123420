package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect server configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the config file and environment overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		result := cfg.Validate()
		out := cmd.OutOrStdout()
		for _, w := range result.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		for _, e := range result.Errors {
			fmt.Fprintf(out, "error: %s\n", e)
		}
		if err := result.Err(); err != nil {
			return err
		}
		fmt.Fprintf(out, "config OK (listening on %s, database %s)\n", cfg.Addr(), cfg.Database.Path)
		return nil
	},
}
