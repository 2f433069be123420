package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	hostFlag   string
	portFlag   int
	dbPathFlag string
)

var rootCmd = &cobra.Command{
	Use:   "driftrace-server",
	Short: "Multiplayer race-room coordinator",
	Long: `driftrace-server coordinates multiplayer race rooms over WebSocket.

When invoked without a subcommand, starts the server (equivalent to "driftrace-server serve").

Examples:
  driftrace-server                              # Serve on 0.0.0.0:8080
  driftrace-server serve --port 9090            # Serve on a custom port
  driftrace-server --config driftrace.yaml      # Load settings from a file
  driftrace-server config validate              # Check a config file`,
	SilenceUsage: true,
	RunE:         serveRun,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "driftrace.yaml", "path to config file")
	registerServeFlags(rootCmd)
	registerServeFlags(serveCmd)

	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(serveCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
