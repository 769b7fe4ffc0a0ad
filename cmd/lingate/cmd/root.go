// Package cmd provides the CLI commands for lingate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "lingate",
	Short: "lingate - intercepting MDM proxy",
	Long: `lingate is an intercepting proxy that sits between managed Android
endpoints and their control server.

It decrypts each endpoint request, applies interception rules keyed by
method and account, forwards (or answers) the call, and records the full
exchange for review through the admin API.

Quick start:
  1. Create a config file: lingate.yaml
  2. Run: lingate start

Configuration:
  Config is loaded from lingate.yaml in the current directory or
  /etc/lingate/.

  Environment variables override config values with the LINGATE_ prefix,
  e.g. LINGATE_SERVER_PORT=9090. The endpoint-facing settings also accept
  the legacy LINSPIRER_* names (LINSPIRER_KEY, LINSPIRER_IV,
  LINSPIRER_TARGET_URL, LINSPIRER_DB_PATH, LINSPIRER_JWT_SECRET).

Commands:
  start          Start the proxy server
  stop           Stop the running server
  config         Print the effective configuration
  hash-password  Generate a bcrypt hash for the admin password
  version        Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./lingate.yaml)")
}
