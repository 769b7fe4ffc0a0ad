package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lin-gate/lingate/internal/config"
)

var showSecrets bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the effective configuration as YAML after merging the config
file, environment overrides, and defaults.

Secret values (crypto key/IV, JWT secret) are redacted unless
--show-secrets is given.

Examples:
  lingate config
  lingate --config /etc/lingate/lingate.yaml config --show-secrets`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secret values instead of redacting them")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !showSecrets {
		cfg.Crypto.Key = redact(cfg.Crypto.Key)
		cfg.Crypto.IV = redact(cfg.Crypto.IV)
		cfg.Admin.JWTSecret = redact(cfg.Admin.JWTSecret)
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "<redacted>"
}
