package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envBindings maps config keys to the legacy environment variable names the
// Android fleet deployments already export.
var envBindings = map[string]string{
	"crypto.key":          "LINSPIRER_KEY",
	"crypto.iv":           "LINSPIRER_IV",
	"upstream.target_url": "LINSPIRER_TARGET_URL",
	"db.path":             "LINSPIRER_DB_PATH",
	"server.host":         "LINSPIRER_HOST",
	"server.port":         "LINSPIRER_PORT",
	"admin.jwt_secret":    "LINSPIRER_JWT_SECRET",
}

// LoadConfig reads configuration from the given file (or the default search
// path when path is empty), applies environment overrides, fills defaults,
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lingate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/lingate")
	}

	v.SetEnvPrefix("LINGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when everything comes from the
		// environment; an explicit path must exist.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
