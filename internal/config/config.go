// Package config provides configuration loading for lingate.
//
// Configuration comes from lingate.yaml (searched in standard locations),
// overridden by environment variables. The endpoint-facing settings keep the
// legacy LINSPIRER_* environment names for drop-in compatibility with
// existing deployments.
package config

// Config is the top-level configuration.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Crypto configures the AES-128-CBC codec shared with the endpoints.
	Crypto CryptoConfig `yaml:"crypto" mapstructure:"crypto"`

	// Upstream configures the control server requests are forwarded to.
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`

	// DB configures the SQLite database.
	DB DBConfig `yaml:"db" mapstructure:"db"`

	// Admin configures the admin API authentication.
	Admin AdminConfig `yaml:"admin" mapstructure:"admin"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Host is the listen address. Defaults to "0.0.0.0".
	Host string `yaml:"host" mapstructure:"host"`

	// Port is the listen port. Defaults to 8080.
	Port int `yaml:"port" mapstructure:"port" validate:"omitempty,min=1,max=65535"`

	// LogLevel sets the minimum log level: "debug", "info", "warn", "error".
	// Defaults to "info".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// InterceptPath is the single path the proxy intercepts.
	// Defaults to "/public-interface.php".
	InterceptPath string `yaml:"intercept_path" mapstructure:"intercept_path" validate:"omitempty,startswith=/"`
}

// CryptoConfig holds the symmetric key material. Both values are exactly
// 16 bytes, fixed for the process lifetime: the upstream protocol reuses one
// IV across messages.
type CryptoConfig struct {
	// Key is the 16-byte AES key (env: LINSPIRER_KEY).
	Key string `yaml:"key" mapstructure:"key" validate:"required,len=16"`

	// IV is the 16-byte CBC initialization vector (env: LINSPIRER_IV).
	IV string `yaml:"iv" mapstructure:"iv" validate:"required,len=16"`
}

// UpstreamConfig configures the upstream control server.
type UpstreamConfig struct {
	// TargetURL is the base URL requests are forwarded to
	// (env: LINSPIRER_TARGET_URL). The seeded target_url setting row
	// overrides this at startup when present.
	TargetURL string `yaml:"target_url" mapstructure:"target_url" validate:"required,url"`

	// Timeout bounds each upstream call (e.g. "30s"). Defaults to "30s".
	Timeout string `yaml:"timeout" mapstructure:"timeout"`
}

// DBConfig configures the SQLite database.
type DBConfig struct {
	// Path is the database file path (env: LINSPIRER_DB_PATH).
	// Defaults to "./data/lingate.db".
	Path string `yaml:"path" mapstructure:"path"`
}

// AdminConfig configures admin API authentication.
type AdminConfig struct {
	// JWTSecret signs the admin bearer tokens (env: LINSPIRER_JWT_SECRET).
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret" validate:"required"`

	// TokenTTL is the bearer token lifetime (e.g. "24h"). Defaults to "24h".
	TokenTTL string `yaml:"token_ttl" mapstructure:"token_ttl"`
}

// SetDefaults applies default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.InterceptPath == "" {
		c.Server.InterceptPath = "/public-interface.php"
	}
	if c.Upstream.TargetURL == "" {
		c.Upstream.TargetURL = "https://cloud.linspirer.com:883"
	}
	if c.Upstream.Timeout == "" {
		c.Upstream.Timeout = "30s"
	}
	if c.DB.Path == "" {
		c.DB.Path = "./data/lingate.db"
	}
	if c.Admin.TokenTTL == "" {
		c.Admin.TokenTTL = "24h"
	}
}
