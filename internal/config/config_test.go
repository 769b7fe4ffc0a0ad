package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Crypto.Key = "0123456789abcdef"
	cfg.Crypto.IV = "fedcba9876543210"
	cfg.Admin.JWTSecret = "test-secret"
	cfg.SetDefaults()
	return cfg
}

func TestSetDefaults(t *testing.T) {
	cfg := validConfig()
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.InterceptPath != "/public-interface.php" {
		t.Errorf("intercept path = %q", cfg.Server.InterceptPath)
	}
	if cfg.Upstream.TargetURL != "https://cloud.linspirer.com:883" {
		t.Errorf("target url = %q", cfg.Upstream.TargetURL)
	}
	if got := cfg.UpstreamTimeout(); got != 30*time.Second {
		t.Errorf("upstream timeout = %v", got)
	}
	if got := cfg.AdminTokenTTL(); got != 24*time.Hour {
		t.Errorf("token ttl = %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"short key", func(c *Config) { c.Crypto.Key = "tooshort" }, "Crypto.Key"},
		{"short iv", func(c *Config) { c.Crypto.IV = "short" }, "Crypto.IV"},
		{"missing key", func(c *Config) { c.Crypto.Key = "" }, "Crypto.Key"},
		{"missing jwt secret", func(c *Config) { c.Admin.JWTSecret = "" }, "Admin.JWTSecret"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "Server.Port"},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }, "Server.LogLevel"},
		{"bad target url", func(c *Config) { c.Upstream.TargetURL = "not a url" }, "Upstream.TargetURL"},
		{"relative intercept path", func(c *Config) { c.Server.InterceptPath = "intercept" }, "Server.InterceptPath"},
		{"bad timeout", func(c *Config) { c.Upstream.Timeout = "soon" }, "upstream.timeout"},
		{"bad ttl", func(c *Config) { c.Admin.TokenTTL = "eventually" }, "admin.token_ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lingate.yaml")
	yaml := `
server:
  port: 9090
crypto:
  key: "0123456789abcdef"
  iv: "fedcba9876543210"
admin:
  jwt_secret: from-file
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LINSPIRER_TARGET_URL", "https://mdm.example.com:883")
	t.Setenv("LINSPIRER_JWT_SECRET", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090 from file", cfg.Server.Port)
	}
	if cfg.Upstream.TargetURL != "https://mdm.example.com:883" {
		t.Errorf("target url = %q, want env override", cfg.Upstream.TargetURL)
	}
	if cfg.Admin.JWTSecret != "from-env" {
		t.Errorf("jwt secret = %q, want env to beat file", cfg.Admin.JWTSecret)
	}
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	t.Setenv("LINSPIRER_KEY", "0123456789abcdef")
	t.Setenv("LINSPIRER_IV", "fedcba9876543210")
	t.Setenv("LINSPIRER_JWT_SECRET", "secret")
	t.Setenv("LINSPIRER_PORT", "8443")

	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 8443 {
		t.Errorf("port = %d, want 8443", cfg.Server.Port)
	}
	if cfg.Crypto.Key != "0123456789abcdef" {
		t.Errorf("key = %q", cfg.Crypto.Key)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
