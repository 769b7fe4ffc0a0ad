package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := errors.As(err, &verrs); ok && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("config: field %s failed %q validation", f.Namespace(), f.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	// Duration fields are strings in YAML; parse them here so startup fails
	// fast instead of at first use.
	if _, err := time.ParseDuration(c.Upstream.Timeout); err != nil {
		return fmt.Errorf("config: upstream.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Admin.TokenTTL); err != nil {
		return fmt.Errorf("config: admin.token_ttl: %w", err)
	}
	return nil
}

// UpstreamTimeout returns the parsed upstream timeout.
// Validate must have succeeded first.
func (c *Config) UpstreamTimeout() time.Duration {
	d, err := time.ParseDuration(c.Upstream.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// AdminTokenTTL returns the parsed admin token lifetime.
// Validate must have succeeded first.
func (c *Config) AdminTokenTTL() time.Duration {
	d, err := time.ParseDuration(c.Admin.TokenTTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}
