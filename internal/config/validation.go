package config

import (
	"fmt"
	"strings"
)

// Validate performs fail-fast validation of the loaded configuration.
// The OpenAI key is required: without it every turn would fail, so the
// whole request pipeline is rejected at startup (configuration fatal).
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("configuration is nil")
	}

	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingOpenAIKey)
	}

	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: model must not be empty", ErrInvalidModelName)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range 1-65535", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}

	if c.HistoryLimit < 1 || c.HistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("%w: %d out of range 1-%d", ErrInvalidHistoryLimit, c.HistoryLimit, MaxHistoryLimit)
	}

	// OpenWeather key is optional: the weather tool degrades to a soft
	// error payload when it is absent.

	return nil
}
