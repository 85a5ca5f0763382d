package config

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/text/language"

	"github.com/titannode/titannode/internal/endpoint"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return errors.New("servers must list at least one endpoint")
	}
	if _, err := endpoint.NewPool(c.Servers); err != nil {
		return fmt.Errorf("servers: %w", err)
	}

	if _, err := language.Parse(c.Node.Locale); err != nil {
		return fmt.Errorf("node.locale %q is not a valid language tag", c.Node.Locale)
	}

	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.PollInterval < 0 {
		return errors.New("api.poll_interval must be >= 0")
	}

	if c.Connection.KeepaliveInterval <= 0 {
		return errors.New("connection.keepalive_interval must be positive")
	}
	if c.Connection.ReconnectBaseInterval < 0 {
		return errors.New("connection.reconnect_base_interval must be >= 0")
	}
	if c.Connection.MaxReconnectAttempts < 0 {
		return fmt.Errorf("connection.max_reconnect_attempts must be >= 0, got %d", c.Connection.MaxReconnectAttempts)
	}
	if c.Connection.MessageBuffer < 1 {
		return errors.New("connection.message_buffer must be >= 1")
	}

	if c.Orchestrator.Stagger < 0 {
		return errors.New("orchestrator.stagger must be >= 0")
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	if c.Logging.MaxSizeMB < 1 {
		return errors.New("logging.max_size_mb must be >= 1")
	}

	return nil
}

// SlogLevel parses Level (debug, info, warn, error).
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level %q is not a valid level", l.Level)
	}
	return level, nil
}
