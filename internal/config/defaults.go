package config

import (
	"time"

	"github.com/titannode/titannode/internal/endpoint"
)

// Default values for optional configuration fields.
const (
	DefaultExtVersion            = "0.0.4"
	DefaultLocale                = "en-US"
	DefaultAPITimeout            = 30 * time.Second
	DefaultMaxRetries            = 2
	DefaultKeepaliveInterval     = 30 * time.Second
	DefaultReconnectBaseInterval = 300 * time.Second
	DefaultMaxReconnectAttempts  = 5
	DefaultHandshakeTimeout      = 15 * time.Second
	DefaultWriteTimeout          = 10 * time.Second
	DefaultMessageBuffer         = 256
	DefaultStagger               = 15 * time.Second
	DefaultLogLevel              = "info"
	DefaultLogMaxSizeMB          = 10
	DefaultLogMaxBackups         = 3
)

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if len(c.Servers) == 0 {
		c.Servers = endpoint.DefaultEndpoints()
	}

	// Node defaults
	if c.Node.ExtVersion == "" {
		c.Node.ExtVersion = DefaultExtVersion
	}
	if c.Node.Locale == "" {
		c.Node.Locale = DefaultLocale
	}

	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Connection defaults
	if c.Connection.KeepaliveInterval == 0 {
		c.Connection.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if c.Connection.ReconnectBaseInterval == 0 {
		c.Connection.ReconnectBaseInterval = DefaultReconnectBaseInterval
	}
	if c.Connection.MaxReconnectAttempts == 0 {
		c.Connection.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.MessageBuffer == 0 {
		c.Connection.MessageBuffer = DefaultMessageBuffer
	}

	// Orchestrator defaults
	if c.Orchestrator.Stagger == 0 {
		c.Orchestrator.Stagger = DefaultStagger
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
}
