package config

import (
	"time"

	"github.com/titannode/titannode/internal/endpoint"
)

// Config is the root configuration for a node runner.
type Config struct {
	Servers      []endpoint.Endpoint `yaml:"servers"`
	Node         NodeConfig          `yaml:"node"`
	API          APIConfig           `yaml:"api"`
	Connection   ConnectionConfig    `yaml:"connection"`
	Orchestrator OrchestratorConfig  `yaml:"orchestrator"`
	Logging      LoggingConfig       `yaml:"logging"`
}

// NodeConfig is the descriptor sent on node registration.
type NodeConfig struct {
	ExtVersion        string `yaml:"ext_version"`
	Locale            string `yaml:"locale"`              // BCP 47 tag, drives Accept-Language
	UserScriptEnabled *bool  `yaml:"user_script_enabled"` // nil = true
}

// APIConfig holds REST client settings.
type APIConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	PollInterval time.Duration `yaml:"poll_interval"` // 0 disables user info polling
}

// ConnectionConfig holds stream supervisor settings.
type ConnectionConfig struct {
	KeepaliveInterval     time.Duration `yaml:"keepalive_interval"`
	ReconnectBaseInterval time.Duration `yaml:"reconnect_base_interval"`
	MaxReconnectAttempts  int           `yaml:"max_reconnect_attempts"`
	HandshakeTimeout      time.Duration `yaml:"handshake_timeout"`
	WriteTimeout          time.Duration `yaml:"write_timeout"`
	MessageBuffer         int           `yaml:"message_buffer"`
}

// OrchestratorConfig holds identity launch settings.
type OrchestratorConfig struct {
	Stagger time.Duration `yaml:"stagger"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Dir        string `yaml:"dir"` // per-identity log files, empty = console only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// UserScript reports the registration feature flag.
func (n NodeConfig) UserScript() bool {
	return n.UserScriptEnabled == nil || *n.UserScriptEnabled
}
