// Package config provides bridge configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds command-bridge configuration.
type Config struct {
	// Bridge listener
	BridgeHost   string        `envconfig:"BRIDGE_HOST" default:"127.0.0.1"`
	BridgePort   int           `envconfig:"BRIDGE_PORT" default:"6400"`
	ReadTimeout  time.Duration `envconfig:"BRIDGE_READ_TIMEOUT" default:"60s"`
	BufferSize   int           `envconfig:"BRIDGE_BUFFER_SIZE" default:"8192"`
	MaxPending   int           `envconfig:"BRIDGE_MAX_PENDING" default:"1024"`
	TickInterval time.Duration `envconfig:"BRIDGE_TICK_INTERVAL" default:"16ms"`

	// Operator HTTP status endpoint
	StatusHTTPAddr     string        `envconfig:"STATUS_HTTP_ADDR" default:"127.0.0.1:6401"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// COMMS: optional NATS ingress and events. Empty COMMSURL disables both.
	COMMSURL           string        `envconfig:"COMMS_URL"`
	COMMSName          string        `envconfig:"SERVICE_NAME" default:"command-bridge"`
	COMMSTimeout       time.Duration `envconfig:"COMMS_TIMEOUT" default:"10s"`
	COMMSReconnectWait time.Duration `envconfig:"COMMS_RECONNECT_WAIT" default:"2s"`
	// -1 reconnects forever.
	COMMSMaxReconnects int    `envconfig:"COMMS_MAX_RECONNECTS" default:"60"`
	CommandSubject     string `envconfig:"BRIDGE_COMMAND_SUBJECT" default:"bridge.commands"`
	EventSubject       string `envconfig:"BRIDGE_EVENT_SUBJECT" default:"bridge.command.completed"`

	// Database: optional command journal. Empty DatabaseURL disables it.
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`
	JournalBuffer int    `envconfig:"JOURNAL_BUFFER" default:"256"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the bridge.
func (c *Config) ValidateForServe() error {
	if c.BridgePort <= 0 || c.BridgePort > 65535 {
		return fmt.Errorf("%s - BRIDGE_PORT must be between 1 and 65535", logPrefix)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%s - BRIDGE_READ_TIMEOUT must be positive", logPrefix)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("%s - BRIDGE_BUFFER_SIZE must be positive", logPrefix)
	}
	if c.MaxPending < 0 {
		return fmt.Errorf("%s - BRIDGE_MAX_PENDING must not be negative", logPrefix)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%s - BRIDGE_TICK_INTERVAL must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.JournalEnabled() && c.JournalBuffer <= 0 {
		return fmt.Errorf("%s - JOURNAL_BUFFER must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, ensure-db).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// JournalEnabled reports whether the command journal should be written.
func (c *Config) JournalEnabled() bool {
	return c.DatabaseURL != ""
}

// CommsEnabled reports whether the COMMS ingress and events are on.
func (c *Config) CommsEnabled() bool {
	return c.COMMSURL != ""
}

// BridgeMaxPending converts BRIDGE_MAX_PENDING (0 = unbounded) to the bridge
// setting, where a negative value means unbounded.
func (c *Config) BridgeMaxPending() int {
	if c.MaxPending == 0 {
		return -1
	}
	return c.MaxPending
}
