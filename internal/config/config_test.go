package config

import (
	"os"
	"testing"
	"time"
)

var allEnvVars = []string{
	"BRIDGE_HOST", "BRIDGE_PORT", "BRIDGE_READ_TIMEOUT", "BRIDGE_BUFFER_SIZE",
	"BRIDGE_MAX_PENDING", "BRIDGE_TICK_INTERVAL",
	"STATUS_HTTP_ADDR", "HEALTH_CHECK_TIMEOUT",
	"COMMS_URL", "SERVICE_NAME", "COMMS_TIMEOUT", "COMMS_RECONNECT_WAIT", "COMMS_MAX_RECONNECTS",
	"BRIDGE_COMMAND_SUBJECT", "BRIDGE_EVENT_SUBJECT",
	"DATABASE_URL", "RUN_MIGRATIONS", "MIGRATION_PATH", "JOURNAL_BUFFER",
	"LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range allEnvVars {
		if v, ok := os.LookupEnv(env); ok {
			t.Cleanup(func() { os.Setenv(env, v) })
			os.Unsetenv(env)
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.BridgeHost != "127.0.0.1" {
		t.Errorf("config:config_test - BridgeHost = %q, want 127.0.0.1", cfg.BridgeHost)
	}
	if cfg.BridgePort != 6400 {
		t.Errorf("config:config_test - BridgePort = %d, want 6400", cfg.BridgePort)
	}
	if cfg.ReadTimeout != 60*time.Second {
		t.Errorf("config:config_test - ReadTimeout = %v, want 60s", cfg.ReadTimeout)
	}
	if cfg.BufferSize != 8192 {
		t.Errorf("config:config_test - BufferSize = %d, want 8192", cfg.BufferSize)
	}
	if cfg.MaxPending != 1024 {
		t.Errorf("config:config_test - MaxPending = %d, want 1024", cfg.MaxPending)
	}
	if cfg.TickInterval != 16*time.Millisecond {
		t.Errorf("config:config_test - TickInterval = %v, want 16ms", cfg.TickInterval)
	}
	if cfg.StatusHTTPAddr != "127.0.0.1:6401" {
		t.Errorf("config:config_test - StatusHTTPAddr = %q", cfg.StatusHTTPAddr)
	}
	if cfg.COMMSURL != "" || cfg.CommsEnabled() {
		t.Errorf("config:config_test - COMMS should be disabled by default")
	}
	if cfg.COMMSName != "command-bridge" {
		t.Errorf("config:config_test - COMMSName = %q, want command-bridge", cfg.COMMSName)
	}
	if cfg.COMMSTimeout != 10*time.Second || cfg.COMMSReconnectWait != 2*time.Second || cfg.COMMSMaxReconnects != 60 {
		t.Errorf("config:config_test - COMMS connection = %v, %v, %d", cfg.COMMSTimeout, cfg.COMMSReconnectWait, cfg.COMMSMaxReconnects)
	}
	if cfg.CommandSubject != "bridge.commands" || cfg.EventSubject != "bridge.command.completed" {
		t.Errorf("config:config_test - subjects = %q, %q", cfg.CommandSubject, cfg.EventSubject)
	}
	if cfg.DatabaseURL != "" || cfg.JournalEnabled() {
		t.Errorf("config:config_test - journal should be disabled by default")
	}
	if cfg.RunMigrations {
		t.Error("config:config_test - expected RunMigrations=false by default")
	}
	if cfg.MigrationPath != "migrations" {
		t.Errorf("config:config_test - MigrationPath = %q, want migrations", cfg.MigrationPath)
	}
	if cfg.JournalBuffer != 256 {
		t.Errorf("config:config_test - JournalBuffer = %d, want 256", cfg.JournalBuffer)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want info", cfg.LogLevel)
	}
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("config:config_test - defaults should validate: %v", err)
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	overrides := map[string]string{
		"BRIDGE_HOST":            "0.0.0.0",
		"BRIDGE_PORT":            "7400",
		"BRIDGE_READ_TIMEOUT":    "5s",
		"BRIDGE_MAX_PENDING":     "0",
		"BRIDGE_TICK_INTERVAL":   "100ms",
		"COMMS_URL":              "nats://custom:4222",
		"BRIDGE_COMMAND_SUBJECT": "editor.commands",
		"COMMS_TIMEOUT":          "3s",
		"COMMS_RECONNECT_WAIT":   "250ms",
		"COMMS_MAX_RECONNECTS":   "-1",
		"DATABASE_URL":           "postgres://test@localhost/test",
		"RUN_MIGRATIONS":         "true",
		"LOG_LEVEL":              "debug",
	}
	for k, v := range overrides {
		t.Setenv(k, v)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}
	if cfg.BridgeHost != "0.0.0.0" || cfg.BridgePort != 7400 {
		t.Errorf("config:config_test - listener = %s:%d", cfg.BridgeHost, cfg.BridgePort)
	}
	if cfg.ReadTimeout != 5*time.Second || cfg.TickInterval != 100*time.Millisecond {
		t.Errorf("config:config_test - timings = %v, %v", cfg.ReadTimeout, cfg.TickInterval)
	}
	if cfg.BridgeMaxPending() != -1 {
		t.Errorf("config:config_test - BridgeMaxPending = %d, want -1 for unbounded", cfg.BridgeMaxPending())
	}
	if !cfg.CommsEnabled() || cfg.CommandSubject != "editor.commands" {
		t.Errorf("config:config_test - comms = %q %q", cfg.COMMSURL, cfg.CommandSubject)
	}
	if cfg.COMMSTimeout != 3*time.Second || cfg.COMMSReconnectWait != 250*time.Millisecond || cfg.COMMSMaxReconnects != -1 {
		t.Errorf("config:config_test - COMMS connection = %v, %v, %d", cfg.COMMSTimeout, cfg.COMMSReconnectWait, cfg.COMMSMaxReconnects)
	}
	if !cfg.JournalEnabled() || !cfg.RunMigrations {
		t.Errorf("config:config_test - journal settings not applied")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("config:config_test - LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("BRIDGE_READ_TIMEOUT", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Error("config:config_test - expected error for invalid duration")
	}
}

func TestValidateForServe(t *testing.T) {
	base := func() *Config {
		return &Config{
			BridgePort:         6400,
			ReadTimeout:        time.Second,
			BufferSize:         8192,
			MaxPending:         10,
			TickInterval:       time.Millisecond,
			HealthCheckTimeout: time.Second,
			JournalBuffer:      1,
		}
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.BridgePort = 0 }, true},
		{"port too large", func(c *Config) { c.BridgePort = 70000 }, true},
		{"no read timeout", func(c *Config) { c.ReadTimeout = 0 }, true},
		{"no buffer", func(c *Config) { c.BufferSize = 0 }, true},
		{"negative pending", func(c *Config) { c.MaxPending = -1 }, true},
		{"unbounded pending", func(c *Config) { c.MaxPending = 0 }, false},
		{"no tick", func(c *Config) { c.TickInterval = 0 }, true},
		{"no health timeout", func(c *Config) { c.HealthCheckTimeout = 0 }, true},
		{"journal without buffer", func(c *Config) { c.DatabaseURL = "postgres://x/y"; c.JournalBuffer = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			if err := c.ValidateForServe(); (err != nil) != tt.wantErr {
				t.Errorf("config:config_test - err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateForDB(t *testing.T) {
	c := &Config{}
	if err := c.ValidateForDB(); err == nil {
		t.Error("config:config_test - expected error without DATABASE_URL")
	}
	c.DatabaseURL = "postgres://localhost/bridge"
	if err := c.ValidateForDB(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
}
