// Package config provides configuration types and loading for ShiftGate.
//
// Configuration comes from a shiftgate.yaml file, overridable via
// SHIFTGATE_* environment variables. The store backend selects where
// policies, override requests, and break entries live:
//
//   - "memory":   volatile, for development and tests
//   - "sqlite":   embedded single-node persistence (default)
//   - "postgres": shared persistence for multi-node deployments
package config

// Config is the top-level configuration for the shiftgate server.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Store configures the persistence backend.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Overrides configures the override approval workflow.
	Overrides OverrideConfig `yaml:"overrides" mapstructure:"overrides"`

	// Notify configures outbound notifications.
	Notify NotifyConfig `yaml:"notify" mapstructure:"notify"`

	// DevMode enables development features (verbose logging, memory store
	// fallback when no backend is configured).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server. TLS is expected to terminate at a
// reverse proxy.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// ShutdownTimeout is how long to wait for in-flight requests on shutdown
	// (e.g., "10s"). Defaults to "10s".
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"omitempty"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is one of "memory", "sqlite", "postgres".
	// Defaults to "sqlite".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=memory sqlite postgres"`

	// SQLitePath is the database file path for the sqlite backend.
	// Defaults to "shiftgate.db". ":memory:" gives an ephemeral database.
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`

	// PostgresDSN is the connection string for the postgres backend.
	// Required when Backend is "postgres".
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
}

// OverrideConfig configures the override approval workflow.
type OverrideConfig struct {
	// ConsumptionWindow is how long an approved override stays usable,
	// measured from its creation (e.g., "24h"). Defaults to "24h".
	ConsumptionWindow string `yaml:"consumption_window" mapstructure:"consumption_window" validate:"omitempty"`

	// DecisionCacheSize is the number of clock decisions to keep in the LRU
	// cache. 0 disables caching. Defaults to 1000.
	DecisionCacheSize int `yaml:"decision_cache_size" mapstructure:"decision_cache_size" validate:"omitempty,min=0"`
}

// NotifyConfig configures the async notification dispatcher.
type NotifyConfig struct {
	// QueueSize is the buffer size of the notification queue.
	// Defaults to 256.
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size" validate:"omitempty,min=1"`

	// SendTimeout is how long to block when the queue is full before
	// dropping (e.g., "50ms"). Defaults to "50ms".
	SendTimeout string `yaml:"send_timeout" mapstructure:"send_timeout" validate:"omitempty"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Bind to localhost only by default. Network access requires an explicit
	// http_addr like ":8080" or "0.0.0.0:8080".
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "sqlite"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "shiftgate.db"
	}

	if c.Overrides.ConsumptionWindow == "" {
		c.Overrides.ConsumptionWindow = "24h"
	}
	if c.Overrides.DecisionCacheSize == 0 {
		c.Overrides.DecisionCacheSize = 1000
	}

	if c.Notify.QueueSize == 0 {
		c.Notify.QueueSize = 256
	}
	if c.Notify.SendTimeout == "" {
		c.Notify.SendTimeout = "50ms"
	}
}

// SetDevDefaults applies permissive defaults for development mode. Applied
// after SetDefaults and before validation.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	c.Server.LogLevel = "debug"
	if c.Store.Backend == "sqlite" && c.Store.SQLitePath == "shiftgate.db" {
		c.Store.SQLitePath = ":memory:"
	}
}
