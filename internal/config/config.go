package config

import "time"

// Config is the complete application configuration. Values are layered as
// defaults (SetDefaults), then the user config file, then POSTFORGE_* env vars,
// then command flags.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Tracker TrackerConfig `mapstructure:"tracker"`
	XAPI    XAPIConfig    `mapstructure:"xapi"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// TrackerConfig controls the rate limit and credential cache tracker.
type TrackerConfig struct {
	// Backend selects where tracker state lives: "store" (libsql) or "memory".
	Backend         string        `mapstructure:"backend"`
	Namespace       string        `mapstructure:"namespace"`
	DefaultCooldown time.Duration `mapstructure:"default_cooldown"`
	AuthTTL         time.Duration `mapstructure:"auth_ttl"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxCountdown    time.Duration `mapstructure:"max_countdown"`
}

// XAPIConfig points at the backend endpoints that front the X API.
type XAPIConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	LimitKey string        `mapstructure:"limit_key"`
	AuthKey  string        `mapstructure:"auth_key"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format is the server sink encoding: json or console.
	Format      string `mapstructure:"format"`
	Environment string `mapstructure:"environment"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
