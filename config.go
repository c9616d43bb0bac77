package criteria

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// =====================================
// Configuration
// =====================================

// EnvPrefix is the prefix of environment variables read by LoadConfig.
const EnvPrefix = "CRITERIA_"

// Config represents database connection configuration
type Config struct {
	// Connection details
	Driver        string `json:"driver" yaml:"driver" env:"DRIVER"`
	ConnectionURL string `json:"connection_url" yaml:"connection_url" env:"CONNECTION_URL"`
	Host          string `json:"host" yaml:"host" env:"HOST"`
	Port          int    `json:"port" yaml:"port" env:"PORT"`
	Database      string `json:"database" yaml:"database" env:"DATABASE"`
	Username      string `json:"username" yaml:"username" env:"USERNAME"`
	Password      string `json:"password" yaml:"password" env:"PASSWORD"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`

	// Additional options, keyed by adapter name
	Options map[string]interface{} `json:"options" yaml:"options"`

	// SSL/TLS configuration
	SSL SSLConfig `json:"ssl" yaml:"ssl" envPrefix:"SSL_"`

	// Logging
	Log LogConfig `json:"log" yaml:"log" envPrefix:"LOG_"`
}

// SSLConfig represents SSL/TLS configuration
type SSLConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Mode     string `json:"mode" yaml:"mode" env:"MODE"`
	CertFile string `json:"cert_file" yaml:"cert_file" env:"CERT_FILE"`
	KeyFile  string `json:"key_file" yaml:"key_file" env:"KEY_FILE"`
	CAFile   string `json:"ca_file" yaml:"ca_file" env:"CA_FILE"`
}

// DefaultConfig returns an in-memory SQLite configuration.
func DefaultConfig() Config {
	return Config{
		Driver:   "sqlite3",
		Database: ":memory:",
		Log:      LogConfig{Level: "info"},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and then applies CRITERIA_*
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, NewErrorWithCause(ErrorTypeInvalidArgument, fmt.Sprintf("read config %s", path), err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, NewErrorWithCause(ErrorTypeSerialization, fmt.Sprintf("parse config %s", path), err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, NewErrorWithCause(ErrorTypeInvalidArgument, "parse environment", err)
	}

	if cfg.Driver == "" {
		return cfg, NewError(ErrorTypeInvalidArgument, "driver is required")
	}
	return cfg, nil
}

// Option returns the adapter-specific option map stored under name, or nil.
func (c Config) Option(name string) map[string]interface{} {
	if opts, ok := c.Options[name].(map[string]interface{}); ok {
		return opts
	}
	return nil
}
