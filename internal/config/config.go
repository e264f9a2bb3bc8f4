// Package config handles faster-ee configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// searchPathsFunc is overridden in tests to avoid finding real config
// files on developer/deploy machines.
var searchPathsFunc = DefaultSearchPaths

// DefaultSearchPaths returns the config file search order. An
// explicit path (from -config) is checked first. Then: ./config.yaml,
// ~/.config/faster-ee/config.yaml, /config/config.yaml,
// /etc/faster-ee/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "faster-ee", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/faster-ee/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise, searches searchPathsFunc() and returns the first
// path that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range searchPathsFunc() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPathsFunc())
}

// CurveConfig names the on-disk key files for the router front-end's
// optional transport encryption (§6's "(public_key, secret_key)
// pair"). Both empty disables encryption.
type CurveConfig struct {
	PublicKeyFile  string `yaml:"public_key_file"`
	PrivateKeyFile string `yaml:"private_key_file"`
}

// Enabled reports whether curve key files were configured.
func (c CurveConfig) Enabled() bool {
	return c.PublicKeyFile != "" && c.PrivateKeyFile != ""
}

// Config holds all faster-ee configuration (spec.md §6 plus the
// ambient-stack additions for logging, the admin surface, the
// terminal-outcome archive, and the ops-telemetry bridge).
type Config struct {
	// Address is the router front-end's bind address, e.g. ":8889".
	Address string `yaml:"address"`
	// ServerCurve configures optional transport-level authenticated
	// encryption. Unset means plaintext.
	ServerCurve CurveConfig `yaml:"server_curve"`
	// MaxBatchSize bounds events collected per batch window (default 500).
	MaxBatchSize int `yaml:"max_batch_size"`
	// BatchingInterval bounds a batch window's wall-clock duration (default 1s).
	BatchingInterval time.Duration `yaml:"batching_interval"`
	// HeartbeatInterval is how often a BEAT is emitted to a non-empty
	// client set (default 5s).
	HeartbeatInterval time.Duration `yaml:"heartbeat_timeout"`
	// Linger bounds how long the router waits for in-flight sends
	// before closing on shutdown.
	Linger time.Duration `yaml:"linger"`

	// AdminListen is the debug HTTP surface's bind address
	// (/healthz, /snapshot, /stats). Empty disables it.
	AdminListen string `yaml:"admin_listen"`
	// AuditDBPath is the sqlite file backing the best-effort
	// terminal-outcome archive. Empty disables the archive.
	AuditDBPath string `yaml:"audit_db_path"`
	// MQTTBrokerURL is the ops-telemetry bridge's broker. Empty
	// disables the bridge.
	MQTTBrokerURL string `yaml:"mqtt_broker_url"`

	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from a YAML file, overlays a sibling
// .env file if present, expands environment variables, applies
// defaults for any unset fields, and validates the result.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load .env overlay: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults, so
// callers can read any field after Load without further checks.
func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = ":8889"
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = 500
	}
	if c.BatchingInterval == 0 {
		c.BatchingInterval = time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.Linger == 0 {
		c.Linger = time.Second
	}
}

// Validate checks that the configuration is internally consistent. It
// runs after applyDefaults, so it can assume defaults are populated.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address must not be empty")
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("max_batch_size %d must be positive", c.MaxBatchSize)
	}
	if c.ServerCurve.PublicKeyFile != "" && c.ServerCurve.PrivateKeyFile == "" {
		return fmt.Errorf("server_curve.private_key_file is required when public_key_file is set")
	}
	if c.ServerCurve.PrivateKeyFile != "" && c.ServerCurve.PublicKeyFile == "" {
		return fmt.Errorf("server_curve.public_key_file is required when private_key_file is set")
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a default configuration suitable for local
// development: plaintext transport on ":8889", no admin surface, no
// audit archive, no ops bridge.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
