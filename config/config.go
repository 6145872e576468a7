// Package config loads the host configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/govm-net/abihost/logging"
	"github.com/govm-net/abihost/security"
	"github.com/govm-net/abihost/state"
)

// Config is the root of the configuration file.
type Config struct {
	Storage Storage         `yaml:"storage"`
	Limits  security.Limits `yaml:"limits"`
	Log     logging.Config  `yaml:"log"`
	Server  Server          `yaml:"server"`
	Metrics Metrics         `yaml:"metrics"`
	Wasm    Wasm            `yaml:"wasm"`
}

type Storage struct {
	Backend state.BackendType `yaml:"backend"`
	// DataDir holds the state database and the code repository.
	DataDir string `yaml:"data_dir"`
}

// Server is the HTTP API of `abihost serve`.
type Server struct {
	Addr string `yaml:"addr"`
}

// Metrics is the Prometheus listener of `abihost serve`. It is separate from
// the API listener.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type Wasm struct {
	CacheSize int `yaml:"cache_size"`
}

// Default returns a configuration for a local goleveldb-backed host.
func Default() *Config {
	return &Config{
		Storage: Storage{Backend: state.LevelDBBackend, DataDir: "./data"},
		Limits:  security.DefaultLimits(),
		Log:     logging.DefaultConfig(),
		Server:  Server{Addr: ":8080"},
		Metrics: Metrics{Addr: ":9090"},
		Wasm:    Wasm{CacheSize: 64},
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Storage.Backend == "" {
		return fmt.Errorf("storage.backend is empty")
	}
	if c.Storage.DataDir == "" && c.Storage.Backend != state.MemDBBackend {
		return fmt.Errorf("storage.data_dir is empty")
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is empty")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is empty")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == c.Server.Addr {
		return fmt.Errorf("metrics.addr must differ from server.addr")
	}
	if c.Wasm.CacheSize < 0 {
		return fmt.Errorf("wasm.cache_size must not be negative")
	}
	return nil
}

// StateDir is where the state backend keeps its files.
func (c *Config) StateDir() string {
	return filepath.Join(c.Storage.DataDir, "state")
}

// CodeDir is where the code repository keeps wasm modules.
func (c *Config) CodeDir() string {
	return filepath.Join(c.Storage.DataDir, "code")
}
