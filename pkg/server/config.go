package server

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds server configuration, loaded from a yaml file with flag
// overrides applied by the CLI.
type Config struct {
	// ServerID is this replica's uuid, stamped into every cid it issues.
	ServerID uuid.UUID `yaml:"server_id"`

	// Domain is the authority domain, used to derive spns (name@domain).
	Domain string `yaml:"domain"`

	// DataDir is where the entry database lives.
	DataDir string `yaml:"data_dir"`

	LogLevel    string `yaml:"log_level"`
	LogJSON     bool   `yaml:"log_json"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// LoadConfig reads a yaml config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, cfg.Validate()
}

// Validate fills defaults and rejects unusable configuration.
func (c *Config) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("domain must be set")
	}
	if c.ServerID == uuid.Nil {
		c.ServerID = uuid.New()
	}
	if c.DataDir == "" {
		c.DataDir = "/var/lib/warden"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}
