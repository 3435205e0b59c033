// Package config loads the stepflow API configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Journal  JournalConfig  `yaml:"journal"`
	EventBus EventBusConfig `yaml:"event_bus"`
	Log      LogConfig      `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

// DatabaseConfig selects the flow version store by URL scheme
// (file://, postgres://).
type DatabaseConfig struct {
	URL string `yaml:"url" validate:"required"`
}

// JournalConfig selects the run journal store (file://, redis://).
// An empty URL stores journals next to flow versions.
type JournalConfig struct {
	URL        string `yaml:"url"`
	TTLSeconds int    `yaml:"ttl_seconds" validate:"gte=0"`
}

type EventBusConfig struct {
	Provider string   `yaml:"provider" validate:"oneof=gochannel kafka"`
	Brokers  []string `yaml:"brokers"  validate:"required_if=Provider kafka"`
	Topic    string   `yaml:"topic"    validate:"required"`
}

type LogConfig struct {
	Level  string `yaml:"level"  validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 9091},
		Database: DatabaseConfig{URL: "file://./data"},
		EventBus: EventBusConfig{Provider: "gochannel", Topic: "stepflow.events"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Tracing:  TracingConfig{ServiceName: "stepflow-api"},
	}
}

// Load reads a YAML file over Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault is Load, with Default when path is empty or missing.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}
