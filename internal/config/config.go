// Package config loads the modelviz configuration from modelviz.yml with
// environment variable overrides.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config represents the full modelviz configuration
type Config struct {
	// SchemaFile is the YAML model definition file describing the host
	// application's models
	SchemaFile string `mapstructure:"schema_file"`

	// RelationLimit bounds relation previews and is the default
	// expansion page size
	RelationLimit int `mapstructure:"relation_limit"`

	// ExcludedModels are hidden from listing, schema, and edges
	ExcludedModels []string `mapstructure:"excluded_models"`

	// ExcludedAttributes are stripped from serialized instances, matched
	// by exact name or suffix
	ExcludedAttributes []string `mapstructure:"excluded_attributes"`

	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	LogLevel  string          `mapstructure:"log_level"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig selects the relational mapping paradigm when URL is set
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig selects the document mapping paradigm when Addr is set
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AssistantConfig configures the external text-generator command
type AssistantConfig struct {
	Command string `mapstructure:"command"`
}

// Load reads modelviz.yml from the working directory, applying defaults
// and MODELVIZ_* environment overrides. A missing file is not an error;
// the defaults stand.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom reads the configuration from a specific directory
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("schema_file", "modelviz_schema.yml")
	v.SetDefault("relation_limit", 5)
	v.SetDefault("excluded_attributes", []string{"_id", "created_at", "updated_at"})
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 4500)
	v.SetDefault("assistant.command", "")
	v.SetDefault("log_level", "info")

	v.SetConfigName("modelviz")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("MODELVIZ")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file; defaults apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.RelationLimit < 1 {
		return nil, fmt.Errorf("relation_limit must be positive, got %d", cfg.RelationLimit)
	}

	return &cfg, nil
}

// Addr returns the listen address for the HTTP server
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
