// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-playground/validator/v10"
)

// Config represents the CLI configuration that can be loaded from a JSON
// file. All fields are optional; missing values use defaults or must be
// provided via CLI flags.
type Config struct {
	// Database
	DatabaseURL string `json:"database_url,omitempty"` // Full PostgreSQL connection URL; wins over the host/port fields
	DBHost      string `json:"db_host,omitempty"`
	DBPort      int    `json:"db_port,omitempty"      validate:"min=0,max=65535"`
	DBName      string `json:"db_name,omitempty"`
	DBUser      string `json:"db_user,omitempty"`
	DBPassword  string `json:"db_password,omitempty"`

	// Behavior
	Simulate         bool `json:"simulate,omitempty"`          // Never touch the store; print the candidate document
	UpdateDuplicates bool `json:"update_duplicates,omitempty"` // Update already-stored directories instead of skipping
	ParseDOS         bool `json:"parse_dos,omitempty"`         // Capture density-of-states payloads
	Workers          int  `json:"workers,omitempty"            validate:"min=0"`
	Verbose          bool `json:"verbose,omitempty"`

	// Document defaults
	AdditionalFields map[string]any `json:"additional_fields,omitempty"` // Static fields merged into every document root
	Tags             []string       `json:"tags,omitempty"`
	Author           string         `json:"author,omitempty"`

	// External collaborators
	StabilityAPIKey string `json:"stability_api_key,omitempty"` // Enables the phase-stability enrichment step
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.DatabaseURL == "" && c.DBHost != "" && c.DBName == "" {
		return fmt.Errorf("config error: 'db_name' is required when 'db_host' is set")
	}
	return nil
}

// DSN returns the PostgreSQL connection string. An explicit database_url
// wins; otherwise one is assembled from the individual fields.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DBHost == "" {
		return ""
	}
	port := c.DBPort
	if port == 0 {
		port = 5432
	}
	auth := c.DBUser
	if c.DBPassword != "" {
		auth += ":" + c.DBPassword
	}
	if auth != "" {
		auth += "@"
	}
	return fmt.Sprintf("postgres://%s%s:%d/%s", auth, c.DBHost, port, c.DBName)
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults. This is used to apply config file values as defaults for CLI
// flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.DBHost == "" {
		result.DBHost = defaults.DBHost
	}
	if result.DBName == "" {
		result.DBName = defaults.DBName
	}
	if result.DBUser == "" {
		result.DBUser = defaults.DBUser
	}
	if result.DBPassword == "" {
		result.DBPassword = defaults.DBPassword
	}
	if result.Author == "" {
		result.Author = defaults.Author
	}
	if result.StabilityAPIKey == "" {
		result.StabilityAPIKey = defaults.StabilityAPIKey
	}

	// Int fields: use default if zero
	if result.DBPort == 0 {
		result.DBPort = defaults.DBPort
	}
	if result.Workers == 0 {
		if defaults.Workers > 0 {
			result.Workers = defaults.Workers
		} else {
			result.Workers = runtime.NumCPU()
		}
	}

	if result.AdditionalFields == nil {
		result.AdditionalFields = defaults.AdditionalFields
	}
	if result.Tags == nil {
		result.Tags = defaults.Tags
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
