// Package config loads the server configuration from an optional YAML file
// and LIBRARY_* environment variables. Environment values override file
// values, and flags in cmd/libraryd override both.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names
const (
	EnvPort            = "LIBRARY_PORT"
	EnvGraphQLPath     = "LIBRARY_GRAPHQL_PATH"
	EnvStorageDriver   = "LIBRARY_STORAGE_DRIVER"
	EnvMongoDBURI      = "LIBRARY_MONGODB_URI"
	EnvMongoDBDatabase = "LIBRARY_MONGODB_DATABASE"
	EnvJWTSecret       = "LIBRARY_JWT_SECRET"
	EnvTokenTTL        = "LIBRARY_TOKEN_TTL"
	EnvLogLevel        = "LIBRARY_LOG_LEVEL"
	EnvLogFormat       = "LIBRARY_LOG_FORMAT"
)

// Storage drivers
const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
)

// Config is the full server configuration.
type Config struct {
	// HTTPPort is the port the GraphQL endpoint listens on.
	HTTPPort int `yaml:"port"`
	// GraphQLPath is the URL path the endpoint is mounted at.
	GraphQLPath string `yaml:"graphqlPath"`
	// Storage selects and configures the persistence backend.
	Storage StorageConfig `yaml:"storage"`
	// Auth configures token issuing.
	Auth AuthConfig `yaml:"auth"`
	// Log configures the structured logger.
	Log LogConfig `yaml:"log"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is "memory" or "mongo".
	Driver string `yaml:"driver"`
	// URI is the MongoDB connection string (mongo driver only).
	URI string `yaml:"uri"`
	// Database is the MongoDB database name (mongo driver only).
	Database string `yaml:"database"`
}

// AuthConfig configures token issuing.
type AuthConfig struct {
	// Secret signs and verifies bearer tokens. Required.
	Secret string `yaml:"secret"`
	// TokenTTL is the token lifetime as a duration string (e.g. "1h").
	TokenTTL string `yaml:"tokenTtl"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		HTTPPort:    4000,
		GraphQLPath: "/graphql",
		Storage: StorageConfig{
			Driver:   DriverMemory,
			URI:      "mongodb://localhost:27017",
			Database: "library",
		},
		Auth: AuthConfig{
			TokenTTL: "1h",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// the environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.FromEnv()
	return cfg, nil
}

// FromEnv overlays values from LIBRARY_* environment variables.
// It only sets values that are present in the environment.
func (c *Config) FromEnv() {
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTPPort = port
		}
	}
	if v := os.Getenv(EnvGraphQLPath); v != "" {
		c.GraphQLPath = v
	}
	if v := os.Getenv(EnvStorageDriver); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv(EnvMongoDBURI); v != "" {
		c.Storage.URI = v
	}
	if v := os.Getenv(EnvMongoDBDatabase); v != "" {
		c.Storage.Database = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv(EnvTokenTTL); v != "" {
		c.Auth.TokenTTL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
}

// TokenTTL parses the configured token lifetime.
func (c *Config) TokenTTL() (time.Duration, error) {
	if c.Auth.TokenTTL == "" {
		return time.Hour, nil
	}
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid token TTL %q: %w", c.Auth.TokenTTL, err)
	}
	return d, nil
}

// Validate checks the configuration for operational misconfigurations. A
// missing token secret fails startup rather than degrading silently.
func (c *Config) Validate() error {
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid port %d", c.HTTPPort)
	}
	if c.GraphQLPath == "" || c.GraphQLPath[0] != '/' {
		return fmt.Errorf("graphql path %q must start with /", c.GraphQLPath)
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required (set %s or auth.secret)", EnvJWTSecret)
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.Storage.URI == "" {
			return fmt.Errorf("storage URI is required for the mongo driver")
		}
		if c.Storage.Database == "" {
			return fmt.Errorf("storage database is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	return nil
}
