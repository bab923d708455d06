// Package config loads the process configuration once at startup.
// Values come from an optional YAML file overridden by environment
// variables; nothing is hot-reloaded. Validation is all-or-nothing: a
// missing setting for the chosen database provider aborts startup with the
// full list of what is absent.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// DatabaseProvider selects the storage backend for the process lifetime.
type DatabaseProvider string

const (
	ProviderPostgreSQL DatabaseProvider = "postgresql"
	ProviderDynamoDB   DatabaseProvider = "dynamodb"
)

// Config holds all application configuration.
type Config struct {
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`
	LogLevel      string `yaml:"log_level"`

	DatabaseProvider DatabaseProvider `yaml:"database_provider"`

	// PostgreSQL settings, required when the provider is "postgresql".
	Postgres PostgresConfig `yaml:"postgres"`

	// DynamoDB settings, required when the provider is "dynamodb".
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`

	// ProbeTimeout bounds the health probe call against the active backend.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// RequestTimeout bounds each HTTP request, and with it every backend
	// call made on the request's context.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// AuthDisabled turns off API key authentication. Meant for local
	// development and the window before the first key is issued.
	AuthDisabled bool `yaml:"auth_disabled"`
}

// PostgresConfig carries the relational backend's connection settings.
type PostgresConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DynamoDBConfig carries the key-value backend's settings.
type DynamoDBConfig struct {
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"` // optional override for local testing
	TablePrefix string `yaml:"table_prefix"`

	// MaxTransactItems caps a single atomic multi-item write. DynamoDB
	// rejects transactions above 100 items; deployments may lower this.
	MaxTransactItems int `yaml:"max_transact_items"`
}

// Load reads the optional YAML file named by IDP_CONFIG_FILE, applies
// environment overrides, and validates the result.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("IDP_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, pkgerrors.NewConfigurationError(fmt.Sprintf("read config file %s: %v", path, err))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, pkgerrors.NewConfigurationError(fmt.Sprintf("parse config file %s: %v", path, err))
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ServerAddress:    ":8080",
		Environment:      "development",
		LogLevel:         "info",
		DatabaseProvider: ProviderPostgreSQL,
		Postgres: PostgresConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		DynamoDB: DynamoDBConfig{
			TablePrefix:      "idp_",
			MaxTransactItems: 25,
		},
		ProbeTimeout:   2 * time.Second,
		RequestTimeout: 15 * time.Second,
	}
}

func applyEnv(cfg *Config) {
	cfg.ServerAddress = getEnv("SERVER_ADDRESS", cfg.ServerAddress)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if v := os.Getenv("IDP_DATABASE_PROVIDER"); v != "" {
		cfg.DatabaseProvider = DatabaseProvider(strings.ToLower(v))
	}

	cfg.Postgres.URL = getEnv("DATABASE_URL", cfg.Postgres.URL)
	cfg.Postgres.User = getEnv("DATABASE_USER", cfg.Postgres.User)
	cfg.Postgres.Password = getEnv("DATABASE_PASSWORD", cfg.Postgres.Password)

	cfg.DynamoDB.Region = getEnv("AWS_REGION", cfg.DynamoDB.Region)
	cfg.DynamoDB.Endpoint = getEnv("DYNAMODB_ENDPOINT", cfg.DynamoDB.Endpoint)
	cfg.DynamoDB.TablePrefix = getEnv("DYNAMODB_TABLE_PREFIX", cfg.DynamoDB.TablePrefix)
	cfg.DynamoDB.MaxTransactItems = getEnvInt("DYNAMODB_MAX_TRANSACT_ITEMS", cfg.DynamoDB.MaxTransactItems)

	if d := getEnvDuration("PROBE_TIMEOUT", 0); d > 0 {
		cfg.ProbeTimeout = d
	}
	if d := getEnvDuration("REQUEST_TIMEOUT", 0); d > 0 {
		cfg.RequestTimeout = d
	}

	if v := os.Getenv("IDP_AUTH_DISABLED"); v != "" {
		cfg.AuthDisabled = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate checks provider selection and the settings the chosen provider
// needs. Every missing setting is reported, not just the first.
func (c *Config) Validate() error {
	switch c.DatabaseProvider {
	case ProviderPostgreSQL, ProviderDynamoDB:
	default:
		return pkgerrors.NewConfigurationError(fmt.Sprintf(
			"invalid database provider %q (valid: %s, %s)",
			c.DatabaseProvider, ProviderPostgreSQL, ProviderDynamoDB))
	}

	var missing []string
	switch c.DatabaseProvider {
	case ProviderPostgreSQL:
		if c.Postgres.URL == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if c.Postgres.User == "" && !strings.Contains(c.Postgres.URL, "@") {
			missing = append(missing, "DATABASE_USER")
		}
		if c.Postgres.Password == "" && !strings.Contains(c.Postgres.URL, "@") {
			missing = append(missing, "DATABASE_PASSWORD")
		}
	case ProviderDynamoDB:
		if c.DynamoDB.Region == "" {
			missing = append(missing, "AWS_REGION")
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return pkgerrors.NewConfigurationError(fmt.Sprintf(
			"missing required settings for provider %q: %s",
			c.DatabaseProvider, strings.Join(missing, ", ")))
	}

	if c.DatabaseProvider == ProviderDynamoDB {
		if c.DynamoDB.MaxTransactItems < 1 || c.DynamoDB.MaxTransactItems > 100 {
			return pkgerrors.NewConfigurationError(fmt.Sprintf(
				"DYNAMODB_MAX_TRANSACT_ITEMS must be between 1 and 100, got %d",
				c.DynamoDB.MaxTransactItems))
		}
	}

	if c.ProbeTimeout <= 0 {
		return pkgerrors.NewConfigurationError("PROBE_TIMEOUT must be positive")
	}
	if c.RequestTimeout <= 0 {
		return pkgerrors.NewConfigurationError("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// IsProduction checks if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
