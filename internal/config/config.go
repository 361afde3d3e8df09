package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all service configuration, loaded from the environment.
type Config struct {
	Service struct {
		Name        string `envconfig:"SERVICE_NAME" default:"be-expenses"`
		Environment string `envconfig:"ENVIRONMENT" default:"development"`
		Version     string `envconfig:"SERVICE_VERSION" default:"dev"`
	}

	Server struct {
		Port            int           `envconfig:"PORT" default:"8080"`
		ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
		WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
		IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
		ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
	}

	Database struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"expenses"`
		SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
		MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
		MinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`
	}

	NATS struct {
		URL string `envconfig:"NATS_URL" default:""`
	}

	Currency struct {
		BaseURL string        `envconfig:"EXCHANGERATE_API_URL" default:"https://api.exchangerate-api.com/v4/latest"`
		Timeout time.Duration `envconfig:"EXCHANGERATE_TIMEOUT" default:"5s"`
	}

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// ConnString builds the Postgres connection string.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User, c.Database.Password,
		c.Database.Host, c.Database.Port,
		c.Database.Name, c.Database.SSLMode)
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
