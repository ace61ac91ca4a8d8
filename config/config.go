// Package config loads the application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backends that can serve the engagement store.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
)

// Config holds the configuration values read from the environment.
type Config struct {
	Backend     string `mapstructure:"TWEETS_BACKEND"`
	PostgresDSN string `mapstructure:"POSTGRES_DSN"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
}

// Load reads the configuration from the environment. Variables in a .env file
// in the working directory are loaded first, without overriding the
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err.Error())
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("TWEETS_BACKEND", BackendPostgres)
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &c, nil
}

// Validate checks that the connection descriptor of the selected backend is
// set.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres backend")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo backend")
		}
	case BackendRedis:
	default:
		return fmt.Errorf("unknown TWEETS_BACKEND %q", c.Backend)
	}
	if c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required")
	}
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}
