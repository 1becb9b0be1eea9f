// Package config loads and validates process configuration. Defaults
// are layered under a YAML base file and overridden by environment
// variables, the same defaults -> file -> env hierarchy the sibling
// service in this codebase uses, simplified to this store's much
// smaller configuration surface.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Server holds HTTP listener configuration.
type Server struct {
	Host            string        `yaml:"host" validate:"required"`
	Port            int           `yaml:"port" validate:"required,min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"required"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"required"`
}

// Database holds the backend connection parameters named in §6: host,
// port, database, user, credential.
type Database struct {
	Host       string `yaml:"host" validate:"required"`
	Port       int    `yaml:"port" validate:"required,min=1,max=65535"`
	Name       string `yaml:"name" validate:"required"`
	User       string `yaml:"user" validate:"required"`
	Credential string `yaml:"credential"`
	SSLMode    string `yaml:"ssl_mode" validate:"required"`
}

// DSN renders the libpq connection string pgx.Connect expects.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Credential, d.SSLMode)
}

// Cache holds the bounded LRU cache's fixed-at-boot capacity.
type Cache struct {
	Capacity int `yaml:"capacity" validate:"min=0"`
}

// Pool holds the connection pool's fixed-at-boot target session count.
type Pool struct {
	Size int `yaml:"size" validate:"required,min=1"`
}

// Config is the complete, validated process configuration.
type Config struct {
	Environment string   `yaml:"environment" validate:"required"`
	LogLevel    string   `yaml:"log_level" validate:"required,oneof=debug info warn error"`
	Server      Server   `yaml:"server" validate:"required"`
	Database    Database `yaml:"database" validate:"required"`
	Cache       Cache    `yaml:"cache"`
	Pool        Pool     `yaml:"pool" validate:"required"`
}

// Addr is the address net/http.Server should listen on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsProduction checks if running in production mode.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func defaultConfig() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: Database{
			Host:    "localhost",
			Port:    5432,
			Name:    "kvstore",
			User:    "kvstore",
			SSLMode: "disable",
		},
		Cache: Cache{Capacity: 1000},
		Pool:  Pool{Size: 10},
	}
}

// Load builds a Config from defaults, overlaid by the YAML file at
// path if it exists, overlaid by environment variables. The result is
// validated before being returned.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := loadFile(path, cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	overlayEnv(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// overlayEnv applies the handful of environment variables this store
// recognizes, the highest-priority layer in the hierarchy. Cache and
// pool capacities are deliberately not overridable here: they are read
// once at Load and never mutated again (see Watch), matching the
// fixed-at-boot lifecycle invariant in §3.
func overlayEnv(cfg *Config) {
	if v := os.Getenv("KVSTORE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("KVSTORE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("KVSTORE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("KVSTORE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("KVSTORE_DB_CREDENTIAL"); v != "" {
		cfg.Database.Credential = v
	}
	if v := os.Getenv("KVSTORE_LISTEN_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("KVSTORE_LISTEN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KVSTORE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
