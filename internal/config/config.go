package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the storefront server.
type Config struct {
	// AppID namespaces the product and order collections, user accounts and
	// change notifications. Defaults to "default-app-id".
	AppID string `yaml:"app_id"`

	// HTTPAddr is the listen address of the JSON API. Defaults to ":8080".
	HTTPAddr string `yaml:"http_addr"`

	// GRPCAddr is the listen address of the gRPC API. Empty disables it.
	GRPCAddr string `yaml:"grpc_addr"`

	Database DatabaseConfig `yaml:"database"`

	// Redis enables cross-instance change notifications and the seeding
	// guard. Without it only a single instance may share a database.
	Redis RedisConfig `yaml:"redis"`

	// SessionTTL bounds how long a session token can be resumed.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// ShutdownTimeout bounds graceful shutdown. Defaults to 5s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is "sqlite3" or "mysql".
	Driver string `yaml:"driver"`

	// DSN is the MySQL data source name.
	DSN string `yaml:"dsn"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		AppID:    "default-app-id",
		HTTPAddr: ":8080",
		GRPCAddr: ":50051",
		Database: DatabaseConfig{
			Driver: "sqlite3",
			Path:   "storefront.db",
		},
		SessionTTL:      30 * 24 * time.Hour,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Load reads path on top of the defaults and then applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set("STOREFRONT_APP_ID", &c.AppID)
	set("STOREFRONT_DRIVER", &c.Database.Driver)
	set("MYSQL_DSN", &c.Database.DSN)
	set("SQLITE_PATH", &c.Database.Path)
	set("REDIS_ADDR", &c.Redis.Addr)
	set("REDIS_PASSWORD", &c.Redis.Password)
	set("HTTP_ADDR", &c.HTTPAddr)
	set("GRPC_ADDR", &c.GRPCAddr)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.AppID == "" {
		return errors.New("app_id is required")
	}
	if c.HTTPAddr == "" {
		return errors.New("http_addr is required")
	}

	switch c.Database.Driver {
	case "mysql":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the mysql driver")
		}
	case "sqlite3":
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite3 driver")
		}
	default:
		return fmt.Errorf("database.driver: unknown driver %q (supported: sqlite3, mysql)", c.Database.Driver)
	}

	if c.SessionTTL <= 0 {
		return errors.New("session_ttl must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	return nil
}
