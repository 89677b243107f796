// Package config loads the docfetch configuration from file and
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the fetch service.
type Config struct {
	Server Server `mapstructure:"server"`
	Cache  Cache  `mapstructure:"cache"`
	Fetch  Fetch  `mapstructure:"fetch"`
	Redis  Redis  `mapstructure:"redis"`
}

// Server contains HTTP server settings.
type Server struct {
	Address string `mapstructure:"address"`
}

// Cache governs the per-session content cache and pagination defaults.
type Cache struct {
	TTL             time.Duration `mapstructure:"ttl"`
	Capacity        int           `mapstructure:"capacity"`
	DefaultPageSize int           `mapstructure:"default_page_size"`
	// Backend selects "memory" or "redis".
	Backend string `mapstructure:"backend"`
	// SweepSchedule is a cron expression for eager expiry of idle
	// sessions; empty disables the sweep.
	SweepSchedule string `mapstructure:"sweep_schedule"`
}

// Fetch configures the upstream fetch+extract collaborator.
type Fetch struct {
	// Mode selects "solverr" (FlareSolverr API) or "browser" (local
	// headless Chrome).
	Mode       string        `mapstructure:"mode"`
	SolverrURL string        `mapstructure:"solverr_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// Redis is used when cache.backend is "redis".
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr required when cache.backend is redis")
	}
	switch c.Fetch.Mode {
	case "solverr", "browser":
	default:
		return fmt.Errorf("fetch.mode must be solverr or browser, got %q", c.Fetch.Mode)
	}
	if c.Fetch.Mode == "solverr" && c.Fetch.SolverrURL == "" {
		return fmt.Errorf("fetch.solverr_url required when fetch.mode is solverr")
	}
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache.capacity must be >= 1")
	}
	if c.Cache.DefaultPageSize < 1 {
		return fmt.Errorf("cache.default_page_size must be >= 1")
	}
	return nil
}

// LoadConfig loads config from path (or the working directory when path
// is empty), with DOCFETCH_* environment variables overriding.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("cache.ttl", "15m")
	v.SetDefault("cache.capacity", 10)
	v.SetDefault("cache.default_page_size", 20000)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.sweep_schedule", "")
	v.SetDefault("fetch.mode", "solverr")
	v.SetDefault("fetch.solverr_url", "http://localhost:8191/v1")
	v.SetDefault("fetch.timeout", "60s")
	v.SetDefault("fetch.user_agent", "docfetch/1.0")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("DOCFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Defaults plus environment are a complete configuration; a
		// missing file is not fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
