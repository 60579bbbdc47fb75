/*
Package config loads runtime settings for the server and the batch CLI.

PRECEDENCE (lowest to highest):
  1. Defaults()
  2. YAML file (optional, -config flag)
  3. Environment: PICK_PORT, PICK_DB, PICK_LOG_LEVEL, PICK_LOG_FORMAT,
     PICK_CORS_ORIGINS (comma separated), PICK_DISPATCH_INTERVAL
     (Go duration, "0" disables the scheduler)
  4. Command-line flags, applied by the caller

EXAMPLE FILE:
  server:
    port: 8080
    cors_origins: ["http://localhost:5173"]
    write_rate: 20
    write_burst: 40
  database:
    path: pick.db
  log:
    level: debug
    format: text
  planning:
    max_orders_per_run: 10000
  dispatch:
    enabled: true
    interval: 30s
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Planning PlanningConfig `yaml:"planning"`
	Dispatch DispatchConfig `yaml:"dispatch"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`

	// WriteRate limits POST/PUT requests per second across all clients. 0 disables.
	WriteRate  float64 `yaml:"write_rate"`
	WriteBurst int     `yaml:"write_burst"`
}

type DatabaseConfig struct {
	// Path of the SQLite file. Empty keeps everything in memory.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PlanningConfig struct {
	// MaxOrdersPerRun caps a single API request. 0 means unlimited.
	MaxOrdersPerRun int `yaml:"max_orders_per_run"`
}

type DispatchConfig struct {
	// Enabled starts the wave scheduler in the server.
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Log:      LogConfig{Level: "info", Format: "json"},
		Planning: PlanningConfig{MaxOrdersPerRun: 10000},
		Dispatch: DispatchConfig{Enabled: true, Interval: time.Minute},
	}
}

// Load reads path (if non-empty) over the defaults, then applies the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.Server.Port = envOrInt("PICK_PORT", c.Server.Port)
	c.Database.Path = envOr("PICK_DB", c.Database.Path)
	c.Log.Level = envOr("PICK_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("PICK_LOG_FORMAT", c.Log.Format)
	if v, ok := os.LookupEnv("PICK_CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}
	if v, ok := os.LookupEnv("PICK_DISPATCH_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.Dispatch.Interval = d
			c.Dispatch.Enabled = d > 0
		}
	}
}

// Validate rejects settings the binaries cannot run with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.WriteRate < 0 || c.Server.WriteBurst < 0 {
		return fmt.Errorf("write rate and burst cannot be negative")
	}
	if c.Planning.MaxOrdersPerRun < 0 {
		return fmt.Errorf("max_orders_per_run cannot be negative, got %d", c.Planning.MaxOrdersPerRun)
	}
	if c.Dispatch.Enabled && c.Dispatch.Interval <= 0 {
		return fmt.Errorf("dispatch interval must be positive, got %s", c.Dispatch.Interval)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
