package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendPebble   = "pebble"
	BackendPostgres = "postgres"
)

// Notifier backends.
const (
	NotifyMemory = "memory"
	NotifyRedis  = "redis"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Store           StoreConfig   `json:"store" yaml:"store" envPrefix:"STORE_"`
	Jobs            JobsConfig    `json:"jobs" yaml:"jobs" envPrefix:"JOBS_"`
	Acquire         AcquireConfig `json:"acquire" yaml:"acquire" envPrefix:"ACQUIRE_"`
	Notify          NotifyConfig  `json:"notify" yaml:"notify" envPrefix:"NOTIFY_"`
	DefaultTenantID string        `json:"defaultTenantId" yaml:"defaultTenantId" env:"DEFAULT_TENANT_ID"`
}

// StoreConfig selects the job store backend.
type StoreConfig struct {
	Backend     string `json:"backend" yaml:"backend" env:"BACKEND"`
	PostgresDSN string `json:"postgresDsn" yaml:"postgresDsn" env:"POSTGRES_DSN"`
}

// JobsConfig carries job lifecycle defaults.
type JobsConfig struct {
	DefaultRetries      int      `json:"defaultRetries" yaml:"defaultRetries" env:"DEFAULT_RETRIES"`
	DefaultRetryTimeout Duration `json:"defaultRetryTimeout" yaml:"defaultRetryTimeout" env:"DEFAULT_RETRY_TIMEOUT"`
	DefaultLockDuration Duration `json:"defaultLockDuration" yaml:"defaultLockDuration" env:"DEFAULT_LOCK_DURATION"`
	MaxJobsPerAcquire   int      `json:"maxJobsPerAcquire" yaml:"maxJobsPerAcquire" env:"MAX_JOBS_PER_ACQUIRE"`
}

// AcquireConfig bounds long-poll acquisition in the transports.
type AcquireConfig struct {
	MaxWait Duration `json:"maxWait" yaml:"maxWait" env:"MAX_WAIT"`
}

// NotifyConfig selects how job availability is broadcast to pollers.
type NotifyConfig struct {
	Backend       string `json:"backend" yaml:"backend" env:"BACKEND"`
	RedisAddr     string `json:"redisAddr" yaml:"redisAddr" env:"REDIS_ADDR"`
	RedisPassword string `json:"redisPassword" yaml:"redisPassword" env:"REDIS_PASSWORD"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Store: StoreConfig{Backend: BackendPebble},
		Jobs: JobsConfig{
			DefaultRetries:      3,
			DefaultRetryTimeout: Duration(10 * time.Second),
			DefaultLockDuration: Duration(5 * time.Minute),
			MaxJobsPerAcquire:   100,
		},
		Acquire: AcquireConfig{MaxWait: Duration(30 * time.Second)},
		Notify:  NotifyConfig{Backend: NotifyMemory},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, cfg.Validate()
}

// FromEnv overlays XWORK_* environment variables onto cfg.
func FromEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "XWORK_"}); err != nil {
		return fmt.Errorf("config from env: %w", err)
	}
	return cfg.Validate()
}

// Validate checks backend names and positive defaults.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendPebble:
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store backend %q requires postgresDsn", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Notify.Backend {
	case NotifyMemory:
	case NotifyRedis:
		if c.Notify.RedisAddr == "" {
			return fmt.Errorf("notify backend %q requires redisAddr", c.Notify.Backend)
		}
	default:
		return fmt.Errorf("unknown notify backend %q", c.Notify.Backend)
	}
	if c.Jobs.DefaultRetries < 1 {
		return fmt.Errorf("jobs.defaultRetries must be at least 1")
	}
	if c.Jobs.DefaultLockDuration <= 0 || c.Jobs.DefaultRetryTimeout < 0 {
		return fmt.Errorf("jobs durations must be positive")
	}
	if c.Jobs.MaxJobsPerAcquire < 1 {
		return fmt.Errorf("jobs.maxJobsPerAcquire must be at least 1")
	}
	return nil
}

// Duration is a time.Duration that reads "10s"-style strings from JSON, YAML and env.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}
