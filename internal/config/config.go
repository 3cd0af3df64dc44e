// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

// Duration lets YAML carry Go duration strings ("30s", "2m"). yaml.v3 has
// no native time.Duration support.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SchedulerConfig struct {
	// Workers is the size of the long-lived runner pool; each worker
	// drives at most one job at a time.
	Workers int `yaml:"workers"`

	// MaxActivePerTenant is the single-flight limit: how many jobs of one
	// tenant may be pending/processing/paused at once.
	MaxActivePerTenant int `yaml:"max_active_per_tenant"`

	ClaimInterval     Duration `yaml:"claim_interval"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`

	// PromoteAfter is the aging rule: a low-priority job queued longer
	// than this is promoted to medium.
	PromoteAfter Duration `yaml:"promote_after"`

	// StaleAfter requeues claimed jobs whose worker stopped heartbeating.
	StaleAfter Duration `yaml:"stale_after"`

	SweepInterval Duration `yaml:"sweep_interval"`
}

type GenerationConfig struct {
	// ServiceURL points at the external content-generation service. Empty
	// selects the simulated runner (dev only).
	ServiceURL string `yaml:"service_url"`
	APIKey     string `yaml:"api_key"`

	// PerEmployeeSeconds feeds the job duration estimate.
	PerEmployeeSeconds int `yaml:"per_employee_seconds"`

	// StageTimeout bounds one stage call against the generation service.
	StageTimeout Duration `yaml:"stage_timeout"`
}

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Log       LogConfig        `yaml:"log"`
	Database  DatabaseConfig   `yaml:"database"`
	Redis     RedisConfig      `yaml:"redis"`
	Scheduler SchedulerConfig  `yaml:"scheduler"`
	Generation GenerationConfig `yaml:"generation"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 4
	}
	if cfg.Scheduler.MaxActivePerTenant <= 0 {
		cfg.Scheduler.MaxActivePerTenant = 1
	}
	if cfg.Scheduler.ClaimInterval <= 0 {
		cfg.Scheduler.ClaimInterval = Duration(500 * time.Millisecond)
	}
	if cfg.Scheduler.HeartbeatInterval <= 0 {
		cfg.Scheduler.HeartbeatInterval = Duration(15 * time.Second)
	}
	if cfg.Scheduler.PromoteAfter <= 0 {
		cfg.Scheduler.PromoteAfter = Duration(10 * time.Minute)
	}
	if cfg.Scheduler.StaleAfter <= 0 {
		cfg.Scheduler.StaleAfter = Duration(2 * time.Minute)
	}
	if cfg.Scheduler.SweepInterval <= 0 {
		cfg.Scheduler.SweepInterval = Duration(time.Minute)
	}
	if cfg.Generation.PerEmployeeSeconds <= 0 {
		cfg.Generation.PerEmployeeSeconds = 270
	}
	if cfg.Generation.StageTimeout <= 0 {
		cfg.Generation.StageTimeout = Duration(10 * time.Minute)
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Scheduler.StaleAfter <= cfg.Scheduler.HeartbeatInterval {
		return nil, errors.New("scheduler.stale_after must exceed scheduler.heartbeat_interval")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
