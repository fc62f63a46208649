package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// SchedulerConfig holds the scheduling-domain configuration.
type SchedulerConfig struct {
	// Timezone is the scheduling domain's calendar time zone; day and
	// week boundaries are computed in it.
	Timezone string `yaml:"timezone"`

	// LockWaitMillis bounds how long a proposal waits for contended
	// resource locks before failing with a lock timeout.
	LockWaitMillis int           `yaml:"lock_wait_millis"`
	LockWait       time.Duration `yaml:"-"` // Ignored by YAML parser

	// Default operating window used for timeline projection when the
	// caller does not supply one, e.g. "06:00"–"20:00".
	OperatingWindowStart string `yaml:"operating_window_start"`
	OperatingWindowEnd   string `yaml:"operating_window_end"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnableRangeIndexes     bool   `yaml:"enable_range_indexes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "UTC"
	}

	if cfg.Scheduler.LockWaitMillis <= 0 {
		cfg.Scheduler.LockWaitMillis = 2000
	}
	cfg.Scheduler.LockWait = time.Duration(cfg.Scheduler.LockWaitMillis) * time.Millisecond

	if cfg.Scheduler.OperatingWindowStart == "" {
		cfg.Scheduler.OperatingWindowStart = "06:00"
	}
	if cfg.Scheduler.OperatingWindowEnd == "" {
		cfg.Scheduler.OperatingWindowEnd = "20:00"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
