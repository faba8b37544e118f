// Package gwconfig loads the gateway's process configuration: a typed
// struct populated from an optional JSON file and then overridden from
// the environment, matching SPEC_FULL.md section 2.2.
package gwconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every environment-tunable of SPEC_FULL.md / spec.md section 6.
type Config struct {
	Database DatabaseConfig `json:"database"`
	Cache    CacheConfig    `json:"cache"`
	Worker   WorkerConfig   `json:"worker"`
	Auth     AuthConfig     `json:"auth"`
	Admin    AdminConfig    `json:"admin"`
	Logging  LoggingConfig  `json:"logging"`

	// Workers is the static worker list: operators declare fleet members
	// here instead of (or in addition to) registering them through the
	// API. Watcher reloads this list on file change so the fleet can grow
	// or shrink without a restart.
	Workers []StaticWorker `json:"workers"`
}

// StaticWorker is one fleet member declared in the config file's worker
// list, as opposed to one registered at runtime through the API. Enabled
// takes Go's zero value (false) when omitted from JSON, so operators must
// set it explicitly to admit the worker.
type StaticWorker struct {
	BaseURL     string `json:"base_url"`
	DisplayName string `json:"display_name"`
	Weight      int    `json:"weight"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Enabled     bool   `json:"enabled"`
}

// DatabaseConfig configures the relational persistence backend.
type DatabaseConfig struct {
	DSN            string `json:"dsn"`
	MaxConnections int32  `json:"max_connections"`
	MigrationsPath string `json:"migrations_path"`
}

// CacheConfig configures the remote key-value persistence backend.
type CacheConfig struct {
	URL            string        `json:"url"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	QueueCacheTTL  time.Duration `json:"queue_cache_ttl"`
}

// WorkerConfig configures outbound calls to fleet workers and the
// background loops that poll them.
type WorkerConfig struct {
	RequestTimeout    time.Duration `json:"request_timeout"`
	HealthTimeout     time.Duration `json:"health_timeout"`
	QueueProbeTimeout time.Duration `json:"queue_probe_timeout"`
	DispatcherTick    time.Duration `json:"dispatcher_tick"`
	DispatcherBatch   int           `json:"dispatcher_batch"`
	ProberInterval    time.Duration `json:"prober_interval"`
	WSReconnectEvery  time.Duration `json:"ws_reconnect_every"`

	// HistorySweepCron is a robfig/cron seconds-enabled 6-field schedule
	// (e.g. "0 */5 * * * *") for the history service's full reconciliation
	// sweep. Empty disables the scheduled sweep, leaving only List's
	// on-demand reconciliation.
	HistorySweepCron string `json:"history_sweep_cron"`
}

// AuthConfig is the process-wide fallback worker auth pair.
type AuthConfig struct {
	GlobalUsername string `json:"global_username"`
	GlobalPassword string `json:"global_password"`
}

// AdminConfig carries the out-of-scope admin-login collaborator's secrets
// through the gateway's config surface; the core never reads these itself.
type AdminConfig struct {
	JWTSecret   string        `json:"jwt_secret"`
	JWTLifetime time.Duration `json:"jwt_lifetime"`
	Username    string        `json:"username"`
	Password    string        `json:"password"`
}

// LoggingConfig selects the logger's level/format.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns the gateway's built-in defaults (spec.md section 4/6).
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			ConnectTimeout: 3 * time.Second,
			QueueCacheTTL:  5 * time.Second,
		},
		Worker: WorkerConfig{
			RequestTimeout:    30 * time.Second,
			HealthTimeout:     5 * time.Second,
			QueueProbeTimeout: 5 * time.Second,
			DispatcherTick:    time.Second,
			DispatcherBatch:   20,
			ProberInterval:    30 * time.Second,
			WSReconnectEvery:  30 * time.Second,
		},
		Admin: AdminConfig{
			JWTLifetime: 24 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds a Config starting from Default, optionally merging a JSON
// file, then applying environment variable overrides.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	if v := os.Getenv("GATEWAY_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("GATEWAY_DB_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Database.MaxConnections = int32(n)
		}
	}
	if v := os.Getenv("GATEWAY_DB_MIGRATIONS_PATH"); v != "" {
		c.Database.MigrationsPath = v
	}
	if v := os.Getenv("GATEWAY_CACHE_URL"); v != "" {
		c.Cache.URL = v
	}
	if v := os.Getenv("GATEWAY_QUEUE_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.QueueCacheTTL = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("GATEWAY_WORKER_REQUEST_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Worker.RequestTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("GATEWAY_DISPATCHER_TICK_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Worker.DispatcherTick = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("GATEWAY_DISPATCHER_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Worker.DispatcherBatch = n
		}
	}
	if v := os.Getenv("GATEWAY_PROBER_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Worker.ProberInterval = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("GATEWAY_HISTORY_SWEEP_CRON"); v != "" {
		c.Worker.HistorySweepCron = v
	}
	if v := os.Getenv("GATEWAY_GLOBAL_WORKER_USERNAME"); v != "" {
		c.Auth.GlobalUsername = v
	}
	if v := os.Getenv("GATEWAY_GLOBAL_WORKER_PASSWORD"); v != "" {
		c.Auth.GlobalPassword = v
	}
	if v := os.Getenv("GATEWAY_JWT_SECRET"); v != "" {
		c.Admin.JWTSecret = v
	}
	if v := os.Getenv("GATEWAY_JWT_LIFETIME_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Admin.JWTLifetime = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("GATEWAY_ADMIN_USERNAME"); v != "" {
		c.Admin.Username = v
	}
	if v := os.Getenv("GATEWAY_ADMIN_PASSWORD"); v != "" {
		c.Admin.Password = v
	}
	if v := os.Getenv("GATEWAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GATEWAY_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Worker.DispatcherBatch <= 0 {
		return fmt.Errorf("dispatcher batch size must be positive, got %d", c.Worker.DispatcherBatch)
	}
	if c.Worker.RequestTimeout <= 0 {
		return fmt.Errorf("worker request timeout must be positive")
	}
	return nil
}

// UsesDatabase reports whether the relational backend is configured.
func (c *Config) UsesDatabase() bool { return c.Database.DSN != "" }

// UsesCache reports whether the remote cache backend is configured.
func (c *Config) UsesCache() bool { return c.Cache.URL != "" }
