// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Capacity holds the capacity-model knobs from spec.md §4.3/§6.
type Capacity struct {
	TotalUnits   int     `mapstructure:"total_units"`
	ReserveUnits int     `mapstructure:"reserve_units"`
	HeadroomPct  float64 `mapstructure:"headroom_pct"`
}

// Lease holds lease-lifecycle knobs from spec.md §6.
type Lease struct {
	TTL                     time.Duration `mapstructure:"ttl"`
	HeartbeatGrace          time.Duration `mapstructure:"heartbeat_grace"`
	MaxActiveLeases         int           `mapstructure:"max_active_leases"`
	MaxActiveLeasesPerOwner int           `mapstructure:"max_active_leases_per_owner"`
}

// BusyRating holds the fail-closed default and a staleness window.
// StaleAfter is loaded but not passed to the evaluator, whose host-stats
// staleness window is fixed at 30 s.
type BusyRating struct {
	FailClosedDefault int           `mapstructure:"failclosed_default"`
	StaleAfter        time.Duration `mapstructure:"stale_after"`
}

// Expiry configures the background lease-reclamation ticker (internal/expiry).
type Expiry struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// History configures the durable terminal-event sink (internal/history).
type History struct {
	DBPath          string        `mapstructure:"db_path"`
	AuditLogPath    string        `mapstructure:"audit_log_path"`
	AuditMaxSizeMB  int           `mapstructure:"audit_max_size_mb"`
	AuditMaxBackups int           `mapstructure:"audit_max_backups"`
	AuditMaxAgeDays int           `mapstructure:"audit_max_age_days"`
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// Adapter configures the external HTTP adapter (internal/adminapi).
type Adapter struct {
	ListenAddr         string        `mapstructure:"listen_addr"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitPerSecond float64       `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
}

type Observability struct {
	MetricsPort int     `mapstructure:"metrics_port"`
	LogLevel    string  `mapstructure:"log_level"`
	Tracing     Tracing `mapstructure:"tracing"`
}

type Tracing struct {
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	Capacity      Capacity      `mapstructure:"capacity"`
	Lease         Lease         `mapstructure:"lease"`
	BusyRating    BusyRating    `mapstructure:"busy_rating"`
	Expiry        Expiry        `mapstructure:"expiry"`
	History       History       `mapstructure:"history"`
	Adapter       Adapter       `mapstructure:"adapter"`
	Observability Observability `mapstructure:"observability"`
}

func defaultConfig() *Config {
	return &Config{
		Capacity: Capacity{
			TotalUnits:   100,
			ReserveUnits: 5,
			HeadroomPct:  0,
		},
		Lease: Lease{
			TTL:            60 * time.Second,
			HeartbeatGrace: 0,
		},
		BusyRating: BusyRating{
			FailClosedDefault: 8,
			StaleAfter:        30 * time.Second,
		},
		Expiry: Expiry{
			TickInterval: 2 * time.Second,
		},
		History: History{
			DBPath:          "./data/scheduler_history.db",
			AuditLogPath:    "./data/scheduler_audit.log",
			AuditMaxSizeMB:  100,
			AuditMaxBackups: 10,
			AuditMaxAgeDays: 30,
			RetentionDays:   30,
			CleanupSchedule: "0 0 * * *",
			WriteTimeout:    10 * time.Second,
		},
		Adapter: Adapter{
			ListenAddr:         ":8090",
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       10 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			RateLimitPerSecond: 50,
			RateLimitBurst:     100,
		},
		Observability: Observability{
			MetricsPort: 9091,
			LogLevel:    "info",
			Tracing:     Tracing{Enabled: false},
		},
	}
}

// Load reads configuration from a YAML file and env overrides, mirroring
// the teacher's config.Load shape.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("capacity.total_units", def.Capacity.TotalUnits)
	v.SetDefault("capacity.reserve_units", def.Capacity.ReserveUnits)
	v.SetDefault("capacity.headroom_pct", def.Capacity.HeadroomPct)

	v.SetDefault("lease.ttl", def.Lease.TTL)
	v.SetDefault("lease.heartbeat_grace", def.Lease.HeartbeatGrace)
	v.SetDefault("lease.max_active_leases", def.Lease.MaxActiveLeases)
	v.SetDefault("lease.max_active_leases_per_owner", def.Lease.MaxActiveLeasesPerOwner)

	v.SetDefault("busy_rating.failclosed_default", def.BusyRating.FailClosedDefault)
	v.SetDefault("busy_rating.stale_after", def.BusyRating.StaleAfter)

	v.SetDefault("expiry.tick_interval", def.Expiry.TickInterval)

	v.SetDefault("history.db_path", def.History.DBPath)
	v.SetDefault("history.audit_log_path", def.History.AuditLogPath)
	v.SetDefault("history.audit_max_size_mb", def.History.AuditMaxSizeMB)
	v.SetDefault("history.audit_max_backups", def.History.AuditMaxBackups)
	v.SetDefault("history.audit_max_age_days", def.History.AuditMaxAgeDays)
	v.SetDefault("history.retention_days", def.History.RetentionDays)
	v.SetDefault("history.cleanup_schedule", def.History.CleanupSchedule)
	v.SetDefault("history.write_timeout", def.History.WriteTimeout)

	v.SetDefault("adapter.listen_addr", def.Adapter.ListenAddr)
	v.SetDefault("adapter.read_timeout", def.Adapter.ReadTimeout)
	v.SetDefault("adapter.write_timeout", def.Adapter.WriteTimeout)
	v.SetDefault("adapter.shutdown_timeout", def.Adapter.ShutdownTimeout)
	v.SetDefault("adapter.rate_limit_per_second", def.Adapter.RateLimitPerSecond)
	v.SetDefault("adapter.rate_limit_burst", def.Adapter.RateLimitBurst)

	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)
	v.SetDefault("observability.tracing.enabled", def.Observability.Tracing.Enabled)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks config constraints, mirroring the teacher's Validate.
func Validate(cfg *Config) error {
	if cfg.Capacity.TotalUnits < 0 {
		return fmt.Errorf("capacity.total_units must be >= 0")
	}
	if cfg.Capacity.ReserveUnits < 0 {
		return fmt.Errorf("capacity.reserve_units must be >= 0")
	}
	if cfg.Capacity.HeadroomPct < 0 || cfg.Capacity.HeadroomPct > 1 {
		return fmt.Errorf("capacity.headroom_pct must be in [0,1]")
	}
	if cfg.Lease.TTL <= 0 {
		return fmt.Errorf("lease.ttl must be > 0")
	}
	if cfg.Lease.HeartbeatGrace < 0 {
		return fmt.Errorf("lease.heartbeat_grace must be >= 0")
	}
	if cfg.Lease.MaxActiveLeases < 0 {
		return fmt.Errorf("lease.max_active_leases must be >= 0")
	}
	if cfg.Lease.MaxActiveLeasesPerOwner < 0 {
		return fmt.Errorf("lease.max_active_leases_per_owner must be >= 0")
	}
	if cfg.BusyRating.FailClosedDefault < 0 || cfg.BusyRating.FailClosedDefault > 10 {
		return fmt.Errorf("busy_rating.failclosed_default must be in [0,10]")
	}
	if cfg.Expiry.TickInterval <= 0 {
		return fmt.Errorf("expiry.tick_interval must be > 0")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be 1..65535")
	}
	return nil
}
