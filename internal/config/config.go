// Package config loads the settings a djlink process needs to reach
// both halves of a link, plus the loop intervals it records. It follows
// the teacher's config.go pattern of a disposable viper.New() instance
// read from a single file (cmd/bd/config.go's validateSyncConfig),
// rather than the teacher's own global package-level singleton — this
// module has no CLI subcommand tree mutating config at runtime, so the
// global is unneeded.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Link describes everything needed to open both halves of a link and
// run its use-case drivers. It is read once at startup from a TOML or
// YAML file (either extension works; viper detects it from the path).
type Link struct {
	// SourceDSN is the pgx connection string for the source/outbound
	// host (spec §6).
	SourceDSN string `mapstructure:"source_dsn"`

	// LocalPath is the embedded Dolt database directory for the local
	// mirror (spec §6).
	LocalPath      string `mapstructure:"local_path"`
	CommitterName  string `mapstructure:"committer_name"`
	CommitterEmail string `mapstructure:"committer_email"`

	// RemoteHost/RemoteSchema are recorded on every outbound ledger row
	// this link hands out (spec §6's T_Outbound columns).
	RemoteHost   string `mapstructure:"remote_host"`
	RemoteSchema string `mapstructure:"remote_schema"`

	// PollInterval is the configured interval for draining in-flight
	// work with PROCESS without a fresh PULL/DELETE request (spec §9).
	// It is loaded and defaulted only: cmd/djlinkd runs one command per
	// invocation and no code in this module reads it.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// ReconcileInterval is the configured interval for running the
	// reconciler outside of the PULL/DELETE use cases that already
	// trigger it inline (spec §4.5). Like PollInterval, it is loaded and
	// defaulted only; no code in this module reads it.
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`

	// LogDevelopment selects zap's development encoder/level over its
	// production JSON encoder (internal/telemetry).
	LogDevelopment bool `mapstructure:"log_development"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("poll_interval", 5*time.Second)
	v.SetDefault("reconcile_interval", time.Minute)
	v.SetDefault("committer_name", "djlink")
	v.SetDefault("committer_email", "djlink@localhost")
	v.SetDefault("log_development", false)

	v.SetEnvPrefix("DJLINK")
	v.AutomaticEnv()
}

// Load reads a Link config from path (.toml or .yaml/.yml).
func Load(path string) (*Link, error) {
	v := viper.New()
	v.SetConfigFile(path)
	defaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Link
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling %s: %w", path, err)
	}
	if cfg.SourceDSN == "" {
		return nil, fmt.Errorf("config: %s: source_dsn is required", path)
	}
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("config: %s: local_path is required", path)
	}
	return &cfg, nil
}
