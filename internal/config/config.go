// Package config loads the master and worker binaries' configuration from
// a YAML file and environment variables, viper-backed: environment wins,
// then the config file, then the default. No command-line flag other than
// the config file path is bound here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full set of settings any of this project's binaries may
// read. Each binary only cares about a subset of these fields.
type Config struct {
	// StorageDir is the local filesystem root every storage.Backend path
	// is resolved against.
	StorageDir string `mapstructure:"storage_dir"`

	// ListenAddr is the address this process's HTTP server binds.
	ListenAddr string `mapstructure:"listen_addr"`

	// MasterAddr is the master's address, as seen by a worker or the CLI.
	MasterAddr string `mapstructure:"master_addr"`

	// AdvertiseAddr is the address a worker registers with the master as
	// its own. Defaults to http://localhost<ListenAddr> when empty, which
	// only works when master and worker share a host.
	AdvertiseAddr string `mapstructure:"advertise_addr"`

	// MetricsAddr is the address the Prometheus /metrics endpoint binds,
	// separate from ListenAddr so it can sit behind a different ACL.
	MetricsAddr string `mapstructure:"metrics_addr"`

	// WorkerConcurrency is the number of concurrent load threads a worker
	// runs per dispatched job.
	WorkerConcurrency int `mapstructure:"worker_concurrency"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	// LogJSON selects structured JSON log lines over plain text.
	LogJSON bool `mapstructure:"log_json"`

	// SQLIndexPath, when non-empty, opens a SQLite-backed queryable job/
	// table index alongside the gob-encoded metastore of record.
	SQLIndexPath string `mapstructure:"sql_index_path"`

	// PostgresIndexDSN, when non-empty, opens a PostgreSQL-backed index
	// instead of SQLite - for masters run as more than one replica.
	// Takes precedence over SQLIndexPath when both are set.
	PostgresIndexDSN string `mapstructure:"postgres_index_dsn"`
}

// defaults returns the configuration every field falls back to when
// neither a flag, an environment variable nor the config file sets it.
func defaults() Config {
	return Config{
		StorageDir:        "./data",
		ListenAddr:        ":8080",
		MasterAddr:        "http://localhost:8080",
		MetricsAddr:       ":9090",
		WorkerConcurrency: 4,
		LogLevel:          "info",
		LogJSON:           false,
	}
}

// Load reads configuration from cfgFile (if non-empty), $HOME/.videoengine
// /config.yaml otherwise, then VIDEOENGINE_-prefixed environment
// variables, layered over the defaults. A config file absent from the
// search path is not an error; an explicit cfgFile that is missing, or any
// config file that fails to parse, is.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	d := defaults()
	v.SetDefault("storage_dir", d.StorageDir)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("master_addr", d.MasterAddr)
	v.SetDefault("advertise_addr", d.AdvertiseAddr)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("worker_concurrency", d.WorkerConcurrency)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_json", d.LogJSON)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".videoengine"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("videoengine")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
