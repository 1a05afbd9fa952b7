// Package catalogconfig is the deployment configuration layer (SPEC_FULL
// §2 AMBIENT STACK): defaults -> config file -> environment -> flags,
// unmarshalled into typed structs with validation at Load time rather
// than at point of use, following the teacher's internal/config
// (yaml_config.go, deploy.go) layering style but built on a single
// *viper.Viper instance per Config rather than a package-level singleton,
// so multiple deployments can coexist in one process (the server's own
// test suite constructs several).
package catalogconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// OpenFGA holds the tuple-store client's deployment knobs (spec.md §6).
type OpenFGA struct {
	MaxTuplesPerWrite     int `mapstructure:"max_tuples_per_write"`
	MaxConcurrentRequests int `mapstructure:"max_concurrent_requests"`
	PageSize              int `mapstructure:"page_size"`
}

// QueueDefaults holds the per-queue policy defaults §6 names outside the
// per-(warehouse,queue) override table the catalog store owns.
type QueueDefaults struct {
	MaxAttempts      int           `mapstructure:"max_attempts"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
	InitialBackoff   time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff"`
}

// Config is the fully-resolved, validated deployment configuration
// (spec.md §6 "Configuration").
type Config struct {
	ServerID            string        `mapstructure:"server_id"`
	ReservedNamespaces  []string      `mapstructure:"reserved_namespaces"`
	MaxNamespaceDepth   int           `mapstructure:"max_namespace_depth"`
	DatabaseDSN         string        `mapstructure:"database_dsn"`
	OpenFGA             OpenFGA       `mapstructure:"openfga"`
	QueueDefaults       QueueDefaults `mapstructure:"queue_defaults"`
	MetricsExportPeriod time.Duration `mapstructure:"metrics_export_period"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("max_namespace_depth", 5)
	v.SetDefault("reserved_namespaces", []string{"system"})
	v.SetDefault("openfga.max_tuples_per_write", 100)
	v.SetDefault("openfga.max_concurrent_requests", 50)
	v.SetDefault("openfga.page_size", 100)
	v.SetDefault("queue_defaults.max_attempts", 5)
	v.SetDefault("queue_defaults.heartbeat_timeout", 30*time.Second)
	v.SetDefault("queue_defaults.initial_backoff", time.Second)
	v.SetDefault("queue_defaults.max_backoff", 5*time.Minute)
	v.SetDefault("metrics_export_period", 15*time.Second)
}

// Load builds a Config from (in ascending priority) compiled-in
// defaults, an optional config file, CATALOGD_-prefixed environment
// variables, and flags already bound into fs (nil is accepted — a
// caller that only wants file+env+defaults passes nil).
func Load(configPath string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("CATALOGD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("catalogconfig: bind flags: %w", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("catalogconfig: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("catalogconfig: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants Load's callers rely on being enforced
// once, at load time, rather than scattered at point of use (§6).
func (c Config) Validate() error {
	if c.ServerID == "" {
		return fmt.Errorf("catalogconfig: server_id is required")
	}
	if c.OpenFGA.MaxTuplesPerWrite <= 0 || c.OpenFGA.MaxTuplesPerWrite > 100 {
		return fmt.Errorf("catalogconfig: openfga.max_tuples_per_write must be in (0,100], got %d", c.OpenFGA.MaxTuplesPerWrite)
	}
	if c.OpenFGA.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("catalogconfig: openfga.max_concurrent_requests must be positive, got %d", c.OpenFGA.MaxConcurrentRequests)
	}
	if c.MaxNamespaceDepth <= 0 {
		return fmt.Errorf("catalogconfig: max_namespace_depth must be positive, got %d", c.MaxNamespaceDepth)
	}
	return nil
}

// ReservedNamespaceSet returns ReservedNamespaces as a case-insensitive
// lookup set, the form the Lifecycle Service's Config wants (§4.5
// namespace-property semantics: "reserved prefixes forbidden").
func (c Config) ReservedNamespaceSet() map[string]bool {
	out := make(map[string]bool, len(c.ReservedNamespaces))
	for _, n := range c.ReservedNamespaces {
		out[strings.ToLower(n)] = true
	}
	return out
}

// Watcher hot-reloads the config file: on every write it re-reads the
// file and invokes onChange with the full newly parsed Config. It does
// not restrict which fields may change; picking out the ones that are
// safe to apply without a restart (such as reserved_namespaces and the
// queue backoff defaults) is left to onChange. Errors from a
// reload are swallowed (the previous in-memory Config remains active);
// callers that need to observe a bad reload should re-Load and compare.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
}

// WatchFile starts watching configPath for changes, calling onChange
// with the freshly reloaded Config whenever the file is written.
// Callers must call Close when done.
func WatchFile(configPath string, onChange func(Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalogconfig: new watcher: %w", err)
	}
	if err := fw.Add(configPath); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("catalogconfig: watch %s: %w", configPath, err)
	}

	w := &Watcher{watcher: fw, path: configPath}
	go func() {
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(configPath, nil)
				if err != nil {
					continue
				}
				onChange(cfg)
			case _, ok := <-fw.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return w, nil
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
