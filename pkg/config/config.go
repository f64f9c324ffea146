// Package config loads daylog settings from .daylog.yaml, DAYLOG_*
// environment variables and bound command line flags, in viper's order of
// precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"tableflip.dev/daylog/pkg/timeutil"
)

// Keys.
const (
	KeyUser            = "user"
	KeyCachePath       = "cache.path"
	KeyCacheMode       = "cache.mode"
	KeyCacheWindow     = "cache.window"
	KeyRemoteKind      = "remote.kind"
	KeyRemotePath      = "remote.path"
	KeyRemoteDSN       = "remote.dsn"
	KeyRemoteTimeout   = "remote.timeout"
	KeyOffline         = "remote.offline"
	KeyDebounce        = "sync.debounce"
	KeyDeletionTimeout = "sync.deletionTimeout"
	KeyMetricsAddr     = "metrics.addr"
	KeyCatalog         = "generator.catalog"
)

const (
	CacheSQLite = "sqlite"
	CacheMemory = "memory"

	RemoteDisk     = "disk"
	RemoteMemory   = "memory"
	RemotePostgres = "postgres"
)

// Config is the resolved configuration.
type Config struct {
	User      string
	Cache     Cache
	Remote    Remote
	Sync      Sync
	Metrics   Metrics
	Generator Generator
}

type Cache struct {
	Path   string
	Mode   string
	Window time.Duration
}

// Radius is the number of days kept on each side of the pivot.
func (c Cache) Radius() int {
	return timeutil.WindowDays(c.Window)
}

type Remote struct {
	Kind    string
	Path    string
	DSN     string
	Timeout time.Duration
	Offline bool
}

type Sync struct {
	Debounce        time.Duration
	DeletionTimeout time.Duration
}

type Metrics struct {
	Addr string
}

type Generator struct {
	Catalog string
}

// New returns a viper instance with defaults, config file search paths and
// environment binding set up. Callers may bind flags before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyCachePath, "~/.daylog/cache.db")
	v.SetDefault(KeyCacheMode, CacheSQLite)
	v.SetDefault(KeyCacheWindow, timeutil.DefaultWindow)
	v.SetDefault(KeyRemoteKind, RemoteDisk)
	v.SetDefault(KeyRemotePath, "~/.daylog/remote")
	v.SetDefault(KeyRemoteDSN, "")
	v.SetDefault(KeyRemoteTimeout, "15s")
	v.SetDefault(KeyOffline, false)
	v.SetDefault(KeyDebounce, "100ms")
	v.SetDefault(KeyDeletionTimeout, "10s")
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyCatalog, "")
	v.SetDefault(KeyUser, "")

	v.SetConfigName(".daylog") // .yaml is implicit
	v.SetEnvPrefix("DAYLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if override := os.Getenv("DAYLOG_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}
	return v
}

// Load reads the config file, if any, and resolves every key.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = New()
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	window, _, err := timeutil.ParseWindow(v.GetString(KeyCacheWindow))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", KeyCacheWindow, err)
	}
	cachePath, err := homedir.Expand(v.GetString(KeyCachePath))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", KeyCachePath, err)
	}
	remotePath, err := homedir.Expand(v.GetString(KeyRemotePath))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", KeyRemotePath, err)
	}
	catalog := v.GetString(KeyCatalog)
	if catalog != "" {
		if catalog, err = homedir.Expand(catalog); err != nil {
			return nil, fmt.Errorf("config: %s: %w", KeyCatalog, err)
		}
	}

	cfg := &Config{
		User: v.GetString(KeyUser),
		Cache: Cache{
			Path:   cachePath,
			Mode:   strings.ToLower(v.GetString(KeyCacheMode)),
			Window: window,
		},
		Remote: Remote{
			Kind:    strings.ToLower(v.GetString(KeyRemoteKind)),
			Path:    remotePath,
			DSN:     v.GetString(KeyRemoteDSN),
			Timeout: v.GetDuration(KeyRemoteTimeout),
			Offline: v.GetBool(KeyOffline),
		},
		Sync: Sync{
			Debounce:        v.GetDuration(KeyDebounce),
			DeletionTimeout: v.GetDuration(KeyDeletionTimeout),
		},
		Metrics:   Metrics{Addr: v.GetString(KeyMetricsAddr)},
		Generator: Generator{Catalog: catalog},
	}
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Cache.Mode {
	case CacheSQLite, CacheMemory:
	default:
		return fmt.Errorf("config: %s must be %q or %q, got %q", KeyCacheMode, CacheSQLite, CacheMemory, c.Cache.Mode)
	}
	switch c.Remote.Kind {
	case RemoteDisk, RemoteMemory:
	case RemotePostgres:
		if c.Remote.DSN == "" {
			return fmt.Errorf("config: %s is required for the postgres remote", KeyRemoteDSN)
		}
	default:
		return fmt.Errorf("config: %s must be one of disk, memory, postgres, got %q", KeyRemoteKind, c.Remote.Kind)
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("config: %s must be positive", KeyRemoteTimeout)
	}
	if c.Sync.Debounce <= 0 || c.Sync.DeletionTimeout <= 0 {
		return fmt.Errorf("config: %s and %s must be positive", KeyDebounce, KeyDeletionTimeout)
	}
	return nil
}
