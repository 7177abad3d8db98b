package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"animehub/pkg/database"
)

// EnvPrefix is prepended to every config key read from the environment,
// e.g. ANIMEHUB_CATALOG_PATH for catalog.path.
const EnvPrefix = "ANIMEHUB"

type Config struct {
	Catalog   CatalogConfig
	Watchlist WatchlistConfig
	Database  database.Config
	HTTPAddr  string
	SyncAddr  string
	GRPCAddr  string // empty disables the gRPC listener
	Session   SessionConfig
	Log       LogConfig
}

type CatalogConfig struct {
	Path     string
	CacheTTL time.Duration
	Watch    bool
}

type WatchlistConfig struct {
	Backend string // "csv" or "sqlite"
	Path    string // single-file CSV used by the CLI
	Dir     string // per-session CSV files used by the API server
	MaxOpen int    // idle per-session stores kept open by the API server
}

type SessionConfig struct {
	Secret   string
	Issuer   string
	Duration time.Duration
}

type LogConfig struct {
	Level       string
	Development bool
}

func setDefaults(v *viper.Viper) {
	db := database.DefaultConfig()

	v.SetDefault("catalog.path", "anime.csv")
	v.SetDefault("catalog.cache_ttl", "5m")
	v.SetDefault("catalog.watch", true)
	v.SetDefault("watchlist.backend", "csv")
	v.SetDefault("watchlist.path", "watchlist.csv")
	v.SetDefault("watchlist.dir", "watchlists")
	v.SetDefault("watchlist.max_open", 1024)
	v.SetDefault("database.driver", db.Driver)
	v.SetDefault("database.path", db.Path)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("sync.addr", ":7070")
	v.SetDefault("grpc.addr", ":9090")
	// dev default (change for demo / production)
	v.SetDefault("session.secret", "dev-secret-change-me")
	v.SetDefault("session.issuer", "animehub")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// NewViper returns a viper instance with defaults and environment binding.
// When path is non-empty that YAML file is read; a missing file is an error
// only when the path was given explicitly.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Older deployments set the database path without the key prefix.
	_ = v.BindEnv("database.path", EnvPrefix+"_DATABASE_PATH", EnvPrefix+"_DB_PATH")
	_ = v.BindEnv("database.driver", EnvPrefix+"_DATABASE_DRIVER", EnvPrefix+"_DB_DRIVER")

	if path == "" {
		v.SetConfigName("animehub")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
		return v, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return v, nil
}

// LoadConfig reads the config file at path (or ./animehub.yaml when path is
// empty) overlaid with ANIMEHUB_* environment variables.
func LoadConfig(path string) (Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return Config{}, err
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Catalog: CatalogConfig{
			Path:     v.GetString("catalog.path"),
			CacheTTL: v.GetDuration("catalog.cache_ttl"),
			Watch:    v.GetBool("catalog.watch"),
		},
		Watchlist: WatchlistConfig{
			Backend: strings.ToLower(v.GetString("watchlist.backend")),
			Path:    v.GetString("watchlist.path"),
			Dir:     v.GetString("watchlist.dir"),
			MaxOpen: v.GetInt("watchlist.max_open"),
		},
		Database: database.Config{
			Driver: v.GetString("database.driver"),
			Path:   v.GetString("database.path"),
		},
		HTTPAddr: v.GetString("http.addr"),
		SyncAddr: v.GetString("sync.addr"),
		GRPCAddr: v.GetString("grpc.addr"),
		Session: SessionConfig{
			Secret:   v.GetString("session.secret"),
			Issuer:   v.GetString("session.issuer"),
			Duration: v.GetDuration("session.ttl"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
	}
	return cfg, cfg.Validate()
}

var (
	ErrUnknownBackend = errors.New("unknown watchlist backend")
	ErrEmptyCatalog   = errors.New("catalog path is empty")
	ErrSessionTTL     = errors.New("session ttl must be positive")
)

func (c Config) Validate() error {
	switch c.Watchlist.Backend {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Watchlist.Backend)
	}
	if strings.TrimSpace(c.Catalog.Path) == "" {
		return ErrEmptyCatalog
	}
	if c.Session.Duration <= 0 {
		return ErrSessionTTL
	}
	return nil
}
