// Package config loads the server configuration with precedence ENV > file > defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const EnvPrefix = "STREAMIT_"

type Config struct {
	Listen     string         `yaml:"listen"`
	CatalogDir string         `yaml:"catalog_dir"`
	MediaDir   string         `yaml:"media_dir"`
	Storage    StorageConfig  `yaml:"storage"`
	Log        LogConfig      `yaml:"log"`
	Sessions   SessionsConfig `yaml:"sessions"`
	RateLimit  RateLimit      `yaml:"rate_limit"`
	// WatchCatalog reloads the catalog when its files change.
	WatchCatalog bool `yaml:"watch_catalog"`
	// CatalogReloadInterval re-reads the catalog periodically; 0 disables it.
	CatalogReloadInterval time.Duration `yaml:"catalog_reload_interval"`
}

type StorageConfig struct {
	// Backend is one of sqlite, file, redis, memory.
	Backend    string      `yaml:"backend"`
	SQLitePath string      `yaml:"sqlite_path"`
	FileDir    string      `yaml:"file_dir"`
	Redis      RedisConfig `yaml:"redis"`
	// Key is the local storage key holding the watch state.
	Key string `yaml:"key"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type SessionsConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

type RateLimit struct {
	// RequestsPerMinute bounds /api requests per client IP; 0 disables the limit.
	RequestsPerMinute int `yaml:"requests_per_minute"`
	// ImportInterval is the minimum gap between two imports from the same client.
	ImportInterval time.Duration `yaml:"import_interval"`
}

func Default() Config {
	return Config{
		Listen:     ":8080",
		CatalogDir: "./data",
		MediaDir:   "./media",
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: "./streamit.db",
			FileDir:    "./progress",
			Redis:      RedisConfig{Addr: "127.0.0.1:6379", KeyPrefix: "streamit:"},
			Key:        "watchedContent",
		},
		Log:       LogConfig{Level: "info", MaxSizeMB: 50, MaxBackups: 3},
		Sessions:  SessionsConfig{IdleTimeout: 30 * time.Minute},
		RateLimit: RateLimit{RequestsPerMinute: 600, ImportInterval: 2 * time.Second},
	}
}

// Load applies defaults, then the YAML file at path (if any), then STREAMIT_* variables,
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes strictly: unknown keys are errors.
func loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("LISTEN", &cfg.Listen)
	str("CATALOG_DIR", &cfg.CatalogDir)
	str("MEDIA_DIR", &cfg.MediaDir)
	str("STORAGE_BACKEND", &cfg.Storage.Backend)
	str("SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("FILE_DIR", &cfg.Storage.FileDir)
	str("STORAGE_KEY", &cfg.Storage.Key)
	str("REDIS_ADDR", &cfg.Storage.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Storage.Redis.Password)
	num("REDIS_DB", &cfg.Storage.Redis.DB)
	str("REDIS_KEY_PREFIX", &cfg.Storage.Redis.KeyPrefix)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FILE", &cfg.Log.File)
	dur("SESSION_IDLE_TIMEOUT", &cfg.Sessions.IdleTimeout)
	num("RATE_LIMIT_RPM", &cfg.RateLimit.RequestsPerMinute)
	dur("IMPORT_INTERVAL", &cfg.RateLimit.ImportInterval)
	dur("CATALOG_RELOAD_INTERVAL", &cfg.CatalogReloadInterval)
	if v, ok := lookup(EnvPrefix + "WATCH_CATALOG"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sWATCH_CATALOG: %w", EnvPrefix, err))
		} else {
			cfg.WatchCatalog = b
		}
	}
	return errors.Join(errs...)
}

// Validate reports every problem at once.
func Validate(cfg Config) error {
	var errs []error
	if strings.TrimSpace(cfg.Listen) == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if strings.TrimSpace(cfg.CatalogDir) == "" {
		errs = append(errs, errors.New("catalog_dir must not be empty"))
	}
	switch cfg.Storage.Backend {
	case "sqlite":
		if cfg.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite backend"))
		}
	case "file":
		if cfg.Storage.FileDir == "" {
			errs = append(errs, errors.New("storage.file_dir is required for the file backend"))
		}
	case "redis":
		if cfg.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required for the redis backend"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of sqlite, file, redis, memory", cfg.Storage.Backend))
	}
	if strings.TrimSpace(cfg.Storage.Key) == "" {
		errs = append(errs, errors.New("storage.key must not be empty"))
	}
	if cfg.Sessions.IdleTimeout < 0 {
		errs = append(errs, errors.New("sessions.idle_timeout must not be negative"))
	}
	if cfg.CatalogReloadInterval < 0 {
		errs = append(errs, errors.New("catalog_reload_interval must not be negative"))
	}
	if cfg.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("rate_limit.requests_per_minute must not be negative"))
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 {
		errs = append(errs, errors.New("log rotation limits must not be negative"))
	}
	return errors.Join(errs...)
}
