// Package config loads the service configuration from the environment,
// after reading an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/otcheredev/dicomweb-bridge/internal/models"
)

// Config is the complete service configuration
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	DICOMWeb DICOMWebConfig
	Store    StoreConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Remote   RemoteConfig
	CORS     CORSConfig
	Metrics  MetricsConfig
	Audit    AuditConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// DICOMWebConfig holds the path prefixes the three services are mounted on
type DICOMWebConfig struct {
	QIDOPrefix string
	WADOPrefix string
	STOWPrefix string
}

type StoreConfig struct {
	Type           models.StoreType
	Dir            string
	ReadOnly       bool
	MaxUploadBytes int64
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	LogLevel string
}

type CacheConfig struct {
	Enabled    bool
	Type       string
	TTL        time.Duration
	MaxEntries int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// RemoteConfig points the dicomweb store at an upstream archive
type RemoteConfig struct {
	URL         string
	QIDOPrefix  string
	WADOPrefix  string
	STOWPrefix  string
	BearerToken string
	Username    string
	Password    string
	Timeout     time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type AuditConfig struct {
	Enabled bool
}

// Load reads .env when present, then the environment. Variables already set
// in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var errs []error
	e := &env{errs: &errs}

	cfg := &Config{
		Server: ServerConfig{
			Host:            e.str("SERVER_HOST", "0.0.0.0"),
			Port:            e.int("SERVER_PORT", 8080),
			ReadTimeout:     e.duration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    e.duration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: e.duration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level:  e.str("LOG_LEVEL", "info"),
			Format: e.str("LOG_FORMAT", "json"),
		},
		DICOMWeb: DICOMWebConfig{
			QIDOPrefix: e.str("DICOMWEB_QIDO_PREFIX", ""),
			WADOPrefix: e.str("DICOMWEB_WADO_PREFIX", ""),
			STOWPrefix: e.str("DICOMWEB_STOW_PREFIX", ""),
		},
		Store: StoreConfig{
			Type:           models.StoreType(strings.ToLower(e.str("STORE_TYPE", string(models.StoreTypeMemory)))),
			Dir:            e.str("STORE_DIR", "./data"),
			ReadOnly:       e.bool("STORE_READ_ONLY", false),
			MaxUploadBytes: int64(e.int("STORE_MAX_UPLOAD_BYTES", 512<<20)),
		},
		Database: DatabaseConfig{
			Host:     e.str("DB_HOST", "localhost"),
			Port:     e.int("DB_PORT", 5432),
			User:     e.str("DB_USER", "postgres"),
			Password: e.str("DB_PASSWORD", ""),
			DBName:   e.str("DB_NAME", "dicomweb"),
			SSLMode:  e.str("DB_SSLMODE", "disable"),
			LogLevel: e.str("DB_LOG_LEVEL", "warn"),
		},
		Cache: CacheConfig{
			Enabled:    e.bool("CACHE_ENABLED", false),
			Type:       strings.ToLower(e.str("CACHE_TYPE", "memory")),
			TTL:        e.duration("CACHE_TTL", time.Hour),
			MaxEntries: e.int("CACHE_MAX_ENTRIES", 1000),
		},
		Redis: RedisConfig{
			Host:     e.str("REDIS_HOST", "localhost"),
			Port:     e.int("REDIS_PORT", 6379),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.int("REDIS_DB", 0),
		},
		Remote: RemoteConfig{
			URL:         e.str("REMOTE_URL", ""),
			QIDOPrefix:  e.str("REMOTE_QIDO_PREFIX", ""),
			WADOPrefix:  e.str("REMOTE_WADO_PREFIX", ""),
			STOWPrefix:  e.str("REMOTE_STOW_PREFIX", ""),
			BearerToken: e.str("REMOTE_BEARER_TOKEN", ""),
			Username:    e.str("REMOTE_USERNAME", ""),
			Password:    e.str("REMOTE_PASSWORD", ""),
			Timeout:     e.duration("REMOTE_TIMEOUT", 30*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: e.list("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: e.list("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}),
		},
		Metrics: MetricsConfig{
			Enabled: e.bool("METRICS_ENABLED", true),
			Path:    e.str("METRICS_PATH", "/metrics"),
		},
		Audit: AuditConfig{
			Enabled: e.bool("AUDIT_ENABLED", false),
		},
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port)
	}
	if !c.Store.Type.Valid() {
		return fmt.Errorf("unsupported STORE_TYPE %q", c.Store.Type)
	}
	switch c.Store.Type {
	case models.StoreTypeDatabase:
		if c.Store.Dir == "" {
			return errors.New("STORE_DIR is required for the database store")
		}
		if c.Database.Host == "" || c.Database.DBName == "" {
			return errors.New("DB_HOST and DB_NAME are required for the database store")
		}
	case models.StoreTypeDICOMWeb:
		if c.Remote.URL == "" {
			return errors.New("REMOTE_URL is required for the dicomweb store")
		}
	}
	if c.Cache.Enabled && c.Cache.Type != "memory" && c.Cache.Type != "redis" {
		return fmt.Errorf("unsupported CACHE_TYPE %q", c.Cache.Type)
	}
	if c.Audit.Enabled && c.Store.Type != models.StoreTypeDatabase {
		return errors.New("AUDIT_ENABLED requires the database store")
	}
	if c.Store.MaxUploadBytes <= 0 {
		return fmt.Errorf("STORE_MAX_UPLOAD_BYTES must be positive")
	}
	for _, p := range []string{c.DICOMWeb.QIDOPrefix, c.DICOMWeb.WADOPrefix, c.DICOMWeb.STOWPrefix} {
		if p != "" && !strings.HasPrefix(p, "/") {
			return fmt.Errorf("DICOMweb prefix %q must start with /", p)
		}
	}
	return nil
}

type env struct {
	errs *[]error
}

func (e *env) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *env) int(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (e *env) bool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (e *env) list(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
