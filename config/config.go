// Package config provides configuration management for the application.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML file (with ${VAR} and ${VAR:-default} expansion), and environment
// variables. A .env file in the working directory is loaded into the
// environment first without overriding variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths are tried in order when Load is given no explicit path.
var DefaultSearchPaths = []string{"config.yaml", "config/config.yaml"}

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Storage    StorageConfig    `yaml:"storage"`
	KV         KVConfig         `yaml:"kv"`
	Cache      CacheConfig      `yaml:"cache"`
	Generation GenerationConfig `yaml:"generation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	// MasterKey, when set, is required as a Bearer token on every API route
	MasterKey string `yaml:"master_key"`
	// BodySizeLimit uses echo's notation ("10M", "512K")
	BodySizeLimit   string `yaml:"body_size_limit"`
	SwaggerEnabled  bool   `yaml:"swagger_enabled"`
	MetricsEnabled  bool   `yaml:"metrics_enabled"`
	MetricsEndpoint string `yaml:"metrics_endpoint"`
}

// UpstreamConfig points at the generation API
type UpstreamConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	AccessToken string `yaml:"access_token"`
	UserID      string `yaml:"user_id"`
	// ModelCacheTTL is in seconds
	ModelCacheTTL int `yaml:"model_cache_ttl"`
	// RequestTimeout is in seconds; large resolutions can take minutes
	RequestTimeout int `yaml:"request_timeout"`
}

// StorageConfig selects the database shared by the image cache and history
type StorageConfig struct {
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL settings
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB settings
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// KVConfig selects where small settings documents live
type KVConfig struct {
	Type      string `yaml:"type"`
	FilePath  string `yaml:"file_path"`
	RedisURL  string `yaml:"redis_url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// CacheConfig tunes the image cache runtime. Eviction limits are stored in
// the kv substrate, not here.
type CacheConfig struct {
	// SweepInterval is in seconds; 0 disables the periodic sweep
	SweepInterval int     `yaml:"sweep_interval"`
	FetchRPS      float64 `yaml:"fetch_rps"`
	FetchBurst    int     `yaml:"fetch_burst"`
	MaxImageBytes int64   `yaml:"max_image_bytes"`
}

// GenerationConfig bounds the retry loop
type GenerationConfig struct {
	MaxRetries       int `yaml:"max_retries"`
	InitialBackoffMs int `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms"`
}

// LoggingConfig selects the log handler
type LoggingConfig struct {
	// Format is "json", "pretty" or "auto" (pretty on a terminal)
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// SweepIntervalDuration returns the periodic eviction interval.
func (c CacheConfig) SweepIntervalDuration() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}

// ModelCacheTTLDuration returns how long model lists are cached.
func (c UpstreamConfig) ModelCacheTTLDuration() time.Duration {
	return time.Duration(c.ModelCacheTTL) * time.Second
}

// RequestTimeoutDuration returns the cap on a single upstream call.
func (c UpstreamConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// InitialBackoff returns the first retry delay.
func (c GenerationConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMs) * time.Millisecond
}

// MaxBackoff returns the retry delay cap.
func (c GenerationConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}

func buildDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			BodySizeLimit:   "400M",
			SwaggerEnabled:  true,
			MetricsEnabled:  true,
			MetricsEndpoint: "/metrics",
		},
		Upstream: UpstreamConfig{
			ModelCacheTTL:  300,
			RequestTimeout: 300,
		},
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLite:     SQLiteConfig{Path: ".cache/genstudio.db"},
			PostgreSQL: PostgreSQLConfig{MaxConns: 10},
			MongoDB:    MongoDBConfig{Database: "genstudio"},
		},
		KV: KVConfig{
			Type:      "file",
			FilePath:  ".cache/settings.json",
			KeyPrefix: "genstudio:",
		},
		Cache: CacheConfig{
			SweepInterval: 3600,
			FetchRPS:      5,
			FetchBurst:    10,
			MaxImageBytes: 64 << 20,
		},
		Generation: GenerationConfig{
			MaxRetries:       15,
			InitialBackoffMs: 1000,
			MaxBackoffMs:     10000,
		},
		Logging: LoggingConfig{
			Format: "auto",
			Level:  "info",
		},
	}
}

// Load builds the configuration. An empty path searches DefaultSearchPaths;
// a missing file is not an error unless path was given explicitly.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := buildDefaultConfig()

	file, explicit := path, path != ""
	if !explicit {
		for _, candidate := range DefaultSearchPaths {
			if _, err := os.Stat(candidate); err == nil {
				file = candidate
				break
			}
		}
	}
	if file != "" {
		if err := loadYAML(file, cfg); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML decodes file over cfg, expanding environment placeholders in
// every scalar first.
func loadYAML(file string, cfg *Config) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", file, err)
	}
	if root.Kind == 0 {
		return nil
	}
	expandNode(&root)

	if err := root.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", file, err)
	}
	return nil
}

func expandNode(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode {
		n.Value = expandString(n.Value)
		return
	}
	for _, child := range n.Content {
		expandNode(child)
	}
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default}. An unset variable
// without a default is left as written.
func expandString(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		m := placeholder.FindStringSubmatch(match)
		name, def := m[1], m[2]
		hasDefault := strings.Contains(match, ":-")

		value, ok := os.LookupEnv(name)
		switch {
		case ok && value != "":
			return value
		case hasDefault:
			return def
		case ok:
			return value
		default:
			return match
		}
	})
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid boolean %q", key, v))
				return
			}
			*dst = b
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid number %q", key, v))
				return
			}
			*dst = f
		}
	}

	str("PORT", &cfg.Server.Port)
	str("GENSTUDIO_MASTER_KEY", &cfg.Server.MasterKey)
	str("GENSTUDIO_BODY_SIZE_LIMIT", &cfg.Server.BodySizeLimit)
	boolean("GENSTUDIO_SWAGGER_ENABLED", &cfg.Server.SwaggerEnabled)
	boolean("METRICS_ENABLED", &cfg.Server.MetricsEnabled)
	str("METRICS_ENDPOINT", &cfg.Server.MetricsEndpoint)

	str("UPSTREAM_BASE_URL", &cfg.Upstream.BaseURL)
	str("UPSTREAM_API_KEY", &cfg.Upstream.APIKey)
	str("UPSTREAM_ACCESS_TOKEN", &cfg.Upstream.AccessToken)
	str("UPSTREAM_USER_ID", &cfg.Upstream.UserID)
	integer("UPSTREAM_MODEL_CACHE_TTL", &cfg.Upstream.ModelCacheTTL)
	integer("UPSTREAM_REQUEST_TIMEOUT", &cfg.Upstream.RequestTimeout)

	str("STORAGE_TYPE", &cfg.Storage.Type)
	str("SQLITE_PATH", &cfg.Storage.SQLite.Path)
	str("POSTGRES_URL", &cfg.Storage.PostgreSQL.URL)
	integer("POSTGRES_MAX_CONNS", &cfg.Storage.PostgreSQL.MaxConns)
	str("MONGODB_URL", &cfg.Storage.MongoDB.URL)
	str("MONGODB_DATABASE", &cfg.Storage.MongoDB.Database)

	str("KV_TYPE", &cfg.KV.Type)
	str("KV_FILE_PATH", &cfg.KV.FilePath)
	str("REDIS_URL", &cfg.KV.RedisURL)
	str("REDIS_KEY_PREFIX", &cfg.KV.KeyPrefix)

	integer("GENSTUDIO_CACHE_SWEEP_INTERVAL", &cfg.Cache.SweepInterval)
	float("GENSTUDIO_FETCH_RPS", &cfg.Cache.FetchRPS)
	integer("GENSTUDIO_FETCH_BURST", &cfg.Cache.FetchBurst)

	integer("GENSTUDIO_MAX_RETRIES", &cfg.Generation.MaxRetries)
	integer("GENSTUDIO_INITIAL_BACKOFF_MS", &cfg.Generation.InitialBackoffMs)
	integer("GENSTUDIO_MAX_BACKOFF_MS", &cfg.Generation.MaxBackoffMs)

	str("LOG_FORMAT", &cfg.Logging.Format)
	str("LOG_LEVEL", &cfg.Logging.Level)

	return errors.Join(errs...)
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Type {
	case "sqlite", "postgresql", "mongodb":
	default:
		errs = append(errs, fmt.Errorf("storage.type: unknown %q (valid: sqlite, postgresql, mongodb)", c.Storage.Type))
	}
	switch c.KV.Type {
	case "file", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("kv.type: unknown %q (valid: file, redis, memory)", c.KV.Type))
	}
	switch c.Logging.Format {
	case "json", "pretty", "auto":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown %q (valid: json, pretty, auto)", c.Logging.Format))
	}
	if c.Generation.MaxRetries < 0 {
		errs = append(errs, errors.New("generation.max_retries must not be negative"))
	}
	if c.Generation.InitialBackoffMs <= 0 || c.Generation.MaxBackoffMs < c.Generation.InitialBackoffMs {
		errs = append(errs, errors.New("generation backoff must satisfy 0 < initial_backoff_ms <= max_backoff_ms"))
	}
	if err := ValidateBodySizeLimit(c.Server.BodySizeLimit); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var bodySizePattern = regexp.MustCompile(`^(\d+)([KMG]B?)?$`)

// ValidateBodySizeLimit accepts "" or a size between 1K and 1G written as a
// plain byte count or with a K/M/G suffix.
func ValidateBodySizeLimit(s string) error {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	m := bodySizePattern.FindStringSubmatch(s)
	if m == nil {
		return fmt.Errorf("server.body_size_limit: invalid value %q (use e.g. 10M, 512K)", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return fmt.Errorf("server.body_size_limit: %w", err)
	}
	switch strings.TrimSuffix(m[2], "B") {
	case "K":
		n <<= 10
	case "M":
		n <<= 20
	case "G":
		n <<= 30
	}
	if n < 1<<10 || n > 1<<30 {
		return fmt.Errorf("server.body_size_limit: %q is outside 1K..1G", s)
	}
	return nil
}

// Dump renders cfg as YAML with secrets redacted.
func Dump(cfg *Config) (string, error) {
	redacted := *cfg
	redacted.Server.MasterKey = redact(cfg.Server.MasterKey)
	redacted.Upstream.APIKey = redact(cfg.Upstream.APIKey)
	redacted.Upstream.AccessToken = redact(cfg.Upstream.AccessToken)
	redacted.Storage.PostgreSQL.URL = redactURL(cfg.Storage.PostgreSQL.URL)
	redacted.Storage.MongoDB.URL = redactURL(cfg.Storage.MongoDB.URL)
	redacted.KV.RedisURL = redactURL(cfg.KV.RedisURL)

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

var userinfoPassword = regexp.MustCompile(`://([^:/@]+):[^@]*@`)

func redactURL(u string) string {
	return userinfoPassword.ReplaceAllString(u, "://$1:****@")
}
