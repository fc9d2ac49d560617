package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const defaultEnvFile = ".env"

// Storage engines selectable through DATABASE_URL.
const (
	DriverSQLite    = "sqlite"
	DriverFirestore = "firestore"
	DriverMemory    = "memory"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Share      ShareConfig
	Page       PageConfig
	Storage    StorageConfig
	Location   LocationConfig
	RateLimits RateLimitConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	URLPrefix    string        `env:"URL_PREFIX"`
	BehindProxy  bool          `env:"BEHIND_PROXY" envDefault:"true"`
	StaticDir    string        `env:"STATIC_DIR" envDefault:"web/dist"`
}

// ShareConfig controls short-code generation and the share endpoints.
type ShareConfig struct {
	LinkDigits     int    `env:"SHARE_LINK_DIGITS" envDefault:"7"`
	CreateAttempts int    `env:"SHARE_CREATE_ATTEMPTS" envDefault:"3"`
	MaxBodyBytes   int64  `env:"SHARE_MAX_BODY_BYTES" envDefault:"4096"`
	ShortURL       bool   `env:"SHORT_SHARE_URL" envDefault:"false"`
	CreatorLabel   string `env:"CREATOR_LABEL" envDefault:"CF Error Page Editor"`
}

// PageConfig carries deployment-level page metadata. Icon and image URLs may
// contain a {status} placeholder.
type PageConfig struct {
	IconURL  string `env:"PAGE_ICON_URL"`
	IconType string `env:"PAGE_ICON_TYPE"`
	ImageURL string `env:"PAGE_IMAGE_URL"`
	SiteName string `env:"PAGE_SITE_NAME" envDefault:"moe::virt"`
}

// StorageConfig selects the share item store.
type StorageConfig struct {
	DatabaseURL           string `env:"DATABASE_URL" envDefault:"sqlite://example.db"`
	FirestoreEmulatorHost string `env:"FIRESTORE_EMULATOR_HOST"`
}

// LocationConfig points at the data-center lookup file.
type LocationConfig struct {
	DataFile string `env:"LOCATION_DATA_FILE" envDefault:"data/cf-colos.json"`
}

// RateLimitConfig controls create endpoint throttling.
type RateLimitConfig struct {
	CreatePerMinute int `env:"RATELIMIT_CREATE_PER_MINUTE" envDefault:"20"`
	CreatePerHour   int `env:"RATELIMIT_CREATE_PER_HOUR" envDefault:"500"`
}

// Driver returns the storage engine named by DATABASE_URL and the engine-specific target
// (file path for sqlite, project id for firestore).
func (c StorageConfig) Driver() (string, string, error) {
	raw := strings.TrimSpace(c.DatabaseURL)
	if raw == "" {
		return "", "", errors.New("config: DATABASE_URL is empty")
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		// A bare path is treated as a sqlite file.
		return DriverSQLite, raw, nil
	}
	switch strings.ToLower(scheme) {
	case DriverSQLite:
		if strings.TrimSpace(rest) == "" {
			return "", "", fmt.Errorf("config: sqlite path missing in %q", raw)
		}
		return DriverSQLite, rest, nil
	case DriverFirestore:
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return "", "", fmt.Errorf("config: firestore project missing in %q", raw)
		}
		return DriverFirestore, u.Host, nil
	case DriverMemory:
		return DriverMemory, "", nil
	default:
		return "", "", fmt.Errorf("config: unsupported database scheme %q", scheme)
	}
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment, relying only on provided
// maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// EnvironmentValues returns the effective key/value environment map using the same precedence
// as Load (dotenv < OS env < explicit env map).
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	merge := func(source map[string]string) {
		for key, value := range source {
			values[key] = value
		}
	}

	merge(dotEnvValues)
	if options.useSystemEnv {
		merge(env.ToMap(os.Environ()))
	}
	merge(options.envMap)

	return values, nil
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables and explicit maps.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	if err := ctx.Err(); err != nil {
		return Config{}, err
	}

	values, err := EnvironmentValues(opts...)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: values}); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}

	cfg.Server.URLPrefix = normalizePrefix(cfg.Server.URLPrefix)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if strings.TrimSpace(cfg.Server.Port) == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Share.LinkDigits <= 0 || cfg.Share.LinkDigits > 32 {
		missing = append(missing, "Share.LinkDigits")
	}
	if cfg.Share.CreateAttempts <= 0 {
		missing = append(missing, "Share.CreateAttempts")
	}
	if cfg.Share.MaxBodyBytes <= 0 {
		missing = append(missing, "Share.MaxBodyBytes")
	}
	if _, _, err := cfg.Storage.Driver(); err != nil {
		missing = append(missing, "Storage.DatabaseURL")
	}
	if cfg.RateLimits.CreatePerMinute < 0 {
		missing = append(missing, "RateLimits.CreatePerMinute")
	}
	if cfg.RateLimits.CreatePerHour < 0 {
		missing = append(missing, "RateLimits.CreatePerHour")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

// normalizePrefix yields "" or a path starting with "/" and no trailing slash.
func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}
