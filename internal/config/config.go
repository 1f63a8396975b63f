package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const configFileKey = "STUDIO_CONFIG_FILE"

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	DataSource    DataSourceConfig
	Query         QueryConfig
	Upload        UploadConfig
	ObjectStore   ObjectStoreConfig
	AI            AIConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DataSourceConfig struct {
	Dialect     string
	DSN         string
	ObjectKey   string
	PreviewRows int
}

type QueryConfig struct {
	RowLimit       int
	Timeout        time.Duration
	AllowMutations bool
}

type UploadConfig struct {
	MaxBytes int64
	Dir      string
}

type ObjectStoreConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

type AIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	CacheTTL    time.Duration
}

// Enabled reports whether a generation service can be built from the config.
func (c AIConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.BaseURL) != ""
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

// LoadFromEnv reads the process environment and, when STUDIO_CONFIG_FILE is
// set, falls back to the keys of that YAML file.
func LoadFromEnv(serviceName string) (Config, error) {
	lookup := LookupFunc(os.LookupEnv)
	if path, ok := os.LookupEnv(configFileKey); ok && strings.TrimSpace(path) != "" {
		fileLookup, err := FileLookup(strings.TrimSpace(path))
		if err != nil {
			return Config{}, err
		}
		lookup = ChainLookup(lookup, fileLookup)
	}
	return Load(serviceName, lookup)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, errors.New("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("STUDIO_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
	default:
		return Config{}, fmt.Errorf("invalid STUDIO_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	var errs []error
	for _, s := range cfg.settings() {
		raw, ok := lookup(s.key)
		if !ok {
			continue
		}
		if err := s.set(strings.TrimSpace(raw)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", s.key, err))
		}
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	cfg.DataSource.Dialect = strings.ToLower(cfg.DataSource.Dialect)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Keys lists every environment key Load understands, STUDIO_PROFILE first.
func Keys() []string {
	var cfg Config
	keys := []string{"STUDIO_PROFILE", configFileKey}
	for _, s := range cfg.settings() {
		keys = append(keys, s.key)
	}
	return keys
}

type setting struct {
	key string
	set func(raw string) error
}

func bind[T any](key string, dst *T, parse func(string) (T, error)) setting {
	return setting{key: key, set: func(raw string) error {
		value, err := parse(raw)
		if err != nil {
			return err
		}
		*dst = value
		return nil
	}}
}

func (c *Config) settings() []setting {
	return []setting{
		bind("STUDIO_SERVICE_NAME", &c.Service.Name, parseString),
		bind("STUDIO_HTTP_ADDR", &c.HTTP.Address, parseString),
		bind("STUDIO_HTTP_READ_TIMEOUT", &c.HTTP.ReadTimeout, time.ParseDuration),
		bind("STUDIO_HTTP_WRITE_TIMEOUT", &c.HTTP.WriteTimeout, time.ParseDuration),
		bind("STUDIO_HTTP_IDLE_TIMEOUT", &c.HTTP.IdleTimeout, time.ParseDuration),

		bind("STUDIO_DATASOURCE_DIALECT", &c.DataSource.Dialect, parseString),
		bind("STUDIO_DATASOURCE_DSN", &c.DataSource.DSN, parseString),
		bind("STUDIO_DATASOURCE_OBJECT_KEY", &c.DataSource.ObjectKey, parseString),
		bind("STUDIO_DATASOURCE_PREVIEW_ROWS", &c.DataSource.PreviewRows, strconv.Atoi),

		bind("STUDIO_QUERY_ROW_LIMIT", &c.Query.RowLimit, strconv.Atoi),
		bind("STUDIO_QUERY_TIMEOUT", &c.Query.Timeout, time.ParseDuration),
		bind("STUDIO_QUERY_ALLOW_MUTATIONS", &c.Query.AllowMutations, strconv.ParseBool),

		bind("STUDIO_UPLOAD_MAX_BYTES", &c.Upload.MaxBytes, parseInt64),
		bind("STUDIO_UPLOAD_DIR", &c.Upload.Dir, parseString),

		bind("STUDIO_OBJECTSTORE_ENABLED", &c.ObjectStore.Enabled, strconv.ParseBool),
		bind("STUDIO_OBJECTSTORE_ENDPOINT", &c.ObjectStore.Endpoint, parseString),
		bind("STUDIO_OBJECTSTORE_REGION", &c.ObjectStore.Region, parseString),
		bind("STUDIO_OBJECTSTORE_BUCKET", &c.ObjectStore.Bucket, parseString),
		bind("STUDIO_OBJECTSTORE_ACCESS_KEY", &c.ObjectStore.AccessKeyID, parseString),
		bind("STUDIO_OBJECTSTORE_SECRET_KEY", &c.ObjectStore.SecretAccessKey, parseString),
		bind("STUDIO_OBJECTSTORE_USE_SSL", &c.ObjectStore.UseSSL, strconv.ParseBool),
		bind("STUDIO_OBJECTSTORE_PREFIX", &c.ObjectStore.Prefix, parseString),

		bind("STUDIO_AI_BASE_URL", &c.AI.BaseURL, parseString),
		bind("STUDIO_AI_API_KEY", &c.AI.APIKey, parseString),
		bind("STUDIO_AI_MODEL", &c.AI.Model, parseString),
		bind("STUDIO_AI_TEMPERATURE", &c.AI.Temperature, parseFloat),
		bind("STUDIO_AI_TIMEOUT", &c.AI.Timeout, time.ParseDuration),
		bind("STUDIO_AI_MAX_RETRIES", &c.AI.MaxRetries, strconv.Atoi),
		bind("STUDIO_AI_CACHE_TTL", &c.AI.CacheTTL, time.ParseDuration),

		bind("STUDIO_LOG_JSON", &c.Observability.LogJSON, strconv.ParseBool),
		bind("STUDIO_LOG_LEVEL", &c.Observability.LogLevel, parseLogLevel),

		bind("STUDIO_AUTH_REQUIRED", &c.Auth.Required, strconv.ParseBool),
		bind("STUDIO_AUTH_STATIC_KEYS", &c.Auth.StaticKeys, parseString),
	}
}

func (c Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.Service.Name != "", "service name is required")
	check(c.HTTP.Address != "", "STUDIO_HTTP_ADDR is required")
	check(slices.Contains(dialects, c.DataSource.Dialect), "invalid STUDIO_DATASOURCE_DIALECT: %q (want one of %s)", c.DataSource.Dialect, strings.Join(dialects, ", "))
	check(c.DataSource.PreviewRows > 0, "STUDIO_DATASOURCE_PREVIEW_ROWS must be > 0")
	check(c.Query.RowLimit >= 0, "STUDIO_QUERY_ROW_LIMIT must be >= 0")
	check(c.Query.Timeout >= 0, "STUDIO_QUERY_TIMEOUT must not be negative")
	check(c.Upload.MaxBytes > 0, "STUDIO_UPLOAD_MAX_BYTES must be > 0")
	check(c.AI.Temperature >= 0 && c.AI.Temperature <= 2, "STUDIO_AI_TEMPERATURE must be between 0 and 2")
	check(c.AI.MaxRetries >= 0 && c.AI.MaxRetries <= 5, "STUDIO_AI_MAX_RETRIES must be between 0 and 5")
	check(!c.ObjectStore.Enabled || c.ObjectStore.Bucket != "", "STUDIO_OBJECTSTORE_BUCKET is required when the object store is enabled")
	return errors.Join(errs...)
}

var dialects = []string{"sqlite", "duckdb", "postgres", "sqlserver"}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "studio-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		DataSource: DataSourceConfig{Dialect: "sqlite", DSN: "MiniCRM.db", PreviewRows: 100},
		Query:      QueryConfig{RowLimit: 10000, Timeout: 30 * time.Second},
		Upload:     UploadConfig{MaxBytes: 64 << 20},
		ObjectStore: ObjectStoreConfig{
			Endpoint:        "localhost:9000",
			Region:          "us-east-1",
			Bucket:          "studio",
			AccessKeyID:     "minio",
			SecretAccessKey: "miniostorage",
		},
		AI: AIConfig{
			BaseURL:  "https://api.openai.com",
			Model:    "gpt-3.5-turbo",
			Timeout:  30 * time.Second,
			CacheTTL: 10 * time.Minute,
		},
		Observability: ObservabilityConfig{LogLevel: slog.LevelDebug, LogJSON: true},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.AI.CacheTTL = 0
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
	}
	return cfg
}

// LogValue renders the config for startup logs with secrets masked.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("profile", string(c.Profile)),
		slog.String("http_addr", c.HTTP.Address),
		slog.String("dialect", c.DataSource.Dialect),
		slog.String("dsn", c.DataSource.DSN),
		slog.String("object_key", c.DataSource.ObjectKey),
		slog.Int("row_limit", c.Query.RowLimit),
		slog.Bool("allow_mutations", c.Query.AllowMutations),
		slog.Bool("object_store", c.ObjectStore.Enabled),
		slog.String("object_store_secret", mask(c.ObjectStore.SecretAccessKey)),
		slog.String("ai_model", c.AI.Model),
		slog.String("ai_api_key", mask(c.AI.APIKey)),
		slog.Bool("auth_required", c.Auth.Required),
		slog.String("auth_static_keys", mask(c.Auth.StaticKeys)),
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

func parseString(raw string) (string, error) { return raw, nil }

func parseInt64(raw string) (int64, error) { return strconv.ParseInt(raw, 10, 64) }

func parseFloat(raw string) (float64, error) { return strconv.ParseFloat(raw, 64) }

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", raw)
}
