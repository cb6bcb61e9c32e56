package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all migration tool configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Source    SourceConfig
	Storage   StorageConfig
	Target    TargetConfig
	Migration MigrationConfig
	Mapper    MapperConfig
	Redis     RedisConfig
	History   HistoryConfig
	Status    StatusConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// SourceConfig describes where the exported content lives
type SourceConfig struct {
	Type    string // local, s3
	DataDir string // export root for the local source
}

// StorageConfig holds S3-compatible object storage settings for the s3 source
type StorageConfig struct {
	Endpoint     string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
}

// TargetConfig holds the destination stack settings
type TargetConfig struct {
	BaseURL         string // content management API host
	AppsBaseURL     string // marketplace apps API host
	APIKey          string
	ManagementToken string
	Branch          string
	OrgUID          string
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
}

// MigrationConfig holds run-level settings
type MigrationConfig struct {
	RunDir          string   // base path holding mapper/
	Modules         []string // empty = all modules
	Concurrency     int
	RateLimit       float64 // requests per second, 0 = unlimited
	RateBurst       int
	DisableWebhooks bool
	EncryptionKey   string
	MaxKeyAttempts  int
}

// MapperConfig selects the identifier map backend
type MapperConfig struct {
	Backend        string // file, redis
	FallbackToFile bool
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// HistoryConfig holds run history database settings
type HistoryConfig struct {
	Enabled      bool
	Driver       string // sqlite, postgres
	Path         string // sqlite database file
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	LogLevel     string
	SlowQuery    time.Duration
}

// StatusConfig holds the progress status HTTP server settings
type StatusConfig struct {
	Enabled         bool
	Addr            string
	ShutdownTimeout time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
}

// Load loads configuration from migrate.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with MIGRATE_ prefix (e.g., MIGRATE_TARGET_API_KEY)
// 2. migrate.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("migrate")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/cli-sub008")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MIGRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Source: SourceConfig{
			Type:    v.GetString("source.type"),
			DataDir: v.GetString("source.data_dir"),
		},
		Storage: StorageConfig{
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			Prefix:       v.GetString("storage.prefix"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
		},
		Target: TargetConfig{
			BaseURL:         v.GetString("target.base_url"),
			AppsBaseURL:     v.GetString("target.apps_base_url"),
			APIKey:          v.GetString("target.api_key"),
			ManagementToken: v.GetString("target.management_token"),
			Branch:          v.GetString("target.branch"),
			OrgUID:          v.GetString("target.org_uid"),
			Timeout:         v.GetDuration("target.timeout"),
			MaxRetries:      v.GetInt("target.max_retries"),
			RetryBackoff:    v.GetDuration("target.retry_backoff"),
		},
		Migration: MigrationConfig{
			RunDir:          v.GetString("migration.run_dir"),
			Modules:         v.GetStringSlice("migration.modules"),
			Concurrency:     v.GetInt("migration.concurrency"),
			RateLimit:       v.GetFloat64("migration.rate_limit"),
			RateBurst:       v.GetInt("migration.rate_burst"),
			DisableWebhooks: v.GetBool("migration.disable_webhooks"),
			EncryptionKey:   v.GetString("migration.encryption_key"),
			MaxKeyAttempts:  v.GetInt("migration.max_key_attempts"),
		},
		Mapper: MapperConfig{
			Backend:        v.GetString("mapper.backend"),
			FallbackToFile: v.GetBool("mapper.fallback_to_file"),
		},
		Redis: RedisConfig{
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		History: HistoryConfig{
			Enabled:      v.GetBool("history.enabled"),
			Driver:       v.GetString("history.driver"),
			Path:         v.GetString("history.path"),
			Host:         v.GetString("history.host"),
			Port:         v.GetInt("history.port"),
			User:         v.GetString("history.user"),
			Password:     v.GetString("history.password"),
			DBName:       v.GetString("history.dbname"),
			SSLMode:      v.GetString("history.sslmode"),
			MaxOpenConns: v.GetInt("history.max_open_conns"),
			MaxIdleConns: v.GetInt("history.max_idle_conns"),
			LogLevel:     v.GetString("history.log_level"),
			SlowQuery:    v.GetDuration("history.slow_query"),
		},
		Status: StatusConfig{
			Enabled:         v.GetBool("status.enabled"),
			Addr:            v.GetString("status.addr"),
			ShutdownTimeout: v.GetDuration("status.shutdown_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "cli-sub008"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Source.Type == "" {
		cfg.Source.Type = "local"
	}
	if cfg.Source.DataDir == "" {
		cfg.Source.DataDir = "./export"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Target.BaseURL == "" {
		cfg.Target.BaseURL = "https://api.contentstack.io"
	}
	if cfg.Target.AppsBaseURL == "" {
		cfg.Target.AppsBaseURL = "https://developerhub-api.contentstack.com"
	}
	if cfg.Target.Timeout == 0 {
		cfg.Target.Timeout = 30 * time.Second
	}
	if cfg.Target.MaxRetries == 0 {
		cfg.Target.MaxRetries = 3
	}
	if cfg.Target.RetryBackoff == 0 {
		cfg.Target.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Migration.RunDir == "" {
		cfg.Migration.RunDir = cfg.Source.DataDir
	}
	if cfg.Migration.Concurrency == 0 {
		cfg.Migration.Concurrency = 1
	}
	if cfg.Migration.RateLimit > 0 && cfg.Migration.RateBurst == 0 {
		cfg.Migration.RateBurst = 1
	}
	if cfg.Migration.MaxKeyAttempts == 0 {
		cfg.Migration.MaxKeyAttempts = 3
	}
	if cfg.Mapper.Backend == "" {
		cfg.Mapper.Backend = "file"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "migrate:mapper:"
	}
	if cfg.History.Driver == "" {
		cfg.History.Driver = "sqlite"
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "migrate-history.db"
	}
	if cfg.History.Port == 0 {
		cfg.History.Port = 5432
	}
	if cfg.History.SSLMode == "" {
		cfg.History.SSLMode = "disable"
	}
	if cfg.History.MaxOpenConns == 0 {
		cfg.History.MaxOpenConns = 5
	}
	if cfg.History.MaxIdleConns == 0 {
		cfg.History.MaxIdleConns = 2
	}
	if cfg.History.SlowQuery == 0 {
		cfg.History.SlowQuery = 200 * time.Millisecond
	}
	if cfg.History.LogLevel == "" {
		cfg.History.LogLevel = "warn"
	}
	if cfg.Status.Addr == "" {
		cfg.Status.Addr = "127.0.0.1:9464"
	}
	if cfg.Status.ShutdownTimeout == 0 {
		cfg.Status.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Source.Type {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 source")
		}
	default:
		return fmt.Errorf("source.type must be local or s3, got %q", c.Source.Type)
	}
	if c.Migration.Concurrency < 1 {
		return fmt.Errorf("migration.concurrency must be at least 1")
	}
	if c.Migration.RateLimit < 0 {
		return fmt.Errorf("migration.rate_limit cannot be negative")
	}
	if c.Migration.MaxKeyAttempts < 1 {
		return fmt.Errorf("migration.max_key_attempts must be at least 1")
	}
	if c.Target.MaxRetries < 0 {
		return fmt.Errorf("target.max_retries cannot be negative")
	}
	if _, err := url.ParseRequestURI(c.Target.BaseURL); err != nil {
		return fmt.Errorf("target.base_url is invalid: %w", err)
	}
	switch c.Mapper.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("mapper.backend must be file or redis, got %q", c.Mapper.Backend)
	}
	switch c.History.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("history.driver must be sqlite or postgres, got %q", c.History.Driver)
	}
	if c.History.MaxIdleConns > c.History.MaxOpenConns {
		return fmt.Errorf("history.max_idle_conns (%d) cannot exceed history.max_open_conns (%d)",
			c.History.MaxIdleConns, c.History.MaxOpenConns)
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if c.Target.APIKey == "" || c.Target.ManagementToken == "" {
			return fmt.Errorf("target.api_key and target.management_token are required in production")
		}
		if c.History.Driver == "postgres" && c.History.SSLMode == "disable" {
			return fmt.Errorf("history.sslmode cannot be 'disable' in production")
		}
	}
	return nil
}

// DSN returns the postgres connection string with properly escaped values
func (h *HistoryConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(h.User, h.Password),
		Host:   fmt.Sprintf("%s:%d", h.Host, h.Port),
		Path:   h.DBName,
	}
	q := u.Query()
	q.Set("sslmode", h.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port pair for the Redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
