// Package config loads the downloader configuration from an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage, audit and source drivers.
const (
	DriverGCS      = "gcs"
	DriverMinio    = "minio"
	DriverBigQuery = "bigquery"
	DriverPostgres = "postgres"
	DriverStatic   = "static"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Portal   PortalConfig   `mapstructure:"portal"`
	Download DownloadConfig `mapstructure:"download"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Source   SourceConfig   `mapstructure:"source"`
	Google   GoogleConfig   `mapstructure:"google"`
	Database DatabaseConfig `mapstructure:"database"`
	Lock     LockConfig     `mapstructure:"lock"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	RateLimit    RateLimit     `mapstructure:"rate_limit"`
}

// RateLimit configures per-client API limits.
type RateLimit struct {
	Enabled       bool          `mapstructure:"enabled"`
	DefaultLimit  int           `mapstructure:"default_limit"`
	DefaultWindow time.Duration `mapstructure:"default_window"`
	Whitelist     string        `mapstructure:"whitelist"`
	Blacklist     string        `mapstructure:"blacklist"`
}

// PortalConfig holds SER portal settings. AuthCookie and Username/Password
// are alternatives; a token sent with a request overrides both.
type PortalConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	QueryURL          string        `mapstructure:"query_url"`
	LoginURL          string        `mapstructure:"login_url"`
	AuthCookie        string        `mapstructure:"auth_cookie"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	Variant           string        `mapstructure:"variant"`
	Headless          bool          `mapstructure:"headless"`
	AuthTimeout       time.Duration `mapstructure:"auth_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	Settle            time.Duration `mapstructure:"settle"`
	DownloadTimeout   time.Duration `mapstructure:"download_timeout"`
}

// DownloadConfig controls the worker pool and the local tree.
type DownloadConfig struct {
	Path        string        `mapstructure:"path"`
	Section     string        `mapstructure:"section"`
	Workers     int           `mapstructure:"workers"`
	CaseTimeout time.Duration `mapstructure:"case_timeout"`
	ResetRoot   bool          `mapstructure:"reset_root"`
}

// StorageConfig selects and configures the blob store.
type StorageConfig struct {
	Driver        string        `mapstructure:"driver"`
	Bucket        string        `mapstructure:"bucket"`
	Workers       int           `mapstructure:"workers"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Minio         MinioConfig   `mapstructure:"minio"`
}

// MinioConfig holds S3-compatible endpoint settings.
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"`
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	Driver string `mapstructure:"driver"`
	Table  string `mapstructure:"table"`
}

// SourceConfig selects where case files come from when a request asks for the database.
type SourceConfig struct {
	Driver   string `mapstructure:"driver"`
	Table    string `mapstructure:"table"`
	Location string `mapstructure:"location"`
}

// GoogleConfig holds the shared Google Cloud project settings.
type GoogleConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	Project         string `mapstructure:"project"`
	Dataset         string `mapstructure:"dataset"`
}

// DatabaseConfig holds the Postgres connection.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// LockConfig configures the run lock. Without a Redis URL the lock is process-local.
type LockConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// AuthConfig configures bearer authentication of the API. Empty JWTSecret disables it.
type AuthConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret"`
	ExpirationHours int    `mapstructure:"expiration_hours"`
	Permission      string `mapstructure:"permission"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configPath when not empty, then applies environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Hour)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.default_limit", 1000)
	v.SetDefault("server.rate_limit.default_window", time.Minute)
	v.SetDefault("server.rate_limit.whitelist", "")
	v.SetDefault("server.rate_limit.blacklist", "")

	v.SetDefault("portal.base_url", "")
	v.SetDefault("portal.query_url", "")
	v.SetDefault("portal.login_url", "")
	v.SetDefault("portal.auth_cookie", "")
	v.SetDefault("portal.username", "")
	v.SetDefault("portal.password", "")
	v.SetDefault("portal.variant", "text")
	v.SetDefault("portal.headless", true)
	v.SetDefault("portal.auth_timeout", 45*time.Second)
	v.SetDefault("portal.navigation_timeout", 30*time.Second)
	v.SetDefault("portal.settle", 3*time.Second)
	v.SetDefault("portal.download_timeout", 60*time.Second)

	v.SetDefault("download.path", "downloads")
	v.SetDefault("download.section", "ia")
	v.SetDefault("download.workers", 4)
	v.SetDefault("download.case_timeout", 20*time.Minute)
	v.SetDefault("download.reset_root", true)

	v.SetDefault("storage.driver", DriverGCS)
	v.SetDefault("storage.bucket", "contraprestaciones-pro-ser")
	v.SetDefault("storage.workers", 8)
	v.SetDefault("storage.rate_per_second", 20.0)
	v.SetDefault("storage.timeout", 60*time.Second)
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.use_ssl", false)
	v.SetDefault("storage.minio.public_url", "")

	v.SetDefault("audit.driver", DriverBigQuery)
	v.SetDefault("audit.table", "fur_audit_log")

	v.SetDefault("source.driver", DriverBigQuery)
	v.SetDefault("source.table", "oficios")
	v.SetDefault("source.location", "")

	v.SetDefault("google.credentials_file", "")
	v.SetDefault("google.project", "")
	v.SetDefault("google.dataset", "")

	v.SetDefault("database.url", "")
	v.SetDefault("lock.redis_url", "")
	v.SetDefault("lock.ttl", 2*time.Hour)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.expiration_hours", 24)
	v.SetDefault("auth.permission", "furs:download")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars maps the deployment's environment names onto config keys.
func bindEnvVars(v *viper.Viper) {
	bind := func(key, env string) { _ = v.BindEnv(key, env) }
	bind("server.port", "PORT")
	bind("server.cors_origins", "CORS_ORIGINS")
	bind("server.rate_limit.enabled", "RATE_LIMIT_ENABLED")
	bind("server.rate_limit.whitelist", "RATE_LIMIT_WHITELIST")
	bind("server.rate_limit.blacklist", "RATE_LIMIT_BLACKLIST")

	bind("portal.base_url", "SER_URL")
	bind("portal.query_url", "SER_URL_CONSUL_FUR")
	bind("portal.login_url", "SER_URL_LOGIN")
	bind("portal.auth_cookie", "SER_AUTH_COOKIE")
	bind("portal.username", "SER_USERNAME")
	bind("portal.password", "SER_PASSWORD")
	bind("portal.variant", "SER_VARIANT")
	bind("portal.headless", "SER_HEADLESS")

	bind("download.path", "DOWNLOAD_PATH")
	bind("download.workers", "MAX_WORKERS")

	bind("storage.driver", "STORAGE_DRIVER")
	bind("storage.bucket", "GCS_BUCKET")
	bind("storage.minio.endpoint", "MINIO_ENDPOINT")
	bind("storage.minio.access_key", "MINIO_ACCESS_KEY")
	bind("storage.minio.secret_key", "MINIO_SECRET_KEY")
	bind("storage.minio.use_ssl", "MINIO_USE_SSL")
	bind("storage.minio.public_url", "MINIO_PUBLIC_URL")

	bind("audit.driver", "AUDIT_DRIVER")
	bind("audit.table", "BQ_AUDIT_TABLE")
	bind("source.driver", "SOURCE_DRIVER")
	bind("source.table", "BQ_TABLE")

	bind("google.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")
	bind("google.project", "BQ_PROJECT")
	bind("google.dataset", "BQ_DATASET")

	bind("database.url", "DATABASE_URL")
	bind("lock.redis_url", "REDIS_URL")

	bind("auth.jwt_secret", "JWT_SECRET")
	bind("auth.expiration_hours", "JWT_EXPIRATION_HOURS")

	bind("logger.level", "LOG_LEVEL")
	bind("logger.format", "LOG_FORMAT")
}

// Validate checks the settings each selected driver needs.
func (c *Config) Validate() error {
	var errs []error
	if c.Portal.BaseURL == "" {
		errs = append(errs, errors.New("portal.base_url (SER_URL) is required"))
	}
	if c.Download.Path == "" {
		errs = append(errs, errors.New("download.path is required"))
	}
	if c.Download.Workers < 1 {
		errs = append(errs, fmt.Errorf("download.workers must be at least 1, got %d", c.Download.Workers))
	}

	switch c.Storage.Driver {
	case DriverGCS:
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for the gcs driver"))
		}
	case DriverMinio:
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.AccessKey == "" || c.Storage.Minio.SecretKey == "" {
			errs = append(errs, errors.New("storage.minio endpoint and keys are required for the minio driver"))
		}
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for the minio driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	errs = append(errs, c.checkWarehouse("audit.driver", c.Audit.Driver, false)...)
	errs = append(errs, c.checkWarehouse("source.driver", c.Source.Driver, true)...)

	if c.Auth.JWTSecret != "" && c.Auth.ExpirationHours < 1 {
		errs = append(errs, fmt.Errorf("auth.expiration_hours must be at least 1, got %d", c.Auth.ExpirationHours))
	}
	return errors.Join(errs...)
}

func (c *Config) checkWarehouse(key, driver string, allowStatic bool) []error {
	switch driver {
	case DriverBigQuery:
		if c.Google.Project == "" || c.Google.Dataset == "" {
			return []error{fmt.Errorf("%s bigquery needs google.project (BQ_PROJECT) and google.dataset (BQ_DATASET)", key)}
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return []error{fmt.Errorf("%s postgres needs database.url (DATABASE_URL)", key)}
		}
	case DriverStatic:
		if !allowStatic {
			return []error{fmt.Errorf("unknown %s %q", key, driver)}
		}
	default:
		return []error{fmt.Errorf("unknown %s %q", key, driver)}
	}
	return nil
}
