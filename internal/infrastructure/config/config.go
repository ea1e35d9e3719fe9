package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Vault     VaultConfig
	Sync      SyncConfig
	Providers ProvidersConfig
	Archive   ArchiveConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// DSN builds the Postgres connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL builds a postgres:// URL (used by the migration runner)
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password),
		c.Host, c.Port, c.DBName, c.SSLMode)
}

// RedisConfig holds Redis connection settings. Redis is optional: when
// disabled, the dedup ledger runs on the relational store alone.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings for the tenant-facing API
type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	// MaxWebhookBody bounds the raw body size accepted on webhook routes
	MaxWebhookBody int64
	TrustedProxies []string
	// CORSAllowOrigins is the cross-origin whitelist; empty rejects all
	CORSAllowOrigins []string
}

// VaultConfig holds credential-encryption settings
type VaultConfig struct {
	// Secret is the operator-supplied secret the encryption key is derived
	// from. Never logged.
	Secret string
}

// SyncConfig holds sync orchestration settings
type SyncConfig struct {
	// SchedulerEnabled turns on the in-process poll scheduler
	SchedulerEnabled bool
	// PollInterval is how often the scheduler starts a batch
	PollInterval time.Duration
	// BatchSize is the maximum connections processed per batch
	BatchSize int
	// BatchBudget is the wall-clock budget of one batch; no new connection
	// is started after 80% of it is consumed
	BatchBudget time.Duration
	// InitialLookback is the delta window for a connection that has never synced
	InitialLookback time.Duration
	// TriggerToken authenticates the scheduled-sync HTTP trigger
	TriggerToken string
	// DedupTTL is the retention window of dedup ledger entries
	DedupTTL time.Duration
	// EventRetention is the retention window of sync event records
	EventRetention time.Duration
	// CleanupInterval is how often the retention cleanup pass runs
	CleanupInterval time.Duration
}

// ProviderCredentials holds one provider's OAuth app settings
type ProviderCredentials struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	WebhookSecret string
}

// ProvidersConfig holds per-provider OAuth app settings
type ProvidersConfig struct {
	Etsy    ProviderCredentials
	Ebay    ProviderCredentials
	Shopify ProviderCredentials
}

// ArchiveConfig holds raw-payload archiving settings. Any S3-compatible
// backend works (AWS S3, MinIO, RustFS); leave AccessKey empty to use the
// ambient AWS credential chain.
type ArchiveConfig struct {
	Enabled      bool
	Bucket       string
	Region       string
	Prefix       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBMetricsEnabled  bool
	LogsEnabled       bool
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with SELLERHUB_ prefix (e.g., SELLERHUB_VAULT_SECRET)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SELLERHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Issuer:     v.GetString("jwt.issuer"),
			Expiration: v.GetDuration("jwt.expiration"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxWebhookBody:   v.GetInt64("http.max_webhook_body"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Vault: VaultConfig{
			Secret: v.GetString("vault.secret"),
		},
		Sync: SyncConfig{
			SchedulerEnabled: v.GetBool("sync.scheduler_enabled"),
			PollInterval:     v.GetDuration("sync.poll_interval"),
			BatchSize:        v.GetInt("sync.batch_size"),
			BatchBudget:      v.GetDuration("sync.batch_budget"),
			InitialLookback:  v.GetDuration("sync.initial_lookback"),
			TriggerToken:     v.GetString("sync.trigger_token"),
			DedupTTL:         v.GetDuration("sync.dedup_ttl"),
			EventRetention:   v.GetDuration("sync.event_retention"),
			CleanupInterval:  v.GetDuration("sync.cleanup_interval"),
		},
		Providers: ProvidersConfig{
			Etsy: ProviderCredentials{
				ClientID:     v.GetString("providers.etsy.client_id"),
				ClientSecret: v.GetString("providers.etsy.client_secret"),
				RedirectURL:  v.GetString("providers.etsy.redirect_url"),
			},
			Ebay: ProviderCredentials{
				ClientID:     v.GetString("providers.ebay.client_id"),
				ClientSecret: v.GetString("providers.ebay.client_secret"),
				RedirectURL:  v.GetString("providers.ebay.redirect_url"),
			},
			Shopify: ProviderCredentials{
				ClientID:      v.GetString("providers.shopify.client_id"),
				ClientSecret:  v.GetString("providers.shopify.client_secret"),
				RedirectURL:   v.GetString("providers.shopify.redirect_url"),
				WebhookSecret: v.GetString("providers.shopify.webhook_secret"),
			},
		},
		Archive: ArchiveConfig{
			Enabled:      v.GetBool("archive.enabled"),
			Bucket:       v.GetString("archive.bucket"),
			Region:       v.GetString("archive.region"),
			Prefix:       v.GetString("archive.prefix"),
			Endpoint:     v.GetString("archive.endpoint"),
			AccessKey:    v.GetString("archive.access_key"),
			SecretKey:    v.GetString("archive.secret_key"),
			UsePathStyle: v.GetBool("archive.use_path_style"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBMetricsEnabled:  v.GetBool("telemetry.db_metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
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
		cfg.App.Name = "sellerhub-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "sellerhub"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 10
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "sellerhub"
	}
	if cfg.JWT.Expiration == 0 {
		cfg.JWT.Expiration = 24 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxWebhookBody == 0 {
		cfg.HTTP.MaxWebhookBody = 2 << 20 // 2MB
	}
	if cfg.Sync.PollInterval == 0 {
		cfg.Sync.PollInterval = 15 * time.Minute
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 25
	}
	if cfg.Sync.BatchBudget == 0 {
		cfg.Sync.BatchBudget = 5 * time.Minute
	}
	if cfg.Sync.InitialLookback == 0 {
		cfg.Sync.InitialLookback = 30 * 24 * time.Hour
	}
	if cfg.Sync.DedupTTL == 0 {
		cfg.Sync.DedupTTL = 72 * time.Hour
	}
	if cfg.Sync.EventRetention == 0 {
		cfg.Sync.EventRetention = 30 * 24 * time.Hour
	}
	if cfg.Sync.CleanupInterval == 0 {
		cfg.Sync.CleanupInterval = time.Hour
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
}

// validate checks configuration that has no safe default
func (c *Config) validate() error {
	if c.Vault.Secret == "" {
		return fmt.Errorf("config: vault.secret is required (SELLERHUB_VAULT_SECRET)")
	}
	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("config: jwt.secret is required in production")
		}
		if c.Sync.TriggerToken == "" {
			return fmt.Errorf("config: sync.trigger_token is required in production")
		}
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("config: archive.bucket is required when archiving is enabled")
	}
	return nil
}
