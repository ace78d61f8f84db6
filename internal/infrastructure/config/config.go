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
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Marketplace MarketplaceConfig
	Bridge      BridgeConfig
	Events      EventsConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
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

// RedisConfig holds Redis connection settings.
// When disabled, token cache and webhook dedup stay in process memory.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
	RateLimitRPS   float64 // per client IP on the bridge endpoints, 0 disables
	RateLimitBurst int
}

// MarketplaceConfig holds the remote messaging API settings
type MarketplaceConfig struct {
	Platform       string  // platform code stored in integration_configs.service
	BaseURL        string  // API root, e.g. https://api.avito.ru/messenger
	TokenURL       string  // defaults to BaseURL + "/token"
	TimeoutSeconds int     // per remote call
	ChatPageSize   int     // chats requested per sync
	MessageWindow  int     // messages requested per chat
	RateLimitRPS   float64 // 0 disables client-side pacing
	RateLimitBurst int
}

// BridgeConfig holds synchronization behaviour settings
type BridgeConfig struct {
	WebhookURL        string        // public URL registered with the platform
	RelayConcurrency  int           // chats processed in parallel during a sync; 1 = sequential
	TokenRefreshSkew  time.Duration // tokens are refreshed this long before expiry
	WebhookDedupTTL   time.Duration // how long delivered message ids are remembered
	AckOnStoreFailure bool          // acknowledge webhooks even when the insert failed
}

// EventsConfig holds message-observed event publishing settings
type EventsConfig struct {
	Enabled  bool
	AMQPURL  string
	Exchange string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool    // Enable database query tracing (otelgorm)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BRIDGE_ prefix (e.g., BRIDGE_DATABASE_PASSWORD)
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

	v.SetEnvPrefix("BRIDGE")
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
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
			RateLimitRPS:   v.GetFloat64("http.rate_limit_rps"),
			RateLimitBurst: v.GetInt("http.rate_limit_burst"),
		},
		Marketplace: MarketplaceConfig{
			Platform:       v.GetString("marketplace.platform"),
			BaseURL:        v.GetString("marketplace.base_url"),
			TokenURL:       v.GetString("marketplace.token_url"),
			TimeoutSeconds: v.GetInt("marketplace.timeout_seconds"),
			ChatPageSize:   v.GetInt("marketplace.chat_page_size"),
			MessageWindow:  v.GetInt("marketplace.message_window"),
			RateLimitRPS:   v.GetFloat64("marketplace.rate_limit_rps"),
			RateLimitBurst: v.GetInt("marketplace.rate_limit_burst"),
		},
		Bridge: BridgeConfig{
			WebhookURL:        v.GetString("bridge.webhook_url"),
			RelayConcurrency:  v.GetInt("bridge.relay_concurrency"),
			TokenRefreshSkew:  v.GetDuration("bridge.token_refresh_skew"),
			WebhookDedupTTL:   v.GetDuration("bridge.webhook_dedup_ttl"),
			AckOnStoreFailure: v.GetBool("bridge.ack_on_store_failure"),
		},
		Events: EventsConfig{
			Enabled:  v.GetBool("events.enabled"),
			AMQPURL:  v.GetString("events.amqp_url"),
			Exchange: v.GetString("events.exchange"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
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
		cfg.App.Name = "chat-bridge"
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
		cfg.Database.DBName = "chatbridge"
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
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// a full sync issues one remote call per chat, so writes get more room than reads
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 120 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitBurst == 0 {
		cfg.HTTP.RateLimitBurst = 20
	}
	if cfg.Marketplace.Platform == "" {
		cfg.Marketplace.Platform = "avito"
	}
	if cfg.Marketplace.BaseURL == "" {
		cfg.Marketplace.BaseURL = "https://api.avito.ru/messenger/v1"
	}
	if cfg.Marketplace.TokenURL == "" {
		cfg.Marketplace.TokenURL = strings.TrimRight(cfg.Marketplace.BaseURL, "/") + "/token"
	}
	if cfg.Marketplace.TimeoutSeconds == 0 {
		cfg.Marketplace.TimeoutSeconds = 15
	}
	if cfg.Marketplace.ChatPageSize == 0 {
		cfg.Marketplace.ChatPageSize = 20
	}
	if cfg.Marketplace.MessageWindow == 0 {
		cfg.Marketplace.MessageWindow = 20
	}
	if cfg.Marketplace.RateLimitBurst == 0 {
		cfg.Marketplace.RateLimitBurst = 5
	}
	if cfg.Bridge.RelayConcurrency == 0 {
		cfg.Bridge.RelayConcurrency = 1
	}
	if cfg.Bridge.TokenRefreshSkew == 0 {
		cfg.Bridge.TokenRefreshSkew = time.Minute
	}
	if cfg.Bridge.WebhookDedupTTL == 0 {
		cfg.Bridge.WebhookDedupTTL = 24 * time.Hour
	}
	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "chat.events"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "chat-bridge"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if _, err := url.ParseRequestURI(c.Marketplace.BaseURL); err != nil {
		return fmt.Errorf("marketplace.base_url is invalid: %w", err)
	}
	if _, err := url.ParseRequestURI(c.Marketplace.TokenURL); err != nil {
		return fmt.Errorf("marketplace.token_url is invalid: %w", err)
	}
	if c.Marketplace.TimeoutSeconds < 1 || c.Marketplace.TimeoutSeconds > 120 {
		return fmt.Errorf("marketplace.timeout_seconds must be between 1 and 120, got %d", c.Marketplace.TimeoutSeconds)
	}
	if c.Marketplace.ChatPageSize < 1 || c.Marketplace.MessageWindow < 1 {
		return fmt.Errorf("marketplace.chat_page_size and marketplace.message_window must be positive")
	}
	if c.Marketplace.RateLimitRPS < 0 {
		return fmt.Errorf("marketplace.rate_limit_rps cannot be negative")
	}
	if c.Bridge.RelayConcurrency < 1 {
		return fmt.Errorf("bridge.relay_concurrency must be at least 1")
	}
	if c.Events.Enabled && c.Events.AMQPURL == "" {
		return fmt.Errorf("events.amqp_url is required when events are enabled")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Bridge.WebhookURL != "" && !strings.HasPrefix(c.Bridge.WebhookURL, "https://") {
			return fmt.Errorf("bridge.webhook_url must use https in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// Timeout returns the per-call timeout of remote requests
func (m *MarketplaceConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
