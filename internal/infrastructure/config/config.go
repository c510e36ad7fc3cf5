package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Log            LogConfig
	Mailbox        MailboxConfig
	Reconciliation ReconciliationConfig
	Alerts         AlertsConfig
	Channels       ChannelsConfig
	Storage        StorageConfig
	HTTP           HTTPConfig
	Scheduler      SchedulerConfig
	Telemetry      TelemetryConfig
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
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file, or ":memory:"
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
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

// MailboxConfig holds the IMAP settings of the shared mailbox
type MailboxConfig struct {
	Host               string        `validate:"required"`
	Port               int           `validate:"min=1,max=65535"`
	Username           string        `validate:"required"`
	Password           string        `validate:"required"`
	Folder             string        `validate:"required"`
	DisableTLS         bool          // plain IMAP, local testing only
	InsecureSkipVerify bool
	DialTimeout        time.Duration `validate:"gt=0"`
	CommandTimeout     time.Duration `validate:"gt=0"`
}

// Addr returns host:port
func (m MailboxConfig) Addr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// ReconciliationConfig controls mailbox reconciliation runs
type ReconciliationConfig struct {
	BrokerKeywords  []string
	ReceiptKeywords []string
	Limit           int
	LeaseTTL        time.Duration
	LeaseBackend    string // memory, redis
	DocumentPrefix  string
}

// AlertsConfig controls alert evaluation
type AlertsConfig struct {
	Timezone              string
	InsurerResponseWindow time.Duration
	DepositWindow         time.Duration
}

// Location loads the configured time zone
func (a AlertsConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

// ChannelsConfig holds the outbound notification channels
type ChannelsConfig struct {
	RateLimit   float64 // sends per second shared by HTTP channels
	RateBurst   int
	HTTPTimeout time.Duration
	Mail        MailChannelConfig
	SMS         SMSChannelConfig
	Chat        ChatChannelConfig
	Webhook     WebhookChannelConfig
}

// MailChannelConfig holds SMTP settings
type MailChannelConfig struct {
	Enabled  bool
	Host     string        `validate:"required_if=Enabled true"`
	Port     int           `validate:"required_if=Enabled true,omitempty,min=1,max=65535"`
	Username string
	Password string
	From     string        `validate:"required_if=Enabled true,omitempty,email"`
	TLS      string        // mandatory, opportunistic, none
	Timeout  time.Duration `validate:"required_if=Enabled true"`
}

// SMSChannelConfig holds the SMS gateway settings
type SMSChannelConfig struct {
	Enabled  bool
	Endpoint string `validate:"required_if=Enabled true,omitempty,url"`
	APIKey   string `validate:"required_if=Enabled true"`
	Sender   string
}

// ChatChannelConfig holds the chat incoming-webhook settings
type ChatChannelConfig struct {
	Enabled    bool
	WebhookURL string `validate:"required_if=Enabled true,omitempty,url"`
	Channel    string
}

// WebhookChannelConfig holds the generic webhook settings
type WebhookChannelConfig struct {
	Enabled bool
	URL     string `validate:"required_if=Enabled true,omitempty,url"`
	Secret  string
}

// StorageConfig holds receipt document storage settings
type StorageConfig struct {
	Backend      string // s3, local
	LocalDir     string
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// SchedulerConfig holds the serve-mode triggers
type SchedulerConfig struct {
	Enabled           bool
	ReconcileInterval time.Duration
	AlertsHour        int // local hour of the daily alert run
	JobTimeout        time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool // bridge zap to the OTLP log pipeline
	DBTraceEnabled    bool // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool // Log full SQL statements (dev only)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CLAIMS_ prefix (e.g., CLAIMS_MAILBOX_PASSWORD)
// 2. claimsync.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("claimsync")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/claimsync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("CLAIMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
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
		Mailbox: MailboxConfig{
			Host:               v.GetString("mailbox.host"),
			Port:               v.GetInt("mailbox.port"),
			Username:           v.GetString("mailbox.username"),
			Password:           v.GetString("mailbox.password"),
			Folder:             v.GetString("mailbox.folder"),
			DisableTLS:         v.GetBool("mailbox.disable_tls"),
			InsecureSkipVerify: v.GetBool("mailbox.insecure_skip_verify"),
			DialTimeout:        v.GetDuration("mailbox.dial_timeout"),
			CommandTimeout:     v.GetDuration("mailbox.command_timeout"),
		},
		Reconciliation: ReconciliationConfig{
			BrokerKeywords:  v.GetStringSlice("reconciliation.broker_keywords"),
			ReceiptKeywords: v.GetStringSlice("reconciliation.receipt_keywords"),
			Limit:           v.GetInt("reconciliation.limit"),
			LeaseTTL:        v.GetDuration("reconciliation.lease_ttl"),
			LeaseBackend:    v.GetString("reconciliation.lease_backend"),
			DocumentPrefix:  v.GetString("reconciliation.document_prefix"),
		},
		Alerts: AlertsConfig{
			Timezone:              v.GetString("alerts.timezone"),
			InsurerResponseWindow: v.GetDuration("alerts.insurer_response_window"),
			DepositWindow:         v.GetDuration("alerts.deposit_window"),
		},
		Channels: ChannelsConfig{
			RateLimit:   v.GetFloat64("channels.rate_limit"),
			RateBurst:   v.GetInt("channels.rate_burst"),
			HTTPTimeout: v.GetDuration("channels.http_timeout"),
			Mail: MailChannelConfig{
				Enabled:  v.GetBool("channels.mail.enabled"),
				Host:     v.GetString("channels.mail.host"),
				Port:     v.GetInt("channels.mail.port"),
				Username: v.GetString("channels.mail.username"),
				Password: v.GetString("channels.mail.password"),
				From:     v.GetString("channels.mail.from"),
				TLS:      v.GetString("channels.mail.tls"),
				Timeout:  v.GetDuration("channels.mail.timeout"),
			},
			SMS: SMSChannelConfig{
				Enabled:  v.GetBool("channels.sms.enabled"),
				Endpoint: v.GetString("channels.sms.endpoint"),
				APIKey:   v.GetString("channels.sms.api_key"),
				Sender:   v.GetString("channels.sms.sender"),
			},
			Chat: ChatChannelConfig{
				Enabled:    v.GetBool("channels.chat.enabled"),
				WebhookURL: v.GetString("channels.chat.webhook_url"),
				Channel:    v.GetString("channels.chat.channel"),
			},
			Webhook: WebhookChannelConfig{
				Enabled: v.GetBool("channels.webhook.enabled"),
				URL:     v.GetString("channels.webhook.url"),
				Secret:  v.GetString("channels.webhook.secret"),
			},
		},
		Storage: StorageConfig{
			Backend:      v.GetString("storage.backend"),
			LocalDir:     v.GetString("storage.local_dir"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			ReconcileInterval: v.GetDuration("scheduler.reconcile_interval"),
			AlertsHour:        v.GetInt("scheduler.alerts_hour"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "claimsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
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
		cfg.Database.DBName = "claimsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "claimsync.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
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
		cfg.Log.Output = "stderr"
	}

	if cfg.Mailbox.Port == 0 {
		cfg.Mailbox.Port = 993
	}
	if cfg.Mailbox.Folder == "" {
		cfg.Mailbox.Folder = "INBOX"
	}
	if cfg.Mailbox.DialTimeout == 0 {
		cfg.Mailbox.DialTimeout = 30 * time.Second
	}
	if cfg.Mailbox.CommandTimeout == 0 {
		cfg.Mailbox.CommandTimeout = time.Minute
	}

	if len(cfg.Reconciliation.BrokerKeywords) == 0 {
		cfg.Reconciliation.BrokerKeywords = []string{"RESPUESTA SINIESTRO"}
	}
	if len(cfg.Reconciliation.ReceiptKeywords) == 0 {
		cfg.Reconciliation.ReceiptKeywords = []string{"recibo"}
	}
	if cfg.Reconciliation.Limit == 0 {
		cfg.Reconciliation.Limit = 50
	}
	if cfg.Reconciliation.LeaseTTL == 0 {
		cfg.Reconciliation.LeaseTTL = 5 * time.Minute
	}
	if cfg.Reconciliation.LeaseBackend == "" {
		cfg.Reconciliation.LeaseBackend = "memory"
	}
	if cfg.Reconciliation.DocumentPrefix == "" {
		cfg.Reconciliation.DocumentPrefix = "receipts"
	}

	if cfg.Alerts.Timezone == "" {
		cfg.Alerts.Timezone = "America/Guayaquil"
	}
	if cfg.Alerts.InsurerResponseWindow == 0 {
		cfg.Alerts.InsurerResponseWindow = 48 * time.Hour
	}
	if cfg.Alerts.DepositWindow == 0 {
		cfg.Alerts.DepositWindow = 24 * time.Hour
	}

	if cfg.Channels.RateLimit == 0 {
		cfg.Channels.RateLimit = 5
	}
	if cfg.Channels.RateBurst == 0 {
		cfg.Channels.RateBurst = 1
	}
	if cfg.Channels.HTTPTimeout == 0 {
		cfg.Channels.HTTPTimeout = 10 * time.Second
	}
	if cfg.Channels.Mail.Port == 0 {
		cfg.Channels.Mail.Port = 587
	}
	if cfg.Channels.Mail.TLS == "" {
		cfg.Channels.Mail.TLS = "mandatory"
	}
	if cfg.Channels.Mail.Timeout == 0 {
		cfg.Channels.Mail.Timeout = 30 * time.Second
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.LocalDir == "" {
		cfg.Storage.LocalDir = "./data/documents"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 5 * time.Minute // runs are synchronous
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}

	if cfg.Scheduler.ReconcileInterval == 0 {
		cfg.Scheduler.ReconcileInterval = 10 * time.Minute
	}
	if cfg.Scheduler.AlertsHour == 0 {
		cfg.Scheduler.AlertsHour = 7
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 15 * time.Minute
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "claimsync"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
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

	switch c.Reconciliation.LeaseBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("reconciliation.lease_backend must be memory or redis, got %q", c.Reconciliation.LeaseBackend)
	}
	if c.Reconciliation.Limit < 0 {
		return fmt.Errorf("reconciliation.limit cannot be negative")
	}

	if _, err := c.Alerts.Location(); err != nil {
		return fmt.Errorf("alerts.timezone: %w", err)
	}
	if c.Scheduler.AlertsHour < 0 || c.Scheduler.AlertsHour > 23 {
		return fmt.Errorf("scheduler.alerts_hour must be between 0 and 23, got %d", c.Scheduler.AlertsHour)
	}

	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend must be s3 or local, got %q", c.Storage.Backend)
	}

	if err := c.Channels.Validate(); err != nil {
		return err
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Mailbox.DisableTLS || c.Mailbox.InsecureSkipVerify {
			return fmt.Errorf("mailbox TLS cannot be disabled or unverified in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the mailbox section. It is only required by commands
// that open the mailbox, so Load does not call it.
func (m MailboxConfig) Validate() error {
	if err := structValidator.Struct(m); err != nil {
		return fmt.Errorf("invalid mailbox configuration: %w", err)
	}
	return nil
}

// Validate checks every enabled channel section
func (c ChannelsConfig) Validate() error {
	if c.RateLimit < 0 {
		return fmt.Errorf("channels.rate_limit cannot be negative")
	}
	for name, section := range map[string]any{
		"mail":    c.Mail,
		"sms":     c.SMS,
		"chat":    c.Chat,
		"webhook": c.Webhook,
	} {
		if err := structValidator.Struct(section); err != nil {
			return fmt.Errorf("invalid channels.%s configuration: %w", name, err)
		}
	}
	switch c.Mail.TLS {
	case "mandatory", "opportunistic", "none":
	default:
		return fmt.Errorf("channels.mail.tls must be mandatory, opportunistic or none, got %q", c.Mail.TLS)
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
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
