package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Queue        QueueConfig        `mapstructure:"queue"`
	NATS         NATSConfig         `mapstructure:"nats"`
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Brands       BrandsConfig       `mapstructure:"brands"`
	Correlation  CorrelationConfig  `mapstructure:"correlation"`
	CertStream   CertStreamConfig   `mapstructure:"certstream"`
	Producer     ProducerConfig     `mapstructure:"producer"`
	Dmarc        DmarcConfig        `mapstructure:"dmarc"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// QueueConfig configures the durable raw-event queue
type QueueConfig struct {
	RawEvents  string        `mapstructure:"raw_events"`
	PopTimeout time.Duration `mapstructure:"pop_timeout"`
}

type NATSConfig struct {
	Enabled  bool               `mapstructure:"enabled"`
	URL      string             `mapstructure:"url"`
	Subjects NATSSubjectsConfig `mapstructure:"subjects"`
}

type NATSSubjectsConfig struct {
	NewAlert         string `mapstructure:"new_alert"`
	CampaignDetected string `mapstructure:"campaign_detected"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// RateLimitConfig throttles the read API per client IP
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// BrandsConfig holds the monitored-brand list and lookalike matcher tuning
type BrandsConfig struct {
	Monitored           string  `mapstructure:"monitored"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	EmitOnExactBrand    bool    `mapstructure:"emit_on_exact_brand"`
}

// List returns the monitored brand display names, split and trimmed
func (c BrandsConfig) List() []string {
	parts := strings.Split(c.Monitored, ",")
	brands := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			brands = append(brands, trimmed)
		}
	}
	return brands
}

type CorrelationConfig struct {
	DefaultWindowHours int `mapstructure:"default_window_hours"`
	DefaultLimit       int `mapstructure:"default_limit"`
	LookupWindowHours  int `mapstructure:"lookup_window_hours"`
}

type CertStreamConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	WSURL               string        `mapstructure:"ws_url"`
	ReconnectMaxBackoff time.Duration `mapstructure:"reconnect_max_backoff"`
}

type ProducerConfig struct {
	LoopSleep       time.Duration `mapstructure:"loop_sleep"`
	LiveFeedEnabled bool          `mapstructure:"live_feed_enabled"`
	URLhausAPIURL   string        `mapstructure:"urlhaus_api_url"`
}

type DmarcConfig struct {
	DropDir      string        `mapstructure:"drop_dir"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ProcessedSet string        `mapstructure:"processed_set"`
}

// OrchestratorConfig holds per-target remediation endpoints and credentials.
// A missing endpoint or credential causes that target to be skipped, never
// an error.
type OrchestratorConfig struct {
	Timeout                     time.Duration `mapstructure:"timeout"`
	PublicAPIBaseURL            string        `mapstructure:"public_api_base_url"`
	ProofpointBlocklistEndpoint string        `mapstructure:"proofpoint_blocklist_endpoint"`
	ProofpointAPIToken          string        `mapstructure:"proofpoint_api_token"`
	TakedownSubmitEndpoint      string        `mapstructure:"takedown_submit_endpoint"`
	TakedownAPIKey              string        `mapstructure:"takedown_api_key"`
	OktaWorkflowInvokeURL       string        `mapstructure:"okta_workflow_invoke_url"`
	OktaOAuthToken              string        `mapstructure:"okta_oauth_token"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/lrx-radar")
	}

	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("LRX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested env vars explicitly (viper doesn't auto-bind nested struct fields)
	v.BindEnv("database.host", "LRX_DATABASE_HOST")
	v.BindEnv("database.port", "LRX_DATABASE_PORT")
	v.BindEnv("database.user", "LRX_DATABASE_USER")
	v.BindEnv("database.password", "LRX_DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "LRX_DATABASE_DBNAME")
	v.BindEnv("database.sslmode", "LRX_DATABASE_SSLMODE")
	v.BindEnv("redis.host", "LRX_REDIS_HOST")
	v.BindEnv("redis.port", "LRX_REDIS_PORT")
	v.BindEnv("redis.password", "LRX_REDIS_PASSWORD")
	v.BindEnv("queue.raw_events", "LRX_QUEUE_RAW_EVENTS")
	v.BindEnv("nats.enabled", "LRX_NATS_ENABLED")
	v.BindEnv("nats.url", "LRX_NATS_URL")
	v.BindEnv("brands.monitored", "LRX_BRANDS_MONITORED")
	v.BindEnv("certstream.enabled", "LRX_CERTSTREAM_ENABLED")
	v.BindEnv("certstream.ws_url", "LRX_CERTSTREAM_WS_URL")
	v.BindEnv("producer.live_feed_enabled", "LRX_PRODUCER_LIVE_FEED_ENABLED")
	v.BindEnv("dmarc.drop_dir", "LRX_DMARC_DROP_DIR")
	v.BindEnv("app.environment", "LRX_APP_ENVIRONMENT")

	// A config file is optional; defaults plus env vars are a complete
	// configuration on their own.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadDefault loads configuration with default path
func LoadDefault() (*Config, error) {
	return Load("")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "LRX Radar")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "dev")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "lrx")
	v.SetDefault("database.password", "lrx")
	v.SetDefault("database.dbname", "lrx_radar")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "lrx:")

	v.SetDefault("queue.raw_events", "raw_events")
	v.SetDefault("queue.pop_timeout", 5*time.Second)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subjects.new_alert", "lrx.alerts.new")
	v.SetDefault("nats.subjects.campaign_detected", "lrx.campaigns.detected")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Content-Type", "Authorization"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_minute", 120)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("brands.monitored", "microsoft,google,okta,adobe,amazon,paypal,bankofamerica,docu-sign")
	v.SetDefault("brands.similarity_threshold", 0.78)
	v.SetDefault("brands.emit_on_exact_brand", false)

	v.SetDefault("correlation.default_window_hours", 48)
	v.SetDefault("correlation.default_limit", 20)
	v.SetDefault("correlation.lookup_window_hours", 168)

	v.SetDefault("certstream.enabled", false)
	v.SetDefault("certstream.ws_url", "wss://certstream.calidog.io/")
	v.SetDefault("certstream.reconnect_max_backoff", 60*time.Second)

	v.SetDefault("producer.loop_sleep", 3*time.Second)
	v.SetDefault("producer.live_feed_enabled", false)
	v.SetDefault("producer.urlhaus_api_url", "https://urlhaus-api.abuse.ch/v1/urls/recent/")

	v.SetDefault("dmarc.poll_interval", 60*time.Second)
	v.SetDefault("dmarc.processed_set", "dmarc:processed")

	v.SetDefault("orchestrator.timeout", 10*time.Second)
	v.SetDefault("orchestrator.public_api_base_url", "http://localhost:8080")
}
