package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Pricing     PricingConfig    `mapstructure:"pricing"`
	Payment     PaymentConfig    `mapstructure:"payment"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Worker      WorkerConfig     `mapstructure:"worker"`
	Serving     ServingConfig    `mapstructure:"serving"`
	Monitoring  MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds  int `mapstructure:"idle_timeout_seconds"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host                   string          `mapstructure:"host"`
	Port                   int             `mapstructure:"port"`
	User                   string          `mapstructure:"user"`
	Password               string          `mapstructure:"password"`
	Name                   string          `mapstructure:"name"`
	SSLMode                string          `mapstructure:"ssl_mode"`
	MaxOpenConns           int             `mapstructure:"max_open_conns"`
	MaxIdleConns           int             `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int             `mapstructure:"conn_max_lifetime_minutes"`
	ConnMaxIdleMinutes     int             `mapstructure:"conn_max_idle_minutes"`
	ReadReplicas           []ReplicaConfig `mapstructure:"read_replicas"`
}

// ReplicaConfig is a read-only Postgres endpoint used by serving
type ReplicaConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port"`
	Password            string `mapstructure:"password"`
	DB                  int    `mapstructure:"db"`
	PoolSize            int    `mapstructure:"pool_size"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `mapstructure:"idle_timeout_seconds"`
}

// PricingConfig is the single pricing table. Empty maps fall back to the
// built-in table.
type PricingConfig struct {
	Currency          string             `mapstructure:"currency"`
	BasePrices        map[string]float64 `mapstructure:"base_prices"`
	FormatMultipliers map[string]float64 `mapstructure:"format_multipliers"`
	RegionMultipliers map[string]float64 `mapstructure:"region_multipliers"`
}

// IsSet reports whether a table was configured
func (p PricingConfig) IsSet() bool {
	return len(p.BasePrices) > 0 || len(p.FormatMultipliers) > 0 || len(p.RegionMultipliers) > 0
}

// PaymentConfig holds payment gateway configuration. With no API key the
// local mock gateway is used.
type PaymentConfig struct {
	Provider          string `mapstructure:"provider"`
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	SuccessURL        string `mapstructure:"success_url"`
	CancelURL         string `mapstructure:"cancel_url"`
	MockCheckoutURL   string `mapstructure:"mock_checkout_url"`
	WebhookSecret     string `mapstructure:"webhook_secret"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	SessionTTLMinutes int    `mapstructure:"session_ttl_minutes"`
}

// StorageConfig holds the creative bucket configuration. An empty bucket
// disables media checks.
type StorageConfig struct {
	S3 S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket               string `mapstructure:"bucket"`
	Region               string `mapstructure:"region"`
	Endpoint             string `mapstructure:"endpoint"`
	AccessKeyID          string `mapstructure:"access_key_id"`
	SecretAccessKey      string `mapstructure:"secret_access_key"`
	UsePathStyle         bool   `mapstructure:"use_path_style"`
	PresignExpireMinutes int    `mapstructure:"presign_expire_minutes"`
}

// WorkerConfig holds the maintenance loop configuration
type WorkerConfig struct {
	ArchiveIntervalSeconds       int `mapstructure:"archive_interval_seconds"`
	SessionExpiryIntervalSeconds int `mapstructure:"session_expiry_interval_seconds"`
	ServeFlushIntervalSeconds    int `mapstructure:"serve_flush_interval_seconds"`
	BatchSize                    int `mapstructure:"batch_size"`
}

// ServingConfig holds serve-log and session cache configuration
type ServingConfig struct {
	ShardCount            int `mapstructure:"shard_count"`
	SessionCacheL1Seconds int `mapstructure:"session_cache_l1_seconds"`
	SessionCacheL2Seconds int `mapstructure:"session_cache_l2_seconds"`
	SessionCacheMaxItems  int `mapstructure:"session_cache_max_items"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

var envPattern = regexp.MustCompile(`\{([A-Z_0-9]+)-([^}]*)\}`)

// Load loads configuration from file and environment variables. A local
// .env file, when present, is loaded first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}

	configName := "config"
	if env == "production" {
		configName = "production"
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath("/app/configs")

	// Missing file is fine, defaults apply
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

// LoadFile loads configuration from an explicit YAML file
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	raw := v.AllSettings()
	processEnvPatterns(raw)

	processed := viper.New()
	for key, value := range raw {
		processed.Set(key, value)
	}

	var cfg Config
	if err := processed.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal processed config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 10
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 10
	}
	if c.Server.IdleTimeoutSeconds == 0 {
		c.Server.IdleTimeoutSeconds = 60
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Pricing.Currency == "" {
		c.Pricing.Currency = "USD"
	}
	if c.Payment.TimeoutSeconds == 0 {
		c.Payment.TimeoutSeconds = 10
	}
	if c.Payment.SessionTTLMinutes == 0 {
		c.Payment.SessionTTLMinutes = 60
	}
	if c.Storage.S3.PresignExpireMinutes == 0 {
		c.Storage.S3.PresignExpireMinutes = 15
	}
	if c.Worker.ArchiveIntervalSeconds == 0 {
		c.Worker.ArchiveIntervalSeconds = 60
	}
	if c.Worker.SessionExpiryIntervalSeconds == 0 {
		c.Worker.SessionExpiryIntervalSeconds = 300
	}
	if c.Worker.ServeFlushIntervalSeconds == 0 {
		c.Worker.ServeFlushIntervalSeconds = 5
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 100
	}
	if c.Serving.ShardCount == 0 {
		c.Serving.ShardCount = 8
	}
	if c.Serving.SessionCacheL1Seconds == 0 {
		c.Serving.SessionCacheL1Seconds = 300
	}
	if c.Serving.SessionCacheL2Seconds == 0 {
		c.Serving.SessionCacheL2Seconds = 86400
	}
	if c.Serving.SessionCacheMaxItems == 0 {
		c.Serving.SessionCacheMaxItems = 100000
	}
	if c.Monitoring.Metrics.Path == "" {
		c.Monitoring.Metrics.Path = "/metrics"
	}
}

// Validate rejects values that would make the services misbehave
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Worker.BatchSize < 0 {
		return fmt.Errorf("invalid worker batch size %d", c.Worker.BatchSize)
	}
	if c.Serving.ShardCount < 0 {
		return fmt.Errorf("invalid serving shard count %d", c.Serving.ShardCount)
	}
	if len(strings.TrimSpace(c.Pricing.Currency)) != 3 {
		return fmt.Errorf("invalid currency %q", c.Pricing.Currency)
	}
	return nil
}

// Duration helpers

func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

func (s ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}

func (p PaymentConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func (p PaymentConfig) SessionTTL() time.Duration {
	return time.Duration(p.SessionTTLMinutes) * time.Minute
}

func (s S3Config) PresignTTL() time.Duration {
	return time.Duration(s.PresignExpireMinutes) * time.Minute
}

// DSN builds a lib/pq connection string for host and port
func (d DatabaseConfig) DSN(host string, port int) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, d.User, d.Password, d.Name, d.SSLMode)
}

// processEnvPatterns processes {ENV-default} patterns recursively
func processEnvPatterns(config map[string]interface{}) {
	for key, value := range config {
		config[key] = processValue(value)
	}
}

// processValue processes a single value for environment variable substitution
func processValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if matches := envPattern.FindStringSubmatch(v); len(matches) == 3 {
			envVar := matches[1]
			defaultValue := matches[2]

			if envValue := os.Getenv(envVar); envValue != "" {
				return convertValue(envValue, defaultValue)
			}
			return convertValue(defaultValue, defaultValue)
		}
		return v
	case map[string]interface{}:
		processEnvPatterns(v)
		return v
	case []interface{}:
		for i, item := range v {
			v[i] = processValue(item)
		}
		return v
	default:
		return v
	}
}

// convertValue converts string values to appropriate types
func convertValue(value, defaultValue string) interface{} {
	// Empty default means the value is a plain string
	if defaultValue == "" {
		return value
	}
	if value == "" {
		return convertToType(defaultValue)
	}
	return convertToType(value)
}

// convertToType converts a string to the most appropriate type
func convertToType(value string) interface{} {
	if value == "" {
		return ""
	}

	if strings.EqualFold(value, "true") {
		return true
	}
	if strings.EqualFold(value, "false") {
		return false
	}

	if intVal, err := strconv.Atoi(value); err == nil {
		return intVal
	}

	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal
	}

	return value
}
