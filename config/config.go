package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/worker"
)

// EnvPrefix prefixes every environment override, e.g. BOOKING_DB_HOST.
const EnvPrefix = "BOOKING"

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" split_words:"true"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes" split_words:"true"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HoldsConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
}

type AvailabilityConfig struct {
	// StepMinutes overrides the slot granularity; zero steps by service duration.
	StepMinutes    int           `mapstructure:"step_minutes" split_words:"true"`
	TenantCacheTTL time.Duration `mapstructure:"tenant_cache_ttl" split_words:"true"`
}

type OutboxConfig struct {
	BatchSize      int           `mapstructure:"batch_size" split_words:"true"`
	PollInterval   time.Duration `mapstructure:"poll_interval" split_words:"true"`
	MaxAttempts    int           `mapstructure:"max_attempts" split_words:"true"`
	BaseBackoff    time.Duration `mapstructure:"base_backoff" split_words:"true"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" split_words:"true"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout" split_words:"true"`
	// ClaimTimeout defaults to publish_timeout*(batch_size+1) when shorter.
	ClaimTimeout   time.Duration `mapstructure:"claim_timeout" split_words:"true"`
}

type BrokerConfig struct {
	Driver       string        `mapstructure:"driver"`
	URL          string        `mapstructure:"url"`
	Topic        string        `mapstructure:"topic"`
	MaxRetries   int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize     int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns int           `mapstructure:"min_idle_conns" split_words:"true"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database" envconfig:"DB"`
	Log          LogConfig          `mapstructure:"log"`
	Holds        HoldsConfig        `mapstructure:"holds"`
	Availability AvailabilityConfig `mapstructure:"availability"`
	Outbox       OutboxConfig       `mapstructure:"outbox"`
	Broker       BrokerConfig       `mapstructure:"broker"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit" split_words:"true"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "booking")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("holds.ttl", 5*time.Minute)
	v.SetDefault("holds.cleanup_interval", time.Minute)

	v.SetDefault("availability.step_minutes", 0)
	v.SetDefault("availability.tenant_cache_ttl", time.Minute)

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.max_attempts", 5)
	v.SetDefault("outbox.base_backoff", 5*time.Second)
	v.SetDefault("outbox.max_backoff", 10*time.Minute)
	v.SetDefault("outbox.publish_timeout", 10*time.Second)

	v.SetDefault("broker.driver", messaging.DriverRedis)
	v.SetDefault("broker.url", "redis://localhost:6379/0")
	v.SetDefault("broker.topic", "booking.events")
	v.SetDefault("broker.max_retries", 3)
	v.SetDefault("broker.retry_backoff", 100*time.Millisecond)
	v.SetDefault("broker.pool_size", 10)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "booking")
	v.SetDefault("metrics.path", "/metrics")
}

// LoadConfig reads defaults, then the YAML file (path, or config.yaml in the
// usual locations), then BOOKING_* environment overrides. A missing file is
// not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")           // current directory
		v.AddConfigPath("./config")    // config subdirectory
		v.AddConfigPath("/app/config") // container config directory
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Broker.Driver {
	case messaging.DriverRedis, messaging.DriverRabbitMQ, messaging.DriverKafka:
	default:
		return fmt.Errorf("invalid broker driver %q", c.Broker.Driver)
	}
	if c.Holds.TTL <= 0 {
		return fmt.Errorf("holds.ttl must be positive")
	}
	if c.Availability.StepMinutes < 0 {
		return fmt.Errorf("availability.step_minutes must not be negative")
	}
	if c.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("outbox.max_attempts must be positive")
	}
	return nil
}

func (c *LogConfig) ToLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:  logger.ParseLevel(c.Level),
		Format: c.Format,
	}
}

// Add conversion methods to convert config types
func (c *OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:      c.BatchSize,
		PollInterval:   c.PollInterval,
		BaseBackoff:    c.BaseBackoff,
		MaxBackoff:     c.MaxBackoff,
		PublishTimeout: c.PublishTimeout,
		ClaimTimeout:   c.ClaimTimeout,
	}
}

func (c *BrokerConfig) ToBrokerConfig() messaging.Config {
	return messaging.Config{
		Driver:       c.Driver,
		URL:          c.URL,
		Topic:        c.Topic,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
