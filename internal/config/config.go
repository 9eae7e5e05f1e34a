package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port      int
	LogLevel  string
	Env       string
	Server    ServerConfig
	DB        DBConfig
	Kafka     KafkaConfig
	Cache     CacheConfig
	Auth      AuthConfig
	Outbox    OutboxConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
}

// ServerConfig holds HTTP server timeouts
type ServerConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxOpenConns      int
	MaxIdleConns      int
	MaxConcurrentTxns int64
	AutoMigrate       bool
}

// KafkaConfig holds the event broker configuration
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	StatusTopic   string
	ConsumerGroup string
	ClientID      string
}

// CacheConfig holds the Redis read cache configuration
type CacheConfig struct {
	Enabled  bool
	RedisURL string
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// AuthConfig holds the access token configuration
type AuthConfig struct {
	JWTSecret string
}

// OutboxConfig controls event delivery from the outbox table
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
	ClaimLease   time.Duration
}

// RateLimitConfig controls per-actor write limits
type RateLimitConfig struct {
	Enabled           bool
	MaxTokens         float64
	RefillRate        float64
	TrustForwardedFor bool
}

// TracingConfig controls the OpenTelemetry exporter
type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "60s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "backoffice")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_MAX_CONCURRENT_TX", 20)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_STATUS_TOPIC", "backoffice.status-changes")
	v.SetDefault("KAFKA_CONSUMER_GROUP", "backoffice-api")
	v.SetDefault("KAFKA_CLIENT_ID", "backoffice-api")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("JWT_SECRET", "")

	v.SetDefault("OUTBOX_POLL_INTERVAL", "5s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 10)
	v.SetDefault("OUTBOX_MAX_RETRIES", 5)
	v.SetDefault("OUTBOX_CLAIM_LEASE", "2m")

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_MAX_TOKENS", 20)
	v.SetDefault("RATE_LIMIT_REFILL_RATE", 5)
	v.SetDefault("RATE_LIMIT_TRUST_FORWARDED_FOR", false)

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_SERVICE_NAME", "backoffice-api")
}

// Load reads the configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:     v.GetInt("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Env:      v.GetString("APP_ENV"),
		Server: ServerConfig{
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		DB: DBConfig{
			Host:              v.GetString("DB_HOST"),
			Port:              v.GetInt("DB_PORT"),
			User:              v.GetString("DB_USER"),
			Password:          v.GetString("DB_PASSWORD"),
			Name:              v.GetString("DB_NAME"),
			SSLMode:           v.GetString("DB_SSLMODE"),
			MaxOpenConns:      v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:      v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxConcurrentTxns: v.GetInt64("DB_MAX_CONCURRENT_TX"),
			AutoMigrate:       v.GetBool("DB_AUTO_MIGRATE"),
		},
		Kafka: KafkaConfig{
			Enabled:       v.GetBool("KAFKA_ENABLED"),
			Brokers:       splitList(v.GetString("KAFKA_BROKERS")),
			StatusTopic:   v.GetString("KAFKA_STATUS_TOPIC"),
			ConsumerGroup: v.GetString("KAFKA_CONSUMER_GROUP"),
			ClientID:      v.GetString("KAFKA_CLIENT_ID"),
		},
		Cache: CacheConfig{
			Enabled:  v.GetBool("CACHE_ENABLED"),
			RedisURL: v.GetString("REDIS_URL"),
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("CACHE_TTL"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
		},
		Outbox: OutboxConfig{
			PollInterval: v.GetDuration("OUTBOX_POLL_INTERVAL"),
			BatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
			MaxRetries:   v.GetInt("OUTBOX_MAX_RETRIES"),
			ClaimLease:   v.GetDuration("OUTBOX_CLAIM_LEASE"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           v.GetBool("RATE_LIMIT_ENABLED"),
			MaxTokens:         v.GetFloat64("RATE_LIMIT_MAX_TOKENS"),
			RefillRate:        v.GetFloat64("RATE_LIMIT_REFILL_RATE"),
			TrustForwardedFor: v.GetBool("RATE_LIMIT_TRUST_FORWARDED_FOR"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("TRACING_ENABLED"),
			ServiceName: v.GetString("TRACING_SERVICE_NAME"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.DB.Port <= 0 {
		return fmt.Errorf("invalid DB_PORT: %d", c.DB.Port)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when Kafka is enabled")
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("invalid OUTBOX_BATCH_SIZE: %d", c.Outbox.BatchSize)
	}
	return nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
