package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	PromoSourcePostgres = "postgres"
	PromoSourceHTTP     = "http"
)

type Config struct {
	HTTPPort        string
	Environment     string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	Mongo    MongoConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Catalog  CatalogConfig
	Promo    PromoConfig
	Database DatabaseConfig

	VATRate         decimal.Decimal
	SessionIdleTTL  time.Duration
	JanitorInterval time.Duration
}

type MongoConfig struct {
	URI    string
	DBName string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers          []string
	SubmissionTopic  string
	OrderEventsTopic string
	ConsumerGroup    string
}

type CatalogConfig struct {
	DBPath          string
	DefaultCurrency string
}

type PromoConfig struct {
	Source     string
	ServiceURL string
	Timeout    time.Duration
}

// DatabaseConfig is the promo code database, used when PROMO_SOURCE=postgres.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

type loader struct {
	v *viper.Viper
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.SetConfigName(".env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PROMO_SOURCE", PromoSourcePostgres)
	v.SetDefault("DB_PORT", "5432")

	v.AutomaticEnv()

	// .env is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	l := loader{v: v}
	cfg := &Config{
		HTTPPort:    l.getEnvOrViper("HTTP_PORT", "8080"),
		Environment: l.getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    l.getEnvOrViper("LOG_LEVEL", "info"),
		Mongo: MongoConfig{
			URI:    l.getEnvOrViper("MONGO_URI", "mongodb://localhost:27017"),
			DBName: l.getEnvOrViper("MONGO_DB_NAME", "selfcheckout"),
		},
		Redis: RedisConfig{
			Addr:     l.getEnvOrViper("REDIS_ADDR", "localhost:6379"),
			Password: l.getEnvOrViper("REDIS_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Brokers:          splitList(l.getEnvOrViper("KAFKA_BROKERS", "localhost:9092")),
			SubmissionTopic:  l.getEnvOrViper("ORDER_SUBMISSION_TOPIC", "order-submissions"),
			OrderEventsTopic: l.getEnvOrViper("ORDER_EVENTS_TOPIC", "order-events"),
			ConsumerGroup:    l.getEnvOrViper("ORDER_EVENTS_GROUP", "selfcheckout"),
		},
		Catalog: CatalogConfig{
			DBPath:          l.getEnvOrViper("CATALOG_DB_PATH", "./data/catalog.db"),
			DefaultCurrency: strings.ToUpper(l.getEnvOrViper("DEFAULT_CURRENCY", "USD")),
		},
		Promo: PromoConfig{
			Source:     strings.ToLower(l.getEnvOrViper("PROMO_SOURCE", PromoSourcePostgres)),
			ServiceURL: l.getEnvOrViper("PROMO_SERVICE_URL", ""),
		},
		Database: DatabaseConfig{
			Host:     l.getEnvOrViper("DB_HOST", "localhost"),
			User:     l.getEnvOrViper("DB_USER", "postgres"),
			Password: l.getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   l.getEnvOrViper("DB_NAME", "promos"),
		},
	}

	var err error
	if cfg.Redis.DB, err = l.getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Database.Port, err = l.getInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = l.getDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = l.getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Promo.Timeout, err = l.getDuration("PROMO_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = l.getDuration("SESSION_IDLE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.JanitorInterval, err = l.getDuration("JANITOR_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.VATRate, err = decimal.NewFromString(l.getEnvOrViper("VAT_RATE", "0.08")); err != nil {
		return nil, fmt.Errorf("invalid VAT_RATE: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and combinations.
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.VATRate.IsNegative() {
		return fmt.Errorf("VAT_RATE must not be negative")
	}
	if len(c.Catalog.DefaultCurrency) != 3 {
		return fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter code, got %q", c.Catalog.DefaultCurrency)
	}

	switch c.Promo.Source {
	case PromoSourcePostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required when PROMO_SOURCE=%s", PromoSourcePostgres)
		}
	case PromoSourceHTTP:
		if c.Promo.ServiceURL == "" {
			return fmt.Errorf("PROMO_SERVICE_URL is required when PROMO_SOURCE=%s", PromoSourceHTTP)
		}
	default:
		return fmt.Errorf("unknown PROMO_SOURCE %q", c.Promo.Source)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.JanitorInterval <= 0 {
		return fmt.Errorf("JANITOR_INTERVAL must be positive")
	}
	return nil
}

// WriteTimeout bounds a whole HTTP response. It outlasts RequestTimeout so a handler
// that runs to its deadline can still write the error.
func (c *Config) WriteTimeout() time.Duration {
	return c.RequestTimeout + 5*time.Second
}

func (l loader) getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if l.v.IsSet(key) {
		if val := l.v.GetString(key); val != "" {
			return val
		}
	}
	return defaultValue
}

func (l loader) getInt(key string, defaultValue int) (int, error) {
	raw := l.getEnvOrViper(key, strconv.Itoa(defaultValue))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func (l loader) getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := l.getEnvOrViper(key, defaultValue.String())
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
