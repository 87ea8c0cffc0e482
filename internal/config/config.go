// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// StoreDriver selects the document store: postgres or memory.
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	// DatabaseURL is the Postgres DSN. Required when StoreDriver is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DBMaxOpenConns and DBMaxIdleConns size the pool; zero keeps the driver default.
	DBMaxOpenConns    int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime string `mapstructure:"DB_CONN_MAX_LIFETIME"`
	// MigrateOnStart applies pending migrations before the server starts serving.
	MigrateOnStart bool `mapstructure:"MIGRATE_ON_START"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// TxTimeout bounds one cascade, retries included (e.g. "10s").
	TxTimeout string `mapstructure:"TX_TIMEOUT"`
	// TxMaxRetries is the number of retries after a conflicting commit.
	TxMaxRetries int `mapstructure:"TX_MAX_RETRIES"`

	// NotifyKafkaBrokers is a comma-separated list of Kafka brokers. Empty sends notifications to the OTel log pipeline.
	NotifyKafkaBrokers string `mapstructure:"NOTIFY_KAFKA_BROKERS"`
	NotifyKafkaTopic   string `mapstructure:"NOTIFY_KAFKA_TOPIC"`
	// NotifyTimeout bounds one notification send.
	NotifyTimeout     string `mapstructure:"NOTIFY_TIMEOUT"`
	NotifyConcurrency int    `mapstructure:"NOTIFY_CONCURRENCY"`

	// OTLPEndpoint is the OTLP gRPC collector (e.g. localhost:4317). Empty disables export.
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// LogLevel is the zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "collab-auth")
	v.SetDefault("JWT_AUDIENCE", "collab-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("TX_TIMEOUT", "10s")
	v.SetDefault("TX_MAX_RETRIES", 3)
	v.SetDefault("NOTIFY_KAFKA_BROKERS", "")
	v.SetDefault("NOTIFY_KAFKA_TOPIC", "collab-notifications")
	v.SetDefault("NOTIFY_TIMEOUT", "5s")
	v.SetDefault("NOTIFY_CONCURRENCY", 8)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("OTEL_SERVICE_NAME", "collab-control-plane")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, errors.New("config: DATABASE_URL must be set when STORE_DRIVER=postgres")
		}
	case StoreDriverMemory:
		if cfg.Env == "production" {
			return nil, errors.New("config: STORE_DRIVER=memory must not be used when APP_ENV=production")
		}
	default:
		return nil, errors.New("config: STORE_DRIVER must be postgres or memory")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.TxMaxRetries < 0 {
		return nil, errors.New("config: TX_MAX_RETRIES must not be negative")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return duration(c.JWTAccessTTL, 15*time.Minute)
}

// TransactionTimeout parses TxTimeout. Returns 10s if unset or invalid.
func (c *Config) TransactionTimeout() time.Duration {
	return duration(c.TxTimeout, 10*time.Second)
}

// NotificationTimeout parses NotifyTimeout. Returns 5s if unset or invalid.
func (c *Config) NotificationTimeout() time.Duration {
	return duration(c.NotifyTimeout, 5*time.Second)
}

// ConnMaxLifetime parses DBConnMaxLifetime. Returns 0 (no limit) if unset or invalid.
func (c *Config) ConnMaxLifetime() time.Duration {
	return duration(c.DBConnMaxLifetime, 0)
}

// NotifyKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means notifications go to the OTel log pipeline.
func (c *Config) NotifyKafkaBrokersList() []string {
	if c == nil || c.NotifyKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.NotifyKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool {
	return c.Env == "production"
}

func duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
