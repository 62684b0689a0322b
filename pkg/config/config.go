package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Lease store backends for stock access tokens.
const (
	TokenBackendRedis  = "redis"
	TokenBackendMemory = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database         DatabaseConfig
	Redis            RedisConfig
	JWT              JWTConfig
	CORS             CORSConfig
	Log              LogConfig
	StatusManagement StatusManagementConfig
	AccessTokens     AccessTokenConfig
	Events           EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StatusManagementConfig governs the status workflow endpoints.
type StatusManagementConfig struct {
	Enabled        bool
	SystemUserID   string
	ReasonCacheTTL time.Duration
}

// AccessTokenConfig tunes stock access token leases.
type AccessTokenConfig struct {
	Backend      string
	DefaultTTL   time.Duration
	MaxTTL       time.Duration
	WaitInterval time.Duration
	MaxWait      time.Duration
}

// EventsConfig controls forwarding of domain events to Kafka.
type EventsConfig struct {
	ForwardingEnabled bool
	Brokers           []string
	Topic             string
	Workers           int
	MaxRetries        int
	RetryDelay        time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.StatusManagement = StatusManagementConfig{
		Enabled:        v.GetBool("ENABLE_STATUS_API"),
		SystemUserID:   v.GetString("STATUS_SYSTEM_USER_ID"),
		ReasonCacheTTL: parseDuration(v.GetString("STATUS_REASON_CACHE_TTL"), 10*time.Minute),
	}

	backend := strings.ToLower(strings.TrimSpace(v.GetString("STOCK_TOKEN_BACKEND")))
	if backend != TokenBackendMemory {
		backend = TokenBackendRedis
	}
	cfg.AccessTokens = AccessTokenConfig{
		Backend:      backend,
		DefaultTTL:   parseDuration(v.GetString("STOCK_TOKEN_TTL"), 30*time.Second),
		MaxTTL:       parseDuration(v.GetString("STOCK_TOKEN_MAX_TTL"), 5*time.Minute),
		WaitInterval: parseDuration(v.GetString("STOCK_TOKEN_WAIT_INTERVAL"), 100*time.Millisecond),
		MaxWait:      parseDuration(v.GetString("STOCK_TOKEN_MAX_WAIT"), 10*time.Second),
	}

	cfg.Events = EventsConfig{
		ForwardingEnabled: v.GetBool("ENABLE_EVENT_FORWARDING"),
		Brokers:           splitAndTrim(v.GetString("KAFKA_BROKERS")),
		Topic:             v.GetString("KAFKA_TOPIC"),
		Workers:           v.GetInt("EVENT_WORKERS"),
		MaxRetries:        v.GetInt("EVENT_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("EVENT_RETRY_DELAY"), time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "erp_admin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "erp-status-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_STATUS_API", true)
	v.SetDefault("STATUS_SYSTEM_USER_ID", "system")
	v.SetDefault("STATUS_REASON_CACHE_TTL", "10m")

	v.SetDefault("STOCK_TOKEN_BACKEND", TokenBackendRedis)
	v.SetDefault("STOCK_TOKEN_TTL", "30s")
	v.SetDefault("STOCK_TOKEN_MAX_TTL", "5m")
	v.SetDefault("STOCK_TOKEN_WAIT_INTERVAL", "100ms")
	v.SetDefault("STOCK_TOKEN_MAX_WAIT", "10s")

	v.SetDefault("ENABLE_EVENT_FORWARDING", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "erp.status-events")
	v.SetDefault("EVENT_WORKERS", 2)
	v.SetDefault("EVENT_RETRIES", 3)
	v.SetDefault("EVENT_RETRY_DELAY", "1s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
