package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBSlowQuery       time.Duration

	Redis RedisConfig

	SequenceBackend string
	LockBackend     string
	LockTTL         time.Duration

	Notify NotifyConfig

	Telemetry TelemetryConfig
}

// TelemetryConfig carries the logging and OpenTelemetry settings.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OtelEndpoint  string
	OtelProtocol  string
	SamplingRatio float64
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Address) != ""
}

type NotifyConfig struct {
	Provider string
	Async    bool
	Timeout  time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SESRegion string
	SESFrom   string
}

const (
	BackendDB    = "db"
	BackendRedis = "redis"
	BackendLocal = "local"
)

// Load loads configuration from the .env file and environment variables.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_SERVICE", "backoffice")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("HTTP_ADDR", ":8080")

	v.SetDefault("DATABASE_TYPE", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "backoffice")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_IDLE_CONN", 10)
	v.SetDefault("DATABASE_MAX_OPEN_CONN", 25)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", 300)
	v.SetDefault("DATABASE_SLOW_QUERY", "200ms")

	v.SetDefault("REDIS_ADDRESS", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SEQUENCE_BACKEND", BackendDB)
	v.SetDefault("LOCK_BACKEND", BackendLocal)
	v.SetDefault("LOCK_TTL", "10s")

	v.SetDefault("NOTIFY_PROVIDER", "log")
	v.SetDefault("NOTIFY_ASYNC", true)
	v.SetDefault("NOTIFY_TIMEOUT", "10s")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SES_REGION", "us-east-1")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	v.SetDefault("OTEL_SAMPLING_RATIO", 0.1)

	return Config{
		AppName:     strings.TrimSpace(v.GetString("APP_SERVICE")),
		AppVersion:  strings.TrimSpace(v.GetString("APP_VERSION")),
		Environment: strings.TrimSpace(v.GetString("ENVIRONMENT")),
		HTTPAddr:    strings.TrimSpace(v.GetString("HTTP_ADDR")),

		DBType:            strings.ToLower(strings.TrimSpace(v.GetString("DATABASE_TYPE"))),
		DBHost:            v.GetString("DATABASE_HOST"),
		DBPort:            v.GetString("DATABASE_PORT"),
		DBName:            v.GetString("DATABASE_NAME"),
		DBUser:            v.GetString("DATABASE_USER"),
		DBPassword:        v.GetString("DATABASE_PASSWORD"),
		DBSSLMode:         v.GetString("DATABASE_SSLMODE"),
		DBMaxIdleConn:     v.GetInt("DATABASE_MAX_IDLE_CONN"),
		DBMaxOpenConn:     v.GetInt("DATABASE_MAX_OPEN_CONN"),
		DBConnMaxLifetime: v.GetInt("DATABASE_CONN_MAX_LIFETIME"),
		DBSlowQuery:       v.GetDuration("DATABASE_SLOW_QUERY"),

		Redis: RedisConfig{
			Address:  strings.TrimSpace(v.GetString("REDIS_ADDRESS")),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},

		SequenceBackend: normalizeBackend(v.GetString("SEQUENCE_BACKEND"), BackendDB),
		LockBackend:     normalizeBackend(v.GetString("LOCK_BACKEND"), BackendLocal),
		LockTTL:         v.GetDuration("LOCK_TTL"),

		Notify: NotifyConfig{
			Provider:     strings.ToLower(strings.TrimSpace(v.GetString("NOTIFY_PROVIDER"))),
			Async:        v.GetBool("NOTIFY_ASYNC"),
			Timeout:      v.GetDuration("NOTIFY_TIMEOUT"),
			SMTPHost:     strings.TrimSpace(v.GetString("SMTP_HOST")),
			SMTPPort:     v.GetInt("SMTP_PORT"),
			SMTPUsername: v.GetString("SMTP_USERNAME"),
			SMTPPassword: v.GetString("SMTP_PASSWORD"),
			SMTPFrom:     strings.TrimSpace(v.GetString("SMTP_FROM")),
			SESRegion:    strings.TrimSpace(v.GetString("SES_REGION")),
			SESFrom:      strings.TrimSpace(v.GetString("SES_FROM")),
		},

		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
			OtelEnabled:   v.GetBool("OTEL_ENABLED"),
			OtelEndpoint:  strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
			OtelProtocol:  strings.ToLower(strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL"))),
			SamplingRatio: v.GetFloat64("OTEL_SAMPLING_RATIO"),
		},
	}
}

func normalizeBackend(raw, def string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case BackendDB, BackendRedis, BackendLocal:
		return value
	default:
		return def
	}
}
