package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	SLA          SLAConfig
	Idempotency  IdempotencyConfig
	RateLimit    RateLimitConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// SLAConfig maps ticket priority to allowed resolution hours and
// controls the periodic breach sweep.
type SLAConfig struct {
	UrgentHours         int
	HighHours           int
	MediumHours         int
	LowHours            int
	DefaultHours        int
	SweepIntervalMinute int
}

// IdempotencyConfig controls the request-key ledger.
type IdempotencyConfig struct {
	TTLHours      int
	PurgeSchedule string
}

// RateLimitConfig holds fixed-window limits per route class.
type RateLimitConfig struct {
	GeneralMax          int
	GeneralWindowSec    int
	AuthMax             int
	AuthWindowSec       int
	TicketCreateMax     int
	TicketCreateWindSec int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-mini"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("JWT_TTL_MINUTES", 24*60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		SLA: SLAConfig{
			UrgentHours:         getEnvAsInt("PRIORITY_SLA_HOURS_URGENT", 4),
			HighHours:           getEnvAsInt("PRIORITY_SLA_HOURS_HIGH", 4),
			MediumHours:         getEnvAsInt("PRIORITY_SLA_HOURS_MEDIUM", 12),
			LowHours:            getEnvAsInt("PRIORITY_SLA_HOURS_LOW", 48),
			DefaultHours:        getEnvAsInt("DEFAULT_SLA_HOURS", 24),
			SweepIntervalMinute: getEnvAsInt("SLA_SWEEP_INTERVAL_MINUTES", 5),
		},
		Idempotency: IdempotencyConfig{
			TTLHours:      getEnvAsInt("IDEMPOTENCY_TTL_HOURS", 24),
			PurgeSchedule: getEnv("IDEMPOTENCY_PURGE_SCHEDULE", "@every 1h"),
		},
		RateLimit: RateLimitConfig{
			GeneralMax:          getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 60),
			GeneralWindowSec:    getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			AuthMax:             getEnvAsInt("RATE_LIMIT_AUTH_MAX", 5),
			AuthWindowSec:       getEnvAsInt("RATE_LIMIT_AUTH_WINDOW_SECONDS", 15*60),
			TicketCreateMax:     getEnvAsInt("RATE_LIMIT_TICKET_CREATE_MAX", 10),
			TicketCreateWindSec: getEnvAsInt("RATE_LIMIT_TICKET_CREATE_WINDOW_SECONDS", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@helpdesk.local"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SweepInterval returns the SLA sweep period.
func (s SLAConfig) SweepInterval() time.Duration {
	if s.SweepIntervalMinute <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.SweepIntervalMinute) * time.Minute
}

// TTL returns the idempotency record lifetime.
func (i IdempotencyConfig) TTL() time.Duration {
	if i.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(i.TTLHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
