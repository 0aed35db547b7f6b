package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the engine.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Lifecycle  LifecycleConfig
	Assignment AssignmentConfig
	Scoring    ScoringConfig
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

// AuthConfig defines token verification parameters. Token issuance belongs
// to the external identity service.
type AuthConfig struct {
	JWTSecret     string
	JWTTTLMinutes int
}

// LifecycleConfig governs expiration and reactivation rules.
type LifecycleConfig struct {
	ExpirationDays       int
	ReactivationLimit    int
	SweepEnabled         bool
	SweepIntervalMinutes int
	SweepDeadlineSeconds int
	SweepParallelism     int
	SweepBatchLimit      int
}

// AssignmentConfig selects and tunes assignment strategies.
type AssignmentConfig struct {
	DefaultStrategy string
	HybridSkill     float64
	HybridLoad      float64
	HybridTerritory float64
}

// ScoringConfig splits the lead score across its factors.
type ScoringConfig struct {
	BudgetWeight       int
	SourceWeight       int
	CompletenessWeight int
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
			Name:                  getEnv("APP_NAME", "request-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
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
			JWTSecret:     getEnv("AUTH_JWT_SECRET", "dev-secret"),
			JWTTTLMinutes: getEnvAsInt("AUTH_JWT_TTL_MINUTES", 60),
		},
		Lifecycle: LifecycleConfig{
			ExpirationDays:       getEnvAsInt("LIFECYCLE_EXPIRATION_DAYS", 14),
			ReactivationLimit:    getEnvAsInt("LIFECYCLE_REACTIVATION_LIMIT", 3),
			SweepEnabled:         getEnvAsBool("SWEEP_ENABLED", true),
			SweepIntervalMinutes: getEnvAsInt("SWEEP_INTERVAL_MINUTES", 60),
			SweepDeadlineSeconds: getEnvAsInt("SWEEP_DEADLINE_SECONDS", 60),
			SweepParallelism:     getEnvAsInt("SWEEP_PARALLELISM", 4),
			SweepBatchLimit:      getEnvAsInt("SWEEP_BATCH_LIMIT", 500),
		},
		Assignment: AssignmentConfig{
			DefaultStrategy: getEnv("ASSIGNMENT_DEFAULT_STRATEGY", "round_robin"),
			HybridSkill:     getEnvAsFloat("ASSIGNMENT_HYBRID_SKILL_WEIGHT", 0.5),
			HybridLoad:      getEnvAsFloat("ASSIGNMENT_HYBRID_LOAD_WEIGHT", 0.3),
			HybridTerritory: getEnvAsFloat("ASSIGNMENT_HYBRID_TERRITORY_WEIGHT", 0.2),
		},
		Scoring: ScoringConfig{
			BudgetWeight:       getEnvAsInt("SCORING_BUDGET_WEIGHT", 40),
			SourceWeight:       getEnvAsInt("SCORING_SOURCE_WEIGHT", 30),
			CompletenessWeight: getEnvAsInt("SCORING_COMPLETENESS_WEIGHT", 30),
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

// ExpirationThreshold returns the inactivity window before expiration.
func (l LifecycleConfig) ExpirationThreshold() time.Duration {
	days := l.ExpirationDays
	if days <= 0 {
		days = 14
	}
	return time.Duration(days) * 24 * time.Hour
}

// SweepInterval returns the period between scheduled sweeps.
func (l LifecycleConfig) SweepInterval() time.Duration {
	minutes := l.SweepIntervalMinutes
	if minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

// SweepDeadline returns the soft deadline for one sweep tick.
func (l LifecycleConfig) SweepDeadline() time.Duration {
	seconds := l.SweepDeadlineSeconds
	if seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
