package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel string
	HTTPAddr string

	// Database
	DatabaseDSN string
	SQLitePath  string

	// Redis. An empty host runs the service without Redis (in-process locks and dispatch).
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Attachment storage
	StorageRoot      string
	StorageURLPrefix string

	JWTSecret string

	// Per-client HTTP rate limit. A non-positive rate disables it.
	RateLimitRPS float64
	RateBurst    int

	JobLockTTL           time.Duration
	ProviderRequestDelay time.Duration
	JobWorkers           int
	ManualRangeMaxDays   int
}

// Load reads an optional .env file, then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", ""),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseDSN: getEnv("DATABASE_DSN", postgresDSNFromParts()),
		SQLitePath:  getEnv("SQLITE_PATH", ""),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		StorageRoot:      getEnv("DATA_COLLECTOR_ROOT", "/opt/storage/data_collector/raw_data"),
		StorageURLPrefix: getEnv("DATA_COLLECTOR_URL_PREFIX", "/media/storage/data_collector/raw_data"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		RateLimitRPS: getEnvFloat("HTTP_RATE_LIMIT", 20),
		RateBurst:    getEnvInt("HTTP_RATE_BURST", 40),

		JobLockTTL:           getEnvDuration("JOB_LOCK_TTL", time.Hour),
		ProviderRequestDelay: getEnvDuration("PROVIDER_REQUEST_DELAY", 50*time.Millisecond),
		JobWorkers:           getEnvInt("JOB_WORKERS", 4),
		ManualRangeMaxDays:   getEnvInt("MANUAL_RANGE_MAX_DAYS", 90),
	}
}

// UseRedis reports whether a Redis host was configured.
func (c *Config) UseRedis() bool {
	return c.RedisHost != ""
}

func postgresDSNFromParts() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("PG_USER"),
		os.Getenv("PG_PASSWORD"),
		host,
		getEnv("PG_PORT", "5432"),
		os.Getenv("PG_DB"),
	)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
