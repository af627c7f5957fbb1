// Package config provides configuration management for the CleanWard backend.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Pollution PollutionConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Dashboard DashboardConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TrustedProxies  []string // CIDRs or IPs allowed to set X-Forwarded-For
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig

	// ConnectAttempts bounds the startup backoff before degraded mode
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration. History is optional.
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// AuthConfig holds session and sign-up configuration
type AuthConfig struct {
	JWTSecret                string
	TokenTTL                 time.Duration
	ConfirmationTTL          time.Duration
	BcryptCost               int
	AllowAdminSignup         bool
	RequireEmailConfirmation bool
	SignupLimit              int
	SignupWindow             time.Duration
}

// StorageConfig holds S3-compatible object storage configuration
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	UsePathStyle    bool
	MaxUploadBytes  int64
}

// PollutionConfig holds live pollution provider configuration
type PollutionConfig struct {
	ProviderURL         string
	APIKey              string
	Timeout             time.Duration
	RequestsPerSecond   float64
	Burst               int
	Concurrency         int
	RefreshInterval     time.Duration
	OverlayTTL          time.Duration
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	LeaderboardTTL time.Duration
}

// RateLimitConfig holds per-client API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// DashboardConfig holds dashboard configuration
type DashboardConfig struct {
	LeaderboardSize int
	RankingSize     int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env is optional; environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			TrustedProxies:  getEnvAsSlice("TRUSTED_PROXIES", nil),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "cleanward"),
				User:           getEnv("POSTGRES_USER", "cleanward"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				SSLMode:        getEnv("POSTGRES_SSLMODE", "disable"),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "cleanward"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
			ConnectAttempts: getEnvAsInt("DB_CONNECT_ATTEMPTS", 5),
			ConnectBackoff:  getEnvAsDuration("DB_CONNECT_BACKOFF", time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:                getEnv("AUTH_JWT_SECRET", ""),
			TokenTTL:                 getEnvAsDuration("AUTH_TOKEN_TTL", 24*time.Hour),
			ConfirmationTTL:          getEnvAsDuration("AUTH_CONFIRMATION_TTL", 48*time.Hour),
			BcryptCost:               getEnvAsInt("AUTH_BCRYPT_COST", 10),
			AllowAdminSignup:         getEnvAsBool("AUTH_ALLOW_ADMIN_SIGNUP", false),
			RequireEmailConfirmation: getEnvAsBool("AUTH_REQUIRE_EMAIL_CONFIRMATION", false),
			SignupLimit:              getEnvAsInt("AUTH_SIGNUP_LIMIT", 5),
			SignupWindow:             getEnvAsDuration("AUTH_SIGNUP_WINDOW", time.Hour),
		},
		Storage: StorageConfig{
			Bucket:          getEnv("STORAGE_BUCKET", ""),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
			PublicBaseURL:   getEnv("STORAGE_PUBLIC_BASE_URL", ""),
			UsePathStyle:    getEnvAsBool("STORAGE_USE_PATH_STYLE", true),
			MaxUploadBytes:  getEnvAsInt64("STORAGE_MAX_UPLOAD_BYTES", 5<<20),
		},
		Pollution: PollutionConfig{
			ProviderURL:         getEnv("POLLUTION_PROVIDER_URL", ""),
			APIKey:              getEnv("POLLUTION_API_KEY", ""),
			Timeout:             getEnvAsDuration("POLLUTION_TIMEOUT", 10*time.Second),
			RequestsPerSecond:   getEnvAsFloat("POLLUTION_REQUESTS_PER_SECOND", 5),
			Burst:               getEnvAsInt("POLLUTION_BURST", 5),
			Concurrency:         getEnvAsInt("POLLUTION_CONCURRENCY", 8),
			RefreshInterval:     getEnvAsDuration("OVERLAY_REFRESH_INTERVAL", 10*time.Minute),
			OverlayTTL:          getEnvAsDuration("OVERLAY_TTL", 30*time.Minute),
			BreakerMaxFailures:  getEnvAsInt("POLLUTION_BREAKER_MAX_FAILURES", 5),
			BreakerResetTimeout: getEnvAsDuration("POLLUTION_BREAKER_RESET_TIMEOUT", 60*time.Second),
		},
		Cache: CacheConfig{
			LeaderboardTTL: getEnvAsDuration("CACHE_LEADERBOARD_TTL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 30),
		},
		Dashboard: DashboardConfig{
			LeaderboardSize: getEnvAsInt("DASHBOARD_LEADERBOARD_SIZE", 10),
			RankingSize:     getEnvAsInt("DASHBOARD_RANKING_SIZE", 5),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// Validate reports configuration problems. None of them stop the server;
// they are logged once and surfaced through the status endpoint.
func (c *Config) Validate() []string {
	var issues []string

	if c.Auth.JWTSecret == "" {
		issues = append(issues, "AUTH_JWT_SECRET is not set; sessions will not survive a restart")
	} else if len(c.Auth.JWTSecret) < 32 {
		issues = append(issues, "AUTH_JWT_SECRET is shorter than 32 bytes")
	}
	if c.Storage.Bucket == "" {
		issues = append(issues, "STORAGE_BUCKET is not set; proof uploads are disabled")
	}
	if c.Storage.Bucket != "" && c.Storage.PublicBaseURL == "" && c.Storage.Endpoint == "" {
		issues = append(issues, "STORAGE_PUBLIC_BASE_URL is not set; proof URLs use the default S3 host")
	}
	if c.Pollution.ProviderURL == "" {
		issues = append(issues, "POLLUTION_PROVIDER_URL is not set; wards show static data only")
	}
	if !c.Database.ClickHouse.Enabled {
		issues = append(issues, "CLICKHOUSE_ENABLED is false; reading history is unavailable")
	}
	if c.Auth.AllowAdminSignup {
		issues = append(issues, "AUTH_ALLOW_ADMIN_SIGNUP is true; anyone can register as an authority")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		issues = append(issues, "STORAGE_MAX_UPLOAD_BYTES must be positive")
	}

	return issues
}

// DSN returns the connection string for pgx and golang-migrate
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice splits a comma-separated variable, dropping empty items
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
