package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Lockout   LockoutConfig   `toml:"lockout"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Reset     ResetConfig     `toml:"reset"`
	Identity  IdentityConfig
	Email     EmailConfig
	Events    EventsConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
	MetricsEnabled bool
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	CleanupInterval   time.Duration
	AttemptRetention  time.Duration
}

// LockoutConfig is the progressive lockout policy
type LockoutConfig struct {
	MaxFailedAttempts int           `toml:"max_failed_attempts"`
	AttemptWindow     time.Duration `toml:"attempt_window"`
	BaseLockout       time.Duration `toml:"base_lockout"`
	Multiplier        int           `toml:"multiplier"`
	MaxLockout        time.Duration `toml:"max_lockout"`
}

// RateLimitConfig configures the keyed call-volume limiter
type RateLimitConfig struct {
	Limit         int64         `toml:"limit"`
	Window        time.Duration `toml:"window"`
	Store         string        `toml:"store"` // "memory" or "redis"
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"-"`
	RedisDB       int           `toml:"redis_db"`
	IPPerMinute   int           `toml:"ip_per_minute"`
}

// ResetConfig configures the security-question reset flow
type ResetConfig struct {
	TokenExpiry              time.Duration `toml:"token_expiry"`
	RequireToken             bool          `toml:"require_token"`
	TrackFailedVerifications bool          `toml:"track_failed_verifications"`
	TimingBaseDelayMs        int           `toml:"timing_base_delay_ms"`
	TimingRandomDelayMs      int           `toml:"timing_random_delay_ms"`
	MinQuestions             int           `toml:"min_questions"`
	RequiredCorrectAnswers   int           `toml:"required_correct_answers"`
}

// IdentityConfig selects the credential provider
type IdentityConfig struct {
	Provider      string // "local" or "http"
	HTTPURL       string
	HTTPAuthToken string
	HTTPTimeout   time.Duration
}

type EmailConfig struct {
	AWSRegion   string
	FromAddress string
}

type EventsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
}

// Enabled reports whether SES notifications are configured
func (c EmailConfig) Enabled() bool {
	return c.AWSRegion != "" && c.FromAddress != ""
}

// DefaultLockoutConfig returns the default progressive lockout policy
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxFailedAttempts: 5,
		AttemptWindow:     60 * time.Minute,
		BaseLockout:       15 * time.Minute,
		Multiplier:        2,
		MaxLockout:        120 * time.Minute,
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Lockout: DefaultLockoutConfig(),
		RateLimit: RateLimitConfig{
			Limit:       60,
			Window:      60 * time.Second,
			Store:       "memory",
			IPPerMinute: 30,
		},
		Reset: ResetConfig{
			TokenExpiry:            10 * time.Minute,
			TimingBaseDelayMs:      250,
			TimingRandomDelayMs:    100,
			MinQuestions:           3,
			RequiredCorrectAnswers: 2,
		},
	}

	// Policy file values become the defaults for the env overrides below
	if path := getEnv("POLICY_FILE", ""); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
		}
	}

	cfg.Database = DatabaseConfig{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              getEnvAsInt("DB_PORT", 5432),
		User:              getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", ""),
		Name:              getEnv("DB_NAME", "warden"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
		MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
		MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
		HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
	}
	cfg.Server = ServerConfig{
		Port:           getEnv("PORT", "8080"),
		Env:            env,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}
	cfg.Auth = AuthConfig{
		JWTSecret:         jwtSecret,
		AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		CleanupInterval:   getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		AttemptRetention:  getEnvAsDuration("ATTEMPT_RETENTION", 7*24*time.Hour),
	}

	cfg.Lockout.MaxFailedAttempts = getEnvAsInt("LOCKOUT_MAX_FAILED_ATTEMPTS", cfg.Lockout.MaxFailedAttempts)
	cfg.Lockout.AttemptWindow = getEnvAsDuration("LOCKOUT_ATTEMPT_WINDOW", cfg.Lockout.AttemptWindow)
	cfg.Lockout.BaseLockout = getEnvAsDuration("LOCKOUT_BASE_DURATION", cfg.Lockout.BaseLockout)
	cfg.Lockout.Multiplier = getEnvAsInt("LOCKOUT_MULTIPLIER", cfg.Lockout.Multiplier)
	cfg.Lockout.MaxLockout = getEnvAsDuration("LOCKOUT_MAX_DURATION", cfg.Lockout.MaxLockout)

	cfg.RateLimit.Limit = int64(getEnvAsInt("RATE_LIMIT_LIMIT", int(cfg.RateLimit.Limit)))
	cfg.RateLimit.Window = getEnvAsDuration("RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
	cfg.RateLimit.Store = getEnv("RATE_LIMIT_STORE", cfg.RateLimit.Store)
	cfg.RateLimit.RedisAddr = getEnv("REDIS_ADDR", cfg.RateLimit.RedisAddr)
	cfg.RateLimit.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RateLimit.RedisDB = getEnvAsInt("REDIS_DB", cfg.RateLimit.RedisDB)
	cfg.RateLimit.IPPerMinute = getEnvAsInt("RATE_LIMIT_IP_PER_MINUTE", cfg.RateLimit.IPPerMinute)

	cfg.Reset.TokenExpiry = getEnvAsDuration("RESET_TOKEN_EXPIRY", cfg.Reset.TokenExpiry)
	cfg.Reset.RequireToken = getEnvAsBool("RESET_REQUIRE_TOKEN", cfg.Reset.RequireToken)
	cfg.Reset.TrackFailedVerifications = getEnvAsBool("RESET_TRACK_FAILED_VERIFICATIONS", cfg.Reset.TrackFailedVerifications)
	cfg.Reset.TimingBaseDelayMs = getEnvAsInt("RESET_TIMING_BASE_DELAY_MS", cfg.Reset.TimingBaseDelayMs)
	cfg.Reset.TimingRandomDelayMs = getEnvAsInt("RESET_TIMING_RANDOM_DELAY_MS", cfg.Reset.TimingRandomDelayMs)

	cfg.Identity = IdentityConfig{
		Provider:      getEnv("IDENTITY_PROVIDER", "local"),
		HTTPURL:       getEnv("IDENTITY_HTTP_URL", ""),
		HTTPAuthToken: getEnv("IDENTITY_HTTP_TOKEN", ""),
		HTTPTimeout:   getEnvAsDuration("IDENTITY_HTTP_TIMEOUT", 5*time.Second),
	}
	cfg.Email = EmailConfig{
		AWSRegion:   getEnv("AWS_REGION", ""),
		FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
	}
	cfg.Events = EventsConfig{
		KafkaBrokers: getEnvAsList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "account-security"),
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Lockout.MaxFailedAttempts < 1 {
		return fmt.Errorf("LOCKOUT_MAX_FAILED_ATTEMPTS must be at least 1")
	}
	if c.Lockout.Multiplier < 1 {
		return fmt.Errorf("LOCKOUT_MULTIPLIER must be at least 1")
	}
	if c.Lockout.BaseLockout <= 0 || c.Lockout.MaxLockout < c.Lockout.BaseLockout {
		return fmt.Errorf("lockout durations must satisfy 0 < base <= max")
	}
	if c.RateLimit.Limit < 1 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit must have a positive limit and window")
	}
	switch c.RateLimit.Store {
	case "memory":
	case "redis":
		if c.RateLimit.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when RATE_LIMIT_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown RATE_LIMIT_STORE: %s", c.RateLimit.Store)
	}
	switch c.Identity.Provider {
	case "local":
	case "http":
		if c.Identity.HTTPURL == "" {
			return fmt.Errorf("IDENTITY_HTTP_URL is required when IDENTITY_PROVIDER=http")
		}
	default:
		return fmt.Errorf("unknown IDENTITY_PROVIDER: %s", c.Identity.Provider)
	}
	if c.Reset.RequiredCorrectAnswers < 2 || c.Reset.MinQuestions < c.Reset.RequiredCorrectAnswers {
		return fmt.Errorf("reset policy must require at least 2 correct answers out of at least as many questions")
	}
	if c.Reset.MinQuestions < 3 || c.Reset.MinQuestions > 10 {
		return fmt.Errorf("reset min_questions must be between 3 and 10 (got %d)", c.Reset.MinQuestions)
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := getEnv(key, "")
	if value == "" {
		return nil
	}
	items := strings.Split(value, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
