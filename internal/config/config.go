package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Email     EmailConfig
	Uploads   UploadConfig
	Cleanup   CleanupConfig
	RateLimit RateLimitConfig
	Admin     AdminConfig
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
	ConnectAttempts   int
	ConnectBackoff    time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	APIVersion     string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret            string
	JWTExpires           time.Duration
	SaltRounds           int
	MaxLoginFailures     int
	VerificationTokenTTL time.Duration
	PasswordResetTTL     time.Duration
	UnlockTokenTTL       time.Duration
	TimingDelayBaseMs    int
	TimingDelayRandomMs  int
}

type EmailConfig struct {
	Provider            string // "ses" or "smtp"
	FromAddress         string
	AWSRegion           string
	SMTPHost            string
	SMTPPort            int
	SMTPUser            string
	SMTPPassword        string
	VerificationURL     string
	PasswordRecoveryURL string
	UnlockURL           string
}

type UploadConfig struct {
	Dir               string
	MaxFiles          int
	MaxFileSize       int64
	OrphanGracePeriod time.Duration
}

type CleanupConfig struct {
	Enabled  bool
	Schedule string // robfig/cron spec
}

type RateLimitConfig struct {
	AuthRequestsPerMinute int
	MaxRequests           int
	Window                time.Duration
}

// AdminConfig bootstraps the first administrator when all fields are set.
type AdminConfig struct {
	Email    string
	Password string
	VAT      string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "bulletin"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			ConnectAttempts:   getEnvAsInt("DB_CONNECT_ATTEMPTS", 5),
			ConnectBackoff:    getEnvAsDuration("DB_CONNECT_BACKOFF", 2*time.Second),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			APIVersion:     getEnv("API_VERSION", "v1"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:            jwtSecret,
			JWTExpires:           getEnvAsDuration("JWT_EXPIRES", 1*time.Hour),
			SaltRounds:           getEnvAsInt("SALT_ROUNDS", 12),
			MaxLoginFailures:     getEnvAsInt("MAX_LOGIN_FAILURES", 3),
			VerificationTokenTTL: getEnvAsDuration("VERIFICATION_TOKEN_TTL", 24*time.Hour),
			PasswordResetTTL:     getEnvAsDuration("PASSWORD_RESET_TOKEN_TTL", 10*time.Minute),
			UnlockTokenTTL:       getEnvAsDuration("UNLOCK_TOKEN_TTL", 10*time.Minute),
			TimingDelayBaseMs:    getEnvAsInt("TIMING_DELAY_BASE_MS", 200),
			TimingDelayRandomMs:  getEnvAsInt("TIMING_DELAY_RANDOM_MS", 100),
		},
		Email: EmailConfig{
			Provider:            strings.ToLower(getEnv("EMAIL_PROVIDER", "smtp")),
			FromAddress:         getEnv("EMAIL_FROM", "no-reply@bulletin.local"),
			AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
			SMTPHost:            getEnv("MAILER_HOST", "localhost"),
			SMTPPort:            getEnvAsInt("MAILER_PORT", 587),
			SMTPUser:            getEnv("MAILER_USERNAME", ""),
			SMTPPassword:        getEnv("MAILER_PASSWORD", ""),
			VerificationURL:     getEnv("FRONTEND_VERIFICATION_URL", "http://localhost:3000/verify-account?"),
			PasswordRecoveryURL: getEnv("FRONTEND_PASSWORD_RECOVERY_URL", "http://localhost:3000/reset-password?"),
			UnlockURL:           getEnv("FRONTEND_UNLOCK_URL", "http://localhost:3000/unlock?"),
		},
		Uploads: UploadConfig{
			Dir:               getEnv("UPLOAD_DIR", "uploads"),
			MaxFiles:          getEnvAsInt("UPLOAD_MAX_FILES", 5),
			MaxFileSize:       getEnvAsInt64("UPLOAD_MAX_FILE_SIZE", 5*1024*1024),
			OrphanGracePeriod: getEnvAsDuration("UPLOAD_ORPHAN_GRACE_PERIOD", 1*time.Hour),
		},
		Cleanup: CleanupConfig{
			Enabled:  getEnvAsBool("CLEANUP_ENABLED", true),
			Schedule: getEnv("CLEANUP_SCHEDULE", "@every 1h"),
		},
		RateLimit: RateLimitConfig{
			AuthRequestsPerMinute: getEnvAsInt("AUTH_RATE_LIMIT_PER_MINUTE", 5),
			MaxRequests:           getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 100),
			Window:                getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
			VAT:      getEnv("ADMIN_VAT", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Email.Provider {
	case "ses", "smtp":
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be ses or smtp (got %q)", c.Email.Provider)
	}
	if c.Auth.MaxLoginFailures < 1 {
		return fmt.Errorf("MAX_LOGIN_FAILURES must be positive")
	}
	if c.Uploads.MaxFiles < 1 || c.Uploads.MaxFileSize < 1 {
		return fmt.Errorf("upload limits must be positive")
	}
	if c.Cleanup.Enabled {
		if _, err := cron.ParseStandard(c.Cleanup.Schedule); err != nil {
			return fmt.Errorf("invalid CLEANUP_SCHEDULE %q: %w", c.Cleanup.Schedule, err)
		}
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	// Check against common weak secrets
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

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func parseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return parseList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
