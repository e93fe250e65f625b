package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	MFA       MFAConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
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
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	// SessionSecret signs password-reset and provisioning tokens.
	SessionSecret    string
	SessionDuration  time.Duration
	ResetTokenTTL    time.Duration
	LockoutThreshold int
	LockoutDuration  time.Duration
	SecureOpTimeout  time.Duration
	CleanupInterval  time.Duration
	CookieSecure     bool
	CookieDomain     string
}

type MFAConfig struct {
	Issuer string
	// Keys maps key ID -> 32-byte AES-256 key. Ciphertexts carry the key ID
	// they were sealed with; ActiveKeyID is used for all new encryptions.
	Keys        map[string][]byte
	ActiveKeyID string
}

// ScopeConfig is one rate-limit scope: at most Max events per Window.
type ScopeConfig struct {
	Max    int
	Window time.Duration
}

type RateLimitConfig struct {
	Login   ScopeConfig
	MFA     ScopeConfig
	Storage ScopeConfig
	Email   ScopeConfig
	// AI is the budget for the itinerary generation collaborator, which
	// consumes this limiter out of process. Nothing in this repo spends it.
	AI ScopeConfig
}

type EmailConfig struct {
	AWSRegion    string
	FromAddress  string
	ResetURLBase string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if err := validateSecret("SESSION_SECRET", sessionSecret, env); err != nil {
		return nil, err
	}

	mfaKeys, activeKeyID, err := parseMFAKeys(
		getEnv("MFA_ENCRYPTION_KEYS", ""),
		getEnv("MFA_ACTIVE_KEY_ID", ""),
	)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "innkeep"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			SessionSecret:    sessionSecret,
			SessionDuration:  getEnvAsDuration("SESSION_DURATION", 2*time.Hour),
			ResetTokenTTL:    getEnvAsDuration("RESET_TOKEN_TTL", 30*time.Minute),
			LockoutThreshold: getEnvAsInt("LOCKOUT_THRESHOLD", 5),
			LockoutDuration:  getEnvAsDuration("LOCKOUT_DURATION", 30*time.Minute),
			SecureOpTimeout:  getEnvAsDuration("SECURE_OP_TIMEOUT", 30*time.Second),
			CleanupInterval:  getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			CookieSecure:     env == "production",
			CookieDomain:     getEnv("COOKIE_DOMAIN", ""),
		},
		MFA: MFAConfig{
			Issuer:      getEnv("MFA_ISSUER", "Innkeep"),
			Keys:        mfaKeys,
			ActiveKeyID: activeKeyID,
		},
		RateLimit: RateLimitConfig{
			Login:   scopeFromEnv("RATE_LIMIT_LOGIN", 5, 15*time.Minute),
			MFA:     scopeFromEnv("RATE_LIMIT_MFA", 10, 5*time.Minute),
			Storage: scopeFromEnv("RATE_LIMIT_STORAGE", 100, 1*time.Minute),
			Email:   scopeFromEnv("RATE_LIMIT_EMAIL", 20, 1*time.Minute),
			AI:      scopeFromEnv("RATE_LIMIT_AI", 3, 1*time.Minute),
		},
		Email: EmailConfig{
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "no-reply@innkeep.app"),
			ResetURLBase: getEnv("RESET_URL_BASE", "http://localhost:3000"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	return cfg, nil
}

// validateSecret enforces minimum strength for secret key material
func validateSecret(name, secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32 // 256 bits in production
	}

	if len(secret) < minLength {
		return fmt.Errorf("%s must be at least %d characters in %s environment (got %d)",
			name, minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("%s cannot be a common weak value", name)
		}
	}

	return nil
}

// parseMFAKeys parses MFA_ENCRYPTION_KEYS of the form
// "v1:<base64 32-byte key>,v2:<base64 32-byte key>". The active key defaults
// to the last entry when MFA_ACTIVE_KEY_ID is unset. Startup is fatal when
// no valid key material is configured: secrets are never stored unencrypted.
func parseMFAKeys(raw, activeID string) (map[string][]byte, string, error) {
	if raw == "" {
		return nil, "", fmt.Errorf("MFA_ENCRYPTION_KEYS is required")
	}

	keys := make(map[string][]byte)
	lastID := ""
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, encoded, ok := strings.Cut(entry, ":")
		if !ok || id == "" {
			return nil, "", fmt.Errorf("MFA_ENCRYPTION_KEYS entry %q must be <id>:<base64 key>", entry)
		}
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("MFA_ENCRYPTION_KEYS key %q is not valid base64: %w", id, err)
		}
		if len(key) != 32 {
			return nil, "", fmt.Errorf("MFA_ENCRYPTION_KEYS key %q must be 32 bytes, got %d", id, len(key))
		}
		keys[id] = key
		lastID = id
	}

	if len(keys) == 0 {
		return nil, "", fmt.Errorf("MFA_ENCRYPTION_KEYS contains no keys")
	}

	if activeID == "" {
		activeID = lastID
	}
	if _, ok := keys[activeID]; !ok {
		return nil, "", fmt.Errorf("MFA_ACTIVE_KEY_ID %q not present in MFA_ENCRYPTION_KEYS", activeID)
	}

	return keys, activeID, nil
}

func scopeFromEnv(prefix string, defaultMax int, defaultWindow time.Duration) ScopeConfig {
	return ScopeConfig{
		Max:    getEnvAsInt(prefix+"_MAX", defaultMax),
		Window: getEnvAsDuration(prefix+"_WINDOW", defaultWindow),
	}
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

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
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
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // No origins by default in production
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://localhost:8080",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:8080",
	}
}
