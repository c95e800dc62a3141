// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for OAuth redirects.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// MigrationsPath is the directory holding SQL migration files.
	MigrationsPath string

	// Database holds MySQL connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Auth holds code-login and token settings.
	Auth AuthConfig

	// OAuth holds delegated-identity provider settings.
	OAuth OAuthConfig
}

// DatabaseConfig holds MySQL connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so container
// orchestrators can manage each independently. If DATABASE_URL is set, it
// takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MySQL address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MySQL username (default: "signet").
	User string

	// Password is the MySQL password (default: "signet").
	Password string

	// Name is the database name (default: "signet").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// Host/User/Password/Name fields using the driver's Config.FormatDSN()
// to safely handle special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
// Allows users to set DB_HOST=mydb (gets :3306) or DB_HOST=mydb:3307 (as-is).
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds code-login and session token settings.
type AuthConfig struct {
	// SecretKey signs self-issued session tokens (must be 32+ bytes).
	SecretKey string

	// CodeTTL is how long a verification code stays valid.
	CodeTTL time.Duration

	// TokenTTL is how long a self-issued session token stays valid.
	TokenTTL time.Duration

	// SessionTTL is how long a delegated (provider) session stays valid.
	SessionTTL time.Duration

	// PhonePattern validates phone numbers submitted for code login.
	PhonePattern *regexp.Regexp

	// ExposeCode echoes generated codes in API responses so the flow can be
	// exercised without an SMS gateway. Load refuses it in production.
	ExposeCode bool
}

// OAuthConfig holds delegated-identity provider settings, keyed by the
// provider name used in /oauth/:provider routes.
type OAuthConfig struct {
	Providers map[string]Provider
}

// Provider describes one third-party identity provider. All endpoints are
// externally supplied; nothing provider-specific is baked into the binary.
type Provider struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
}

// defaultPhonePattern matches mainland mobile numbers: 11 digits, leading 1,
// second digit 3-9.
const defaultPhonePattern = `^1[3-9]\d{9}$`

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing or malformed.
func Load() (*Config, error) {
	pattern := getEnv("PHONE_PATTERN", defaultPhonePattern)
	phoneRe, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("PHONE_PATTERN is not a valid regexp: %w", err)
	}

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "signet"),
			Password:        getEnv("DB_PASSWORD", "signet"),
			Name:            getEnv("DB_NAME", "signet"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			SecretKey:    getEnv("SECRET_KEY", ""),
			CodeTTL:      getEnvDuration("CODE_TTL", 5*time.Minute),
			TokenTTL:     getEnvDuration("TOKEN_TTL", 168*time.Hour),
			SessionTTL:   getEnvDuration("SESSION_TTL", 168*time.Hour),
			PhonePattern: phoneRe,
			ExposeCode:   getEnvBool("EXPOSE_CODE", false),
		},

		OAuth: OAuthConfig{
			Providers: loadProviders(),
		},
	}

	// Validate required fields in production. Case-insensitive check catches
	// common variants like "Production", "prod", etc.
	envLower := strings.ToLower(cfg.Env)
	if envLower == "production" || envLower == "prod" {
		if cfg.Auth.SecretKey == "" {
			return nil, fmt.Errorf("SECRET_KEY is required in production")
		}
		if len(cfg.Auth.SecretKey) < 32 {
			return nil, fmt.Errorf("SECRET_KEY must be at least 32 characters in production")
		}
		if cfg.Auth.ExposeCode {
			return nil, fmt.Errorf("EXPOSE_CODE must not be enabled in production")
		}
	}

	// No SECRET_KEY outside production: generate a random per-process secret
	// so local dev works without .env. Tokens do not survive a restart, which
	// is acceptable for development; no constant secret exists in the binary.
	if cfg.Auth.SecretKey == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generating development secret: %w", err)
		}
		cfg.Auth.SecretKey = secret
	}

	return cfg, nil
}

// randomSecret draws a 32-byte hex-encoded signing secret from crypto/rand.
func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// loadProviders reads OAuth provider settings from OAUTH_PROVIDERS, a
// comma-separated list of provider names. Each name maps to a block of
// OAUTH_<NAME>_* variables. A provider missing its client ID or any endpoint
// URL is skipped rather than left half-configured.
func loadProviders() map[string]Provider {
	providers := make(map[string]Provider)
	for _, name := range strings.Split(getEnv("OAUTH_PROVIDERS", ""), ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		prefix := "OAUTH_" + strings.ToUpper(name) + "_"
		p := Provider{
			ClientID:     getEnv(prefix+"CLIENT_ID", ""),
			ClientSecret: getEnv(prefix+"CLIENT_SECRET", ""),
			AuthURL:      getEnv(prefix+"AUTH_URL", ""),
			TokenURL:     getEnv(prefix+"TOKEN_URL", ""),
			UserInfoURL:  getEnv(prefix+"USERINFO_URL", ""),
		}
		if scopes := getEnv(prefix+"SCOPES", ""); scopes != "" {
			p.Scopes = strings.Fields(scopes)
		}
		if p.ClientID == "" || p.AuthURL == "" || p.TokenURL == "" || p.UserInfoURL == "" {
			continue
		}
		providers[name] = p
	}
	return providers
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool reads a boolean env var ("true", "1", ...) or returns the default.
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "5m") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
