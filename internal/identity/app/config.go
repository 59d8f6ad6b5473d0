package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/stubbl/identity/pkg/httpx"
)

type Config struct {
	MongoURI             string        // Required database name in the path (default: mongodb://localhost:27017/identity)
	AdminAPIKey          string        // Optional: enables the /v1 admin routes when set
	PepperFile           string        // Path to the password pepper file, created if missing (default: ./pepper)
	AuthenticatorIssuer  string        // Issuer shown in authenticator apps (default: Stubbl)
	LockoutMaxAttempts   int           // Failed sign-ins before lockout (default: 5)
	LockoutDuration      time.Duration // Lockout length (default: 5m)
	ClientCacheTTL       time.Duration // Client configuration cache lifetime, 0 disables (default: 5m)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired grant cleanup interval (default: 1h)

	AdminRateLimit httpx.RateLimitConfig // RATELIMIT_ADMIN_*
	ProbeRateLimit httpx.RateLimitConfig // RATELIMIT_PROBE_*
}

// LoadEnvFiles loads .env and then .env.local into the process environment.
// Missing files are ignored and variables already set win.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

func LoadConfig() Config {
	return Config{
		MongoURI:             getEnvOrDefault("IDENTITY_MONGO_URI", "mongodb://localhost:27017/identity"),
		AdminAPIKey:          os.Getenv("IDENTITY_ADMIN_API_KEY"),
		PepperFile:           getEnvOrDefault("IDENTITY_PEPPER_FILE", "pepper"),
		AuthenticatorIssuer:  getEnvOrDefault("IDENTITY_AUTHENTICATOR_ISSUER", "Stubbl"),
		LockoutMaxAttempts:   getEnvIntOrDefault("IDENTITY_LOCKOUT_MAX_ATTEMPTS", 5),
		LockoutDuration:      getEnvDurationOrDefault("IDENTITY_LOCKOUT_DURATION", 5*time.Minute),
		ClientCacheTTL:       getEnvDurationOrDefault("IDENTITY_CLIENT_CACHE_TTL", 5*time.Minute),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
		AdminRateLimit:       httpx.ParseRateLimitFromEnv("ADMIN", httpx.AdminLimit),
		ProbeRateLimit:       httpx.ParseRateLimitFromEnv("PROBE", httpx.ProbeLimit),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
