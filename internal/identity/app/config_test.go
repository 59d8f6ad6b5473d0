package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stubbl/identity/pkg/httpx"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"IDENTITY_MONGO_URI", "IDENTITY_ADMIN_API_KEY", "PORT", "IDENTITY_CLIENT_CACHE_TTL"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	require.Equal(t, "mongodb://localhost:27017/identity", cfg.MongoURI)
	require.Empty(t, cfg.AdminAPIKey)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 5, cfg.LockoutMaxAttempts)
	require.Equal(t, 5*time.Minute, cfg.LockoutDuration)
	require.Equal(t, 5*time.Minute, cfg.ClientCacheTTL)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
	require.Equal(t, httpx.AdminLimit, cfg.AdminRateLimit)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("IDENTITY_MONGO_URI", "mongodb://db:27017/idp")
	t.Setenv("IDENTITY_LOCKOUT_MAX_ATTEMPTS", "3")
	t.Setenv("IDENTITY_LOCKOUT_DURATION", "15")
	t.Setenv("IDENTITY_CLIENT_CACHE_TTL", "0")
	t.Setenv("HOUSEKEEPING_INTERVAL", "30s")
	t.Setenv("PORT", "not-a-port")
	t.Setenv("RATELIMIT_ADMIN_REQUESTS", "5")

	cfg := LoadConfig()
	require.Equal(t, "mongodb://db:27017/idp", cfg.MongoURI)
	require.Equal(t, 3, cfg.LockoutMaxAttempts)
	require.Equal(t, 15*time.Minute, cfg.LockoutDuration, "bare integers are minutes")
	require.Zero(t, cfg.ClientCacheTTL)
	require.Equal(t, 30*time.Second, cfg.HousekeepingInterval)
	require.Equal(t, 8080, cfg.Port, "invalid values fall back")
	require.Equal(t, 5, cfg.AdminRateLimit.RequestsPerWindow)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("IDENTITY_AUTHENTICATOR_ISSUER=FromFile\nLOG_LEVEL=debug\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("IDENTITY_AUTHENTICATOR_ISSUER", "")
	os.Unsetenv("IDENTITY_AUTHENTICATOR_ISSUER")
	t.Setenv("LOG_LEVEL", "warn")

	LoadEnvFiles()

	cfg := LoadConfig()
	require.Equal(t, "FromFile", cfg.AuthenticatorIssuer)
	require.Equal(t, "warn", cfg.LogLevel, "the environment wins over .env")
}

func TestNewAccountServiceCreatesPepper(t *testing.T) {
	cfg := LoadConfig()
	cfg.PepperFile = filepath.Join(t.TempDir(), "pepper")

	svc, err := NewAccountService(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, svc.Hasher)
	require.FileExists(t, cfg.PepperFile)
}
