package cryptox

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	for _, size := range []int{TokenSize128, TokenSize256, 24} {
		a, err := GenerateToken(size)
		require.NoError(t, err)
		b, err := GenerateToken(size)
		require.NoError(t, err)
		require.NotEqual(t, a, b, "tokens should be unique")
	}

	for _, size := range []int{0, -1} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestFingerprintToken(t *testing.T) {
	t.Parallel()

	require.Equal(t, FingerprintToken("abc"), FingerprintToken("abc"))
	require.NotEqual(t, FingerprintToken("abc"), FingerprintToken("abd"))
	require.Len(t, FingerprintToken("abc"), 43)
}

func TestHashSecret(t *testing.T) {
	t.Parallel()

	// sha256("secret"), standard base64
	require.Equal(t, "K7gNU3sdo+OL0wNhqoVWhr3g6s1xYv72ol/pe/Unols=", HashSecret("secret"))
}

func TestGenerateRecoveryCode(t *testing.T) {
	t.Parallel()

	shape := regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{5}-[0-9A-HJKMNP-TV-Z]{5}$`)
	seen := map[string]bool{}
	for range 20 {
		code, err := GenerateRecoveryCode()
		require.NoError(t, err)
		require.Regexp(t, shape, code)
		seen[code] = true
	}
	require.Greater(t, len(seen), 1)
}

func TestLoadOrCreatePepper(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "pepper")

	first, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0600))
	_, err = LoadOrCreatePepper(path)
	require.Error(t, err)
}
