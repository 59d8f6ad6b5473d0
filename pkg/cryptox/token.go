package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

// Token sizes in bytes before encoding.
const (
	TokenSize128 = 16
	TokenSize256 = 32
)

// GenerateToken returns size random bytes, base64url encoded without padding.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token so
// it can be stored and compared without keeping the token itself.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// HashSecret hashes a client secret the way OAuth secret validators compare
// them: SHA-256, standard base64 with padding.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}

const recoveryAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ" // no I, L, O, U

// GenerateRecoveryCode returns a one-time code shaped XXXXX-XXXXX.
func GenerateRecoveryCode() (string, error) {
	const half = 5
	code := make([]byte, 0, 2*half+1)
	for i := range 2 * half {
		if i == half {
			code = append(code, '-')
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(recoveryAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate recovery code: %w", err)
		}
		code = append(code, recoveryAlphabet[n.Int64()])
	}
	return string(code), nil
}
