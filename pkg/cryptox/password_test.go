package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordHasherHash(t *testing.T) {
	t.Parallel()
	h := NewPasswordHasher("pepper")

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
		{"unicode password", "пароль🔒密码"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6, "PHC hash should have 6 parts")
			require.Equal(t, "argon2id", parts[1])
			require.Equal(t, "v=19", parts[2])
			require.Equal(t, "m=19456,t=2,p=1", parts[3])

			require.NoError(t, h.Verify(tt.password, hash))
			require.ErrorIs(t, h.Verify(tt.password+"x", hash), ErrPasswordMismatch)
		})
	}
}

func TestPasswordHasherUniqueSalts(t *testing.T) {
	t.Parallel()
	h := NewPasswordHasher("")

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestPasswordHasherPepperMatters(t *testing.T) {
	t.Parallel()

	hash, err := NewPasswordHasher("one").Hash("secret")
	require.NoError(t, err)
	require.ErrorIs(t, NewPasswordHasher("two").Verify("secret", hash), ErrPasswordMismatch)
}

func TestPasswordHasherVerifyInvalidHash(t *testing.T) {
	t.Parallel()
	h := NewPasswordHasher("pepper")

	for _, encoded := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=16$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA",
	} {
		require.ErrorIs(t, h.Verify("pw", encoded), ErrInvalidHash, encoded)
	}
}
