package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"github.com/stubbl/identity/internal/identity/domain"
	"github.com/stubbl/identity/internal/identity/service"
	"github.com/stubbl/identity/internal/identity/store"
	"github.com/stubbl/identity/internal/identity/store/storetest"
	"github.com/stubbl/identity/pkg/cryptox"
)

type clock struct{ now time.Time }

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func reload(t *testing.T, users *storetest.Users, id string) *domain.User {
	t.Helper()
	u, err := users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func newAccountService(t *testing.T) (*service.AccountService, *storetest.Users, *clock) {
	t.Helper()
	users := storetest.NewUsers()
	clk := newClock()
	return &service.AccountService{
		Users:                   users,
		Hasher:                  cryptox.NewPasswordHasher("pepper"),
		Issuer:                  "Stubbl",
		MaxFailedAccessAttempts: 3,
		LockoutDuration:         5 * time.Minute,
		Now:                     clk.Now,
	}, users, clk
}

func register(t *testing.T, svc *service.AccountService, username, password string) *domain.User {
	t.Helper()
	u, err := svc.Register(context.Background(), service.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates a normalized account", func(t *testing.T) {
		svc, users, _ := newAccountService(t)
		u, err := svc.Register(ctx, service.RegisterRequest{
			Username:   " Alice ",
			Email:      "Alice@Example.com",
			Password:   "correct horse",
			GivenName:  "Alice",
			FamilyName: "Liddell",
		})
		require.NoError(t, err)
		require.NotEmpty(t, u.ID)

		got := reload(t, users, u.ID)
		require.Equal(t, "Alice", got.Username)
		require.Equal(t, "ALICE", got.NormalizedUsername)
		require.Equal(t, "ALICE@EXAMPLE.COM", got.NormalizedEmailAddress)
		require.True(t, got.LockoutEnabled)
		require.NotEmpty(t, got.SecurityStamp)
		require.NoError(t, svc.Hasher.Verify("correct horse", got.PasswordHash))
	})

	t.Run("duplicates", func(t *testing.T) {
		svc, _, _ := newAccountService(t)
		register(t, svc, "alice", "pw")

		_, err := svc.Register(ctx, service.RegisterRequest{Username: "bob", Email: "ALICE@example.com", Password: "pw"})
		require.ErrorIs(t, err, service.ErrDuplicateEmail)

		_, err = svc.Register(ctx, service.RegisterRequest{Username: "ALICE", Email: "other@example.com", Password: "pw"})
		require.ErrorIs(t, err, service.ErrDuplicateUsername)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc, _, _ := newAccountService(t)
		for _, req := range []service.RegisterRequest{
			{Email: "a@example.com", Password: "pw"},
			{Username: "a", Password: "pw"},
			{Username: "a", Email: "a@example.com"},
		} {
			_, err := svc.Register(ctx, req)
			require.ErrorIs(t, err, store.ErrInvalidArgument)
		}
	})
}

func TestPasswordSignIn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success resets the failure counter", func(t *testing.T) {
		svc, users, _ := newAccountService(t)
		u := register(t, svc, "alice", "pw")

		_, err := svc.PasswordSignIn(ctx, "alice", "wrong")
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
		require.Equal(t, 1, reload(t, users, u.ID).AccessFailedCount)

		got, err := svc.PasswordSignIn(ctx, "ALICE", "pw")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.Zero(t, reload(t, users, u.ID).AccessFailedCount)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _, _ := newAccountService(t)
		_, err := svc.PasswordSignIn(ctx, "nobody", "pw")
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("locks out after repeated failures", func(t *testing.T) {
		svc, users, clk := newAccountService(t)
		u := register(t, svc, "alice", "pw")

		for range 2 {
			_, err := svc.PasswordSignIn(ctx, "alice", "wrong")
			require.ErrorIs(t, err, service.ErrInvalidCredentials)
		}
		_, err := svc.PasswordSignIn(ctx, "alice", "wrong")
		require.ErrorIs(t, err, service.ErrLockedOut)

		locked := reload(t, users, u.ID)
		require.Zero(t, locked.AccessFailedCount)
		require.NotNil(t, locked.LockoutEnd)
		require.Equal(t, clk.Now().Add(5*time.Minute), *locked.LockoutEnd)

		_, err = svc.PasswordSignIn(ctx, "alice", "pw")
		require.ErrorIs(t, err, service.ErrLockedOut, "correct password while locked out")

		clk.Advance(5*time.Minute + time.Second)
		_, err = svc.PasswordSignIn(ctx, "alice", "pw")
		require.NoError(t, err)
	})

	t.Run("lockout disabled", func(t *testing.T) {
		svc, users, _ := newAccountService(t)
		u := register(t, svc, "alice", "pw")
		stored := reload(t, users, u.ID)
		stored.LockoutEnabled = false
		require.NoError(t, users.Update(ctx, stored))

		for range 5 {
			_, err := svc.PasswordSignIn(ctx, "alice", "wrong")
			require.ErrorIs(t, err, service.ErrInvalidCredentials)
		}
		require.Zero(t, reload(t, users, u.ID).AccessFailedCount)
	})

	t.Run("external-only account has no password", func(t *testing.T) {
		svc, _, _ := newAccountService(t)
		_, err := svc.RegisterExternal(ctx, service.ExternalRegisterRequest{
			Username: "carol",
			Email:    "carol@example.com",
			Login:    domain.UserLogin{LoginProvider: "github", ProviderKey: "42"},
		})
		require.NoError(t, err)

		_, err = svc.PasswordSignIn(ctx, "carol", "")
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})
}

func TestRegisterExternal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	github := domain.UserLogin{LoginProvider: "github", ProviderKey: "42", ProviderDisplayName: "GitHub"}

	t.Run("links the login", func(t *testing.T) {
		svc, users, _ := newAccountService(t)
		u, err := svc.RegisterExternal(ctx, service.ExternalRegisterRequest{Username: "carol", Email: "carol@example.com", Login: github})
		require.NoError(t, err)

		got, err := users.FindByLogin(ctx, "github", "42")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.Empty(t, got.PasswordHash)

		signedIn, err := svc.ExternalSignIn(ctx, "github", "42")
		require.NoError(t, err)
		require.Equal(t, u.ID, signedIn.ID)
	})

	t.Run("login already linked", func(t *testing.T) {
		svc, _, _ := newAccountService(t)
		_, err := svc.RegisterExternal(ctx, service.ExternalRegisterRequest{Username: "carol", Email: "carol@example.com", Login: github})
		require.NoError(t, err)

		_, err = svc.RegisterExternal(ctx, service.ExternalRegisterRequest{Username: "dave", Email: "dave@example.com", Login: github})
		require.ErrorIs(t, err, service.ErrLoginAlreadyLinked)
	})

	t.Run("removes the user when the login cannot be saved", func(t *testing.T) {
		svc, users, _ := newAccountService(t)
		boom := errors.New("boom")
		users.UpdateErr = boom

		_, err := svc.RegisterExternal(ctx, service.ExternalRegisterRequest{Username: "carol", Email: "carol@example.com", Login: github})
		require.ErrorIs(t, err, boom)

		_, err = users.FindByName(ctx, "CAROL")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestLinkAndUnlinkLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, users, _ := newAccountService(t)
	alice := register(t, svc, "alice", "pw")
	bob := register(t, svc, "bob", "pw")
	google := domain.UserLogin{LoginProvider: "google", ProviderKey: "g-1"}

	stamp := alice.SecurityStamp
	require.NoError(t, svc.LinkLogin(ctx, alice, google))
	require.NotEqual(t, stamp, alice.SecurityStamp)
	require.True(t, reload(t, users, alice.ID).HasLogin("google", "g-1"))

	require.NoError(t, svc.LinkLogin(ctx, alice, google), "linking twice is a no-op")
	require.ErrorIs(t, svc.LinkLogin(ctx, bob, google), service.ErrLoginAlreadyLinked)

	require.NoError(t, svc.UnlinkLogin(ctx, alice, "google", "g-1"))
	require.Empty(t, reload(t, users, alice.ID).Logins())
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, users, _ := newAccountService(t)
	u := register(t, svc, "alice", "old")

	require.ErrorIs(t, svc.ChangePassword(ctx, u, "wrong", "new"), service.ErrInvalidCredentials)
	require.ErrorIs(t, svc.ChangePassword(ctx, u, "old", ""), store.ErrInvalidArgument)

	stamp := u.SecurityStamp
	require.NoError(t, svc.ChangePassword(ctx, u, "old", "new"))
	require.NotEqual(t, stamp, reload(t, users, u.ID).SecurityStamp)

	_, err := svc.PasswordSignIn(ctx, "alice", "old")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = svc.PasswordSignIn(ctx, "alice", "new")
	require.NoError(t, err)
}

func TestAuthenticator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, users, _ := newAccountService(t)
	u := register(t, svc, "alice", "pw")

	_, err := svc.VerifyAuthenticator(ctx, u, "000000")
	require.ErrorIs(t, err, service.ErrAuthenticatorNotEnabled)

	setup, err := svc.EnableAuthenticator(ctx, u)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(setup.URL, "otpauth://totp/"))
	require.Contains(t, setup.URL, "issuer=Stubbl")

	stored := reload(t, users, u.ID)
	key, ok := stored.Token(service.TokenProvider, service.AuthenticatorKeyToken)
	require.True(t, ok)
	require.Equal(t, setup.Secret, key)
	require.False(t, stored.TwoFactorEnabled, "enabled only after verification")

	_, err = svc.VerifyAuthenticator(ctx, u, "not-a-code")
	require.ErrorIs(t, err, service.ErrInvalidCode)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	recovery, err := svc.VerifyAuthenticator(ctx, u, code)
	require.NoError(t, err)
	require.Len(t, recovery, 10)
	require.True(t, reload(t, users, u.ID).TwoFactorEnabled)

	t.Run("sign-in requires the second factor", func(t *testing.T) {
		got, err := svc.PasswordSignIn(ctx, "alice", "pw")
		require.ErrorIs(t, err, service.ErrTwoFactorRequired)
		require.NotNil(t, got)

		code, err := totp.GenerateCode(setup.Secret, time.Now())
		require.NoError(t, err)
		require.NoError(t, svc.VerifyTwoFactor(ctx, got, code))
		require.ErrorIs(t, svc.VerifyTwoFactor(ctx, got, "123"), service.ErrInvalidCode)
	})

	t.Run("recovery codes are stored hashed and work once", func(t *testing.T) {
		stored, ok := reload(t, users, u.ID).Token(service.TokenProvider, service.RecoveryCodesToken)
		require.True(t, ok)
		for _, c := range recovery {
			require.NotContains(t, stored, c)
		}

		require.NoError(t, svc.RedeemRecoveryCode(ctx, u, strings.ToLower(recovery[0])))
		require.ErrorIs(t, svc.RedeemRecoveryCode(ctx, u, recovery[0]), service.ErrInvalidCode)

		left, err := svc.RecoveryCodesLeft(ctx, reload(t, users, u.ID))
		require.NoError(t, err)
		require.Equal(t, 9, left)
	})
}

func TestConcurrencyFailurePropagates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, users, _ := newAccountService(t)
	u := register(t, svc, "alice", "pw")
	require.NoError(t, users.Delete(ctx, reload(t, users, u.ID)))

	require.ErrorIs(t, svc.ChangePassword(ctx, u, "pw", "new"), store.ErrConcurrencyFailure)
}
