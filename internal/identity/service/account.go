package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stubbl/identity/internal/identity/domain"
	"github.com/stubbl/identity/internal/identity/store"
	"github.com/stubbl/identity/pkg/cryptox"
	"github.com/stubbl/identity/pkg/slogx"
)

// User token slots used for two-factor state. The provider name matches what
// existing user documents already carry.
const (
	TokenProvider            = "[AspNetUserStore]"
	AuthenticatorKeyToken    = "AuthenticatorKey"
	RecoveryCodesToken       = "RecoveryCodes"
	recoveryCodeCount        = 10
	recoveryCodeSeparator    = ";"
	defaultMaxFailedAttempts = 5
	defaultLockoutDuration   = 5 * time.Minute
)

var (
	ErrDuplicateUsername       = errors.New("username is already taken")
	ErrDuplicateEmail          = errors.New("email address is already registered")
	ErrInvalidCredentials      = errors.New("invalid username or password")
	ErrLockedOut               = errors.New("account is locked out")
	ErrTwoFactorRequired       = errors.New("two-factor verification required")
	ErrLoginAlreadyLinked      = errors.New("external login is linked to another account")
	ErrAuthenticatorNotEnabled = errors.New("authenticator is not set up")
	ErrInvalidCode             = errors.New("invalid verification code")
)

// Normalize folds a username, email or role name into the form the unique
// indexes compare.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

type RegisterRequest struct {
	Username   string
	Email      string
	Password   string
	GivenName  string
	FamilyName string
}

type ExternalRegisterRequest struct {
	Username   string
	Email      string
	GivenName  string
	FamilyName string
	Login      domain.UserLogin
}

// AuthenticatorSetup is handed to the user to configure an authenticator app.
type AuthenticatorSetup struct {
	Secret string
	URL    string // otpauth:// URI, usually rendered as a QR code
}

// AccountService implements registration, sign-in and two-factor flows on top
// of the user store.
type AccountService struct {
	Users  store.Users
	Hasher *cryptox.PasswordHasher
	Issuer string // shown in authenticator apps

	MaxFailedAccessAttempts int
	LockoutDuration         time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AccountService) maxFailedAttempts() int {
	if s.MaxFailedAccessAttempts <= 0 {
		return defaultMaxFailedAttempts
	}
	return s.MaxFailedAccessAttempts
}

func (s *AccountService) lockoutDuration() time.Duration {
	if s.LockoutDuration <= 0 {
		return defaultLockoutDuration
	}
	return s.LockoutDuration
}

// checkAvailable fails with ErrDuplicateEmail or ErrDuplicateUsername when
// either normalized value is already in use.
func (s *AccountService) checkAvailable(ctx context.Context, u *domain.User) error {
	if _, err := s.Users.FindByEmail(ctx, u.NormalizedEmailAddress); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("find user by email: %w", err)
	}
	if _, err := s.Users.FindByName(ctx, u.NormalizedUsername); err == nil {
		return ErrDuplicateUsername
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("find user by name: %w", err)
	}
	return nil
}

// create inserts u, turning a lost race on the unique indexes into the same
// errors the pre-check returns.
func (s *AccountService) create(ctx context.Context, u *domain.User) error {
	if err := s.checkAvailable(ctx, u); err != nil {
		return err
	}
	err := s.Users.Create(ctx, u)
	if errors.Is(err, store.ErrAlreadyExists) {
		if dup := s.checkAvailable(ctx, u); dup != nil {
			return dup
		}
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func newAccount(username, email, givenName, familyName string) (*domain.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, store.InvalidArgument("username")
	}
	if strings.TrimSpace(email) == "" {
		return nil, store.InvalidArgument("email")
	}
	u := domain.NewUser(strings.TrimSpace(username), strings.TrimSpace(email))
	u.NormalizedUsername = Normalize(username)
	u.NormalizedEmailAddress = Normalize(email)
	u.GivenName = givenName
	u.FamilyName = familyName
	u.SecurityStamp = uuid.NewString()
	return u, nil
}

// Register creates a local account with a password.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	u, err := newAccount(req.Username, req.Email, req.GivenName, req.FamilyName)
	if err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, store.InvalidArgument("password")
	}

	hash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.Users.SetPasswordHash(ctx, u, hash); err != nil {
		return nil, err
	}

	if err := s.create(ctx, u); err != nil {
		return nil, err
	}
	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", u.ID))
	return u, nil
}

// PasswordSignIn checks a username and password. When the user has two-factor
// enabled the user is returned together with ErrTwoFactorRequired.
func (s *AccountService) PasswordSignIn(ctx context.Context, username, password string) (*domain.User, error) {
	l := slogx.FromContext(ctx)
	if strings.TrimSpace(username) == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.Users.FindByName(ctx, Normalize(username))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	now := s.now()
	if u.IsLockedOut(now) {
		return nil, ErrLockedOut
	}

	hash, err := s.Users.GetPasswordHash(ctx, u)
	if err != nil {
		return nil, err
	}
	if hash == "" {
		return nil, ErrInvalidCredentials
	}

	err = s.Hasher.Verify(password, hash)
	switch {
	case errors.Is(err, cryptox.ErrPasswordMismatch):
		return nil, s.recordFailure(ctx, u, now)
	case err != nil:
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if u.AccessFailedCount > 0 {
		if err := s.Users.ResetAccessFailedCount(ctx, u); err != nil {
			return nil, err
		}
		if err := s.Users.Update(ctx, u); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
	}

	if u.TwoFactorEnabled {
		return u, ErrTwoFactorRequired
	}
	l.Info("user signed in", slog.String("user_id", u.ID))
	return u, nil
}

// recordFailure counts a failed attempt and locks the account once the
// threshold is reached. The counter restarts after a lockout.
func (s *AccountService) recordFailure(ctx context.Context, u *domain.User, now time.Time) error {
	if !u.LockoutEnabled {
		return ErrInvalidCredentials
	}

	failed, err := s.Users.IncrementAccessFailedCount(ctx, u)
	if err != nil {
		return err
	}

	result := ErrInvalidCredentials
	if failed >= s.maxFailedAttempts() {
		end := now.Add(s.lockoutDuration())
		if err := s.Users.SetLockoutEndDate(ctx, u, &end); err != nil {
			return err
		}
		if err := s.Users.ResetAccessFailedCount(ctx, u); err != nil {
			return err
		}
		slogx.FromContext(ctx).Warn("user locked out",
			slog.String("user_id", u.ID),
			slog.Time("lockout_end", end),
		)
		result = ErrLockedOut
	}

	if err := s.Users.Update(ctx, u); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return result
}

// RegisterExternal creates an account without a password and links the
// external login. If linking cannot be saved the new account is removed again.
func (s *AccountService) RegisterExternal(ctx context.Context, req ExternalRegisterRequest) (*domain.User, error) {
	if req.Login.LoginProvider == "" || req.Login.ProviderKey == "" {
		return nil, store.InvalidArgument("login provider and key")
	}
	u, err := newAccount(req.Username, req.Email, req.GivenName, req.FamilyName)
	if err != nil {
		return nil, err
	}

	if _, err := s.Users.FindByLogin(ctx, req.Login.LoginProvider, req.Login.ProviderKey); err == nil {
		return nil, ErrLoginAlreadyLinked
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find user by login: %w", err)
	}

	if err := s.create(ctx, u); err != nil {
		return nil, err
	}

	err = s.Users.AddLogin(ctx, u, req.Login)
	if err == nil {
		err = s.Users.Update(ctx, u)
	}
	if err != nil {
		l := slogx.FromContext(ctx)
		if delErr := s.Users.Delete(ctx, u); delErr != nil {
			l.Error("failed to remove partially registered user",
				slog.String("user_id", u.ID),
				slog.Any("error", delErr),
			)
		}
		return nil, fmt.Errorf("add external login: %w", err)
	}

	slogx.FromContext(ctx).Info("user registered",
		slog.String("user_id", u.ID),
		slog.String("login_provider", req.Login.LoginProvider),
	)
	return u, nil
}

// ExternalSignIn finds the account linked to an external login.
func (s *AccountService) ExternalSignIn(ctx context.Context, provider, providerKey string) (*domain.User, error) {
	u, err := s.Users.FindByLogin(ctx, provider, providerKey)
	if err != nil {
		return nil, err
	}
	if u.IsLockedOut(s.now()) {
		return nil, ErrLockedOut
	}
	if u.TwoFactorEnabled {
		return u, ErrTwoFactorRequired
	}
	return u, nil
}

// LinkLogin attaches an external login to u. Linking a login u already owns
// is a no-op.
func (s *AccountService) LinkLogin(ctx context.Context, u *domain.User, login domain.UserLogin) error {
	if u == nil {
		return store.InvalidArgument("user")
	}
	owner, err := s.Users.FindByLogin(ctx, login.LoginProvider, login.ProviderKey)
	switch {
	case err == nil && owner.ID == u.ID:
		return nil
	case err == nil:
		return ErrLoginAlreadyLinked
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("find user by login: %w", err)
	}

	if err := s.Users.AddLogin(ctx, u, login); err != nil {
		return err
	}
	return s.saveWithNewStamp(ctx, u)
}

func (s *AccountService) UnlinkLogin(ctx context.Context, u *domain.User, provider, providerKey string) error {
	if err := s.Users.RemoveLogin(ctx, u, provider, providerKey); err != nil {
		return err
	}
	return s.saveWithNewStamp(ctx, u)
}

func (s *AccountService) ChangePassword(ctx context.Context, u *domain.User, current, next string) error {
	hash, err := s.Users.GetPasswordHash(ctx, u)
	if err != nil {
		return err
	}
	if next == "" {
		return store.InvalidArgument("new password")
	}
	if hash == "" {
		return ErrInvalidCredentials
	}
	if err := s.Hasher.Verify(current, hash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("verify password: %w", err)
	}

	newHash, err := s.Hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Users.SetPasswordHash(ctx, u, newHash); err != nil {
		return err
	}
	return s.saveWithNewStamp(ctx, u)
}

// saveWithNewStamp rotates the security stamp and persists u.
func (s *AccountService) saveWithNewStamp(ctx context.Context, u *domain.User) error {
	if err := s.Users.SetSecurityStamp(ctx, u, uuid.NewString()); err != nil {
		return err
	}
	if err := s.Users.Update(ctx, u); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// EnableAuthenticator generates a new TOTP key for u. Two-factor stays off
// until VerifyAuthenticator accepts a code from the new key.
func (s *AccountService) EnableAuthenticator(ctx context.Context, u *domain.User) (AuthenticatorSetup, error) {
	if u == nil {
		return AuthenticatorSetup{}, store.InvalidArgument("user")
	}
	account := u.EmailAddress
	if account == "" {
		account = u.Username
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: account,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return AuthenticatorSetup{}, fmt.Errorf("generate authenticator key: %w", err)
	}

	if err := s.Users.SetToken(ctx, u, TokenProvider, AuthenticatorKeyToken, key.Secret()); err != nil {
		return AuthenticatorSetup{}, err
	}
	if err := s.Users.Update(ctx, u); err != nil {
		return AuthenticatorSetup{}, fmt.Errorf("update user: %w", err)
	}
	return AuthenticatorSetup{Secret: key.Secret(), URL: key.URL()}, nil
}

func (s *AccountService) validateCode(ctx context.Context, u *domain.User, code string) error {
	key, found, err := s.Users.GetToken(ctx, u, TokenProvider, AuthenticatorKeyToken)
	if err != nil {
		return err
	}
	if !found {
		return ErrAuthenticatorNotEnabled
	}
	if !totp.Validate(strings.TrimSpace(code), key) {
		return ErrInvalidCode
	}
	return nil
}

// VerifyAuthenticator confirms the authenticator with a current code, turns
// on two-factor and returns a fresh set of recovery codes. The plaintext
// codes are only available from this call.
func (s *AccountService) VerifyAuthenticator(ctx context.Context, u *domain.User, code string) ([]string, error) {
	if err := s.validateCode(ctx, u, code); err != nil {
		return nil, err
	}
	if err := s.Users.SetTwoFactorEnabled(ctx, u, true); err != nil {
		return nil, err
	}

	codes, err := s.setRecoveryCodes(ctx, u)
	if err != nil {
		return nil, err
	}
	if err := s.saveWithNewStamp(ctx, u); err != nil {
		return nil, err
	}
	slogx.FromContext(ctx).Info("two-factor enabled", slog.String("user_id", u.ID))
	return codes, nil
}

// VerifyTwoFactor completes a sign-in that returned ErrTwoFactorRequired.
func (s *AccountService) VerifyTwoFactor(ctx context.Context, u *domain.User, code string) error {
	if u == nil {
		return store.InvalidArgument("user")
	}
	if !u.TwoFactorEnabled {
		return ErrAuthenticatorNotEnabled
	}
	return s.validateCode(ctx, u, code)
}

func (s *AccountService) setRecoveryCodes(ctx context.Context, u *domain.User) ([]string, error) {
	codes := make([]string, recoveryCodeCount)
	fingerprints := make([]string, recoveryCodeCount)
	for i := range codes {
		code, err := cryptox.GenerateRecoveryCode()
		if err != nil {
			return nil, err
		}
		codes[i] = code
		fingerprints[i] = cryptox.FingerprintToken(code)
	}
	if err := s.Users.SetToken(ctx, u, TokenProvider, RecoveryCodesToken, strings.Join(fingerprints, recoveryCodeSeparator)); err != nil {
		return nil, err
	}
	return codes, nil
}

// RedeemRecoveryCode consumes one recovery code. Each code works once.
func (s *AccountService) RedeemRecoveryCode(ctx context.Context, u *domain.User, code string) error {
	stored, found, err := s.Users.GetToken(ctx, u, TokenProvider, RecoveryCodesToken)
	if err != nil {
		return err
	}
	if !found || stored == "" {
		return ErrInvalidCode
	}

	fingerprints := strings.Split(stored, recoveryCodeSeparator)
	i := slices.Index(fingerprints, cryptox.FingerprintToken(strings.ToUpper(strings.TrimSpace(code))))
	if i < 0 {
		return ErrInvalidCode
	}
	fingerprints = slices.Delete(fingerprints, i, i+1)

	if err := s.Users.SetToken(ctx, u, TokenProvider, RecoveryCodesToken, strings.Join(fingerprints, recoveryCodeSeparator)); err != nil {
		return err
	}
	if err := s.Users.Update(ctx, u); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	slogx.FromContext(ctx).Info("recovery code redeemed",
		slog.String("user_id", u.ID),
		slog.Int("remaining", len(fingerprints)),
	)
	return nil
}

// RecoveryCodesLeft counts the unused recovery codes of u.
func (s *AccountService) RecoveryCodesLeft(ctx context.Context, u *domain.User) (int, error) {
	stored, found, err := s.Users.GetToken(ctx, u, TokenProvider, RecoveryCodesToken)
	if err != nil || !found || stored == "" {
		return 0, err
	}
	return len(strings.Split(stored, recoveryCodeSeparator)), nil
}
