package store

import (
	"context"
	"time"

	"github.com/stubbl/identity/internal/identity/domain"
)

// UserAccessors implements the parts of Users that only read or mutate the
// in-memory aggregate. Drivers embed it and add the operations that touch the
// database. Nothing here persists; callers follow up with Update.
type UserAccessors struct{}

func checkUser(ctx context.Context, u *domain.User) error {
	if err := CheckContext(ctx); err != nil {
		return err
	}
	if u == nil {
		return InvalidArgument("user")
	}
	return nil
}

func (UserAccessors) GetUserID(ctx context.Context, u *domain.User) (string, error) {
	if err := checkUser(ctx, u); err != nil {
		return "", err
	}
	return u.ID, nil
}

func (UserAccessors) GetUserName(ctx context.Context, u *domain.User) (string, error) {
	if err := checkUser(ctx, u); err != nil {
		return "", err
	}
	return u.Username, nil
}

func (UserAccessors) SetUserName(ctx context.Context, u *domain.User, username string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	u.Username = username
	return nil
}

func (UserAccessors) GetNormalizedUserName(ctx context.Context, u *domain.User) (string, error) {
	if err := checkUser(ctx, u); err != nil {
		return "", err
	}
	return u.NormalizedUsername, nil
}

func (UserAccessors) SetNormalizedUserName(ctx context.Context, u *domain.User, normalized string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	u.NormalizedUsername = normalized
	return nil
}

func checkClaim(c domain.Claim) error {
	if c.Type == "" {
		return InvalidArgument("claim type")
	}
	return nil
}

func (UserAccessors) AddClaims(ctx context.Context, u *domain.User, claims []domain.Claim) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if claims == nil {
		return InvalidArgument("claims")
	}
	for _, c := range claims {
		if err := checkClaim(c); err != nil {
			return err
		}
	}
	u.AddClaims(claims...)
	return nil
}

func (UserAccessors) GetClaims(ctx context.Context, u *domain.User) ([]domain.Claim, error) {
	if err := checkUser(ctx, u); err != nil {
		return nil, err
	}
	return u.Claims(), nil
}

func (UserAccessors) RemoveClaims(ctx context.Context, u *domain.User, claims []domain.Claim) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if claims == nil {
		return InvalidArgument("claims")
	}
	u.RemoveClaims(claims...)
	return nil
}

func (UserAccessors) ReplaceClaim(ctx context.Context, u *domain.User, claim, newClaim domain.Claim) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if err := checkClaim(claim); err != nil {
		return err
	}
	if err := checkClaim(newClaim); err != nil {
		return err
	}
	u.ReplaceClaim(claim, newClaim)
	return nil
}

func (UserAccessors) AddLogin(ctx context.Context, u *domain.User, login domain.UserLogin) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if login.LoginProvider == "" || login.ProviderKey == "" {
		return InvalidArgument("login")
	}
	u.AddLogin(login)
	return nil
}

func (UserAccessors) GetLogins(ctx context.Context, u *domain.User) ([]domain.UserLogin, error) {
	if err := checkUser(ctx, u); err != nil {
		return nil, err
	}
	return u.Logins(), nil
}

func (UserAccessors) RemoveLogin(ctx context.Context, u *domain.User, provider, providerKey string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	u.RemoveLogin(provider, providerKey)
	return nil
}

func (UserAccessors) GetPasswordHash(ctx context.Context, u *domain.User) (string, error) {
	if err := checkUser(ctx, u); err != nil {
		return "", err
	}
	return u.PasswordHash, nil
}

func (UserAccessors) SetPasswordHash(ctx context.Context, u *domain.User, hash string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (UserAccessors) HasPassword(ctx context.Context, u *domain.User) (bool, error) {
	if err := checkUser(ctx, u); err != nil {
		return false, err
	}
	return u.PasswordHash != "", nil
}

func (UserAccessors) GetAccessFailedCount(ctx context.Context, u *domain.User) (int, error) {
	if err := checkUser(ctx, u); err != nil {
		return 0, err
	}
	return u.AccessFailedCount, nil
}

func (UserAccessors) IncrementAccessFailedCount(ctx context.Context, u *domain.User) (int, error) {
	if err := checkUser(ctx, u); err != nil {
		return 0, err
	}
	return u.IncrementAccessFailedCount(), nil
}

func (UserAccessors) ResetAccessFailedCount(ctx context.Context, u *domain.User) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	u.ResetAccessFailedCount()
	return nil
}

func (UserAccessors) GetLockoutEnabled(ctx context.Context, u *domain.User) (bool, error) {
	if err := checkUser(ctx, u); err != nil {
		return false, err
	}
	return u.LockoutEnabled, nil
}

func (UserAccessors) SetLockoutEnabled(ctx context.Context, u *domain.User, enabled bool) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	u.LockoutEnabled = enabled
	return nil
}

func (UserAccessors) GetLockoutEndDate(ctx context.Context, u *domain.User) (*time.Time, error) {
	if err := checkUser(ctx, u); err != nil {
		return nil, err
	}
	return u.LockoutEnd, nil
}

func (UserAccessors) SetLockoutEndDate(ctx context.Context, u *domain.User, end *time.Time) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if end != nil {
		utc := end.UTC()
		end = &utc
	}
	u.LockoutEnd = end
	return nil
}

func checkRoleName(roleName string) error {
	if roleName == "" {
		return InvalidArgument("role name")
	}
	return nil
}

func (UserAccessors) AddToRole(ctx context.Context, u *domain.User, roleName string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if err := checkRoleName(roleName); err != nil {
		return err
	}
	u.AddToRole(roleName)
	return nil
}

func (UserAccessors) RemoveFromRole(ctx context.Context, u *domain.User, roleName string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if err := checkRoleName(roleName); err != nil {
		return err
	}
	u.RemoveFromRole(roleName)
	return nil
}

func (UserAccessors) GetRoles(ctx context.Context, u *domain.User) ([]string, error) {
	if err := checkUser(ctx, u); err != nil {
		return nil, err
	}
	return u.Roles(), nil
}

func (UserAccessors) IsInRole(ctx context.Context, u *domain.User, roleName string) (bool, error) {
	if err := checkUser(ctx, u); err != nil {
		return false, err
	}
	if err := checkRoleName(roleName); err != nil {
		return false, err
	}
	return u.IsInRole(roleName), nil
}

func (UserAccessors) GetSecurityStamp(ctx context.Context, u *domain.User) (string, error) {
	if err := checkUser(ctx, u); err != nil {
		return "", err
	}
	return u.SecurityStamp, nil
}

func (UserAccessors) SetSecurityStamp(ctx context.Context, u *domain.User, stamp string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if stamp == "" {
		return InvalidArgument("security stamp")
	}
	u.SecurityStamp = stamp
	return nil
}

func checkTokenKey(provider, name string) error {
	if provider == "" {
		return InvalidArgument("login provider")
	}
	if name == "" {
		return InvalidArgument("token name")
	}
	return nil
}

func (UserAccessors) SetToken(ctx context.Context, u *domain.User, provider, name, value string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if err := checkTokenKey(provider, name); err != nil {
		return err
	}
	u.SetToken(provider, name, value)
	return nil
}

func (UserAccessors) GetToken(ctx context.Context, u *domain.User, provider, name string) (string, bool, error) {
	if err := checkUser(ctx, u); err != nil {
		return "", false, err
	}
	if err := checkTokenKey(provider, name); err != nil {
		return "", false, err
	}
	v, ok := u.Token(provider, name)
	return v, ok, nil
}

func (UserAccessors) RemoveToken(ctx context.Context, u *domain.User, provider, name string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	if err := checkTokenKey(provider, name); err != nil {
		return err
	}
	u.RemoveToken(provider, name)
	return nil
}

func (UserAccessors) GetTwoFactorEnabled(ctx context.Context, u *domain.User) (bool, error) {
	if err := checkUser(ctx, u); err != nil {
		return false, err
	}
	return u.TwoFactorEnabled, nil
}

func (UserAccessors) SetTwoFactorEnabled(ctx context.Context, u *domain.User, enabled bool) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	u.TwoFactorEnabled = enabled
	return nil
}

func (UserAccessors) GetEmail(ctx context.Context, u *domain.User) (string, error) {
	if err := checkUser(ctx, u); err != nil {
		return "", err
	}
	return u.EmailAddress, nil
}

func (UserAccessors) SetEmail(ctx context.Context, u *domain.User, email string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	u.EmailAddress = email
	return nil
}

func (UserAccessors) GetEmailConfirmed(ctx context.Context, u *domain.User) (bool, error) {
	if err := checkUser(ctx, u); err != nil {
		return false, err
	}
	return u.EmailAddressConfirmed, nil
}

func (UserAccessors) SetEmailConfirmed(ctx context.Context, u *domain.User, confirmed bool) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	u.EmailAddressConfirmed = confirmed
	return nil
}

func (UserAccessors) GetNormalizedEmail(ctx context.Context, u *domain.User) (string, error) {
	if err := checkUser(ctx, u); err != nil {
		return "", err
	}
	return u.NormalizedEmailAddress, nil
}

func (UserAccessors) SetNormalizedEmail(ctx context.Context, u *domain.User, normalized string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	u.NormalizedEmailAddress = normalized
	return nil
}

func (UserAccessors) GetPhoneNumber(ctx context.Context, u *domain.User) (string, error) {
	if err := checkUser(ctx, u); err != nil {
		return "", err
	}
	return u.PhoneNumber, nil
}

func (UserAccessors) SetPhoneNumber(ctx context.Context, u *domain.User, phone string) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	u.PhoneNumber = phone
	return nil
}

func (UserAccessors) GetPhoneNumberConfirmed(ctx context.Context, u *domain.User) (bool, error) {
	if err := checkUser(ctx, u); err != nil {
		return false, err
	}
	return u.PhoneNumberConfirmed, nil
}

func (UserAccessors) SetPhoneNumberConfirmed(ctx context.Context, u *domain.User, confirmed bool) error {
	if err := checkUser(ctx, u); err != nil {
		return err
	}
	u.PhoneNumberConfirmed = confirmed
	return nil
}

// RoleAccessors is the role counterpart of UserAccessors.
type RoleAccessors struct{}

func checkRole(ctx context.Context, r *domain.Role) error {
	if err := CheckContext(ctx); err != nil {
		return err
	}
	if r == nil {
		return InvalidArgument("role")
	}
	return nil
}

func (RoleAccessors) GetRoleID(ctx context.Context, r *domain.Role) (string, error) {
	if err := checkRole(ctx, r); err != nil {
		return "", err
	}
	return r.ID, nil
}

func (RoleAccessors) GetRoleName(ctx context.Context, r *domain.Role) (string, error) {
	if err := checkRole(ctx, r); err != nil {
		return "", err
	}
	return r.Name, nil
}

func (RoleAccessors) SetRoleName(ctx context.Context, r *domain.Role, name string) error {
	if err := checkRole(ctx, r); err != nil {
		return err
	}
	r.Name = name
	return nil
}

func (RoleAccessors) GetNormalizedRoleName(ctx context.Context, r *domain.Role) (string, error) {
	if err := checkRole(ctx, r); err != nil {
		return "", err
	}
	return r.NormalizedName, nil
}

func (RoleAccessors) SetNormalizedRoleName(ctx context.Context, r *domain.Role, normalized string) error {
	if err := checkRole(ctx, r); err != nil {
		return err
	}
	r.NormalizedName = normalized
	return nil
}
