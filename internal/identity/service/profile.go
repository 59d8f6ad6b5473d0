package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/stubbl/identity/internal/identity/domain"
	"github.com/stubbl/identity/internal/identity/store"
)

// Standard OpenID Connect claim types.
const (
	ClaimSubject             = "sub"
	ClaimName                = "name"
	ClaimGivenName           = "given_name"
	ClaimFamilyName          = "family_name"
	ClaimPreferredUsername   = "preferred_username"
	ClaimEmail               = "email"
	ClaimEmailVerified       = "email_verified"
	ClaimPhoneNumber         = "phone_number"
	ClaimPhoneNumberVerified = "phone_number_verified"
	ClaimRole                = "role"
)

// ProfileService projects user aggregates into identity claims.
type ProfileService struct {
	Users store.UserStore
}

// ProfileData loads the subject and returns its claims.
func (s *ProfileService) ProfileData(ctx context.Context, subjectID string) ([]domain.Claim, error) {
	if subjectID == "" {
		return nil, store.InvalidArgument("subject id")
	}
	u, err := s.Users.FindByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return Claims(u), nil
}

// Claims builds the profile claims of u. Single-valued claims are keyed by
// type and the values taken from the aggregate win: a stored claim only fills
// a type the aggregate left empty, so it cannot replace the subject or the
// verification flags. Role claims are emitted once per role.
func Claims(u *domain.User) []domain.Claim {
	var out []domain.Claim
	set := func(typ, value string) {
		if value == "" {
			return
		}
		for _, c := range out {
			if c.Type == typ {
				return
			}
		}
		out = append(out, domain.Claim{Type: typ, Value: value})
	}

	set(ClaimSubject, u.ID)
	set(ClaimName, strings.TrimSpace(u.GivenName+" "+u.FamilyName))
	set(ClaimGivenName, u.GivenName)
	set(ClaimFamilyName, u.FamilyName)
	set(ClaimPreferredUsername, u.Username)
	if u.EmailAddress != "" {
		set(ClaimEmail, u.EmailAddress)
		set(ClaimEmailVerified, strconv.FormatBool(u.EmailAddressConfirmed))
	}
	if u.PhoneNumber != "" {
		set(ClaimPhoneNumber, u.PhoneNumber)
		set(ClaimPhoneNumberVerified, strconv.FormatBool(u.PhoneNumberConfirmed))
	}

	for _, c := range u.Claims() {
		if c.Type == ClaimRole {
			continue
		}
		set(c.Type, c.Value)
	}
	for _, r := range u.Roles() {
		out = append(out, domain.Claim{Type: ClaimRole, Value: r})
	}
	return out
}
