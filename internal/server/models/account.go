// Package models holds the server-side persistent types.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the account type. RoleUser is the ordinary marketplace user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleOwner Role = "OWNER"
	RoleAdmin Role = "ADMIN"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleUser, RoleOwner, RoleAdmin}

// ParseRole accepts a role name in any letter case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Account is an identity record. Nullable columns are pointers.
//
// A verified account never has a VerificationToken. RefreshToken is the only
// refresh token accepted for the account; issuing a new one replaces it.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	PhoneNumber  *string
	Role         Role
	Active       bool
	Verified     bool

	VerificationToken       *string
	VerificationTokenExpiry *time.Time
	LastVerificationSentAt  *time.Time

	RefreshToken       *string
	RefreshTokenExpiry *time.Time

	PasswordResetToken       *string
	PasswordResetTokenExpiry *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleStats counts active accounts per role.
type RoleStats struct {
	TotalUsers  int64
	TotalOwners int64
	TotalAdmins int64
}
