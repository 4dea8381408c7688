package model

import "time"

// Role is the closed set of account roles.  Roles are assigned at signup and
// never change afterwards.  Authorization is a set-membership check over
// these values, not a free-form string comparison.
type Role string

const (
	RoleFarmer    Role = "farmer"
	RoleBuyer     Role = "buyer"
	RoleSupplier  Role = "supplier"
	RoleLogistics Role = "logistics"
	RoleAdmin     Role = "admin"
)

// ParseRole normalizes and validates a role string supplied by a client.
// The second return value reports whether the input named a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	if r.Valid() {
		return r, true
	}
	return "", false
}

// Valid reports whether the role is one of the fixed members.
func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleBuyer, RoleSupplier, RoleLogistics, RoleAdmin:
		return true
	}
	return false
}

// Account mirrors the `accounts` table.  Plain tokens (verification, reset,
// refresh) are never stored, only their SHA-256 hashes.  RefreshTokenVersion
// is bumped whenever outstanding refresh tokens must be invalidated wholesale
// (password change, deactivation).
type Account struct {
	ID                  uint64
	FullName            string
	Email               string
	PasswordHash        string
	Phone               string
	Role                Role
	IsEmailVerified     bool
	VerifyTokenHash     string
	VerifyTokenExpires  *time.Time
	ResetTokenHash      string
	ResetTokenExpires   *time.Time
	RefreshTokenHash    string
	RefreshTokenVersion uint64
	IsActive            bool
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
