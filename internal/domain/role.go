package domain

import "fmt"

// Role is the single role assigned to a user.
type Role string

const (
	RoleNone   Role = ""
	RoleDonor  Role = "donor"
	RoleSeeker Role = "seeker"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDonor, RoleSeeker, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts user input into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return RoleNone, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
	return r, nil
}

// Dashboard returns the landing path for the role. Users without a role are
// sent to the profile-completion page.
func (r Role) Dashboard() string {
	switch r {
	case RoleDonor:
		return "/donor-dashboard"
	case RoleSeeker:
		return "/seeker-dashboard"
	case RoleAdmin:
		return "/admin"
	}
	return "/profile"
}

// RoleAssignment maps a user to its role.
type RoleAssignment struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}
