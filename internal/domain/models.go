package domain

import (
	"fmt"
	"time"
)

// Role is a closed set; the zero value is not a valid role.
type Role int

const (
	RoleUnknown Role = iota
	RoleStudent
	RoleStaff
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleStaff:
		return "staff"
	case RoleOwner:
		return "owner"
	default:
		return ""
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleOwner:
		return true
	default:
		return false
	}
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "student":
		return RoleStudent, nil
	case "staff":
		return RoleStaff, nil
	case "owner":
		return RoleOwner, nil
	default:
		return RoleUnknown, fmt.Errorf("unknown role %q", s)
	}
}

type Profile struct {
	Name      string
	College   string
	ClassName string
	Stream    string
}

type Account struct {
	ID             string
	Contact        string
	PasswordHash   string
	Role           Role
	Profile        Profile
	FailedAttempts int
	LockoutUntil   *time.Time
	LastLoginAt    *time.Time
	CreatedAt      time.Time
}

type NewAccount struct {
	ID           string
	Contact      string
	PasswordHash string
	Role         Role
	Profile      Profile
	CreatedAt    time.Time
}

// Principal is what a verified session token asserts about its bearer.
type Principal struct {
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// CanManageAccounts reports whether the role may perform account administration
// such as clearing a lockout.
func (r Role) CanManageAccounts() bool {
	switch r {
	case RoleStaff, RoleOwner:
		return true
	case RoleStudent, RoleUnknown:
		return false
	default:
		return false
	}
}
