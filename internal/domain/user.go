package domain

import (
	"strings"
	"time"
)

// Role tags carried by every account.
const (
	RoleAdmin      = "ADMIN"
	RoleBureau     = "BUREAU"
	RoleTechnician = "TECHNICIEN"
)

// User represents a company account; collaborators are users.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	FirstName    string
	LastName     string
	Phone        string
	Role         string
	CompanyID    string
	CreatedAt    time.Time
}

// ValidRole reports whether role belongs to the closed role set.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleBureau, RoleTechnician:
		return true
	}
	return false
}

// Eligible reports whether the user may be placed on a roster.
func (u User) Eligible() bool {
	return ValidRole(u.Role) && strings.TrimSpace(u.CompanyID) != ""
}
