package domain

import "time"

// Role drives access policy decisions.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Staff reports whether the role carries agent or admin privileges.
func (r Role) Staff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// User is the domain model for accounts. Username and email are
// globally unique.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
