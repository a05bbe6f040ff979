package domain

import "time"

// Role is the closed set of account kinds known to the marketplace.
type Role string

const (
	RoleClient   Role = "client"
	RoleExpert   Role = "expert"
	RoleBusiness Role = "business"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleExpert, RoleBusiness, RoleAdmin:
		return true
	}
	return false
}

// SelfRegistrable reports whether an account with this role may be created
// through public registration. Admin accounts are provisioned server-side.
func (r Role) SelfRegistrable() bool {
	return r == RoleClient || r == RoleExpert || r == RoleBusiness
}

// User is the authenticated identity as the API serves it.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
	Status   string `json:"status,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Location string `json:"location,omitempty"`
}

// Validate rejects payloads carrying an unknown role.
func (u User) Validate() error {
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	return nil
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// Account is the server-side record behind a User.
type Account struct {
	User
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}
