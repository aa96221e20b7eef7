package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleController Role = "CONTROLLER"
	RoleTeacher    Role = "TEACHER"
)

func (r Role) Valid() bool {
	return r == RoleController || r == RoleTeacher
}

// ParseRole accepts any casing of a known role.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// User is the stored account record. PasswordHash never leaves the server;
// use Public for anything that is serialized to a client.
type User struct {
	ID                  int64
	Username            string
	PasswordHash        string
	Role                Role
	IsPasswordTemporary bool
	FirstName           string
	LastName            string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type UserResponse struct {
	ID                  int64     `json:"id"`
	Username            string    `json:"username"`
	Role                Role      `json:"role"`
	IsPasswordTemporary bool      `json:"isPasswordTemporary"`
	FirstName           string    `json:"firstName"`
	LastName            string    `json:"lastName"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func (u User) Public() UserResponse {
	return UserResponse{
		ID:                  u.ID,
		Username:            u.Username,
		Role:                u.Role,
		IsPasswordTemporary: u.IsPasswordTemporary,
		FirstName:           u.FirstName,
		LastName:            u.LastName,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

// Identity is what the guard chain attaches to an authenticated request.
type Identity struct {
	UserID              int64
	Username            string
	Role                Role
	IsPasswordTemporary bool
}

func (u User) Identity() Identity {
	return Identity{
		UserID:              u.ID,
		Username:            u.Username,
		Role:                u.Role,
		IsPasswordTemporary: u.IsPasswordTemporary,
	}
}

// TokenClaims is the application-level payload of a session token.
type TokenClaims struct {
	UserID   int64
	Username string
}

type LoginResponse struct {
	Token               string `json:"token"`
	Role                Role   `json:"role"`
	IsPasswordTemporary bool   `json:"isPasswordTemporary"`
}

type ChangePasswordResponse struct {
	Success bool `json:"success"`
}
