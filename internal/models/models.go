package models

import (
	"time"
)

type Role string

const (
	RoleStudent  Role = "student"
	RoleGraduate Role = "graduate"
	RoleTeacher  Role = "teacher"
	RoleCompany  Role = "company"
	RoleAdmin    Role = "admin"
)

var Roles = []Role{RoleStudent, RoleGraduate, RoleTeacher, RoleCompany, RoleAdmin}

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Principal is the identity resolved from a verified token. It reflects the
// user at issuance time and may be stale until the token expires.
type Principal struct {
	ID    int64
	Email string
	Role  Role
}

func (p Principal) IsZero() bool {
	return p.ID == 0
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type User struct {
	ID           int64
	Email        string
	PasswordHash string // bcrypt, never serialized
	Name         string
	Role         Role
	Phone        *string
	SchoolName   *string
	ProfileImage *string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
}

func (u User) Principal() Principal {
	return Principal{ID: u.ID, Email: u.Email, Role: u.Role}
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		Phone:        u.Phone,
		SchoolName:   u.SchoolName,
		ProfileImage: u.ProfileImage,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		LastLogin:    u.LastLogin,
	}
}

type PublicUser struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	Phone        *string    `json:"phone,omitempty"`
	SchoolName   *string    `json:"school_name,omitempty"`
	ProfileImage *string    `json:"profile_image,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// ProfileUpdate keeps the stored value for every nil field.
type ProfileUpdate struct {
	Name         *string `json:"name" validate:"omitempty,min=2"`
	Phone        *string `json:"phone"`
	ProfileImage *string `json:"profile_image"`
}

// DirectoryEntry is what the public member directory shows about a user.
type DirectoryEntry struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Role         Role    `json:"role"`
	ProfileImage *string `json:"profile_image"`
}

func (u User) DirectoryEntry() DirectoryEntry {
	return DirectoryEntry{
		ID:           u.ID,
		Name:         u.Name,
		Role:         u.Role,
		ProfileImage: u.ProfileImage,
	}
}

type UserFilter struct {
	Role   Role
	Search string
	// SearchEmail extends Search from names to email addresses.
	SearchEmail bool
	ActiveOnly  bool
	Limit       int
	Offset      int
}
