package models

import (
	"time"
)

// User is a row of the local identity store
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Name              string
	Role              string // "user" or "admin"
	Status            string // "active", "suspended", "disabled"
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ToIdentity returns the identity view of the user
func (u *User) ToIdentity() *Identity {
	return &Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}
