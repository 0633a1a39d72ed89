// Package model defines domain entities for the application.
package model

import "time"

// User represents a registered journal owner.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never serialize
	Name         string    `json:"name"`
	Birthday     string    `json:"birthday"` // YYYY-MM-DD
	AvatarRef    string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is the authenticated identity resolved by the auth middleware
// and injected into the request context.
type Principal struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ToPrincipal derives the request principal for this user.
func (u *User) ToPrincipal() *Principal {
	return &Principal{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
	}
}
