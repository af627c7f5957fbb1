// Package models provides data models for the CleanWard system.
package models

import (
	"strings"
	"time"

	"github.com/cleanward/internal/types"
)

// UserProfile represents a registered resident or authority
type UserProfile struct {
	ID         string     `json:"id" db:"id"`
	FirstName  string     `json:"firstName" db:"first_name"`
	LastName   string     `json:"lastName" db:"last_name"`
	Email      string     `json:"email" db:"email"`
	Phone      string     `json:"phone" db:"phone"`
	Age        int        `json:"age" db:"age"`
	Sex        types.Sex  `json:"sex" db:"sex"`
	Gender     *string    `json:"gender,omitempty" db:"gender"`
	WardNumber int        `json:"wardNumber" db:"ward_number"`
	Role       types.Role `json:"role" db:"role"`
	Score      int        `json:"score" db:"score"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
}

// FullName joins first and last name
func (p *UserProfile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Credential is the authentication record behind a profile
type Credential struct {
	UserID       string     `json:"userId" db:"user_id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	ConfirmedAt  *time.Time `json:"confirmedAt,omitempty" db:"confirmed_at"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
}

// Confirmed reports whether the email address was confirmed
func (c *Credential) Confirmed() bool {
	return c.ConfirmedAt != nil
}
