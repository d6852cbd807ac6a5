package models

import (
	"strings"
	"time"
)

// User statuses
const (
	StatusActive = "active"
)

// User is a team member account.
type User struct {
	ID           string     `bson:"_id,omitempty" json:"id"`
	Email        string     `bson:"email" json:"email"`
	FirstName    string     `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName     string     `bson:"lastName,omitempty" json:"lastName,omitempty"`
	FullName     string     `bson:"fullName,omitempty" json:"fullName,omitempty"`
	Role         string     `bson:"role" json:"role"`
	Subteam      string     `bson:"subteam,omitempty" json:"subteam,omitempty"`
	Status       string     `bson:"status" json:"status"`
	PasswordHash string     `bson:"passwordHash,omitempty" json:"-"`
	CreatedAt    time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt" json:"updatedAt"`
	ApprovedAt   *time.Time `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
}

// DisplayName prefers the full name, then first/last, then the e-mail.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if n := strings.TrimSpace(u.FirstName + " " + u.LastName); n != "" {
		return n
	}
	return u.Email
}

// NormalizeEmail is the canonical form used for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
