package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

const (
	StatusActive  = "active"
	StatusPending = "pending"
	StatusUnknown = "unknown"
)

// Session is the durable record behind one SPA login. The gateway hands the
// browser an opaque Token; the upstream access/refresh tokens never leave the
// server. Claim fields (role, status, preference) are a snapshot taken from
// the upstream token payload and are only rewritten as a whole by the refresh
// path.
type Session struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Token        string    `gorm:"size:64;not null;unique" json:"-"`
	AccessToken  string    `gorm:"type:text;not null" json:"-"`
	RefreshToken string    `gorm:"type:text;not null" json:"-"`
	Email        string    `gorm:"size:255;not null" json:"email"`
	FirstName    string    `gorm:"size:255" json:"first_name"`
	LastName     string    `gorm:"size:255" json:"last_name"`
	Role         string    `gorm:"size:20;not null;default:'student'" json:"role"`
	Status       string    `gorm:"size:20;not null;default:'unknown'" json:"status"`
	PreferenceID *int      `json:"preference_id,omitempty"`
	ExpiresAt    time.Time `gorm:"not null" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
