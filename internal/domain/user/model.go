package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/medilab/lims/internal/platform/auth"
)

const (
	StatusActive    = "Active"
	StatusInactive  = "Inactive"
	StatusSuspended = "Suspended"
)

var validStatuses = map[string]bool{StatusActive: true, StatusInactive: true, StatusSuspended: true}

// MinPasswordLength is the shortest password accepted on create or change.
const MinPasswordLength = 8

// User maps to the users table. The password hash never leaves the server.
type User struct {
	ID           uuid.UUID  `db:"id" json:"user_id"`
	FullName     string     `db:"full_name" json:"full_name"`
	Email        string     `db:"email" json:"email"`
	Role         string     `db:"role" json:"role"`
	Status       string     `db:"status" json:"status"`
	Phone        string     `db:"phone" json:"phone,omitempty"`
	PatientRef   *uuid.UUID `db:"patient_ref" json:"patient_ref,omitempty"`
	PasswordHash string     `db:"password_hash" json:"-"`
	CreatedBy    string     `db:"created_by" json:"created_by"`
	UpdatedBy    string     `db:"updated_by" json:"updated_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Account is the session view of the user.
func (u *User) Account() *auth.Account {
	a := &auth.Account{
		UserID:   u.ID.String(),
		FullName: u.FullName,
		Email:    u.Email,
		Role:     u.Role,
		Status:   u.Status,
	}
	if u.PatientRef != nil {
		a.PatientRef = u.PatientRef.String()
	}
	return a
}

type Filter struct {
	Role   string
	Status string
}
