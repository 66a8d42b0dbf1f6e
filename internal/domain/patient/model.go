package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/medilab/lims/pkg/civil"
)

const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
	StatusDisabled = "Disabled"
)

var validStatuses = map[string]bool{StatusActive: true, StatusInactive: true, StatusDisabled: true}

var validGenders = map[string]bool{"Male": true, "Female": true, "Other": true}

// Patient maps to the patients table.
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   string     `db:"patient_id" json:"patient_id"`
	FullName    string     `db:"full_name" json:"full_name"`
	NIC         string     `db:"nic" json:"nic"`
	DateOfBirth civil.Date `db:"date_of_birth" json:"date_of_birth"`
	Gender      string     `db:"gender" json:"gender"`
	Phone       string     `db:"phone" json:"phone"`
	Email       string     `db:"email" json:"email,omitempty"`
	Address     string     `db:"address" json:"address,omitempty"`
	Status      string     `db:"status" json:"status"`
	IsDeleted   bool       `db:"is_deleted" json:"-"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	UpdatedBy   string     `db:"updated_by" json:"updated_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// SearchParams filters patient listings. Empty fields are ignored; Name
// and NIC match substrings case-insensitively.
type SearchParams struct {
	Name   string
	NIC    string
	Status string
}

func (p SearchParams) IsZero() bool {
	return p.Name == "" && p.NIC == "" && p.Status == ""
}

// Age in whole years on the given day.
func (p *Patient) Age(on time.Time) int {
	dob := p.DateOfBirth.Time
	years := on.Year() - dob.Year()
	if on.Month() < dob.Month() || (on.Month() == dob.Month() && on.Day() < dob.Day()) {
		years--
	}
	return years
}
