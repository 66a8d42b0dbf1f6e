package lab

import (
	"time"

	"github.com/google/uuid"
)

// Sample statuses.
const (
	SamplePending   = "Pending"
	SampleCollected = "Collected"
	SampleRejected  = "Rejected"
	SampleProcessed = "Processed"
)

// Test order statuses.
const (
	OrderPending    = "Pending"
	OrderInProgress = "In Progress"
	OrderCompleted  = "Completed"
	OrderCancelled  = "Cancelled"
)

// Test result statuses.
const (
	ResultDraft           = "Draft"
	ResultPendingApproval = "Pending Approval"
	ResultApproved        = "Approved"
	ResultRejected        = "Rejected"
	ResultReturned        = "Returned"
)

// Sample maps to the samples table.
type Sample struct {
	ID             uuid.UUID `db:"id" json:"id"`
	SampleID       string    `db:"sample_id" json:"sample_id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	SampleType     string    `db:"sample_type" json:"sample_type"`
	CollectionDate time.Time `db:"collection_date" json:"collection_date"`
	CollectedBy    string    `db:"collected_by" json:"collected_by"`
	Status         string    `db:"status" json:"status"`
	Notes          string    `db:"notes" json:"notes,omitempty"`
	IsDeleted      bool      `db:"is_deleted" json:"-"`
	UpdatedBy      string    `db:"updated_by" json:"updated_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TestOrder maps to the test_orders table. Tests holds catalog codes.
type TestOrder struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TestOrderID string     `db:"test_order_id" json:"test_order_id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	SampleID    *uuid.UUID `db:"sample_id" json:"sample_id,omitempty"`
	Tests       []string   `db:"tests" json:"tests"`
	OrderedBy   string     `db:"ordered_by" json:"ordered_by"`
	Status      string     `db:"status" json:"status"`
	Notes       string     `db:"notes" json:"notes,omitempty"`
	IsDeleted   bool       `db:"is_deleted" json:"-"`
	UpdatedBy   string     `db:"updated_by" json:"updated_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Includes reports whether code was ordered.
func (o *TestOrder) Includes(code string) bool {
	for _, t := range o.Tests {
		if t == code {
			return true
		}
	}
	return false
}

// TestResult maps to the test_results table. At most one live row exists
// per (order, test code).
type TestResult struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	TestOrderID     uuid.UUID  `db:"test_order_id" json:"test_order_id"`
	TestCode        string     `db:"test_code" json:"test_code"`
	ResultValue     float64    `db:"result_value" json:"result_value"`
	Unit            string     `db:"unit" json:"unit,omitempty"`
	ReferenceRange  string     `db:"reference_range" json:"reference_range,omitempty"`
	Flag            string     `db:"flag" json:"flag,omitempty"`
	Status          string     `db:"status" json:"status"`
	EnteredBy       string     `db:"entered_by" json:"entered_by"`
	ApprovedBy      *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReturnReason    *string    `db:"return_reason" json:"return_reason,omitempty"`
	IsDeleted       bool       `db:"is_deleted" json:"-"`
	UpdatedBy       string     `db:"updated_by" json:"updated_by"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// ResultInput is what a technician enters for one test.
type ResultInput struct {
	TestCode       string  `json:"test_code"`
	ResultValue    float64 `json:"result_value"`
	Unit           string  `json:"unit,omitempty"`
	ReferenceRange string  `json:"reference_range,omitempty"`
}

// SampleFilter and OrderFilter narrow list queries; zero values match all.
type SampleFilter struct {
	PatientID *uuid.UUID
	Status    string
}

type OrderFilter struct {
	PatientID *uuid.UUID
	Status    string
}
