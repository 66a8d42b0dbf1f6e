package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/medilab/lims/pkg/civil"
)

const (
	DefaultType        = "Test Report"
	ContentTypeJSON    = "application/json"
	keyPrefix          = "reports"
	documentFileSuffix = ".json"
)

// Report maps to the reports table. The document itself lives in the
// blob store under FilePath.
type Report struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ReportID    string     `db:"report_id" json:"report_id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	TestOrderID *uuid.UUID `db:"test_order_id" json:"test_order_id,omitempty"`
	ReportType  string     `db:"report_type" json:"report_type"`
	FilePath    string     `db:"file_path" json:"file_path"`
	ContentType string     `db:"content_type" json:"content_type"`
	GeneratedBy string     `db:"generated_by" json:"generated_by"`
	IsDeleted   bool       `db:"is_deleted" json:"-"`
	UpdatedBy   string     `db:"updated_by" json:"updated_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// GenerateRequest asks for a report over one order, or over every approved
// result of the patient when TestOrderID is nil.
type GenerateRequest struct {
	PatientID   uuid.UUID  `json:"patient_id"`
	TestOrderID *uuid.UUID `json:"test_order_id,omitempty"`
	ReportType  string     `json:"report_type,omitempty"`
}

// Document is the rendered report body.
type Document struct {
	ReportID    string          `json:"report_id"`
	ReportType  string          `json:"report_type"`
	GeneratedAt time.Time       `json:"generated_at"`
	GeneratedBy string          `json:"generated_by"`
	Patient     DocumentPatient `json:"patient"`
	TestOrderID string          `json:"test_order_id,omitempty"`
	Results     []DocumentLine  `json:"results"`
}

type DocumentPatient struct {
	PatientID   string     `json:"patient_id"`
	FullName    string     `json:"full_name"`
	NIC         string     `json:"nic"`
	Gender      string     `json:"gender"`
	DateOfBirth civil.Date `json:"date_of_birth"`
	Age         int        `json:"age"`
}

type DocumentLine struct {
	TestCode       string    `json:"test_code"`
	TestName       string    `json:"test_name"`
	Value          float64   `json:"value"`
	Unit           string    `json:"unit,omitempty"`
	ReferenceRange string    `json:"reference_range,omitempty"`
	Flag           string    `json:"flag,omitempty"`
	ApprovedBy     string    `json:"approved_by"`
	ApprovedAt     time.Time `json:"approved_at"`
}

// blobKey is reports/<RPT>/<RPT>.json.
func blobKey(reportID string) string {
	return keyPrefix + "/" + reportID + "/" + reportID + documentFileSuffix
}
