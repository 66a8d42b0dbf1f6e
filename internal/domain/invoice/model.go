package invoice

import (
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/medilab/lims/pkg/civil"
)

const (
	StatusPending   = "Pending"
	StatusPaid      = "Paid"
	StatusPartial   = "Partial"
	StatusOverdue   = "Overdue"
	StatusCancelled = "Cancelled"
)

var validStatuses = map[string]bool{
	StatusPending: true, StatusPaid: true, StatusPartial: true, StatusOverdue: true, StatusCancelled: true,
}

// Item is one billed line. TestCode optionally ties it to the catalog.
type Item struct {
	Description string  `json:"description"`
	TestCode    string  `json:"test_code,omitempty"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

func (i Item) Amount() float64 { return round2(i.Price * float64(i.Quantity)) }

// Invoice maps to the invoices table. Items are stored as JSONB.
type Invoice struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	InvoiceID    string      `db:"invoice_id" json:"invoice_id"`
	PatientID    uuid.UUID   `db:"patient_id" json:"patient_id"`
	TestOrderID  *uuid.UUID  `db:"test_order_id" json:"test_order_id,omitempty"`
	Items        []Item      `db:"items" json:"items"`
	Subtotal     float64     `db:"subtotal" json:"subtotal"`
	Tax          float64     `db:"tax" json:"tax"`
	Discount     float64     `db:"discount" json:"discount"`
	Total        float64     `db:"total" json:"total"`
	AmountPaid   float64     `db:"amount_paid" json:"amount_paid"`
	Status       string      `db:"status" json:"status"`
	DueDate      *civil.Date `db:"due_date" json:"due_date,omitempty"`
	Notes        string      `db:"notes" json:"notes,omitempty"`
	CreatedBy    string      `db:"created_by" json:"created_by"`
	UpdatedBy    string      `db:"updated_by" json:"updated_by"`
	IsDeleted    bool        `db:"is_deleted" json:"-"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
	TotalDisplay string      `db:"-" json:"total_display"`
}

// Outstanding is what is still owed.
func (inv *Invoice) Outstanding() float64 {
	return math.Max(0, round2(inv.Total-inv.AmountPaid))
}

// Filter narrows List; zero values match all.
type Filter struct {
	PatientID *uuid.UUID
	Status    string
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Totals computes subtotal and total from the items.
func Totals(items []Item, tax, discount float64) (subtotal, total float64) {
	for _, it := range items {
		subtotal += it.Amount()
	}
	subtotal = round2(subtotal)
	return subtotal, round2(subtotal + tax - discount)
}

// DeriveStatus computes the payment status. Cancelled is never derived.
func DeriveStatus(total, paid float64, due *civil.Date, now time.Time) string {
	if paid >= total {
		return StatusPaid
	}
	if due != nil && !due.IsZero() && due.BeforeDay(now) {
		return StatusOverdue
	}
	if paid > 0 {
		return StatusPartial
	}
	return StatusPending
}

var printer = message.NewPrinter(language.English)

// FormatLKR renders an amount as "LKR 1,234.50".
func FormatLKR(amount float64) string {
	return printer.Sprintf("LKR %.2f", amount)
}

// decorate fills response-only fields.
func decorate(inv *Invoice) *Invoice {
	inv.TotalDisplay = FormatLKR(inv.Total)
	return inv
}
