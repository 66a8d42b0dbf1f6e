package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/medilab/lims/pkg/civil"
)

const (
	StatusAvailable  = "Available"
	StatusLowStock   = "Low Stock"
	StatusOutOfStock = "Out of Stock"
	StatusExpired    = "Expired"
)

var Categories = []string{"Reagent", "Consumable", "Equipment", "Kit", "Other"}

func validCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Item maps to the inventory_items table. Status is derived, never set by
// callers.
type Item struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	ItemName     string      `db:"item_name" json:"item_name"`
	Category     string      `db:"category" json:"category"`
	Quantity     float64     `db:"quantity" json:"quantity"`
	Unit         string      `db:"unit" json:"unit"`
	ReorderLevel float64     `db:"reorder_level" json:"reorder_level"`
	ExpiryDate   *civil.Date `db:"expiry_date" json:"expiry_date,omitempty"`
	Supplier     string      `db:"supplier" json:"supplier,omitempty"`
	CostPerUnit  float64     `db:"cost_per_unit" json:"cost_per_unit"`
	Status       string      `db:"status" json:"status"`
	IsDeleted    bool        `db:"is_deleted" json:"-"`
	CreatedBy    string      `db:"created_by" json:"created_by"`
	UpdatedBy    string      `db:"updated_by" json:"updated_by"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// DeriveStatus computes the stock status. An item is Expired from its expiry
// day onwards, whatever its quantity.
func DeriveStatus(quantity, reorderLevel float64, expiry *civil.Date, now time.Time) string {
	if expiry != nil && !expiry.IsZero() && expiry.NotAfterDay(now) {
		return StatusExpired
	}
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= reorderLevel:
		return StatusLowStock
	default:
		return StatusAvailable
	}
}

type Filter struct {
	Category string
	Status   string
}
