package activitylog

import (
	"time"

	"github.com/google/uuid"
)

// Entity types recorded in the log.
const (
	EntityPatient    = "patient"
	EntitySample     = "sample"
	EntityTestOrder  = "test_order"
	EntityTestResult = "test_result"
	EntityInvoice    = "invoice"
	EntityInventory  = "inventory"
	EntityUser       = "user"
	EntityReport     = "report"
	EntityCatalog    = "test_definition"
)

// Actions shared by most entities. Workflow-specific verbs (submit, approve,
// reject, return) are passed as plain strings.
const (
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionStatusChange = "status_change"
)

// DefaultLimit caps list queries that do not ask for a size.
const DefaultLimit = 100

// Entry maps to the activity_logs table.
type Entry struct {
	ID         uuid.UUID              `db:"id" json:"id"`
	LogID      string                 `db:"log_id" json:"log_id"`
	UserID     string                 `db:"user_id" json:"user_id"`
	EntityType string                 `db:"entity_type" json:"entity_type"`
	Action     string                 `db:"action" json:"action"`
	EntityID   string                 `db:"entity_id" json:"entity_id"`
	Details    map[string]interface{} `db:"details" json:"details,omitempty"`
	Timestamp  time.Time              `db:"timestamp" json:"timestamp"`
}
