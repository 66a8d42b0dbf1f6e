package dashboard

// Tables the dashboard counts rows of.
const (
	TableUsers     = "users"
	TablePatients  = "patients"
	TableSamples   = "samples"
	TableOrders    = "test_orders"
	TableResults   = "test_results"
	TableInvoices  = "invoices"
	TableInventory = "inventory_items"
)

type AdminStats struct {
	TotalUsers    int `json:"total_users"`
	TotalPatients int `json:"total_patients"`
	TotalOrders   int `json:"total_test_orders"`
	LowStockItems int `json:"low_stock_items"`
}

type StaffStats struct {
	PendingSamples  int `json:"pending_samples"`
	ActiveOrders    int `json:"active_test_orders"`
	PendingInvoices int `json:"pending_invoices"`
}

type DoctorStats struct {
	PendingApprovals int `json:"pending_approvals"`
}
