package dashboard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilab/lims/internal/platform/db"
)

// users has no soft-delete column; deactivated accounts still count.
var countable = map[string]string{
	TableUsers:     "TRUE",
	TablePatients:  "NOT is_deleted",
	TableSamples:   "NOT is_deleted",
	TableOrders:    "NOT is_deleted",
	TableResults:   "NOT is_deleted",
	TableInvoices:  "NOT is_deleted",
	TableInventory: "NOT is_deleted",
}

type countRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &countRepoPG{pool: pool}
}

func (r *countRepoPG) Count(ctx context.Context, table string, statuses ...string) (int, error) {
	live, ok := countable[table]
	if !ok {
		return 0, fmt.Errorf("dashboard: table %q is not countable", table)
	}
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, table, live)
	var args []interface{}
	if len(statuses) > 0 {
		q += ` AND status = ANY($1)`
		args = append(args, statuses)
	}
	var n int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
