package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilab/lims/internal/platform/db"
	"github.com/medilab/lims/pkg/civil"
)

type inventoryRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &inventoryRepoPG{pool: pool}
}

const itemCols = `id, item_name, category, quantity, unit, reorder_level, expiry_date, supplier, cost_per_unit,
	status, is_deleted, created_by, updated_by, created_at, updated_at`

func (r *inventoryRepoPG) Create(ctx context.Context, it *Item) error {
	it.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO inventory_items (id, item_name, category, quantity, unit, reorder_level, expiry_date,
			supplier, cost_per_unit, status, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		RETURNING created_at, updated_at`,
		it.ID, it.ItemName, it.Category, it.Quantity, it.Unit, it.ReorderLevel, it.ExpiryDate.TimePtr(),
		it.Supplier, it.CostPerUnit, it.Status, it.CreatedBy,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
	return db.Translate(err, "inventory item")
}

func (r *inventoryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := scanItem(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+itemCols+` FROM inventory_items WHERE id = $1 AND NOT is_deleted`, id))
	return it, db.Translate(err, "inventory item")
}

func (r *inventoryRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := scanItem(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+itemCols+` FROM inventory_items WHERE id = $1 AND NOT is_deleted FOR UPDATE`, id))
	return it, db.Translate(err, "inventory item")
}

func (r *inventoryRepoPG) Update(ctx context.Context, it *Item) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE inventory_items SET item_name=$2, category=$3, quantity=$4, unit=$5, reorder_level=$6,
			expiry_date=$7, supplier=$8, cost_per_unit=$9, status=$10, updated_by=$11, updated_at=NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING updated_at`,
		it.ID, it.ItemName, it.Category, it.Quantity, it.Unit, it.ReorderLevel, it.ExpiryDate.TimePtr(),
		it.Supplier, it.CostPerUnit, it.Status, it.UpdatedBy,
	).Scan(&it.UpdatedAt)
	return db.Translate(err, "inventory item")
}

func (r *inventoryRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, by string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE inventory_items SET is_deleted = TRUE, updated_by = $2, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted`, id, by)
	if err != nil {
		return db.Translate(err, "inventory item")
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, "inventory item")
	}
	return nil
}

func (r *inventoryRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Item, int, error) {
	where := []string{"NOT is_deleted"}
	var args []interface{}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	items, err := r.query(ctx, fmt.Sprintf(`SELECT `+itemCols+` FROM inventory_items WHERE %s
		ORDER BY item_name LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	return items, total, err
}

func (r *inventoryRepoPG) LowStock(ctx context.Context) ([]*Item, error) {
	return r.query(ctx, `SELECT `+itemCols+` FROM inventory_items
		WHERE NOT is_deleted AND status IN ($1, $2) ORDER BY quantity ASC, item_name`,
		StatusLowStock, StatusOutOfStock)
}

func (r *inventoryRepoPG) Expired(ctx context.Context) ([]*Item, error) {
	return r.query(ctx, `SELECT `+itemCols+` FROM inventory_items
		WHERE NOT is_deleted AND status = $1 ORDER BY expiry_date ASC`, StatusExpired)
}

func (r *inventoryRepoPG) ListExpiring(ctx context.Context, day time.Time) ([]*Item, error) {
	return r.query(ctx, `SELECT `+itemCols+` FROM inventory_items
		WHERE NOT is_deleted AND status <> $1 AND expiry_date <= $2`, StatusExpired, civil.Of(day).Time)
}

func (r *inventoryRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Item, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	var expiry *time.Time
	err := row.Scan(&it.ID, &it.ItemName, &it.Category, &it.Quantity, &it.Unit, &it.ReorderLevel, &expiry,
		&it.Supplier, &it.CostPerUnit, &it.Status, &it.IsDeleted, &it.CreatedBy, &it.UpdatedBy,
		&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	it.ExpiryDate = civil.Ptr(expiry)
	return &it, nil
}
