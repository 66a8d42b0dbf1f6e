package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilab/lims/internal/platform/db"
	"github.com/medilab/lims/pkg/civil"
)

type invoiceRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &invoiceRepoPG{pool: pool}
}

const invoiceCols = `id, invoice_id, patient_id, test_order_id, items, subtotal, tax, discount, total,
	amount_paid, status, due_date, notes, created_by, updated_by, is_deleted, created_at, updated_at`

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	inv.ID = uuid.New()
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO invoices (id, invoice_id, patient_id, test_order_id, items, subtotal, tax, discount, total,
			amount_paid, status, due_date, notes, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
		RETURNING created_at, updated_at`,
		inv.ID, inv.InvoiceID, inv.PatientID, inv.TestOrderID, items, inv.Subtotal, inv.Tax, inv.Discount,
		inv.Total, inv.AmountPaid, inv.Status, inv.DueDate.TimePtr(), inv.Notes, inv.CreatedBy,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	return db.TranslateInsert(err, "invoices_invoice_id_key", "invoice")
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = $1 AND NOT is_deleted`, id))
	return inv, db.Translate(err, "invoice")
}

func (r *invoiceRepoPG) Update(ctx context.Context, inv *Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE invoices SET test_order_id=$2, items=$3, subtotal=$4, tax=$5, discount=$6, total=$7,
			amount_paid=$8, status=$9, due_date=$10, notes=$11, updated_by=$12, updated_at=NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING updated_at`,
		inv.ID, inv.TestOrderID, items, inv.Subtotal, inv.Tax, inv.Discount, inv.Total, inv.AmountPaid,
		inv.Status, inv.DueDate.TimePtr(), inv.Notes, inv.UpdatedBy,
	).Scan(&inv.UpdatedAt)
	return db.Translate(err, "invoice")
}

func (r *invoiceRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, by string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE invoices SET is_deleted = TRUE, status = $2, updated_by = $3, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted`, id, StatusCancelled, by)
	if err != nil {
		return db.Translate(err, "invoice")
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, "invoice")
	}
	return nil
}

func (r *invoiceRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Invoice, int, error) {
	where := []string{"NOT is_deleted"}
	var args []interface{}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT `+invoiceCols+` FROM invoices WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collect(rows)
	return out, total, err
}

func (r *invoiceRepoPG) ListPastDue(ctx context.Context, day time.Time) ([]*Invoice, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+invoiceCols+` FROM invoices
		WHERE NOT is_deleted AND status IN ($1, $2) AND due_date < $3
		ORDER BY due_date`, StatusPending, StatusPartial, civil.Of(day).Time)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Invoice, error) {
	defer rows.Close()
	var out []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var items []byte
	var due *time.Time
	err := row.Scan(&inv.ID, &inv.InvoiceID, &inv.PatientID, &inv.TestOrderID, &items, &inv.Subtotal, &inv.Tax,
		&inv.Discount, &inv.Total, &inv.AmountPaid, &inv.Status, &due, &inv.Notes, &inv.CreatedBy,
		&inv.UpdatedBy, &inv.IsDeleted, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	inv.DueDate = civil.Ptr(due)
	return &inv, nil
}
