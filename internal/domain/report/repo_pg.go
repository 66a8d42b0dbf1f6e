package report

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilab/lims/internal/platform/db"
)

type reportRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &reportRepoPG{pool: pool}
}

const reportCols = `id, report_id, patient_id, test_order_id, report_type, file_path, content_type, generated_by,
	is_deleted, updated_by, created_at, updated_at`

func (r *reportRepoPG) Create(ctx context.Context, rep *Report) error {
	rep.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO reports (id, report_id, patient_id, test_order_id, report_type, file_path, content_type,
			generated_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
		RETURNING created_at, updated_at`,
		rep.ID, rep.ReportID, rep.PatientID, rep.TestOrderID, rep.ReportType, rep.FilePath, rep.ContentType,
		rep.GeneratedBy,
	).Scan(&rep.CreatedAt, &rep.UpdatedAt)
	return db.TranslateInsert(err, "reports_report_id_key", "report")
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	rep, err := scanReport(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+reportCols+` FROM reports WHERE id = $1 AND NOT is_deleted`, id))
	return rep, db.Translate(err, "report")
}

func (r *reportRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, by string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE reports SET is_deleted = TRUE, updated_by = $2, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted`, id, by)
	if err != nil {
		return db.Translate(err, "report")
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, "report")
	}
	return nil
}

func (r *reportRepoPG) List(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*Report, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM reports
		WHERE NOT is_deleted AND ($1::uuid IS NULL OR patient_id = $1)`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+reportCols+` FROM reports
		WHERE NOT is_deleted AND ($1::uuid IS NULL OR patient_id = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rep)
	}
	return out, total, rows.Err()
}

func scanReport(row pgx.Row) (*Report, error) {
	var rep Report
	err := row.Scan(&rep.ID, &rep.ReportID, &rep.PatientID, &rep.TestOrderID, &rep.ReportType, &rep.FilePath,
		&rep.ContentType, &rep.GeneratedBy, &rep.IsDeleted, &rep.UpdatedBy, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}
