package lab

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilab/lims/internal/platform/db"
)

// filterClause builds the WHERE clause shared by the sample and order lists.
func filterClause(patientID *uuid.UUID, status string) (string, []interface{}) {
	where := []string{"NOT is_deleted"}
	var args []interface{}
	if patientID != nil {
		args = append(args, *patientID)
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	return strings.Join(where, " AND "), args
}

func notFoundIfNone(tagRows int64, what string) error {
	if tagRows == 0 {
		return db.Translate(pgx.ErrNoRows, what)
	}
	return nil
}

// -- samples --

type sampleRepoPG struct {
	pool *pgxpool.Pool
}

func NewSampleRepo(pool *pgxpool.Pool) SampleRepository {
	return &sampleRepoPG{pool: pool}
}

const sampleCols = `id, sample_id, patient_id, sample_type, collection_date, collected_by, status, notes,
	is_deleted, updated_by, created_at, updated_at`

func (r *sampleRepoPG) Create(ctx context.Context, s *Sample) error {
	s.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO samples (id, sample_id, patient_id, sample_type, collection_date, collected_by, status,
			notes, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$6)
		RETURNING created_at, updated_at`,
		s.ID, s.SampleID, s.PatientID, s.SampleType, s.CollectionDate, s.CollectedBy, s.Status, s.Notes,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return db.TranslateInsert(err, "samples_sample_id_key", "sample")
}

func (r *sampleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Sample, error) {
	s, err := scanSample(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+sampleCols+` FROM samples WHERE id = $1 AND NOT is_deleted`, id))
	return s, db.Translate(err, "sample")
}

func (r *sampleRepoPG) Update(ctx context.Context, s *Sample) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE samples SET sample_type=$2, collection_date=$3, status=$4, notes=$5, updated_by=$6,
			updated_at=NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING updated_at`,
		s.ID, s.SampleType, s.CollectionDate, s.Status, s.Notes, s.UpdatedBy,
	).Scan(&s.UpdatedAt)
	return db.Translate(err, "sample")
}

func (r *sampleRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, by string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE samples SET is_deleted = TRUE, updated_by = $2, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted`, id, by)
	if err != nil {
		return db.Translate(err, "sample")
	}
	return notFoundIfNone(tag.RowsAffected(), "sample")
}

func (r *sampleRepoPG) List(ctx context.Context, f SampleFilter, limit, offset int) ([]*Sample, int, error) {
	cond, args := filterClause(f.PatientID, f.Status)
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM samples WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT `+sampleCols+` FROM samples WHERE %s
		ORDER BY collection_date DESC LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func scanSample(row pgx.Row) (*Sample, error) {
	var s Sample
	err := row.Scan(&s.ID, &s.SampleID, &s.PatientID, &s.SampleType, &s.CollectionDate, &s.CollectedBy,
		&s.Status, &s.Notes, &s.IsDeleted, &s.UpdatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// -- test orders --

type orderRepoPG struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) OrderRepository {
	return &orderRepoPG{pool: pool}
}

const orderCols = `id, test_order_id, patient_id, sample_id, tests, ordered_by, status, notes,
	is_deleted, updated_by, created_at, updated_at`

func (r *orderRepoPG) Create(ctx context.Context, o *TestOrder) error {
	o.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO test_orders (id, test_order_id, patient_id, sample_id, tests, ordered_by, status, notes,
			updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$6)
		RETURNING created_at, updated_at`,
		o.ID, o.TestOrderID, o.PatientID, o.SampleID, o.Tests, o.OrderedBy, o.Status, o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	return db.TranslateInsert(err, "test_orders_test_order_id_key", "test order")
}

func (r *orderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TestOrder, error) {
	o, err := scanOrder(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orderCols+` FROM test_orders WHERE id = $1 AND NOT is_deleted`, id))
	return o, db.Translate(err, "test order")
}

func (r *orderRepoPG) Update(ctx context.Context, o *TestOrder) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE test_orders SET sample_id=$2, tests=$3, status=$4, notes=$5, updated_by=$6, updated_at=NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING updated_at`,
		o.ID, o.SampleID, o.Tests, o.Status, o.Notes, o.UpdatedBy,
	).Scan(&o.UpdatedAt)
	return db.Translate(err, "test order")
}

func (r *orderRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, by string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE test_orders SET is_deleted = TRUE, updated_by = $2, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted`, id, by)
	if err != nil {
		return db.Translate(err, "test order")
	}
	return notFoundIfNone(tag.RowsAffected(), "test order")
}

func (r *orderRepoPG) List(ctx context.Context, f OrderFilter, limit, offset int) ([]*TestOrder, int, error) {
	cond, args := filterClause(f.PatientID, f.Status)
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM test_orders WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT `+orderCols+` FROM test_orders WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*TestOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func scanOrder(row pgx.Row) (*TestOrder, error) {
	var o TestOrder
	err := row.Scan(&o.ID, &o.TestOrderID, &o.PatientID, &o.SampleID, &o.Tests, &o.OrderedBy, &o.Status,
		&o.Notes, &o.IsDeleted, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// -- test results --

type resultRepoPG struct {
	pool *pgxpool.Pool
}

func NewResultRepo(pool *pgxpool.Pool) ResultRepository {
	return &resultRepoPG{pool: pool}
}

const resultCols = `r.id, r.test_order_id, r.test_code, r.result_value, r.unit, r.reference_range, r.flag,
	r.status, r.entered_by, r.approved_by, r.approved_at, r.rejection_reason, r.return_reason,
	r.is_deleted, r.updated_by, r.created_at, r.updated_at`

func (r *resultRepoPG) Create(ctx context.Context, res *TestResult) error {
	res.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO test_results (id, test_order_id, test_code, result_value, unit, reference_range, flag,
			status, entered_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		RETURNING created_at, updated_at`,
		res.ID, res.TestOrderID, res.TestCode, res.ResultValue, res.Unit, res.ReferenceRange, res.Flag,
		res.Status, res.EnteredBy,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	return db.Translate(err, "test result")
}

func (r *resultRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TestResult, error) {
	res, err := scanResult(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+resultCols+` FROM test_results r WHERE r.id = $1 AND NOT r.is_deleted`, id))
	return res, db.Translate(err, "test result")
}

func (r *resultRepoPG) GetLive(ctx context.Context, orderID uuid.UUID, code string) (*TestResult, error) {
	res, err := scanResult(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+resultCols+` FROM test_results r
		WHERE r.test_order_id = $1 AND r.test_code = $2 AND NOT r.is_deleted`, orderID, code))
	return res, db.Translate(err, "test result")
}

func (r *resultRepoPG) Update(ctx context.Context, res *TestResult) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE test_results SET result_value=$2, unit=$3, reference_range=$4, flag=$5, status=$6,
			entered_by=$7, approved_by=$8, approved_at=$9, rejection_reason=$10, return_reason=$11,
			updated_by=$12, updated_at=NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING updated_at`,
		res.ID, res.ResultValue, res.Unit, res.ReferenceRange, res.Flag, res.Status, res.EnteredBy,
		res.ApprovedBy, res.ApprovedAt, res.RejectionReason, res.ReturnReason, res.UpdatedBy,
	).Scan(&res.UpdatedAt)
	return db.Translate(err, "test result")
}

func (r *resultRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, by string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE test_results SET is_deleted = TRUE, updated_by = $2, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted`, id, by)
	if err != nil {
		return db.Translate(err, "test result")
	}
	return notFoundIfNone(tag.RowsAffected(), "test result")
}

func (r *resultRepoPG) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*TestResult, error) {
	return r.query(ctx, `SELECT `+resultCols+` FROM test_results r
		WHERE r.test_order_id = $1 AND NOT r.is_deleted ORDER BY r.test_code`, orderID)
}

func (r *resultRepoPG) ListByStatus(ctx context.Context, status string, asc bool, limit, offset int) ([]*TestResult, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM test_results WHERE status = $1 AND NOT is_deleted`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	dir := "DESC"
	if asc {
		dir = "ASC"
	}
	out, err := r.query(ctx, `SELECT `+resultCols+` FROM test_results r
		WHERE r.status = $1 AND NOT r.is_deleted
		ORDER BY r.updated_at `+dir+` LIMIT $2 OFFSET $3`, status, limit, offset)
	return out, total, err
}

func (r *resultRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status string) ([]*TestResult, error) {
	sql := `SELECT ` + resultCols + ` FROM test_results r
		JOIN test_orders o ON o.id = r.test_order_id
		WHERE o.patient_id = $1 AND NOT o.is_deleted AND NOT r.is_deleted`
	args := []interface{}{patientID}
	if status != "" {
		sql += ` AND r.status = $2`
		args = append(args, status)
	}
	return r.query(ctx, sql+` ORDER BY r.updated_at DESC`, args...)
}

func (r *resultRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*TestResult, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TestResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanResult(row pgx.Row) (*TestResult, error) {
	var res TestResult
	err := row.Scan(&res.ID, &res.TestOrderID, &res.TestCode, &res.ResultValue, &res.Unit, &res.ReferenceRange,
		&res.Flag, &res.Status, &res.EnteredBy, &res.ApprovedBy, &res.ApprovedAt, &res.RejectionReason,
		&res.ReturnReason, &res.IsDeleted, &res.UpdatedBy, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
