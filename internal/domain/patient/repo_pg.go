package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilab/lims/internal/platform/db"
)

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, patient_id, full_name, nic, date_of_birth, gender, phone, email, address,
	status, is_deleted, created_by, updated_by, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (id, patient_id, full_name, nic, date_of_birth, gender, phone, email, address,
			status, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.FullName, p.NIC, p.DateOfBirth.Time, p.Gender, p.Phone, p.Email, p.Address,
		p.Status, p.CreatedBy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.TranslateInsert(err, "patients_patient_id_key", "patient")
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1 AND NOT is_deleted`, id))
	return p, db.Translate(err, "patient")
}

func (r *patientRepoPG) GetByNIC(ctx context.Context, nic string) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE nic = $1 AND NOT is_deleted`, nic))
	return p, db.Translate(err, "patient")
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patients SET full_name=$2, nic=$3, date_of_birth=$4, gender=$5, phone=$6, email=$7,
			address=$8, status=$9, updated_by=$10, updated_at=NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING updated_at`,
		p.ID, p.FullName, p.NIC, p.DateOfBirth.Time, p.Gender, p.Phone, p.Email, p.Address, p.Status, p.UpdatedBy,
	).Scan(&p.UpdatedAt)
	return db.Translate(err, "patient")
}

func (r *patientRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, by string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE patients SET is_deleted = TRUE, status = $2, updated_by = $3, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted`, id, StatusInactive, by)
	if err != nil {
		return db.Translate(err, "patient")
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, "patient")
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return r.Search(ctx, SearchParams{}, limit, offset)
}

func (r *patientRepoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Patient, int, error) {
	where := []string{"NOT is_deleted"}
	var args []interface{}
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if params.Name != "" {
		add("full_name ILIKE $%d", "%"+params.Name+"%")
	}
	if params.NIC != "" {
		add("nic ILIKE $%d", "%"+params.NIC+"%")
	}
	if params.Status != "" {
		add("status = $%d", params.Status)
	}
	cond := strings.Join(where, " AND ")

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT `+patientCols+` FROM patients WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.PatientID, &p.FullName, &p.NIC, &p.DateOfBirth.Time, &p.Gender, &p.Phone,
		&p.Email, &p.Address, &p.Status, &p.IsDeleted, &p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
