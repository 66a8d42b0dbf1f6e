package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilab/lims/internal/platform/db"
)

type catalogRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &catalogRepoPG{pool: pool}
}

const defCols = `code, name, sample_type, unit, reference_range, price, active, created_at, updated_at`

func (r *catalogRepoPG) Create(ctx context.Context, d *TestDefinition) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO test_definitions (code, name, sample_type, unit, reference_range, price, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		d.Code, d.Name, d.SampleType, d.Unit, d.ReferenceRange, d.Price, d.Active,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.Translate(err, "test definition")
}

func (r *catalogRepoPG) Get(ctx context.Context, code string) (*TestDefinition, error) {
	d, err := scanDef(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+defCols+` FROM test_definitions WHERE code = $1`, code))
	return d, db.Translate(err, "test definition")
}

func (r *catalogRepoPG) GetMany(ctx context.Context, codes []string) ([]*TestDefinition, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+defCols+` FROM test_definitions WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, err
	}
	return scanDefs(rows)
}

func (r *catalogRepoPG) Update(ctx context.Context, d *TestDefinition) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE test_definitions SET name=$2, sample_type=$3, unit=$4, reference_range=$5, price=$6,
			active=$7, updated_at=NOW()
		WHERE code = $1
		RETURNING created_at, updated_at`,
		d.Code, d.Name, d.SampleType, d.Unit, d.ReferenceRange, d.Price, d.Active,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.Translate(err, "test definition")
}

func (r *catalogRepoPG) Upsert(ctx context.Context, d *TestDefinition) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO test_definitions (code, name, sample_type, unit, reference_range, price, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (code) DO UPDATE SET name=EXCLUDED.name, sample_type=EXCLUDED.sample_type,
			unit=EXCLUDED.unit, reference_range=EXCLUDED.reference_range, price=EXCLUDED.price,
			active=EXCLUDED.active, updated_at=NOW()
		RETURNING created_at, updated_at`,
		d.Code, d.Name, d.SampleType, d.Unit, d.ReferenceRange, d.Price, d.Active,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.Translate(err, "test definition")
}

func (r *catalogRepoPG) List(ctx context.Context, activeOnly bool) ([]*TestDefinition, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+defCols+` FROM test_definitions WHERE active OR NOT $1 ORDER BY code`, activeOnly)
	if err != nil {
		return nil, err
	}
	return scanDefs(rows)
}

func scanDef(row pgx.Row) (*TestDefinition, error) {
	var d TestDefinition
	if err := row.Scan(&d.Code, &d.Name, &d.SampleType, &d.Unit, &d.ReferenceRange, &d.Price, &d.Active,
		&d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDefs(rows pgx.Rows) ([]*TestDefinition, error) {
	defer rows.Close()
	var out []*TestDefinition
	for rows.Next() {
		d, err := scanDef(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
