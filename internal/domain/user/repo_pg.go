package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilab/lims/internal/platform/apperr"
	"github.com/medilab/lims/internal/platform/db"
)

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &userRepoPG{pool: pool}
}

const userCols = `id, full_name, email, role, status, phone, patient_ref, password_hash, created_by, updated_by,
	created_at, updated_at`

func translate(err error) error {
	if name, ok := db.UniqueConstraint(err); ok && name == "users_email_key" {
		return apperr.Conflict("a user with this email already exists")
	}
	return db.Translate(err, "user")
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO users (id, full_name, email, role, status, phone, patient_ref, password_hash, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		RETURNING created_at, updated_at`,
		u.ID, u.FullName, u.Email, u.Role, u.Status, u.Phone, u.PatientRef, u.PasswordHash, u.CreatedBy,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return translate(err)
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	return u, db.Translate(err, "user")
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email))
	return u, db.Translate(err, "user")
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE users SET full_name=$2, email=$3, role=$4, status=$5, phone=$6, patient_ref=$7,
			password_hash=$8, updated_by=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.FullName, u.Email, u.Role, u.Status, u.Phone, u.PatientRef, u.PasswordHash, u.UpdatedBy,
	).Scan(&u.UpdatedAt)
	return translate(err)
}

func (r *userRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*User, int, error) {
	where := []string{"TRUE"}
	var args []interface{}
	if f.Role != "" {
		args = append(args, f.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT `+userCols+` FROM users WHERE %s
		ORDER BY full_name LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Role, &u.Status, &u.Phone, &u.PatientRef, &u.PasswordHash,
		&u.CreatedBy, &u.UpdatedBy, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
