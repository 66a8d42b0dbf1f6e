package activitylog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilab/lims/internal/platform/db"
)

type entryRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &entryRepoPG{pool: pool}
}

const entryCols = `id, log_id, user_id, entity_type, action, entity_id, details, timestamp`

func (r *entryRepoPG) Create(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	_, err = db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO activity_logs (id, log_id, user_id, entity_type, action, entity_id, details, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.LogID, e.UserID, e.EntityType, e.Action, e.EntityID, details, e.Timestamp,
	)
	return db.TranslateInsert(err, "activity_logs_log_id_key", "activity log")
}

func (r *entryRepoPG) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Entry, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+entryCols+` FROM activity_logs
		WHERE entity_type = $1 AND entity_id = $2 ORDER BY timestamp DESC LIMIT $3`, entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *entryRepoPG) ListByUser(ctx context.Context, userID string, limit int) ([]*Entry, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+entryCols+` FROM activity_logs
		WHERE user_id = $1 ORDER BY timestamp DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *entryRepoPG) ListAll(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM activity_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+entryCols+` FROM activity_logs ORDER BY timestamp DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	entries, err := scanEntries(rows)
	return entries, total, err
}

func scanEntries(rows pgx.Rows) ([]*Entry, error) {
	defer rows.Close()
	var out []*Entry
	for rows.Next() {
		var e Entry
		var details []byte
		if err := rows.Scan(&e.ID, &e.LogID, &e.UserID, &e.EntityType, &e.Action, &e.EntityID, &details, &e.Timestamp); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode details of %s: %w", e.LogID, err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
