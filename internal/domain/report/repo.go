package report

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	SoftDelete(ctx context.Context, id uuid.UUID, by string) error
	List(ctx context.Context, patientID *uuid.UUID, limit, offset int) ([]*Report, int, error)
}
