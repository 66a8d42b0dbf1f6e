package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads never return soft-deleted rows.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByNIC(ctx context.Context, nic string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SoftDelete(ctx context.Context, id uuid.UUID, by string) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Patient, int, error)
}
