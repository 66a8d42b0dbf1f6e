package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	// SoftDelete hides the invoice and marks it Cancelled.
	SoftDelete(ctx context.Context, id uuid.UUID, by string) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Invoice, int, error)
	// ListPastDue returns open invoices due before day that are not yet Overdue.
	ListPastDue(ctx context.Context, day time.Time) ([]*Invoice, error)
}
