package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, it *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	// GetForUpdate is GetByID holding a row lock until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Item, error)
	Update(ctx context.Context, it *Item) error
	SoftDelete(ctx context.Context, id uuid.UUID, by string) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Item, int, error)
	// LowStock lists Low Stock and Out of Stock items, smallest quantity first.
	LowStock(ctx context.Context) ([]*Item, error)
	// Expired lists Expired items, earliest expiry first.
	Expired(ctx context.Context) ([]*Item, error)
	// ListExpiring returns items not yet marked Expired whose expiry is on or
	// before day.
	ListExpiring(ctx context.Context, day time.Time) ([]*Item, error)
}
