package lab

import (
	"context"

	"github.com/google/uuid"
)

// Reads never return soft-deleted rows.

type SampleRepository interface {
	Create(ctx context.Context, s *Sample) error
	GetByID(ctx context.Context, id uuid.UUID) (*Sample, error)
	Update(ctx context.Context, s *Sample) error
	SoftDelete(ctx context.Context, id uuid.UUID, by string) error
	List(ctx context.Context, f SampleFilter, limit, offset int) ([]*Sample, int, error)
}

type OrderRepository interface {
	Create(ctx context.Context, o *TestOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*TestOrder, error)
	Update(ctx context.Context, o *TestOrder) error
	SoftDelete(ctx context.Context, id uuid.UUID, by string) error
	List(ctx context.Context, f OrderFilter, limit, offset int) ([]*TestOrder, int, error)
}

type ResultRepository interface {
	Create(ctx context.Context, r *TestResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*TestResult, error)
	// GetLive returns the live result for one test of an order.
	GetLive(ctx context.Context, orderID uuid.UUID, code string) (*TestResult, error)
	Update(ctx context.Context, r *TestResult) error
	SoftDelete(ctx context.Context, id uuid.UUID, by string) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*TestResult, error)
	// ListByStatus orders by updated_at, oldest first when asc is set.
	ListByStatus(ctx context.Context, status string, asc bool, limit, offset int) ([]*TestResult, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, status string) ([]*TestResult, error)
}
