package catalog

import "context"

type Repository interface {
	Create(ctx context.Context, d *TestDefinition) error
	Get(ctx context.Context, code string) (*TestDefinition, error)
	GetMany(ctx context.Context, codes []string) ([]*TestDefinition, error)
	Update(ctx context.Context, d *TestDefinition) error
	Upsert(ctx context.Context, d *TestDefinition) error
	List(ctx context.Context, activeOnly bool) ([]*TestDefinition, error)
}
