package activitylog

import "context"

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Entry, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Entry, error)
	ListAll(ctx context.Context, limit, offset int) ([]*Entry, int, error)
}
