package dashboard

import "context"

// Repository counts live rows of a table, optionally restricted to a set
// of statuses.
type Repository interface {
	Count(ctx context.Context, table string, statuses ...string) (int, error)
}
