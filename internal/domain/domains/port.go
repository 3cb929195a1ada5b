package domains

import "context"

// Repository port untuk domain yang dimonitor
type Repository interface {
	Get(ctx context.Context, tenant, id string) (*Domain, error)
	ListMonitored(ctx context.Context) ([]*Domain, error)
}
