package alerts

import "context"

// Repository port untuk alert
type Repository interface {
	Save(ctx context.Context, a *Alert) error
	ListByDomain(ctx context.Context, tenant, domainID string, limit int) ([]*Alert, error)
}

// Notifier dispatches a change notification. Transport is up to the adapter.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
