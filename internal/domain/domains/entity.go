package domains

import "time"

// Domain is a customer domain, optionally flagged for scheduled monitoring.
type Domain struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Name       string    `json:"name"`
	OwnerID    string    `json:"owner_id"`
	OwnerPlan  string    `json:"owner_plan"`
	Monitoring bool      `json:"monitoring"`
	CreatedAt  time.Time `json:"created_at"`
}
