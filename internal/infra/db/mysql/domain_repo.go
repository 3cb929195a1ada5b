package mysql

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/bryanwahyu/mailposture/internal/domain/domains"
)

// DomainRepository reads customer domains joined with the owner's plan.
type DomainRepository struct {
	db *sql.DB
}

func NewDomainRepository(db *sql.DB) *DomainRepository { return &DomainRepository{db: db} }

const domainSelect = `
SELECT d.id, d.tenant_id, d.name, d.owner_id, COALESCE(o.plan, ''), d.monitoring, d.created_at
FROM posture_domains d
LEFT JOIN posture_owners o ON o.id = d.owner_id`

// Get returns nil when the domain does not exist for the tenant.
func (r *DomainRepository) Get(ctx context.Context, tenant, id string) (*domain.Domain, error) {
	q := domainSelect + ` WHERE d.tenant_id=? AND d.id=? LIMIT 1;`
	d, err := scanDomain(r.db.QueryRowContext(ctx, q, stringOrDash(tenant), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// ListMonitored returns every domain flagged for monitoring, oldest first.
func (r *DomainRepository) ListMonitored(ctx context.Context) ([]*domain.Domain, error) {
	q := domainSelect + ` WHERE d.monitoring = TRUE ORDER BY d.created_at ASC, d.id ASC;`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDomain(row rowScanner) (*domain.Domain, error) {
	var d domain.Domain
	if err := row.Scan(&d.ID, &d.TenantID, &d.Name, &d.OwnerID, &d.OwnerPlan, &d.Monitoring, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}
