package postgres

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/bryanwahyu/mailposture/internal/domain/domains"
)

type DomainRepository struct {
	db *sql.DB
}

func NewDomainRepository(db *sql.DB) *DomainRepository { return &DomainRepository{db: db} }

const domainSelect = `
SELECT d.id, d.tenant_id, d.name, d.owner_id, COALESCE(o.plan, ''), d.monitoring, d.created_at
FROM posture_domains d
LEFT JOIN posture_owners o ON o.id = d.owner_id`

func (r *DomainRepository) Get(ctx context.Context, tenant, id string) (*domain.Domain, error) {
	d, err := scanDomain(r.db.QueryRowContext(ctx, domainSelect+` WHERE d.tenant_id=$1 AND d.id=$2 LIMIT 1;`, stringOrDash(tenant), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (r *DomainRepository) ListMonitored(ctx context.Context) ([]*domain.Domain, error) {
	rows, err := r.db.QueryContext(ctx, domainSelect+` WHERE d.monitoring ORDER BY d.created_at ASC, d.id ASC;`)
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
