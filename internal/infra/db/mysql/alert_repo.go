package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/mailposture/internal/domain/alerts"
)

type AlertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) *AlertRepository { return &AlertRepository{db: db} }

// Save insert one alert row per changed record type
func (r *AlertRepository) Save(ctx context.Context, a *domain.Alert) error {
	const q = `
INSERT INTO posture_alerts
  (id, tenant_id, domain_id, domain, scan_id, previous_scan_id, record_type, old_value, new_value, severity, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
`
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, stringOrDash(a.TenantID), a.DomainID, a.Domain, a.ScanID, a.PreviousScanID,
		a.RecordType, a.OldValue, a.NewValue, string(a.Severity), created.UTC())
	return err
}

// ListByDomain newest first
func (r *AlertRepository) ListByDomain(ctx context.Context, tenant, domainID string, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, tenant_id, domain_id, domain, scan_id, previous_scan_id, record_type, old_value, new_value, severity, created_at
FROM posture_alerts
WHERE tenant_id=? AND domain_id=?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, stringOrDash(tenant), domainID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.ID, &a.TenantID, &a.DomainID, &a.Domain, &a.ScanID, &a.PreviousScanID,
			&a.RecordType, &a.OldValue, &a.NewValue, &a.Severity, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
