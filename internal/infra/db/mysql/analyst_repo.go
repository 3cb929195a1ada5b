package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/bryanwahyu/mailposture/internal/domain/analyst"
)

type AnalystRepository struct {
	db *sql.DB
}

func NewAnalystRepository(db *sql.DB) *AnalystRepository {
	return &AnalystRepository{db: db}
}

const analysisColumns = `id, tenant_id, scan_id, domain, result_json, created_at`

// Save inserts an analysis record
func (r *AnalystRepository) Save(ctx context.Context, a *domain.Analysis) error {
	const q = `
INSERT INTO posture_analyses
  (` + analysisColumns + `)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  scan_id=VALUES(scan_id), domain=VALUES(domain), result_json=VALUES(result_json);
`
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, q,
		a.ID, stringOrDash(a.TenantID), stringOrDash(a.ScanID), stringOrDash(a.Domain),
		jsonOrEmpty(a.Result), createdAt.UTC())
	return err
}

// Paginate returns a page of analysis records ordered by created_at desc
func (r *AnalystRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Analysis, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT ` + analysisColumns + `
FROM posture_analyses
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, stringOrDash(tenant), pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestByScan returns the newest analysis of a scan, nil if it was never analyzed.
func (r *AnalystRepository) LatestByScan(ctx context.Context, tenant string, scanID string) (*domain.Analysis, error) {
	const q = `
SELECT ` + analysisColumns + `
FROM posture_analyses
WHERE tenant_id=? AND scan_id=?
ORDER BY created_at DESC, id DESC
LIMIT 1;
`
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, stringOrDash(tenant), scanID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func scanAnalysis(row rowScanner) (*domain.Analysis, error) {
	var a domain.Analysis
	if err := row.Scan(&a.ID, &a.TenantID, &a.ScanID, &a.Domain, &a.Result, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
