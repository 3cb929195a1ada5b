package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	domain "github.com/bryanwahyu/mailposture/internal/domain/scans"
)

type ScanRepository struct{ db *sql.DB }

func NewScanRepository(db *sql.DB) *ScanRepository { return &ScanRepository{db: db} }

// Save insert Scan record, re-saving an id only refreshes artifact_url
func (r *ScanRepository) Save(ctx context.Context, s *domain.ScanResult) error {
	const q = `
INSERT INTO posture_scans
(id, tenant_id, domain_id, domain, scanned_at, overall, critical_issues,
 spf_status, dkim_status, dmarc_status, bimi_status, mx_status,
 result_json, artifact_url, duration_ms)
VALUES ($1,$2,$3,$4,$5,$6,$7,
        $8,$9,$10,$11,$12,
        $13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
 artifact_url = EXCLUDED.artifact_url;`

	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal scan: %w", err)
	}
	scanned := s.ScannedAt
	if scanned.IsZero() {
		scanned = time.Now()
	}

	_, err = r.db.ExecContext(ctx, q,
		s.ID, stringOrDash(s.TenantID), s.DomainID, s.Domain, scanned.UTC(),
		string(s.Summary.Overall), s.Summary.CriticalIssues,
		string(s.SPF.Status), string(s.DKIM.Status), string(s.DMARC.Status), string(s.BIMI.Status), string(s.MX.Status),
		string(blob), s.ArtifactURL, s.DurationMS,
	)
	return err
}

// Get by ID + Tenant
func (r *ScanRepository) Get(ctx context.Context, tenant string, id domain.ScanID) (*domain.ScanResult, error) {
	const q = `SELECT result_json FROM posture_scans WHERE tenant_id=$1 AND id=$2 LIMIT 1;`
	s, err := scanOne(r.db.QueryRowContext(ctx, q, stringOrDash(tenant), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrScanNotFound
	}
	return s, err
}

// LoadPrevious returns nil, nil when the domain was never scanned.
func (r *ScanRepository) LoadPrevious(ctx context.Context, domainID string) (*domain.ScanResult, error) {
	const q = `
SELECT result_json FROM posture_scans
WHERE domain_id=$1
ORDER BY scanned_at DESC, id DESC
LIMIT 1;`
	s, err := scanOne(r.db.QueryRowContext(ctx, q, domainID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// Latest scans per tenant
func (r *ScanRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.ScanResult, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT result_json FROM posture_scans
WHERE tenant_id=$1
ORDER BY scanned_at DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, stringOrDash(tenant), limit)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

// Summary counts scans per overall verdict since N days
func (r *ScanRepository) Summary(ctx context.Context, tenant string, sinceDays int) (domain.StatusCounts, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays).UTC()

	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE overall='PASS'),
       COUNT(*) FILTER (WHERE overall='WARN'),
       COUNT(*) FILTER (WHERE overall='FAIL')
FROM posture_scans
WHERE tenant_id=$1 AND scanned_at >= $2;`
	var c domain.StatusCounts
	if err := r.db.QueryRowContext(ctx, q, stringOrDash(tenant), cut).Scan(&c.Total, &c.Pass, &c.Warn, &c.Fail); err != nil {
		return domain.StatusCounts{}, err
	}
	return c, nil
}

// Paginate with offset + limit
func (r *ScanRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT result_json FROM posture_scans
WHERE tenant_id=$1
ORDER BY scanned_at DESC, id DESC
LIMIT $2 OFFSET $3;`
	rows, err := r.db.QueryContext(ctx, q, stringOrDash(tenant), pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying scans: %w", err)
	}
	list, err := scanAll(rows)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("scanning rows: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posture_scans WHERE tenant_id=$1`, stringOrDash(tenant)).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedResult{
		Data:       list,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// Cursor-based pagination
func (r *ScanRepository) Cursor(ctx context.Context, tenant string, cursorTime time.Time, cursorID string, pageSize int) ([]*domain.ScanResult, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	const q = `
SELECT result_json FROM posture_scans
WHERE tenant_id=$1
  AND (scanned_at, id) < ($2, $3)
ORDER BY scanned_at DESC, id DESC
LIMIT $4;`
	rows, err := r.db.QueryContext(ctx, q, stringOrDash(tenant), cursorTime.UTC(), cursorID, pageSize)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

func scanOne(row rowScanner) (*domain.ScanResult, error) {
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		return nil, err
	}
	var s domain.ScanResult
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("decode scan: %w", err)
	}
	return &s, nil
}

func scanAll(rows *sql.Rows) ([]*domain.ScanResult, error) {
	defer rows.Close()
	var out []*domain.ScanResult
	for rows.Next() {
		s, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
