package scans

import (
	"context"
	"time"
)

// Resolver port. Implementations never return an error: timeouts,
// NXDOMAIN and SERVFAIL all come back as an empty slice.
type Resolver interface {
	ResolveTXT(ctx context.Context, name string) []string
	// ResolveMX returns "<priority> <exchange>" strings.
	ResolveMX(ctx context.Context, name string) []string
}

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, s *ScanResult) error
	Get(ctx context.Context, tenant string, id ScanID) (*ScanResult, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*ScanResult, error)
	// LoadPrevious returns the newest stored scan of a monitored domain,
	// or nil, nil when the domain has never been scanned.
	LoadPrevious(ctx context.Context, domainID string) (*ScanResult, error)
	Summary(ctx context.Context, tenant string, sinceDays int) (StatusCounts, error)

	// tambahan paginate
	Paginate(ctx context.Context, tenant string, page, pageSize int) (PaginatedResult, error)
	Cursor(ctx context.Context, tenant string, cursorTime time.Time, cursorID string, pageSize int) ([]*ScanResult, error)
}

// ArtifactStore port (interface untuk penyimpanan artefak)
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}
