package scanerrors

import "time"

// Phases a scan error can be recorded in.
const (
	PhaseScan    = "scan"
	PhasePersist = "persist"
	PhaseAlert   = "alert"
	PhaseNotify  = "notify"
	PhaseArchive = "archive"
)

// ScanError represents a persisted scan or monitoring failure entry
type ScanError struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	ScanID      string    `json:"scan_id"`
	DomainID    string    `json:"domain_id,omitempty"`
	Phase       string    `json:"phase,omitempty"` // scan | persist | alert | notify | archive
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
