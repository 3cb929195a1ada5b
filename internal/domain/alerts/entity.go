package alerts

import (
	"time"

	"github.com/bryanwahyu/mailposture/internal/domain/scans"
)

// Alert is persisted for every field that changed between two monitoring scans.
type Alert struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	DomainID       string         `json:"domain_id"`
	Domain         string         `json:"domain"`
	ScanID         scans.ScanID   `json:"scan_id"`
	PreviousScanID scans.ScanID   `json:"previous_scan_id"`
	RecordType     string         `json:"record_type"`
	OldValue       string         `json:"old_value"`
	NewValue       string         `json:"new_value"`
	Severity       scans.Severity `json:"severity"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Notification is what gets pushed to the owner of a monitored domain.
type Notification struct {
	DomainID   string         `json:"domain_id"`
	Domain     string         `json:"domain"`
	RecordType string         `json:"record_type"`
	OldValue   string         `json:"old_value"`
	NewValue   string         `json:"new_value"`
	Severity   scans.Severity `json:"severity"`
}
