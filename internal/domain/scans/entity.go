package scans

import (
	"time"
)

// ID tipe untuk Scan
type ScanID string

// Status is the verdict a validator assigns to one record family.
type Status string

const (
	StatusPass Status = "PASS"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
	// StatusInfo only shows up on normalized records that carry no verdict.
	StatusInfo Status = "INFO"
)

// Valid reports whether s is one of the known verdicts.
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusWarn, StatusFail, StatusInfo:
		return true
	}
	return false
}

// RecordStatus hasil validasi untuk SPF, DMARC, BIMI dan MX
type RecordStatus struct {
	Status      Status   `json:"status"`
	Record      string   `json:"record,omitempty"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// DKIMSelectorResult is the verdict for one probed selector.
type DKIMSelectorResult struct {
	Selector    string   `json:"selector"`
	Status      Status   `json:"status"`
	Record      string   `json:"record,omitempty"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// DKIMResult aggregates every selector that answered.
type DKIMResult struct {
	Status    Status               `json:"status"`
	Selectors []DKIMSelectorResult `json:"selectors"`
}

// Summary is derived from the five validator verdicts.
type Summary struct {
	Overall        Status `json:"overall"`
	CriticalIssues int    `json:"criticalIssues"`
}

// Aggregate Root: ScanResult. Never mutated after the orchestrator returns it.
type ScanResult struct {
	ID          ScanID       `json:"id"`
	TenantID    string       `json:"tenant_id,omitempty"`
	DomainID    string       `json:"domain_id,omitempty"`
	Domain      string       `json:"domain"`
	ScannedAt   time.Time    `json:"scanned_at"`
	SPF         RecordStatus `json:"spf"`
	DKIM        DKIMResult   `json:"dkim"`
	DMARC       RecordStatus `json:"dmarc"`
	BIMI        RecordStatus `json:"bimi"`
	MX          RecordStatus `json:"mx"`
	Summary     Summary      `json:"summary"`
	ArtifactURL string       `json:"artifact_url,omitempty"`
	DurationMS  int64        `json:"duration_ms"`
}

// Summarize computes the overall verdict. MX WARN never raises the overall
// verdict and BIMI never counts as critical.
func Summarize(spf RecordStatus, dkim DKIMResult, dmarc, mx RecordStatus) Summary {
	critical := 0
	for _, st := range []Status{spf.Status, dkim.Status, dmarc.Status, mx.Status} {
		if st == StatusFail {
			critical++
		}
	}
	hasWarnings := spf.Status == StatusWarn || dkim.Status == StatusWarn || dmarc.Status == StatusWarn

	overall := StatusPass
	switch {
	case critical > 0:
		overall = StatusFail
	case hasWarnings:
		overall = StatusWarn
	}
	return Summary{Overall: overall, CriticalIssues: critical}
}
