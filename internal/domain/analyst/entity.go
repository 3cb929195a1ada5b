package analyst

import "time"

// AnalysisID identifier type
type AnalysisID string

// Analysis is an AI remediation plan for one scan, stored for auditing and retrieval
type Analysis struct {
	ID        AnalysisID `json:"id"`
	TenantID  string     `json:"tenant_id"`
	ScanID    string     `json:"scan_id,omitempty"`
	Domain    string     `json:"domain"`
	Result    string     `json:"result"` // JSON string from AI
	CreatedAt time.Time  `json:"created_at"`
}
