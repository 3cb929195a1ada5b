package ai

import "context"

// Client turns a scan report (JSON) into a remediation plan (JSON).
type Client interface {
	Advise(ctx context.Context, domain, reportJSON string) (string, error)
}
