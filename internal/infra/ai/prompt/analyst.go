package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/mailposture/internal/domain/scans"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior email deliverability engineer. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- Use lowercase priority values: high, medium, low.
- steps is ordered by priority; every step names the DNS record (spf, dkim, dmarc, bimi, mx) it changes.
- Only recommend records you can justify from the scan report. Never invent selectors or include domains that are not in the report.
- example_record must be a literal TXT/MX value the user can paste, or empty.

Schema (example with empty values):
{
  "domain": "<string>",
  "score": 0,
  "steps": [
    {
      "record": "<spf|dkim|dmarc|bimi|mx>",
      "priority": "<high|medium|low>",
      "summary": "<string>",
      "example_record": "<string>"
    }
  ],
  "advice": "<string>"
}`
}

// GetUserPrompt wraps the scan report JSON.
func GetUserPrompt(domain, reportJSON string) string {
	return fmt.Sprintf("Build a remediation plan for %s from this scan report and respond with the JSON per schema.\nReport: %s", domain, reportJSON)
}

// Step is one remediation item of Plan.
type Step struct {
	Record        string `json:"record"`
	Priority      string `json:"priority"`
	Summary       string `json:"summary"`
	ExampleRecord string `json:"example_record"`
}

// Plan matches the schema used by the system prompt.
type Plan struct {
	Domain string `json:"domain"`
	Score  int    `json:"score"`
	Steps  []Step `json:"steps"`
	Advice string `json:"advice"`
}

// PlanFromReport builds a plan straight from validator suggestions, without
// a model. FAIL families come first as high priority, then WARN as medium.
func PlanFromReport(reportJSON string) (string, error) {
	var rep struct {
		Scan  scans.ScanResult  `json:"scan"`
		Score scans.ScoreResult `json:"score"`
	}
	if err := json.Unmarshal([]byte(reportJSON), &rep); err != nil {
		return "", fmt.Errorf("failed to parse report: %w", err)
	}

	plan := Plan{Domain: rep.Scan.Domain, Score: rep.Score.Score, Steps: []Step{}}
	families := []struct {
		name string
		st   scans.Status
		sugg []string
	}{
		{scans.RecordSPF, rep.Scan.SPF.Status, rep.Scan.SPF.Suggestions},
		{scans.RecordDKIM, rep.Scan.DKIM.Status, dkimSuggestions(rep.Scan.DKIM)},
		{scans.RecordDMARC, rep.Scan.DMARC.Status, rep.Scan.DMARC.Suggestions},
		{scans.RecordMX, rep.Scan.MX.Status, rep.Scan.MX.Suggestions},
		{scans.RecordBIMI, rep.Scan.BIMI.Status, rep.Scan.BIMI.Suggestions},
	}
	for _, want := range []scans.Status{scans.StatusFail, scans.StatusWarn} {
		for _, f := range families {
			if f.st != want {
				continue
			}
			priority := "high"
			if want == scans.StatusWarn {
				priority = "medium"
			}
			if f.name == scans.RecordBIMI {
				priority = "low"
			}
			for _, s := range f.sugg {
				plan.Steps = append(plan.Steps, Step{Record: f.name, Priority: priority, Summary: s})
			}
		}
	}
	switch {
	case len(plan.Steps) == 0:
		plan.Advice = "No changes needed. Keep monitoring enabled to catch regressions."
	case rep.Scan.Summary.CriticalIssues > 0:
		plan.Advice = "Fix the high priority steps first: receivers may reject or junk mail until they are in place."
	default:
		plan.Advice = "Authentication is in place; tighten the remaining policies to improve deliverability."
	}

	b, err := json.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan: %w", err)
	}
	return string(b), nil
}

func dkimSuggestions(d scans.DKIMResult) []string {
	var out []string
	for _, s := range d.Selectors {
		out = append(out, s.Suggestions...)
	}
	return out
}
