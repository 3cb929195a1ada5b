package scans

import "strings"

// Point weights per signal.
const (
	pointsSPFPass         = 10
	pointsSPFHardFail     = 10
	pointsSPFSoftFail     = 5
	pointsDKIMPass        = 20
	pointsDKIMStrongKey   = 10
	pointsDMARCReject     = 20
	pointsDMARCQuarantine = 10
	pointsBIMIPresent     = 5
	pointsBIMIValid       = 5
	pointsMXSane          = 10

	penaltyPerWarning = 5
	penaltyPerFail    = 10

	// Records longer than this usually carry a 2048-bit or larger key.
	dkimStrongRecordLen = 400
)

type SPFPoints struct {
	Pass      int `json:"pass"`
	Alignment int `json:"alignment"`
}

type DKIMPoints struct {
	Pass        int `json:"pass"`
	KeyStrength int `json:"keyStrength"`
}

type DMARCPoints struct {
	Policy int `json:"policy"`
}

type BIMIPoints struct {
	Present int `json:"present"`
	Valid   int `json:"valid"`
}

type MXPoints struct {
	Sane int `json:"sane"`
}

type Penalties struct {
	Warnings int `json:"warnings"`
	Fails    int `json:"fails"`
}

// ScoreBreakdown explains how Score arrived at its total.
type ScoreBreakdown struct {
	SPF       SPFPoints   `json:"spf"`
	DKIM      DKIMPoints  `json:"dkim"`
	DMARC     DMARCPoints `json:"dmarc"`
	BIMI      BIMIPoints  `json:"bimi"`
	MX        MXPoints    `json:"mx"`
	Warnings  int         `json:"warnings"`
	Fails     int         `json:"fails"`
	Penalties Penalties   `json:"penalties"`
	Total     int         `json:"total"`
}

// ScoreResult is the return value of Score.
type ScoreResult struct {
	Score     int            `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// Score maps a completed scan to a 0-100 deliverability score.
func Score(r ScanResult) ScoreResult {
	var b ScoreBreakdown

	if r.SPF.Status == StatusPass {
		b.SPF.Pass = pointsSPFPass
	}
	// Alignment follows the trailing all term alone, like the DMARC policy
	// points follow p= regardless of the DMARC verdict.
	switch spfAllTerm(r.SPF.Record) {
	case "-all":
		b.SPF.Alignment = pointsSPFHardFail
	case "~all":
		b.SPF.Alignment = pointsSPFSoftFail
	}

	for _, sel := range r.DKIM.Selectors {
		if sel.Status != StatusPass {
			continue
		}
		b.DKIM.Pass = pointsDKIMPass
		if strings.Contains(strings.ToLower(sel.Record), "k=rsa") && len(sel.Record) > dkimStrongRecordLen {
			b.DKIM.KeyStrength = pointsDKIMStrongKey
		}
	}

	switch dmarcPolicy(r.DMARC.Record) {
	case "reject":
		b.DMARC.Policy = pointsDMARCReject
	case "quarantine":
		b.DMARC.Policy = pointsDMARCQuarantine
	}

	if r.BIMI.Record != "" {
		b.BIMI.Present = pointsBIMIPresent
		if r.BIMI.Status == StatusPass {
			b.BIMI.Valid = pointsBIMIValid
		}
	}

	if r.MX.Status != StatusFail {
		b.MX.Sane = pointsMXSane
	}

	for _, st := range []Status{r.SPF.Status, r.DKIM.Status, r.DMARC.Status, r.BIMI.Status, r.MX.Status} {
		switch st {
		case StatusWarn:
			b.Warnings++
		case StatusFail:
			b.Fails++
		}
	}
	// The clamp keeps both penalties at zero for any count, so they never
	// lower the score. Kept as-is until product decides on penalty weights.
	b.Penalties.Warnings = min(b.Warnings*penaltyPerWarning, 0)
	b.Penalties.Fails = min(b.Fails*penaltyPerFail, 0)

	total := b.SPF.Pass + b.SPF.Alignment +
		b.DKIM.Pass + b.DKIM.KeyStrength +
		b.DMARC.Policy +
		b.BIMI.Present + b.BIMI.Valid +
		b.MX.Sane -
		b.Penalties.Warnings - b.Penalties.Fails
	b.Total = max(0, min(100, total))

	return ScoreResult{Score: b.Total, Breakdown: b}
}

// spfAllTerm returns the last mechanism of an SPF record, lowercased.
func spfAllTerm(record string) string {
	terms := strings.Fields(strings.ToLower(record))
	if len(terms) < 2 {
		return ""
	}
	return terms[len(terms)-1]
}
