package scans

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreEnforcedDomain(t *testing.T) {
	dkim := ValidateDKIM([]SelectorProbe{
		{Selector: "default"},
		// 398 chars total: under the strong key threshold
		{Selector: "google", Records: []string{rsaRecord(380)}},
	})
	r := ScanResult{
		SPF:   ValidateSPF([]string{"v=spf1 -all"}),
		DKIM:  dkim,
		DMARC: ValidateDMARC("example.com", []string{"v=DMARC1; p=reject; rua=mailto:x@y.com"}),
		BIMI:  ValidateBIMI(nil),
		MX:    ValidateMX([]string{"10 mx.example.com"}),
	}
	r.Summary = Summarize(r.SPF, r.DKIM, r.DMARC, r.MX)

	assert.Equal(t, StatusPass, r.Summary.Overall)
	assert.Equal(t, StatusPass, r.DKIM.Status)

	got := Score(r)
	assert.Equal(t, 70, got.Score)
	assert.Equal(t, ScoreBreakdown{
		SPF:      SPFPoints{Pass: 10, Alignment: 10},
		DKIM:     DKIMPoints{Pass: 20},
		DMARC:    DMARCPoints{Policy: 20},
		MX:       MXPoints{Sane: 10},
		Warnings: 1, // bimi
		Total:    70,
	}, got.Breakdown)
}

func TestScoreStrongKeyAndBIMI(t *testing.T) {
	// > 400 chars including the tag prefix
	strong := rsaRecord(400)
	require.Greater(t, len(strong), 400)

	r := ScanResult{
		SPF:   RecordStatus{Status: StatusPass, Record: "v=spf1 include:_spf.google.com ~all"},
		DKIM:  DKIMResult{Status: StatusPass, Selectors: []DKIMSelectorResult{{Selector: "s1", Status: StatusPass, Record: strong}}},
		DMARC: RecordStatus{Status: StatusPass, Record: "v=DMARC1; p=quarantine; rua=mailto:a@b.c"},
		BIMI:  RecordStatus{Status: StatusPass, Record: "v=BIMI1; l=https://b.c/logo.svg"},
		MX:    RecordStatus{Status: StatusPass, Record: "10 mx.b.c"},
	}
	got := Score(r)
	b := got.Breakdown
	assert.Equal(t, 5, b.SPF.Alignment)
	assert.Equal(t, 10, b.DKIM.KeyStrength)
	assert.Equal(t, 10, b.DMARC.Policy)
	assert.Equal(t, 5, b.BIMI.Present)
	assert.Equal(t, 5, b.BIMI.Valid)
	assert.Equal(t, 10+5+20+10+10+5+5+10, got.Score)
}

func TestScoreDKIMWarnEarnsNothing(t *testing.T) {
	r := ScanResult{
		DKIM: DKIMResult{Status: StatusWarn, Selectors: []DKIMSelectorResult{{Selector: "k1", Status: StatusWarn, Record: rsaRecord(150)}}},
		MX:   RecordStatus{Status: StatusFail},
	}
	got := Score(r)
	assert.Zero(t, got.Breakdown.DKIM.Pass)
	assert.Zero(t, got.Score)
}

// Alignment depends on the trailing all term only, not on the SPF verdict.
func TestScoreSPFAlignment(t *testing.T) {
	tests := []struct {
		name   string
		spf    RecordStatus
		points int
	}{
		{"hard fail", RecordStatus{Status: StatusPass, Record: "v=spf1 include:a.example -all"}, pointsSPFHardFail},
		{"soft fail", RecordStatus{Status: StatusPass, Record: "v=spf1 ip4:192.0.2.1 ~All"}, pointsSPFSoftFail},
		{"multiple records still aligned", RecordStatus{Status: StatusFail, Record: "v=spf1 include:a.example -all"}, pointsSPFHardFail},
		{"hostname containing -all", RecordStatus{Status: StatusPass, Record: "v=spf1 include:spf-all.example.net ~all"}, pointsSPFSoftFail},
		{"hostname containing -all neutral", RecordStatus{Status: StatusWarn, Record: "v=spf1 include:spf-all.example.net ?all"}, 0},
		{"permissive", RecordStatus{Status: StatusWarn, Record: "v=spf1 +all"}, 0},
		{"no record", RecordStatus{Status: StatusFail}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(ScanResult{SPF: tt.spf, MX: RecordStatus{Status: StatusFail}})
			assert.Equal(t, tt.points, got.Breakdown.SPF.Alignment)
		})
	}
}

// Penalties are computed but clamped to zero; they never lower the score.
func TestScorePenaltiesAreNoOp(t *testing.T) {
	r := ScanResult{
		SPF:   RecordStatus{Status: StatusWarn, Record: "v=spf1 +all"},
		DKIM:  DKIMResult{Status: StatusFail},
		DMARC: RecordStatus{Status: StatusWarn, Record: "v=DMARC1; p=none"},
		BIMI:  RecordStatus{Status: StatusWarn},
		MX:    RecordStatus{Status: StatusPass, Record: "10 mx.example.com"},
	}
	got := Score(r)
	assert.Equal(t, 3, got.Breakdown.Warnings)
	assert.Equal(t, 1, got.Breakdown.Fails)
	assert.Equal(t, Penalties{}, got.Breakdown.Penalties)
	assert.Equal(t, 10, got.Score)
}

func TestScoreAlwaysInRange(t *testing.T) {
	statuses := []Status{StatusPass, StatusWarn, StatusFail, ""}
	records := []string{"", "v=spf1 -all v=DMARC1; p=reject k=rsa " + strings.Repeat("x", 500)}

	for _, spf := range statuses {
		for _, dkim := range statuses {
			for _, dmarc := range statuses {
				for _, bimi := range statuses {
					for _, mx := range statuses {
						for _, rec := range records {
							r := ScanResult{
								SPF:   RecordStatus{Status: spf, Record: rec},
								DKIM:  DKIMResult{Status: dkim, Selectors: []DKIMSelectorResult{{Status: dkim, Record: rec}, {Status: StatusPass, Record: rec}}},
								DMARC: RecordStatus{Status: dmarc, Record: "v=DMARC1; p=reject"},
								BIMI:  RecordStatus{Status: bimi, Record: rec},
								MX:    RecordStatus{Status: mx, Record: rec},
							}
							got := Score(r)
							assert.GreaterOrEqual(t, got.Score, 0)
							assert.LessOrEqual(t, got.Score, 100)
							assert.Equal(t, got.Score, got.Breakdown.Total)
						}
					}
				}
			}
		}
	}
}
