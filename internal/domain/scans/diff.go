package scans

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Record types used as the first half of the diff identity key.
const (
	RecordSPF   = "spf"
	RecordDKIM  = "dkim"
	RecordDMARC = "dmarc"
	RecordBIMI  = "bimi"
	RecordMX    = "mx"
)

// Severity of a detected change.
type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityWarn Severity = "warn"
	SeverityFail Severity = "fail"
)

// NormalizedRecord is one diffable unit of a scan. Selector is empty for
// every family except DKIM.
type NormalizedRecord struct {
	RecordType string `json:"recordType"`
	Selector   string `json:"selector,omitempty"`
	ValueHash  string `json:"valueHash"`
	RawValue   string `json:"rawValue"`
	Verdict    Status `json:"verdict"`
}

func (n NormalizedRecord) key() string {
	return n.RecordType + "\x00" + n.Selector
}

type RecordChange struct {
	RecordType string `json:"recordType"`
	Selector   string `json:"selector,omitempty"`
	OldValue   string `json:"oldValue,omitempty"`
	NewValue   string `json:"newValue,omitempty"`
}

type DiffResult struct {
	Added    []RecordChange `json:"added"`
	Removed  []RecordChange `json:"removed"`
	Changed  []RecordChange `json:"changed"`
	Severity Severity       `json:"severity"`
}

// Empty reports whether nothing was added, removed or changed.
func (d DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// HashValue is a cheap equality fingerprint, not a security primitive.
func HashValue(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

func newRecord(recordType, selector, raw string, verdict Status) NormalizedRecord {
	return NormalizedRecord{
		RecordType: recordType,
		Selector:   selector,
		ValueHash:  HashValue(raw),
		RawValue:   raw,
		Verdict:    verdict,
	}
}

// Normalize flattens a scan into diff records, one per (type, selector).
func Normalize(r ScanResult) []NormalizedRecord {
	out := []NormalizedRecord{newRecord(RecordSPF, "", r.SPF.Record, r.SPF.Status)}

	seen := make(map[string]bool, len(r.DKIM.Selectors))
	for _, sel := range r.DKIM.Selectors {
		if seen[sel.Selector] {
			continue
		}
		seen[sel.Selector] = true
		out = append(out, newRecord(RecordDKIM, sel.Selector, sel.Record, sel.Status))
	}

	return append(out,
		newRecord(RecordDMARC, "", r.DMARC.Record, r.DMARC.Status),
		newRecord(RecordBIMI, "", r.BIMI.Record, r.BIMI.Status),
		newRecord(RecordMX, "", r.MX.Record, r.MX.Status),
	)
}

// Diff compares two record sets of the same domain. Output lists keep the
// order records appear in their input.
func Diff(oldRecords, newRecords []NormalizedRecord) DiffResult {
	oldMap := make(map[string]NormalizedRecord, len(oldRecords))
	for _, r := range oldRecords {
		oldMap[r.key()] = r
	}
	newMap := make(map[string]NormalizedRecord, len(newRecords))
	for _, r := range newRecords {
		newMap[r.key()] = r
	}

	res := DiffResult{
		Added:    []RecordChange{},
		Removed:  []RecordChange{},
		Changed:  []RecordChange{},
		Severity: SeverityInfo,
	}

	for _, n := range uniqueInOrder(newRecords) {
		o, ok := oldMap[n.key()]
		if !ok {
			res.Added = append(res.Added, RecordChange{RecordType: n.RecordType, Selector: n.Selector, NewValue: n.RawValue})
			continue
		}
		if o.ValueHash != n.ValueHash {
			res.Changed = append(res.Changed, RecordChange{
				RecordType: n.RecordType,
				Selector:   n.Selector,
				OldValue:   o.RawValue,
				NewValue:   n.RawValue,
			})
		}
	}
	for _, o := range uniqueInOrder(oldRecords) {
		if _, ok := newMap[o.key()]; !ok {
			res.Removed = append(res.Removed, RecordChange{RecordType: o.RecordType, Selector: o.Selector, OldValue: o.RawValue})
		}
	}

	res.Severity = diffSeverity(oldRecords, newRecords, len(res.Changed) > 0)
	return res
}

// diffSeverity: a FAIL anywhere wins, then any WARN, then a non-empty
// changed set bumps info to warn.
func diffSeverity(oldRecords, newRecords []NormalizedRecord, changed bool) Severity {
	sev := SeverityInfo
	for _, set := range [][]NormalizedRecord{oldRecords, newRecords} {
		for _, r := range set {
			if r.Verdict == StatusFail {
				return SeverityFail
			}
			if r.Verdict == StatusWarn {
				sev = SeverityWarn
			}
		}
	}
	if changed && sev == SeverityInfo {
		sev = SeverityWarn
	}
	return sev
}

// uniqueInOrder drops repeated keys, keeping the last occurrence's value at
// the first occurrence's position, matching map construction semantics.
func uniqueInOrder(records []NormalizedRecord) []NormalizedRecord {
	last := make(map[string]NormalizedRecord, len(records))
	for _, r := range records {
		last[r.key()] = r
	}
	out := make([]NormalizedRecord, 0, len(last))
	emitted := make(map[string]bool, len(last))
	for _, r := range records {
		k := r.key()
		if emitted[k] {
			continue
		}
		emitted[k] = true
		out = append(out, last[k])
	}
	return out
}

// FieldChange is one coarse, field-level change between two scans.
type FieldChange struct {
	RecordType string
	OldValue   string
	NewValue   string
}

// DetectChanges compares raw record strings family by family. It is the
// coarse detector the monitor alerts on; Diff gives the per-selector view.
func DetectChanges(prev, curr ScanResult) []FieldChange {
	fields := []struct {
		recordType string
		old, new   string
	}{
		{RecordSPF, prev.SPF.Record, curr.SPF.Record},
		{RecordDKIM, dkimField(prev.DKIM), dkimField(curr.DKIM)},
		{RecordDMARC, prev.DMARC.Record, curr.DMARC.Record},
		{RecordBIMI, prev.BIMI.Record, curr.BIMI.Record},
		{RecordMX, prev.MX.Record, curr.MX.Record},
	}
	var out []FieldChange
	for _, f := range fields {
		if f.old != f.new {
			out = append(out, FieldChange{RecordType: f.recordType, OldValue: f.old, NewValue: f.new})
		}
	}
	return out
}

// dkimField renders found selectors as sorted "selector=record" lines.
func dkimField(d DKIMResult) string {
	lines := make([]string, 0, len(d.Selectors))
	for _, s := range d.Selectors {
		if s.Selector == NoneSelector && s.Record == "" {
			continue
		}
		lines = append(lines, s.Selector+"="+s.Record)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
