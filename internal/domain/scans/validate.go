package scans

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DKIMSelectors are probed in this order. The order is kept in results.
var DKIMSelectors = []string{"default", "google", "k1", "s1", "s2", "selector1", "selector2", "dkim"}

const (
	spfMaxIncludes = 10

	// A 1024-bit RSA key base64-encodes to roughly 160-220 chars, a 2048-bit
	// one to ~390. This is a length heuristic, not a key measurement.
	dkimWeakKeyMin = 100
	dkimWeakKeyMax = 200

	// NoneSelector names the synthetic entry emitted when no selector answers.
	NoneSelector = "none"
)

// ValidateSPF classifies the TXT records found at the domain apex.
func ValidateSPF(records []string) RecordStatus {
	spf := filterSPF(records)

	switch len(spf) {
	case 0:
		return RecordStatus{
			Status: StatusFail,
			Issues: []string{"No SPF record found"},
			Suggestions: []string{
				"Add an SPF TXT record at the domain apex listing every service that sends mail for you",
				"Example: v=spf1 include:_spf.google.com ~all",
			},
		}
	case 1:
	default:
		return RecordStatus{
			Status:      StatusFail,
			Record:      spf[0],
			Issues:      []string{"Multiple SPF records found"},
			Suggestions: []string{"Merge all v=spf1 records into a single TXT record"},
		}
	}

	record := spf[0]
	lower := strings.ToLower(record)
	terms := strings.Fields(lower)
	res := RecordStatus{Record: record, Issues: []string{}, Suggestions: []string{}}

	hasSenders := strings.Contains(lower, "include:") || strings.Contains(lower, "ip4:") || strings.Contains(lower, "ip6:")
	// "v=spf1 -all" is the null policy of a domain that sends no mail.
	nullPolicy := len(terms) == 2 && terms[1] == "-all"
	if !hasSenders && !nullPolicy {
		res.Issues = append(res.Issues, "No authorized senders specified")
		res.Suggestions = append(res.Suggestions, "Add include:, ip4: or ip6: mechanisms for your sending services")
	}

	switch last := terms[len(terms)-1]; last {
	case "+all", "all":
		res.Issues = append(res.Issues, "SPF record allows all senders (+all)")
		res.Suggestions = append(res.Suggestions, "Replace +all with ~all or -all")
	case "?all":
		res.Issues = append(res.Issues, "SPF record uses a neutral policy (?all)")
		res.Suggestions = append(res.Suggestions, "Replace ?all with ~all or -all")
	}

	if n := strings.Count(lower, "include:"); n > spfMaxIncludes {
		res.Issues = append(res.Issues, fmt.Sprintf("Too many include mechanisms (%d): SPF evaluation is capped at %d DNS lookups", n, spfMaxIncludes))
		res.Suggestions = append(res.Suggestions, "Flatten nested includes or remove unused sending services")
	}

	res.Status = StatusPass
	if len(res.Issues) > 0 {
		res.Status = StatusWarn
	}
	return res
}

func filterSPF(records []string) []string {
	var out []string
	for _, r := range records {
		r = strings.TrimSpace(r)
		lower := strings.ToLower(r)
		if lower == "v=spf1" || strings.HasPrefix(lower, "v=spf1 ") {
			out = append(out, r)
		}
	}
	return out
}

// SelectorProbe holds the TXT answer for <selector>._domainkey.<domain>.
type SelectorProbe struct {
	Selector string
	Records  []string
}

// ValidateDKIMSelector returns false when the selector has no records.
func ValidateDKIMSelector(selector string, records []string) (DKIMSelectorResult, bool) {
	if len(records) == 0 {
		return DKIMSelectorResult{}, false
	}
	record := strings.TrimSpace(records[0])
	res := DKIMSelectorResult{
		Selector:    selector,
		Status:      StatusPass,
		Record:      record,
		Issues:      []string{},
		Suggestions: []string{},
	}
	keyType, pubkey := dkimKey(record)
	if keyType == "rsa" && len(pubkey) >= dkimWeakKeyMin && len(pubkey) < dkimWeakKeyMax {
		res.Status = StatusWarn
		res.Issues = append(res.Issues, "Weak key size (likely 1024-bit RSA)")
		res.Suggestions = append(res.Suggestions, "Rotate this selector to a 2048-bit RSA key")
	}
	return res, true
}

// ValidateDKIM folds selector probes into one result, keeping probe order.
func ValidateDKIM(probes []SelectorProbe) DKIMResult {
	res := DKIMResult{Status: StatusPass}
	for _, p := range probes {
		sel, ok := ValidateDKIMSelector(p.Selector, p.Records)
		if !ok {
			continue
		}
		if sel.Status == StatusWarn {
			res.Status = StatusWarn
		}
		res.Selectors = append(res.Selectors, sel)
	}

	if len(res.Selectors) == 0 {
		return DKIMResult{
			Status: StatusFail,
			Selectors: []DKIMSelectorResult{{
				Selector: NoneSelector,
				Status:   StatusFail,
				Issues:   []string{"No DKIM records found for common selectors"},
				Suggestions: []string{
					"Enable DKIM signing with your email provider and publish its public key",
					"Common selectors: " + strings.Join(DKIMSelectors, ", "),
				},
			}},
		}
	}
	return res
}

// ValidateDMARC classifies the TXT records found at _dmarc.<domain>.
func ValidateDMARC(domain string, records []string) RecordStatus {
	dmarc := filterPrefix(records, "v=DMARC1")

	switch len(dmarc) {
	case 0:
		return RecordStatus{
			Status: StatusFail,
			Issues: []string{"No DMARC record found"},
			Suggestions: []string{
				fmt.Sprintf("Add a TXT record at _dmarc.%s", domain),
				fmt.Sprintf("Example: v=DMARC1; p=quarantine; rua=mailto:dmarc@%s", domain),
			},
		}
	case 1:
	default:
		// RFC 7489 6.6.3: more than one record means no policy applies.
		return RecordStatus{
			Status:      StatusFail,
			Record:      dmarc[0],
			Issues:      []string{"Multiple DMARC records found"},
			Suggestions: []string{"Keep a single v=DMARC1 record at _dmarc." + domain},
		}
	}

	record := dmarc[0]
	tags := parseTags(record)
	res := RecordStatus{Record: record, Issues: []string{}, Suggestions: []string{}}

	if strings.EqualFold(tags["p"], "none") {
		res.Issues = append(res.Issues, "DMARC policy is none (monitoring only)")
		res.Suggestions = append(res.Suggestions, "Move to p=quarantine or p=reject once aggregate reports look clean")
	}
	_, hasRUA := tags["rua"]
	_, hasRUF := tags["ruf"]
	if !hasRUA {
		res.Issues = append(res.Issues, "No aggregate reporting address (rua) configured")
		res.Suggestions = append(res.Suggestions, fmt.Sprintf("Add rua=mailto:dmarc@%s", domain))
	}
	if !hasRUA && !hasRUF {
		res.Suggestions = append(res.Suggestions, "Consider adding ruf= to receive forensic failure reports")
	}

	res.Status = StatusPass
	if len(res.Issues) > 0 {
		res.Status = StatusWarn
	}
	return res
}

// ValidateBIMI classifies the TXT records found at default._bimi.<domain>.
// BIMI is optional, so a missing record is a warning, never a failure.
func ValidateBIMI(records []string) RecordStatus {
	bimi := filterPrefix(records, "v=BIMI1")
	if len(bimi) == 0 {
		return RecordStatus{
			Status: StatusWarn,
			Issues: []string{"No BIMI record found"},
			Suggestions: []string{
				"BIMI is optional; most mailbox providers only show the logo with a Verified Mark Certificate (VMC) and an enforced DMARC policy",
			},
		}
	}
	return RecordStatus{Status: StatusPass, Record: bimi[0], Issues: []string{}, Suggestions: []string{}}
}

// ValidateMX classifies resolved "<priority> <exchange>" strings.
func ValidateMX(records []string) RecordStatus {
	if len(records) == 0 {
		return RecordStatus{
			Status:      StatusFail,
			Issues:      []string{"No MX records found: the domain cannot receive mail"},
			Suggestions: []string{"Add MX records pointing at your mail provider"},
		}
	}
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, compareMX)
	return RecordStatus{
		Status:      StatusPass,
		Record:      strings.Join(sorted, ", "),
		Issues:      []string{},
		Suggestions: []string{},
	}
}

// compareMX orders by numeric priority, then exchange name.
func compareMX(a, b string) int {
	pa, ha := splitMX(a)
	pb, hb := splitMX(b)
	if pa != pb {
		return pa - pb
	}
	return strings.Compare(ha, hb)
}

func splitMX(s string) (int, string) {
	prio, host, _ := strings.Cut(strings.TrimSpace(s), " ")
	n, err := strconv.Atoi(prio)
	if err != nil {
		return 0, s
	}
	return n, host
}
