package scans

import "strings"

// parseTags splits a "k=v; k2=v2" record (DMARC, DKIM, BIMI) into a map
// with lowercased keys. Values keep their case but lose surrounding spaces.
// A tag seen twice keeps its first value.
func parseTags(record string) map[string]string {
	tags := make(map[string]string)
	for _, part := range strings.Split(record, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, seen := tags[k]; seen {
			continue
		}
		tags[k] = strings.TrimSpace(v)
	}
	return tags
}

// hasPrefixFold is strings.HasPrefix ignoring ASCII case and leading spaces.
func hasPrefixFold(s, prefix string) bool {
	s = strings.TrimSpace(s)
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// filterPrefix returns the records that start with the version tag.
func filterPrefix(records []string, prefix string) []string {
	var out []string
	for _, r := range records {
		if hasPrefixFold(r, prefix) {
			out = append(out, strings.TrimSpace(r))
		}
	}
	return out
}

// dmarcPolicy returns the lowercased p= tag of a DMARC record, or "".
func dmarcPolicy(record string) string {
	return strings.ToLower(parseTags(record)["p"])
}

// dkimKey returns the key type and the whitespace-free public key payload.
func dkimKey(record string) (keyType, pubkey string) {
	tags := parseTags(record)
	pubkey = strings.Join(strings.Fields(tags["p"]), "")
	return strings.ToLower(tags["k"]), pubkey
}
