package scans

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	ErrScanNotFound  = errors.New("scan not found")
	ErrInvalidDomain = errors.New("invalid domain")
)

// NormalizeDomain lowercases the name, strips a URL scheme, path, port and
// trailing dot, and checks it sits under a public suffix.
func NormalizeDomain(raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if strings.Contains(name, "://") {
		u, err := url.Parse(name)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidDomain, err)
		}
		name = u.Hostname()
	}
	if host, _, ok := strings.Cut(name, "/"); ok {
		name = host
	}
	if host, _, ok := strings.Cut(name, ":"); ok {
		name = host
	}
	name = strings.TrimSuffix(name, ".")

	if name == "" || len(name) > 253 || !strings.Contains(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	for _, label := range strings.Split(name, ".") {
		if !validLabel(label) {
			return "", fmt.Errorf("%w: bad label %q", ErrInvalidDomain, label)
		}
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}
	return name, nil
}

func validLabel(l string) bool {
	if l == "" || len(l) > 63 || l[0] == '-' || l[len(l)-1] == '-' {
		return false
	}
	for i := 0; i < len(l); i++ {
		c := l[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' && c != '_' {
			return false
		}
	}
	return true
}
