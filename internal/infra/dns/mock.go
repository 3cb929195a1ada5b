package dns

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MockResolver is a map-backed scans.Resolver for tests. Names are matched
// without the trailing dot and case-insensitively.
type MockResolver struct {
	TXT map[string][]string
	MX  map[string][]string

	// Fail lists "txt name" / "mx name" entries answered with no records,
	// as a real resolver does on SERVFAIL.
	Fail []string

	// Delay is applied to every lookup, honoring ctx cancellation.
	Delay time.Duration

	// Panic makes the lookup for this "type name" entry panic.
	Panic string

	mu      sync.Mutex
	queries []string
}

func mockKey(kind, name string) string {
	return kind + " " + strings.ToLower(strings.TrimSuffix(name, "."))
}

func (m *MockResolver) record(key string) bool {
	m.mu.Lock()
	m.queries = append(m.queries, key)
	m.mu.Unlock()

	if key == m.Panic {
		panic("mock resolver: " + key)
	}
	return !slices.Contains(m.Fail, key)
}

func (m *MockResolver) wait(ctx context.Context) bool {
	if m.Delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(m.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func lookupFold(records map[string][]string, name string) []string {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	for k, v := range records {
		if strings.ToLower(strings.TrimSuffix(k, ".")) == name {
			return slices.Clone(v)
		}
	}
	return nil
}

func (m *MockResolver) ResolveTXT(ctx context.Context, name string) []string {
	if !m.record(mockKey("txt", name)) || !m.wait(ctx) {
		return nil
	}
	return lookupFold(m.TXT, name)
}

func (m *MockResolver) ResolveMX(ctx context.Context, name string) []string {
	if !m.record(mockKey("mx", name)) || !m.wait(ctx) {
		return nil
	}
	return lookupFold(m.MX, name)
}

// Queries returns every "type name" key looked up so far.
func (m *MockResolver) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.queries)
}
