package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/mailposture/internal/application"
	appscans "github.com/bryanwahyu/mailposture/internal/application/scans"
	"github.com/bryanwahyu/mailposture/internal/domain/alerts"
	"github.com/bryanwahyu/mailposture/internal/domain/domains"
	"github.com/bryanwahyu/mailposture/internal/domain/scanerrors"
	"github.com/bryanwahyu/mailposture/internal/domain/scans"
	dnsadapter "github.com/bryanwahyu/mailposture/internal/infra/dns"
)

// ==== in-memory fakes ====

type scanStore struct {
	mu      sync.Mutex
	byID    map[scans.ScanID]*scans.ScanResult
	history map[string][]*scans.ScanResult
	saveErr error
}

func newScanStore() *scanStore {
	return &scanStore{byID: map[scans.ScanID]*scans.ScanResult{}, history: map[string][]*scans.ScanResult{}}
}

func (s *scanStore) Save(_ context.Context, r *scans.ScanResult) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.byID[r.ID] = &cp
	s.history[r.DomainID] = append(s.history[r.DomainID], &cp)
	return nil
}

func (s *scanStore) Get(_ context.Context, _ string, id scans.ScanID) (*scans.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id], nil
}

func (s *scanStore) LoadPrevious(_ context.Context, domainID string) (*scans.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[domainID]
	if len(h) == 0 {
		return nil, nil
	}
	return h[len(h)-1], nil
}

func (s *scanStore) count(domainID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history[domainID])
}

func (s *scanStore) Latest(context.Context, string, int) ([]*scans.ScanResult, error) { return nil, nil }
func (s *scanStore) Summary(context.Context, string, int) (scans.StatusCounts, error) {
	return scans.StatusCounts{}, nil
}
func (s *scanStore) Paginate(context.Context, string, int, int) (scans.PaginatedResult, error) {
	return scans.PaginatedResult{}, nil
}
func (s *scanStore) Cursor(context.Context, string, time.Time, string, int) ([]*scans.ScanResult, error) {
	return nil, nil
}

type alertStore struct {
	mu      sync.Mutex
	list    []*alerts.Alert
	saveErr error
}

func (a *alertStore) Save(_ context.Context, al *alerts.Alert) error {
	if a.saveErr != nil {
		return a.saveErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.list = append(a.list, al)
	return nil
}

func (a *alertStore) ListByDomain(_ context.Context, _, domainID string, _ int) ([]*alerts.Alert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*alerts.Alert
	for _, al := range a.list {
		if al.DomainID == domainID {
			out = append(out, al)
		}
	}
	return out, nil
}

type domainStore struct {
	list []*domains.Domain
	err  error
}

func (d *domainStore) Get(_ context.Context, _, id string) (*domains.Domain, error) {
	for _, x := range d.list {
		if x.ID == id {
			return x, nil
		}
	}
	return nil, nil
}

func (d *domainStore) ListMonitored(context.Context) ([]*domains.Domain, error) { return d.list, d.err }

type recordingNotifier struct {
	mu       sync.Mutex
	sent     []alerts.Notification
	err      error
	panicFor string // domain whose delivery panics
}

func (n *recordingNotifier) Notify(_ context.Context, x alerts.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.panicFor != "" && x.Domain == n.panicFor {
		panic("webhook client: nil transport")
	}
	n.sent = append(n.sent, x)
	return n.err
}

type errorStore struct {
	mu   sync.Mutex
	list []*scanerrors.ScanError
}

func (e *errorStore) Save(_ context.Context, x *scanerrors.ScanError) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, x)
	return nil
}

func (e *errorStore) ListByScan(context.Context, string, string, int) ([]*scanerrors.ScanError, error) {
	return nil, nil
}

type countingRecorder struct {
	mu                 sync.Mutex
	ok, failed, raised int
}

func (c *countingRecorder) ScanFinished(failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if failed {
		c.failed++
	} else {
		c.ok++
	}
}

func (c *countingRecorder) AlertRaised() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raised++
}

type memArtifacts struct {
	mu   sync.Mutex
	keys []string
}

func (a *memArtifacts) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return "mem://" + key, nil
}

// ==== fixtures ====

type harness struct {
	loop     *Loop
	resolver *dnsadapter.MockResolver
	scans    *scanStore
	alerts   *alertStore
	notifier *recordingNotifier
	errors   *errorStore
	metrics  *countingRecorder
	archive  *memArtifacts
}

func zone() *dnsadapter.MockResolver {
	return &dnsadapter.MockResolver{
		TXT: map[string][]string{
			"example.com":                   {"v=spf1 include:_spf.google.com ~all"},
			"google._domainkey.example.com": {"v=DKIM1; k=rsa; p=" + strings.Repeat("K", 380)},
			"_dmarc.example.com":            {"v=DMARC1; p=reject; rua=mailto:x@example.com"},
			"example.org":                   {"v=spf1 -all"},
		},
		MX: map[string][]string{
			"example.com": {"10 mx.example.com"},
			"example.org": {"10 mx.example.org"},
		},
	}
}

func newHarness(list ...*domains.Domain) *harness {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		resolver: zone(),
		scans:    newScanStore(),
		alerts:   &alertStore{},
		notifier: &recordingNotifier{},
		errors:   &errorStore{},
		metrics:  &countingRecorder{},
		archive:  &memArtifacts{},
	}
	clock := application.FixedClock{T: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	h.loop = &Loop{
		Scanner:   &appscans.Service{Resolver: h.resolver, Clock: clock, Logger: quiet},
		Scans:     h.scans,
		Domains:   &domainStore{list: list},
		Alerts:    h.alerts,
		Notifier:  h.notifier,
		Errors:    h.errors,
		Artifacts: h.archive,
		Metrics:   h.metrics,
		Interval:  time.Hour,
		Clock:     clock,
		Logger:    quiet,
	}
	return h
}

func monitored(id, name string) *domains.Domain {
	return &domains.Domain{ID: id, TenantID: "acme", Name: name, OwnerPlan: "pro", Monitoring: true}
}

// ==== tests ====

func TestRunCycleIdenticalScanRaisesNothing(t *testing.T) {
	d := monitored("d-1", "example.com")
	h := newHarness(d)
	ctx := context.Background()

	first := h.loop.RunCycle(ctx, []*domains.Domain{d}, nil)
	assert.Equal(t, CycleReport{Scanned: 1}, first)

	second := h.loop.RunCycle(ctx, []*domains.Domain{d}, nil)
	assert.Equal(t, CycleReport{Scanned: 1}, second)

	assert.Equal(t, 2, h.scans.count("d-1"))
	assert.Empty(t, h.alerts.list)
	assert.Empty(t, h.notifier.sent)
	assert.Empty(t, h.archive.keys)
}

func TestRunCycleAlertsOnChange(t *testing.T) {
	d := monitored("d-1", "example.com")
	h := newHarness(d)
	ctx := context.Background()

	h.loop.RunCycle(ctx, []*domains.Domain{d}, nil)

	h.resolver.TXT["example.com"] = []string{"v=spf1 include:_spf.google.com -all"}
	h.resolver.MX["example.com"] = []string{"10 mx.example.com", "20 mx2.example.com"}

	rep := h.loop.RunCycle(ctx, []*domains.Domain{d}, nil)
	assert.Equal(t, CycleReport{Scanned: 1, Alerts: 2}, rep)

	require.Len(t, h.alerts.list, 2)
	spf := h.alerts.list[0]
	assert.Equal(t, scans.RecordSPF, spf.RecordType)
	assert.Equal(t, "v=spf1 include:_spf.google.com ~all", spf.OldValue)
	assert.Equal(t, "v=spf1 include:_spf.google.com -all", spf.NewValue)
	assert.Equal(t, scans.SeverityWarn, spf.Severity)
	assert.Equal(t, "acme", spf.TenantID)
	assert.NotEqual(t, spf.ScanID, spf.PreviousScanID)
	assert.Equal(t, scans.RecordMX, h.alerts.list[1].RecordType)

	require.Len(t, h.notifier.sent, 2)
	assert.Equal(t, "example.com", h.notifier.sent[0].Domain)
	assert.Equal(t, []string{"acme/example.com/diffs/" + string(spf.ScanID) + ".json"}, h.archive.keys)
	assert.Equal(t, 2, h.metrics.raised)
}

func TestRunCycleIsolatesFailingDomain(t *testing.T) {
	good := monitored("d-1", "example.com")
	bad := monitored("d-2", "not a domain")
	other := monitored("d-3", "example.org")
	h := newHarness()

	rep := h.loop.RunCycle(context.Background(), []*domains.Domain{good, bad, other}, nil)
	assert.Equal(t, CycleReport{Scanned: 2, Failed: 1}, rep)
	assert.Equal(t, 1, h.scans.count("d-1"))
	assert.Equal(t, 1, h.scans.count("d-3"))

	require.Len(t, h.errors.list, 1)
	assert.Equal(t, "d-2", h.errors.list[0].DomainID)
	assert.Equal(t, scanerrors.PhaseScan, h.errors.list[0].Phase)
	assert.Equal(t, 2, h.metrics.ok)
	assert.Equal(t, 1, h.metrics.failed)
}

func TestRunCyclePanickingAdapterFailsOnlyThatDomain(t *testing.T) {
	com := monitored("d-1", "example.com")
	org := monitored("d-2", "example.org")
	h := newHarness(com, org)
	ctx := context.Background()
	list := []*domains.Domain{com, org}
	h.loop.RunCycle(ctx, list, nil)

	h.notifier.panicFor = "example.com"
	h.resolver.TXT["example.com"] = []string{"v=spf1 include:_spf.google.com -all"}
	h.resolver.MX["example.org"] = []string{"10 mx.example.org", "20 mx2.example.org"}

	var rep CycleReport
	require.NotPanics(t, func() { rep = h.loop.RunCycle(ctx, list, nil) })
	assert.Equal(t, CycleReport{Scanned: 1, Failed: 1, Alerts: 1}, rep)
	assert.Equal(t, 2, h.scans.count("d-2"), "next domain is still scanned")

	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, "example.org", h.notifier.sent[0].Domain)

	require.Len(t, h.errors.list, 1)
	assert.Equal(t, "d-1", h.errors.list[0].DomainID)
	assert.Equal(t, scanerrors.PhaseScan, h.errors.list[0].Phase)
	assert.Contains(t, h.errors.list[0].Message, "nil transport")
	assert.Equal(t, 1, h.metrics.failed)
}

func TestRunCycleNotifyFailureKeepsScan(t *testing.T) {
	d := monitored("d-1", "example.com")
	h := newHarness(d)
	ctx := context.Background()
	h.loop.RunCycle(ctx, []*domains.Domain{d}, nil)

	h.notifier.err = errors.New("smtp down")
	h.resolver.TXT["_dmarc.example.com"] = []string{"v=DMARC1; p=none; rua=mailto:x@example.com"}

	rep := h.loop.RunCycle(ctx, []*domains.Domain{d}, nil)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Alerts, "alert is stored even though delivery failed")
	assert.Equal(t, 2, h.scans.count("d-1"))
	require.Len(t, h.errors.list, 1)
	assert.Equal(t, scanerrors.PhaseNotify, h.errors.list[0].Phase)
}

func TestRunCycleAlertSaveFailureStillNotifies(t *testing.T) {
	d := monitored("d-1", "example.com")
	h := newHarness(d)
	ctx := context.Background()
	h.loop.RunCycle(ctx, []*domains.Domain{d}, nil)

	h.alerts.saveErr = errors.New("db down")
	h.resolver.MX["example.com"] = []string{"5 new.example.com"}

	rep := h.loop.RunCycle(ctx, []*domains.Domain{d}, nil)
	assert.Equal(t, CycleReport{Scanned: 0, Failed: 1}, rep)
	assert.Len(t, h.notifier.sent, 1)
}

func TestRunCycleSkipsUnmonitoredAndPlans(t *testing.T) {
	free := monitored("d-1", "example.com")
	free.OwnerPlan = "free"
	off := monitored("d-2", "example.org")
	off.Monitoring = false
	pro := monitored("d-3", "example.org")
	h := newHarness()

	rep := h.loop.RunCycle(context.Background(), []*domains.Domain{free, off, pro, nil}, PlanAllowList([]string{"Pro", "enterprise"}))
	assert.Equal(t, CycleReport{Scanned: 1, Skipped: 3}, rep)
	assert.Equal(t, 1, h.scans.count("d-3"))
}

func TestRunCycleStopsBetweenDomains(t *testing.T) {
	a := monitored("d-1", "example.com")
	b := monitored("d-2", "example.org")
	h := newHarness()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	plan := func(context.Context, *domains.Domain) bool {
		calls++
		if calls == 1 {
			// cancelled while the first domain is about to run
			cancel()
		}
		return true
	}

	rep := h.loop.RunCycle(ctx, []*domains.Domain{a, b}, plan)
	assert.Equal(t, CycleReport{Scanned: 1}, rep, "in-flight domain completes")
	assert.Equal(t, 1, h.scans.count("d-1"))
	assert.Zero(t, h.scans.count("d-2"))
}

func TestRunCycleSaveFailure(t *testing.T) {
	d := monitored("d-1", "example.com")
	h := newHarness(d)
	h.scans.saveErr = errors.New("disk full")

	rep := h.loop.RunCycle(context.Background(), []*domains.Domain{d}, nil)
	assert.Equal(t, CycleReport{Failed: 1}, rep)
	require.Len(t, h.errors.list, 1)
	assert.Equal(t, scanerrors.PhasePersist, h.errors.list[0].Phase)
	assert.NotEmpty(t, h.errors.list[0].ScanID)
}

func TestPlanAllowList(t *testing.T) {
	ctx := context.Background()
	assert.True(t, PlanAllowList(nil)(ctx, &domains.Domain{OwnerPlan: "free"}))

	check := PlanAllowList([]string{" Pro "})
	assert.True(t, check(ctx, &domains.Domain{OwnerPlan: "PRO"}))
	assert.False(t, check(ctx, &domains.Domain{OwnerPlan: "free"}))
}

func TestRunStopsOnCancel(t *testing.T) {
	d := monitored("d-1", "example.com")
	h := newHarness(d)
	h.loop.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.loop.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return h.scans.count("d-1") >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
