package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/mailposture/internal/application"
	"github.com/bryanwahyu/mailposture/internal/domain/alerts"
	"github.com/bryanwahyu/mailposture/internal/domain/domains"
	"github.com/bryanwahyu/mailposture/internal/domain/scanerrors"
	"github.com/bryanwahyu/mailposture/internal/domain/scans"
)

// Scanner runs one on-demand scan. *appscans.Service implements it.
type Scanner interface {
	Scan(ctx context.Context, name string) (scans.ScanResult, error)
}

// PlanCheck reports whether the owner of d may use scheduled monitoring.
type PlanCheck func(ctx context.Context, d *domains.Domain) bool

// PlanAllowList allows owners on one of the given plans. An empty list
// allows everyone.
func PlanAllowList(plans []string) PlanCheck {
	allowed := make(map[string]bool, len(plans))
	for _, p := range plans {
		allowed[strings.ToLower(strings.TrimSpace(p))] = true
	}
	return func(_ context.Context, d *domains.Domain) bool {
		if len(allowed) == 0 {
			return true
		}
		return allowed[strings.ToLower(d.OwnerPlan)]
	}
}

// Recorder receives monitoring counters. middleware.MonitorMetrics implements it.
type Recorder interface {
	ScanFinished(failed bool)
	AlertRaised()
}

type noopRecorder struct{}

func (noopRecorder) ScanFinished(bool) {}
func (noopRecorder) AlertRaised()      {}

// Loop re-scans monitored domains on a fixed cadence and raises alerts for
// record changes. One Loop per deployment.
type Loop struct {
	Scanner   Scanner
	Scans     scans.Repository
	Domains   domains.Repository
	Alerts    alerts.Repository
	Notifier  alerts.Notifier
	Errors    scanerrors.Repository // optional
	Artifacts scans.ArtifactStore   // optional, receives diff audit copies
	PlanCheck PlanCheck
	Metrics   Recorder
	Interval  time.Duration
	Clock     application.Clock
	Logger    *slog.Logger
}

// CycleReport counts what one cycle did.
type CycleReport struct {
	Scanned int `json:"scanned"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Alerts  int `json:"alerts"`
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l *Loop) now() time.Time {
	if l.Clock == nil {
		return time.Now()
	}
	return l.Clock.Now()
}

func (l *Loop) metrics() Recorder {
	if l.Metrics == nil {
		return noopRecorder{}
	}
	return l.Metrics
}

// Run executes a cycle right away and then every Interval until ctx is
// done. Cycles never overlap.
func (l *Loop) Run(ctx context.Context) {
	interval := l.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			l.logger().Info("monitor stopped")
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	list, err := l.Domains.ListMonitored(ctx)
	if err != nil {
		l.logger().Error("list monitored domains", slog.Any("err", err))
		return
	}
	start := l.now()
	rep := l.RunCycle(ctx, list, l.PlanCheck)
	l.logger().Info("monitor cycle done",
		slog.Int("scanned", rep.Scanned),
		slog.Int("skipped", rep.Skipped),
		slog.Int("failed", rep.Failed),
		slog.Int("alerts", rep.Alerts),
		slog.Duration("took", l.now().Sub(start)))
}

// RunCycle processes the domains one after another. A failing domain is
// logged and skipped; cancelling ctx stops the cycle before the next domain,
// never in the middle of one.
func (l *Loop) RunCycle(ctx context.Context, list []*domains.Domain, planCheck PlanCheck) CycleReport {
	var rep CycleReport
	for _, d := range list {
		if ctx.Err() != nil {
			l.logger().Info("monitor cycle interrupted", slog.Int("remaining", len(list)-rep.Scanned-rep.Skipped-rep.Failed))
			break
		}
		if d == nil || !d.Monitoring || (planCheck != nil && !planCheck(ctx, d)) {
			rep.Skipped++
			continue
		}

		n, err := l.safeProcess(context.WithoutCancel(ctx), d)
		rep.Alerts += n
		if err != nil {
			rep.Failed++
			l.metrics().ScanFinished(true)
			l.logger().Error("monitor domain failed",
				slog.String("domain", d.Name),
				slog.String("domain_id", d.ID),
				slog.Any("err", err))
			continue
		}
		rep.Scanned++
		l.metrics().ScanFinished(false)
	}
	return rep
}

// safeProcess turns a panic in any adapter into an error for this domain
// only.
func (l *Loop) safeProcess(ctx context.Context, d *domains.Domain) (n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while processing domain: %v", p)
			l.recordError(ctx, d, "", scanerrors.PhaseScan, err)
		}
	}()
	return l.processDomain(ctx, d)
}

// processDomain returns the number of alerts raised. The prior scan is read
// before the new one is written so a scan is never compared with itself.
func (l *Loop) processDomain(ctx context.Context, d *domains.Domain) (int, error) {
	prev, err := l.Scans.LoadPrevious(ctx, d.ID)
	if err != nil {
		l.recordError(ctx, d, "", scanerrors.PhasePersist, err)
		return 0, fmt.Errorf("load previous scan: %w", err)
	}

	res, err := l.Scanner.Scan(ctx, d.Name)
	if err != nil {
		l.recordError(ctx, d, "", scanerrors.PhaseScan, err)
		return 0, fmt.Errorf("scan: %w", err)
	}
	res.TenantID = d.TenantID
	res.DomainID = d.ID

	if err := l.Scans.Save(ctx, &res); err != nil {
		l.recordError(ctx, d, string(res.ID), scanerrors.PhasePersist, err)
		return 0, fmt.Errorf("save scan: %w", err)
	}
	if prev == nil {
		return 0, nil
	}

	changes := scans.DetectChanges(*prev, res)
	if len(changes) == 0 {
		return 0, nil
	}
	diff := scans.Diff(scans.Normalize(*prev), scans.Normalize(res))
	l.archiveDiff(ctx, d, prev, &res, diff)

	raised := 0
	var errs []error
	for _, c := range changes {
		alert := &alerts.Alert{
			ID:             uuid.New().String(),
			TenantID:       d.TenantID,
			DomainID:       d.ID,
			Domain:         d.Name,
			ScanID:         res.ID,
			PreviousScanID: prev.ID,
			RecordType:     c.RecordType,
			OldValue:       c.OldValue,
			NewValue:       c.NewValue,
			Severity:       diff.Severity,
			CreatedAt:      l.now(),
		}
		if err := l.Alerts.Save(ctx, alert); err != nil {
			l.recordError(ctx, d, string(res.ID), scanerrors.PhaseAlert, err)
			errs = append(errs, fmt.Errorf("save %s alert: %w", c.RecordType, err))
		} else {
			raised++
			l.metrics().AlertRaised()
		}

		err := l.Notifier.Notify(ctx, alerts.Notification{
			DomainID:   d.ID,
			Domain:     d.Name,
			RecordType: c.RecordType,
			OldValue:   c.OldValue,
			NewValue:   c.NewValue,
			Severity:   diff.Severity,
		})
		if err != nil {
			l.recordError(ctx, d, string(res.ID), scanerrors.PhaseNotify, err)
			errs = append(errs, fmt.Errorf("notify %s change: %w", c.RecordType, err))
		}
	}
	return raised, errors.Join(errs...)
}

func (l *Loop) archiveDiff(ctx context.Context, d *domains.Domain, prev, curr *scans.ScanResult, diff scans.DiffResult) {
	if l.Artifacts == nil {
		return
	}
	body, err := json.Marshal(struct {
		DomainID       string           `json:"domain_id"`
		Domain         string           `json:"domain"`
		PreviousScanID scans.ScanID     `json:"previous_scan_id"`
		ScanID         scans.ScanID     `json:"scan_id"`
		Diff           scans.DiffResult `json:"diff"`
	}{d.ID, d.Name, prev.ID, curr.ID, diff})
	if err == nil {
		key := fmt.Sprintf("%s/%s/diffs/%s.json", d.TenantID, d.Name, curr.ID)
		_, err = l.Artifacts.Put(ctx, key, body, "application/json")
	}
	if err != nil {
		l.recordError(ctx, d, string(curr.ID), scanerrors.PhaseArchive, err)
		l.logger().Warn("diff archive failed", slog.String("domain", d.Name), slog.Any("err", err))
	}
}

func (l *Loop) recordError(ctx context.Context, d *domains.Domain, scanID, phase string, cause error) {
	if l.Errors == nil {
		return
	}
	e := &scanerrors.ScanError{
		TenantID:  d.TenantID,
		ScanID:    scanID,
		DomainID:  d.ID,
		Phase:     phase,
		Message:   cause.Error(),
		CreatedAt: l.now(),
	}
	if err := l.Errors.Save(ctx, e); err != nil {
		l.logger().Warn("scan error log failed", slog.String("domain_id", d.ID), slog.Any("err", err))
	}
}
