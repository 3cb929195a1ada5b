package notify

import (
	"context"
	"log/slog"

	"github.com/bryanwahyu/mailposture/internal/domain/alerts"
	"github.com/bryanwahyu/mailposture/internal/domain/scans"
)

// LogNotifier writes change notifications to the structured log. Delivery
// transports (email, Slack, webhooks) plug in behind alerts.Notifier.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, a alerts.Notification) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(ctx, levelFor(a), "dns record changed",
		slog.String("domain_id", a.DomainID),
		slog.String("domain", a.Domain),
		slog.String("record_type", a.RecordType),
		slog.String("old_value", a.OldValue),
		slog.String("new_value", a.NewValue),
		slog.String("severity", string(a.Severity)),
	)
	return nil
}

func levelFor(a alerts.Notification) slog.Level {
	switch a.Severity {
	case scans.SeverityFail:
		return slog.LevelError
	case scans.SeverityWarn:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
