package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/bryanwahyu/mailposture/internal/domain/scans"
)

// counters is the process-wide metric set served at /metrics.
type counters struct {
	requests   atomic.Uint64
	inFlight   atomic.Int64
	reqOK      atomic.Uint64
	reqFailed  atomic.Uint64
	scans      atomic.Uint64
	scansLive  atomic.Int64
	scanErrors atomic.Uint64
	verdicts   [3]atomic.Uint64 // pass, warn, fail
	monScans   atomic.Uint64
	monFailed  atomic.Uint64
	alerts     atomic.Uint64
	started    time.Time
}

var global = &counters{started: time.Now()}

func verdictIndex(s scans.Status) int {
	switch s {
	case scans.StatusPass:
		return 0
	case scans.StatusWarn:
		return 1
	case scans.StatusFail:
		return 2
	}
	return -1
}

// ScanStarted marks an on-demand scan as running. Call the returned func
// with the outcome once it finishes.
func ScanStarted() func(overall scans.Status, err error) {
	global.scans.Add(1)
	global.scansLive.Add(1)
	return func(overall scans.Status, err error) {
		global.scansLive.Add(-1)
		if err != nil {
			global.scanErrors.Add(1)
			return
		}
		if i := verdictIndex(overall); i >= 0 {
			global.verdicts[i].Add(1)
		}
	}
}

// MonitorMetrics feeds monitoring loop counters into the global metrics.
type MonitorMetrics struct{}

func (MonitorMetrics) ScanFinished(failed bool) {
	global.monScans.Add(1)
	if failed {
		global.monFailed.Add(1)
	}
}

func (MonitorMetrics) AlertRaised() {
	global.alerts.Add(1)
}

// GetMetrics returns a snapshot of every counter.
func GetMetrics() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]any{
		"requests_total":       global.requests.Load(),
		"requests_in_progress": global.inFlight.Load(),
		"requests_success":     global.reqOK.Load(),
		"requests_failed":      global.reqFailed.Load(),
		"scans_total":          global.scans.Load(),
		"scans_running":        global.scansLive.Load(),
		"scans_failed":         global.scanErrors.Load(),
		"scans_by_verdict": map[string]uint64{
			"pass": global.verdicts[0].Load(),
			"warn": global.verdicts[1].Load(),
			"fail": global.verdicts[2].Load(),
		},
		"monitor_scans_total":  global.monScans.Load(),
		"monitor_scans_failed": global.monFailed.Load(),
		"alerts_raised":        global.alerts.Load(),
		"uptime_seconds":       time.Since(global.started).Seconds(),
		"memory": map[string]any{
			"alloc_bytes": m.Alloc,
			"sys_bytes":   m.Sys,
			"num_gc":      m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware counts requests by outcome. 4xx and 5xx are failures.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		global.requests.Add(1)
		global.inFlight.Add(1)
		defer global.inFlight.Add(-1)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode < 400 {
			global.reqOK.Add(1)
		} else {
			global.reqFailed.Add(1)
		}
	})
}

func MetricsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(GetMetrics())
}
