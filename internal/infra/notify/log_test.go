package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/mailposture/internal/domain/alerts"
	"github.com/bryanwahyu/mailposture/internal/domain/scans"
)

func TestLogNotifierLevels(t *testing.T) {
	tests := []struct {
		severity scans.Severity
		level    string
	}{
		{scans.SeverityFail, "ERROR"},
		{scans.SeverityWarn, "WARN"},
		{scans.SeverityInfo, "INFO"},
	}
	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			var buf bytes.Buffer
			n := LogNotifier{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

			err := n.Notify(context.Background(), alerts.Notification{
				DomainID:   "dom-1",
				Domain:     "example.com",
				RecordType: "DMARC",
				OldValue:   "v=DMARC1; p=reject",
				NewValue:   "v=DMARC1; p=none",
				Severity:   tt.severity,
			})
			require.NoError(t, err)

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tt.level, line["level"])
			assert.Equal(t, "dns record changed", line["msg"])
			assert.Equal(t, "DMARC", line["record_type"])
			assert.Equal(t, "v=DMARC1; p=none", line["new_value"])
		})
	}
}
