package audit

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizportal.io/portal/internal/domain"
)

func TestRow_RendersJoinedEntities(t *testing.T) {
	rec := LogRecord{
		ID:           "log-1",
		Action:       domain.ActionMadeAvailable,
		Notes:        "back in pool",
		CreatedAt:    time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600)),
		Port:         &PortRef{ID: "port-1", Exists: true, InstanceURL: "https://erp-01", Status: domain.PortStatusAvailable},
		Subscription: &SubscriptionRef{ID: "sub-1", Exists: true},
		Customer:     &Ref{ID: "cust-1", Exists: true, Name: "Acme", Email: "ops@acme.test"},
		Plan:         &Ref{ID: "plan-1", Exists: true, Name: "Pro"},
		Performer:    &Ref{ID: "user-1", Exists: true, Name: "Dana", Email: "dana@portal.test"},
	}

	assert.Equal(t, []string{
		"2026-03-04 04:06:07", "Made Available", "https://erp-01", "AVAILABLE", "Acme", "ops@acme.test", "Pro",
		"sub-1", "Dana", "dana@portal.test", "back in pool", "log-1", "port-1", "cust-1",
	}, Row(rec))
}

func TestRow_DeletedVersusAbsent(t *testing.T) {
	tests := []struct {
		name string
		rec  LogRecord
		want map[string]string
	}{
		{
			name: "ids absent render empty",
			rec:  LogRecord{ID: "log-1", Action: domain.ActionCreated},
			want: map[string]string{
				"Port URL": "", "Port Status": "", "Customer Name": "", "Customer Email": "", "Plan": "",
				"Subscription ID": "", "Performed By": "", "Performer Email": "", "Port ID": "", "Customer ID": "",
			},
		},
		{
			name: "ids present but rows gone render Deleted",
			rec: LogRecord{
				ID:           "log-2",
				Action:       domain.ActionReleased,
				Port:         &PortRef{ID: "port-9"},
				Subscription: &SubscriptionRef{ID: "sub-9"},
				Customer:     &Ref{ID: "cust-9"},
				Performer:    &Ref{ID: "user-9"},
			},
			want: map[string]string{
				"Port URL": "Deleted", "Port Status": "", "Customer Name": "Deleted", "Customer Email": "",
				"Plan": "Deleted", "Subscription ID": "sub-9", "Performed By": "Deleted", "Performer Email": "",
				"Port ID": "port-9", "Customer ID": "cust-9",
			},
		},
		{
			name: "subscription without plan renders empty plan",
			rec: LogRecord{
				ID:           "log-3",
				Action:       domain.ActionAssigned,
				Subscription: &SubscriptionRef{ID: "sub-3", Exists: true},
			},
			want: map[string]string{"Plan": "", "Subscription ID": "sub-3"},
		},
		{
			name: "plan removed under live subscription renders Deleted",
			rec: LogRecord{
				ID:           "log-4",
				Action:       domain.ActionAssigned,
				Subscription: &SubscriptionRef{ID: "sub-4", Exists: true},
				Plan:         &Ref{ID: "plan-4"},
			},
			want: map[string]string{"Plan": "Deleted"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := Row(tt.rec)
			require.Len(t, row, len(ExportHeader))
			for col, want := range tt.want {
				assert.Equal(t, want, row[columnIndex(t, col)], col)
			}
		})
	}
}

func TestCSVWriter_BOMAndHeader(t *testing.T) {
	var buf bytes.Buffer
	cw, err := newCSVWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, cw.Write(Row(LogRecord{
		ID:        "log-1",
		Action:    domain.ActionStatusChanged,
		Notes:     `quoted "note", with comma`,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})))
	cw.Flush()
	require.NoError(t, cw.Error())

	raw := buf.Bytes()
	require.True(t, bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}))

	records, err := csv.NewReader(bytes.NewReader(raw[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ExportHeader, records[0])
	assert.Equal(t, "Status Changed", records[1][1])
	assert.Equal(t, `quoted "note", with comma`, records[1][10])
}

func TestExportFilename(t *testing.T) {
	got := ExportFilename(time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC))
	assert.Equal(t, "port-allocation-logs-20261019-083000.csv", got)
}

func columnIndex(t *testing.T, name string) int {
	t.Helper()
	for i, h := range ExportHeader {
		if h == name {
			return i
		}
	}
	t.Fatalf("unknown column %q", name)
	return -1
}
