package milestone

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

func TestClassify(t *testing.T) {
	// enrolled 1 Jan, due 90 days later, alerts start 14 days before
	deadline := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	active := Instance{
		Status:        StatusActive,
		Deadline:      null.TimeFrom(deadline),
		AlertLeadDays: 14,
	}

	tests := []struct {
		name string
		inst Instance
		now  time.Time
		want ScanOutcome
	}{
		{
			name: "well before the alert window",
			inst: active,
			now:  time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			want: ScanNone,
		},
		{
			name: "inside the alert window",
			inst: active,
			now:  time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
			want: ScanReminderDue,
		},
		{
			name: "exactly at the window edge",
			inst: active,
			now:  deadline.AddDate(0, 0, -14),
			want: ScanReminderDue,
		},
		{
			name: "exactly at the deadline",
			inst: active,
			now:  deadline,
			want: ScanReminderDue,
		},
		{
			name: "past the deadline",
			inst: active,
			now:  time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
			want: ScanOverdue,
		},
		{
			name: "no deadline never fires",
			inst: Instance{Status: StatusActive, AlertLeadDays: 14},
			now:  time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
			want: ScanNone,
		},
		{
			name: "zero lead alerts only once due",
			inst: Instance{Status: StatusActive, Deadline: null.TimeFrom(deadline)},
			now:  time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
			want: ScanNone,
		},
		{
			name: "completed is never scanned",
			inst: Instance{Status: StatusCompleted, Deadline: null.TimeFrom(deadline), AlertLeadDays: 14},
			now:  time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
			want: ScanNone,
		},
		{
			name: "cancelled is never scanned",
			inst: Instance{Status: StatusCancelled, Deadline: null.TimeFrom(deadline), AlertLeadDays: 14},
			now:  time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
			want: ScanNone,
		},
		{
			name: "already overdue is not reclassified",
			inst: Instance{Status: StatusOverdue, Deadline: null.TimeFrom(deadline), AlertLeadDays: 14},
			now:  time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
			want: ScanNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.inst, tt.now); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}
