package milestone

import "time"

// ScanOutcome classifies an Active instance against the clock.
type ScanOutcome string

const (
	ScanNone        ScanOutcome = "none"
	ScanReminderDue ScanOutcome = "reminder_due"
	ScanOverdue     ScanOutcome = "overdue"
)

// ScanHit pairs an instance with its classification.
type ScanHit struct {
	Instance Instance
	Outcome  ScanOutcome
}

// Classify is a pure function of (instance, now). It never mutates status;
// committing an Overdue transition is the caller's job, which keeps the scan
// safe to run repeatedly and from overlapping ticks.
func Classify(inst Instance, now time.Time) ScanOutcome {
	if inst.Status != StatusActive || !inst.Deadline.Valid {
		return ScanNone
	}
	deadline := inst.Deadline.Time
	if now.After(deadline) {
		return ScanOverdue
	}
	lead := time.Duration(inst.AlertLeadDays) * 24 * time.Hour
	if !now.Before(deadline.Add(-lead)) {
		return ScanReminderDue
	}
	return ScanNone
}
