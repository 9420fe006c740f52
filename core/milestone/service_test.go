package milestone_test

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/maendeleo/core"
	"github.com/trezcool/maendeleo/core/milestone"
	"github.com/trezcool/maendeleo/tests"
)

var (
	now        = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	enrollment = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

func TestServiceCreateTemplate(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, now, 24*time.Hour)
	svc := eng.MilestoneSvc

	t.Run("creates an active template", func(t *testing.T) {
		tpl, err := svc.CreateTemplate(ctx, milestone.NewTemplate{
			Name:           "Research Proposal",
			DocumentType:   "proposal",
			SortOrder:      10,
			DefaultDueDays: testutil.IntPtr(90),
			AlertLeadDays:  14,
		})
		if err != nil {
			t.Fatalf("CreateTemplate() failed: %v", err)
		}
		if tpl.ID == "" || !tpl.IsActive {
			t.Errorf("CreateTemplate() = %+v, want an active row with an id", tpl)
		}
		if tpl.DefaultDueDays.Int != 90 {
			t.Errorf("DefaultDueDays = %v, want 90", tpl.DefaultDueDays)
		}
	})

	t.Run("name is required", func(t *testing.T) {
		if _, err := svc.CreateTemplate(ctx, milestone.NewTemplate{}); err == nil {
			t.Error("CreateTemplate() expected a validation error")
		}
	})

	t.Run("due days must be positive", func(t *testing.T) {
		_, err := svc.CreateTemplate(ctx, milestone.NewTemplate{Name: "Nope", DefaultDueDays: testutil.IntPtr(0)})
		if err == nil {
			t.Error("CreateTemplate() expected a validation error")
		}
	})
}

func TestServiceActiveTemplates(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, now, 24*time.Hour)
	svc := eng.MilestoneSvc

	global := testutil.CreateTemplate(t, svc, "Proposal", "proposal", 10, testutil.IntPtr(90), 14, "", "")
	dept := testutil.CreateTemplate(t, svc, "Proposal (Engineering)", "proposal", 10, testutil.IntPtr(120), 14, "", "eng")
	prog := testutil.CreateTemplate(t, svc, "Proposal (PhD CS)", "proposal", 10, testutil.IntPtr(60), 14, "phd-cs", "eng")
	review := testutil.CreateTemplate(t, svc, "Literature Review", "literature_review", 20, testutil.IntPtr(180), 14, "", "")

	t.Run("unscoped student gets the globals", func(t *testing.T) {
		got, err := svc.ActiveTemplates(ctx, "", "")
		if err != nil {
			t.Fatalf("ActiveTemplates() failed: %v", err)
		}
		if len(got) != 2 || got[0].ID != global.ID || got[1].ID != review.ID {
			t.Errorf("ActiveTemplates() = %+v, want [global, review]", got)
		}
	})

	t.Run("department template shadows the global", func(t *testing.T) {
		got, err := svc.ActiveTemplates(ctx, "", "eng")
		if err != nil {
			t.Fatalf("ActiveTemplates() failed: %v", err)
		}
		if len(got) != 2 || got[0].ID != dept.ID {
			t.Errorf("ActiveTemplates() = %+v, want the department template first", got)
		}
	})

	t.Run("program template shadows both", func(t *testing.T) {
		got, err := svc.ActiveTemplates(ctx, "phd-cs", "eng")
		if err != nil {
			t.Fatalf("ActiveTemplates() failed: %v", err)
		}
		if len(got) != 2 || got[0].ID != prog.ID {
			t.Errorf("ActiveTemplates() = %+v, want the program template first", got)
		}
	})

	t.Run("deactivated templates drop out", func(t *testing.T) {
		if _, err := svc.DeactivateTemplate(ctx, review.ID); err != nil {
			t.Fatalf("DeactivateTemplate() failed: %v", err)
		}
		got, err := svc.ActiveTemplates(ctx, "", "")
		if err != nil {
			t.Fatalf("ActiveTemplates() failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != global.ID {
			t.Errorf("ActiveTemplates() = %+v, want only the global proposal", got)
		}
	})
}

func TestServiceMaterializeForStudent(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, now, 24*time.Hour)
	svc := eng.MilestoneSvc

	testutil.CreateTemplate(t, svc, "Proposal", "proposal", 10, testutil.IntPtr(90), 14, "", "")
	testutil.CreateTemplate(t, svc, "Open-ended", "", 20, nil, 0, "", "")

	created, err := svc.MaterializeForStudent(ctx, "std1", "", "", enrollment)
	if err != nil {
		t.Fatalf("MaterializeForStudent() failed: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("MaterializeForStudent() created %d instances, want 2", len(created))
	}

	proposal, open := created[0], created[1]
	wantDeadline := enrollment.AddDate(0, 0, 90) // 2025-04-01
	if !proposal.Deadline.Valid || !proposal.Deadline.Time.Equal(wantDeadline) {
		t.Errorf("proposal deadline = %v, want %v", proposal.Deadline, wantDeadline)
	}
	if proposal.AlertLeadDays != 14 || proposal.Status != milestone.StatusActive {
		t.Errorf("proposal = %+v", proposal)
	}
	if open.Deadline.Valid {
		t.Errorf("open-ended deadline = %v, want unset", open.Deadline)
	}

	// re-materialization is a no-op
	again, err := svc.MaterializeForStudent(ctx, "std1", "", "", enrollment)
	if err != nil {
		t.Fatalf("MaterializeForStudent() failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("MaterializeForStudent() re-created %d instances, want 0", len(again))
	}
}

func TestServiceScheduleAdHoc(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, now, 24*time.Hour)
	svc := eng.MilestoneSvc

	t.Run("creates an active instance without a template", func(t *testing.T) {
		deadline := now.AddDate(0, 1, 0)
		inst, err := svc.ScheduleAdHoc(ctx, milestone.NewAdHoc{
			StudentID:     "std1",
			Name:          "Ethics Clearance",
			DocumentType:  "ethics_form",
			Deadline:      &deadline,
			AlertLeadDays: 7,
		})
		if err != nil {
			t.Fatalf("ScheduleAdHoc() failed: %v", err)
		}
		if inst.TemplateID.Valid || inst.Status != milestone.StatusActive {
			t.Errorf("ScheduleAdHoc() = %+v", inst)
		}
	})

	t.Run("student and name are required", func(t *testing.T) {
		if _, err := svc.ScheduleAdHoc(ctx, milestone.NewAdHoc{}); err == nil {
			t.Error("ScheduleAdHoc() expected a validation error")
		}
	})
}

func TestServiceOverrideDeadline(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, now, 24*time.Hour)
	svc := eng.MilestoneSvc

	schedule := func(t *testing.T, deadline time.Time) milestone.Instance {
		inst, err := svc.ScheduleAdHoc(ctx, milestone.NewAdHoc{
			StudentID: "std1", Name: "Draft", DocumentType: "draft", Deadline: &deadline,
		})
		if err != nil {
			t.Fatalf("ScheduleAdHoc() failed: %v", err)
		}
		return inst
	}

	t.Run("requires a reason", func(t *testing.T) {
		inst := schedule(t, now.AddDate(0, 1, 0))
		if _, err := svc.OverrideDeadline(ctx, inst.ID, now.AddDate(0, 2, 0), "", "dir1"); err == nil {
			t.Error("OverrideDeadline() expected a validation error")
		}
	})

	t.Run("moves the deadline and records the reason", func(t *testing.T) {
		inst := schedule(t, now.AddDate(0, 1, 0))
		newDeadline := now.AddDate(0, 3, 0)
		got, err := svc.OverrideDeadline(ctx, inst.ID, newDeadline, "extension granted", "dir1")
		if err != nil {
			t.Fatalf("OverrideDeadline() failed: %v", err)
		}
		if !got.Deadline.Time.Equal(newDeadline) || got.Reason.String != "extension granted" {
			t.Errorf("OverrideDeadline() = %+v", got)
		}
	})

	t.Run("reactivates an overdue milestone", func(t *testing.T) {
		inst := schedule(t, now.AddDate(0, 0, -1))
		if _, err := svc.MarkOverdue(ctx, inst.ID, now); err != nil {
			t.Fatalf("MarkOverdue() failed: %v", err)
		}
		got, err := svc.OverrideDeadline(ctx, inst.ID, now.AddDate(0, 1, 0), "second chance", "dir1")
		if err != nil {
			t.Fatalf("OverrideDeadline() failed: %v", err)
		}
		if got.Status != milestone.StatusActive {
			t.Errorf("status = %v, want active", got.Status)
		}
	})

	t.Run("terminal milestones are immutable", func(t *testing.T) {
		inst := schedule(t, now.AddDate(0, 1, 0))
		if _, err := svc.Cancel(ctx, inst.ID, "superseded"); err != nil {
			t.Fatalf("Cancel() failed: %v", err)
		}
		_, err := svc.OverrideDeadline(ctx, inst.ID, now.AddDate(0, 2, 0), "too late", "dir1")
		if err != milestone.ErrTerminal {
			t.Errorf("OverrideDeadline() error = %v, want ErrTerminal", err)
		}
	})
}

func TestServiceRecordSubmission(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, now, 24*time.Hour)
	svc := eng.MilestoneSvc

	deadline := now.AddDate(0, 1, 0)
	inst, err := svc.ScheduleAdHoc(ctx, milestone.NewAdHoc{
		StudentID: "std1", Name: "Proposal", DocumentType: "proposal", Deadline: &deadline,
	})
	if err != nil {
		t.Fatalf("ScheduleAdHoc() failed: %v", err)
	}

	t.Run("unknown document type is unmatched", func(t *testing.T) {
		res, err := svc.RecordSubmission(ctx, "std1", "thesis_draft", now)
		if err != nil {
			t.Fatalf("RecordSubmission() failed: %v", err)
		}
		if !res.Unmatched || res.Instance != nil {
			t.Errorf("RecordSubmission() = %+v, want unmatched", res)
		}
	})

	t.Run("matching submission completes the milestone", func(t *testing.T) {
		res, err := svc.RecordSubmission(ctx, "std1", "proposal", now)
		if err != nil {
			t.Fatalf("RecordSubmission() failed: %v", err)
		}
		if res.Unmatched || res.Instance == nil {
			t.Fatalf("RecordSubmission() = %+v, want a completed instance", res)
		}
		if res.Instance.ID != inst.ID || res.Instance.Status != milestone.StatusCompleted {
			t.Errorf("instance = %+v", res.Instance)
		}
		if !res.Instance.CompletedAt.Valid || !res.Instance.CompletedAt.Time.Equal(now) {
			t.Errorf("CompletedAt = %v, want %v", res.Instance.CompletedAt, now)
		}
	})

	t.Run("a repeat submission is unmatched", func(t *testing.T) {
		res, err := svc.RecordSubmission(ctx, "std1", "proposal", now)
		if err != nil {
			t.Fatalf("RecordSubmission() failed: %v", err)
		}
		if !res.Unmatched {
			t.Errorf("RecordSubmission() = %+v, want unmatched", res)
		}
	})
}

func TestServiceScanDeadlines(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, now, 24*time.Hour)
	svc := eng.MilestoneSvc

	dueSoon := now.AddDate(0, 0, 7)
	missed := now.AddDate(0, 0, -1)
	farOff := now.AddDate(0, 6, 0)
	for _, tc := range []struct {
		name     string
		deadline time.Time
		lead     int
	}{
		{"Due Soon", dueSoon, 14},
		{"Missed", missed, 14},
		{"Far Off", farOff, 14},
	} {
		_, err := svc.ScheduleAdHoc(ctx, milestone.NewAdHoc{
			StudentID: "std1", Name: tc.name, Deadline: &tc.deadline, AlertLeadDays: tc.lead,
		})
		if err != nil {
			t.Fatalf("ScheduleAdHoc(%s) failed: %v", tc.name, err)
		}
	}

	hits, err := svc.ScanDeadlines(ctx, now)
	if err != nil {
		t.Fatalf("ScanDeadlines() failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("ScanDeadlines() = %d hits, want 2", len(hits))
	}
	outcomes := map[string]milestone.ScanOutcome{}
	for _, hit := range hits {
		outcomes[hit.Instance.Name] = hit.Outcome
	}
	if outcomes["Due Soon"] != milestone.ScanReminderDue {
		t.Errorf("Due Soon outcome = %v, want reminder", outcomes["Due Soon"])
	}
	if outcomes["Missed"] != milestone.ScanOverdue {
		t.Errorf("Missed outcome = %v, want overdue", outcomes["Missed"])
	}

	t.Run("marking twice loses the race", func(t *testing.T) {
		var missedID string
		for _, hit := range hits {
			if hit.Outcome == milestone.ScanOverdue {
				missedID = hit.Instance.ID
			}
		}
		if _, err := svc.MarkOverdue(ctx, missedID, now); err != nil {
			t.Fatalf("MarkOverdue() failed: %v", err)
		}
		if _, err := svc.MarkOverdue(ctx, missedID, now); !core.IsInvalidState(err) {
			t.Errorf("MarkOverdue() error = %v, want an invalid-state error", err)
		}
	})
}
