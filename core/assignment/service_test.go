package assignment_test

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trezcool/maendeleo/core/assignment"
	"github.com/trezcool/maendeleo/core/staff"
	"github.com/trezcool/maendeleo/tests"
)

var (
	now = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

	admin           = staff.Actor{ID: "adm1", Roles: []string{staff.RoleAdminRegistrar}}
	mathDirector    = staff.Actor{ID: "dir1", Roles: []string{staff.RoleDirector}, DepartmentID: "math"}
	physicsDirector = staff.Actor{ID: "dir2", Roles: []string{staff.RoleDirector}, DepartmentID: "physics"}
	supervisor      = staff.Actor{ID: "sup1", Roles: []string{staff.RoleSupervisor}, DepartmentID: "math"}
)

func newRequest(studentID, staffID string, typ assignment.Type) assignment.NewAssignment {
	return assignment.NewAssignment{
		StudentID: studentID,
		StaffID:   staffID,
		StaffRole: staff.RoleSupervisor,
		Type:      typ,
	}
}

func TestServiceRequest(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, now, 24*time.Hour)
	svc := eng.AssignmentSvc

	t.Run("creates a pending request", func(t *testing.T) {
		a, err := svc.Request(ctx, newRequest("std1", "sup1", assignment.TypeMainSupervisor), "adm1", "math")
		if err != nil {
			t.Fatalf("Request() failed: %v", err)
		}
		if a.ID == "" || a.Status != assignment.StatusPending {
			t.Errorf("Request() = %+v, want a pending row with an id", a)
		}
		if a.RequestedBy != "adm1" || !a.RequestedAt.Equal(now) {
			t.Errorf("Request() audit fields = (%s, %s)", a.RequestedBy, a.RequestedAt)
		}
	})

	t.Run("rejects an invalid payload", func(t *testing.T) {
		if _, err := svc.Request(ctx, assignment.NewAssignment{Type: "lol"}, "adm1", "math"); err == nil {
			t.Error("Request() expected a validation error")
		}
	})

	t.Run("duplicate pending request conflicts", func(t *testing.T) {
		_, err := svc.Request(ctx, newRequest("std1", "sup1", assignment.TypeMainSupervisor), "adm1", "math")
		if err != assignment.ErrDuplicateRequest {
			t.Errorf("Request() error = %v, want ErrDuplicateRequest", err)
		}
	})

	t.Run("same staff for a different type is allowed", func(t *testing.T) {
		if _, err := svc.Request(ctx, newRequest("std1", "sup1", assignment.TypeProposalExaminer), "adm1", "math"); err != nil {
			t.Errorf("Request() failed: %v", err)
		}
	})

	t.Run("singular type already approved conflicts", func(t *testing.T) {
		a, err := svc.Request(ctx, newRequest("std2", "sup1", assignment.TypeMainSupervisor), "adm1", "math")
		if err != nil {
			t.Fatalf("Request() failed: %v", err)
		}
		if _, err = svc.Decide(ctx, a.ID, assignment.DecisionApprove, admin, ""); err != nil {
			t.Fatalf("Decide() failed: %v", err)
		}
		_, err = svc.Request(ctx, newRequest("std2", "sup2", assignment.TypeMainSupervisor), "adm1", "math")
		if err != assignment.ErrAlreadyAssigned {
			t.Errorf("Request() error = %v, want ErrAlreadyAssigned", err)
		}
	})

	t.Run("co-supervisors may accumulate", func(t *testing.T) {
		for _, staffID := range []string{"co1", "co2"} {
			a, err := svc.Request(ctx, newRequest("std3", staffID, assignment.TypeCoSupervisor), "adm1", "math")
			if err != nil {
				t.Fatalf("Request(%s) failed: %v", staffID, err)
			}
			if _, err = svc.Decide(ctx, a.ID, assignment.DecisionApprove, admin, ""); err != nil {
				t.Fatalf("Decide(%s) failed: %v", staffID, err)
			}
		}
	})
}

func TestServiceDecide(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, now, 24*time.Hour)
	svc := eng.AssignmentSvc

	request := func(t *testing.T, studentID string) assignment.Assignment {
		a, err := svc.Request(ctx, newRequest(studentID, "sup1", assignment.TypeMainSupervisor), "adm1", "math")
		if err != nil {
			t.Fatalf("Request() failed: %v", err)
		}
		return a
	}

	t.Run("not found", func(t *testing.T) {
		if _, err := svc.Decide(ctx, "nope", assignment.DecisionApprove, admin, ""); err != assignment.ErrNotFound {
			t.Errorf("Decide() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("invalid decision", func(t *testing.T) {
		a := request(t, "std10")
		if _, err := svc.Decide(ctx, a.ID, "maybe", admin, ""); err == nil {
			t.Error("Decide() expected a validation error")
		}
	})

	t.Run("authority matrix", func(t *testing.T) {
		tests := []struct {
			name    string
			actor   staff.Actor
			wantErr error
		}{
			{name: "admin may decide", actor: admin},
			{name: "own-department director may decide", actor: mathDirector},
			{name: "other-department director may not", actor: physicsDirector, wantErr: assignment.ErrNotAuthorized},
			{name: "supervisor may not", actor: supervisor, wantErr: assignment.ErrNotAuthorized},
		}
		for i, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				a := request(t, "auth-std"+string(rune('a'+i)))
				_, err := svc.Decide(ctx, a.ID, assignment.DecisionReject, tt.actor, "no")
				if err != tt.wantErr {
					t.Errorf("Decide() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("approve records the approver", func(t *testing.T) {
		a := request(t, "std11")
		got, err := svc.Decide(ctx, a.ID, assignment.DecisionApprove, mathDirector, "solid proposal")
		if err != nil {
			t.Fatalf("Decide() failed: %v", err)
		}
		if got.Status != assignment.StatusApproved {
			t.Errorf("status = %v, want approved", got.Status)
		}
		if got.ApprovedBy.String != mathDirector.ID || !got.ApprovedAt.Valid {
			t.Errorf("audit fields = (%v, %v)", got.ApprovedBy, got.ApprovedAt)
		}
		if got.Remarks.String != "solid proposal" {
			t.Errorf("remarks = %v", got.Remarks)
		}
	})

	t.Run("a decided request stays decided", func(t *testing.T) {
		a := request(t, "std12")
		if _, err := svc.Decide(ctx, a.ID, assignment.DecisionReject, admin, "no"); err != nil {
			t.Fatalf("Decide() failed: %v", err)
		}
		if _, err := svc.Decide(ctx, a.ID, assignment.DecisionApprove, admin, ""); err != assignment.ErrNotPending {
			t.Errorf("Decide() error = %v, want ErrNotPending", err)
		}
	})

	t.Run("racing approvals for a singular type elect one winner", func(t *testing.T) {
		first := request(t, "std13")
		second, err := svc.Request(ctx, newRequest("std13", "sup2", assignment.TypeMainSupervisor), "adm1", "math")
		if err != nil {
			t.Fatalf("Request() failed: %v", err)
		}
		if _, err = svc.Decide(ctx, first.ID, assignment.DecisionApprove, admin, ""); err != nil {
			t.Fatalf("Decide() failed: %v", err)
		}
		if _, err = svc.Decide(ctx, second.ID, assignment.DecisionApprove, admin, ""); err != assignment.ErrAlreadyAssigned {
			t.Errorf("Decide() error = %v, want ErrAlreadyAssigned", err)
		}
	})

	t.Run("concurrent approvals for a singular type elect one winner", func(t *testing.T) {
		const racers = 8
		pending := make([]assignment.Assignment, 0, racers)
		for i := 0; i < racers; i++ {
			a, err := svc.Request(ctx, newRequest("std15", "race-sup"+strconv.Itoa(i), assignment.TypeMainSupervisor), "adm1", "math")
			if err != nil {
				t.Fatalf("Request(%d) failed: %v", i, err)
			}
			pending = append(pending, a)
		}

		var wins int32
		var wg sync.WaitGroup
		for _, a := range pending {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := svc.Decide(ctx, id, assignment.DecisionApprove, admin, "")
				if err == nil {
					atomic.AddInt32(&wins, 1)
				} else if err != assignment.ErrAlreadyAssigned {
					t.Errorf("Decide() error = %v, want ErrAlreadyAssigned", err)
				}
			}(a.ID)
		}
		wg.Wait()
		if wins != 1 {
			t.Errorf("concurrent approvals succeeded %d times, want exactly 1", wins)
		}
	})

	t.Run("rejection does not block a re-request", func(t *testing.T) {
		a := request(t, "std14")
		if _, err := svc.Decide(ctx, a.ID, assignment.DecisionReject, admin, "revise"); err != nil {
			t.Fatalf("Decide() failed: %v", err)
		}
		if _, err := svc.Request(ctx, newRequest("std14", "sup1", assignment.TypeMainSupervisor), "adm1", "math"); err != nil {
			t.Errorf("Request() after rejection failed: %v", err)
		}
	})
}

func TestServiceApprovedMainSupervisor(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewEngine(t, now, 24*time.Hour)
	svc := eng.AssignmentSvc

	got, err := svc.ApprovedMainSupervisor(ctx, "std20")
	if err != nil {
		t.Fatalf("ApprovedMainSupervisor() failed: %v", err)
	}
	if got != "" {
		t.Errorf("ApprovedMainSupervisor() = %q, want empty", got)
	}

	a, err := svc.Request(ctx, newRequest("std20", "sup9", assignment.TypeMainSupervisor), "adm1", "math")
	if err != nil {
		t.Fatalf("Request() failed: %v", err)
	}
	if _, err = svc.Decide(ctx, a.ID, assignment.DecisionApprove, admin, ""); err != nil {
		t.Fatalf("Decide() failed: %v", err)
	}

	got, err = svc.ApprovedMainSupervisor(ctx, "std20")
	if err != nil {
		t.Fatalf("ApprovedMainSupervisor() failed: %v", err)
	}
	if got != "sup9" {
		t.Errorf("ApprovedMainSupervisor() = %q, want sup9", got)
	}
}
