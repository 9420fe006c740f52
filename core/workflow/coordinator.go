// Package workflow orchestrates the assignment registry, the milestone
// scheduler and the notification dispatcher: an external event comes in, the
// owning component applies it, state changes are translated into
// notifications, and the set of committed changes goes back to the caller.
package workflow

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/maendeleo/core"
	"github.com/trezcool/maendeleo/core/assignment"
	"github.com/trezcool/maendeleo/core/directory"
	"github.com/trezcool/maendeleo/core/milestone"
	"github.com/trezcool/maendeleo/core/notification"
	"github.com/trezcool/maendeleo/core/staff"
)

type (
	// Result collects the side effects committed while handling one event, for
	// the caller to persist/deliver downstream.
	Result struct {
		Assignment    *assignment.Assignment      `json:"assignment,omitempty"`
		Milestones    []milestone.Instance        `json:"milestones,omitempty"`
		Notifications []notification.Notification `json:"notifications,omitempty"`
		Unmatched     bool                        `json:"unmatched,omitempty"`
	}

	Coordinator struct {
		assignments *assignment.Service
		milestones  *milestone.Service
		notifier    *notification.Service
		dir         directory.Directory
		clock       core.Clock
		logger      core.Logger
	}
)

func NewCoordinator(
	assignments *assignment.Service,
	milestones *milestone.Service,
	notifier *notification.Service,
	dir directory.Directory,
	clock core.Clock,
	logger core.Logger,
) *Coordinator {
	return &Coordinator{
		assignments: assignments,
		milestones:  milestones,
		notifier:    notifier,
		dir:         dir,
		clock:       clock,
		logger:      logger,
	}
}

// RequestAssignment records a Pending request. The request's department is
// the student's own, looked up in the directory; a caller cannot steer a
// request into another department's approval queue.
func (c *Coordinator) RequestAssignment(ctx context.Context, na assignment.NewAssignment, requestedBy string) (Result, error) {
	st, err := c.dir.GetStudent(ctx, na.StudentID)
	if err != nil {
		return Result{}, err
	}
	a, err := c.assignments.Request(ctx, na, requestedBy, st.DepartmentID)
	if err != nil {
		return Result{}, err
	}
	return Result{Assignment: &a}, nil
}

// DecideAssignment applies an approver's decision. Approving a main
// supervisor additionally seeds the student's milestone set from the template
// catalog; every successful decision dispatches a notification to both parties.
func (c *Coordinator) DecideAssignment(ctx context.Context, id string, decision assignment.Decision, actor staff.Actor, remarks string) (Result, error) {
	a, err := c.assignments.Decide(ctx, id, decision, actor, remarks)
	if err != nil {
		return Result{}, err
	}
	res := Result{Assignment: &a}

	if a.IsApproved() && a.Type == assignment.TypeMainSupervisor {
		st, err := c.dir.GetStudent(ctx, a.StudentID)
		if err != nil {
			return res, errors.Wrap(err, "resolving student for milestone materialization")
		}
		created, err := c.milestones.MaterializeForStudent(ctx, st.ID, st.ProgramID, st.DepartmentID, st.EnrollmentDate)
		if err != nil {
			return res, errors.Wrap(err, "materializing milestones")
		}
		res.Milestones = created
	}

	kind := notification.AssignmentApproved
	if a.Status == assignment.StatusRejected {
		kind = notification.AssignmentRejected
	}
	notifs, err := c.notifier.Dispatch(ctx, notification.Event{
		Kind:        kind,
		StudentID:   a.StudentID,
		StaffID:     a.StaffID,
		ActorID:     actor.ID,
		RelatedType: notification.RelatedAssignment,
		RelatedID:   a.ID,
		Subject:     a.Type.Label(),
	})
	if err != nil {
		return res, errors.Wrap(err, "dispatching assignment decision")
	}
	res.Notifications = notifs
	return res, nil
}

// RecordSubmission closes the matching Active milestone for a freshly stored
// document. An unmatched submission is accepted as-is and dispatches nothing.
func (c *Coordinator) RecordSubmission(ctx context.Context, studentID, documentType string, submittedAt time.Time) (Result, error) {
	sub, err := c.milestones.RecordSubmission(ctx, studentID, documentType, submittedAt)
	if err != nil {
		return Result{}, err
	}
	if sub.Unmatched {
		return Result{Unmatched: true}, nil
	}
	res := Result{Milestones: []milestone.Instance{*sub.Instance}}

	supervisorID, err := c.assignments.ApprovedMainSupervisor(ctx, studentID)
	if err != nil {
		return res, errors.Wrap(err, "resolving main supervisor")
	}
	notifs, err := c.notifier.Dispatch(ctx, notification.Event{
		Kind:        notification.MilestoneCompleted,
		StudentID:   studentID,
		StaffID:     supervisorID,
		RelatedType: notification.RelatedMilestone,
		RelatedID:   sub.Instance.ID,
		Subject:     sub.Instance.Name,
		Deadline:    sub.Instance.Deadline,
	})
	if err != nil {
		return res, errors.Wrap(err, "dispatching milestone completion")
	}
	res.Notifications = notifs
	return res, nil
}

// ScanDeadlines runs one scheduler tick: classify every Active milestone
// against now, commit Overdue transitions, and dispatch reminder/overdue
// notifications. Each instance transition is independently atomic, so partial
// progress from a timed-out tick is safe; the next tick picks up the rest.
func (c *Coordinator) ScanDeadlines(ctx context.Context, now time.Time) (Result, error) {
	hits, err := c.milestones.ScanDeadlines(ctx, now)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, hit := range hits {
		inst := hit.Instance
		kind := notification.MilestoneReminderDue
		if hit.Outcome == milestone.ScanOverdue {
			flipped, err := c.milestones.MarkOverdue(ctx, inst.ID, now)
			if err != nil {
				if core.IsInvalidState(err) {
					// an overlapping tick or a live submission got there first
					c.logger.Debug("skipping overdue transition", map[string]interface{}{"milestone": inst.ID})
					continue
				}
				return res, errors.Wrap(err, "marking milestone overdue")
			}
			inst = flipped
			kind = notification.MilestoneOverdue
			res.Milestones = append(res.Milestones, inst)
		}

		supervisorID, err := c.assignments.ApprovedMainSupervisor(ctx, inst.StudentID)
		if err != nil {
			return res, errors.Wrap(err, "resolving main supervisor")
		}
		notifs, err := c.notifier.Dispatch(ctx, notification.Event{
			Kind:        kind,
			StudentID:   inst.StudentID,
			StaffID:     supervisorID,
			RelatedType: notification.RelatedMilestone,
			RelatedID:   inst.ID,
			Subject:     inst.Name,
			Deadline:    inst.Deadline,
		})
		if err != nil {
			return res, errors.Wrap(err, "dispatching deadline notification")
		}
		res.Notifications = append(res.Notifications, notifs...)
	}
	return res, nil
}

func (c *Coordinator) CancelMilestone(ctx context.Context, id, reason string) (Result, error) {
	inst, err := c.milestones.Cancel(ctx, id, reason)
	if err != nil {
		return Result{}, err
	}
	return Result{Milestones: []milestone.Instance{inst}}, nil
}

func (c *Coordinator) OverrideMilestoneDeadline(ctx context.Context, id string, newDeadline time.Time, reason, updatedBy string) (Result, error) {
	inst, err := c.milestones.OverrideDeadline(ctx, id, newDeadline, reason, updatedBy)
	if err != nil {
		return Result{}, err
	}
	return Result{Milestones: []milestone.Instance{inst}}, nil
}
