package milestone

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/maendeleo/core"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("milestone not found")
	ErrTemplateNotFound = core.NewNotFoundError("milestone template not found")
	ErrTerminal         = core.NewInvalidStateError("milestone is completed or cancelled")
	ErrNotActive        = core.NewInvalidStateError("milestone is not active")
)

type (
	Repository interface {
		// templates
		CreateTemplate(ctx context.Context, t Template) (Template, error)
		UpdateTemplate(ctx context.Context, t Template) (Template, error)
		GetTemplateByID(ctx context.Context, id string) (Template, error)
		// FilterTemplates applies AND operation on available TemplateFilter fields;
		// program/department filters also match global templates.
		FilterTemplates(ctx context.Context, filter TemplateFilter) ([]Template, error)

		// instances
		// CreateInstance persists a new instance. When the (studentID, templateID)
		// pair already exists the insert is silently skipped (created=false),
		// making template materialization idempotent under concurrency.
		CreateInstance(ctx context.Context, inst Instance) (created bool, out Instance, err error)
		GetInstanceByID(ctx context.Context, id string) (Instance, error)
		StudentInstances(ctx context.Context, studentID string) ([]Instance, error)
		ActiveInstances(ctx context.Context) ([]Instance, error)
		// FindActiveByDocumentType returns the student's single Active instance
		// matching the document type, or ErrNotFound.
		FindActiveByDocumentType(ctx context.Context, studentID, documentType string) (Instance, error)
		// CompleteInstance flips Active -> Completed as a single conditional write;
		// ErrNotActive when the row is no longer Active.
		CompleteInstance(ctx context.Context, id string, at time.Time) (Instance, error)
		// OverrideInstanceDeadline updates the deadline unless the row is terminal.
		OverrideInstanceDeadline(ctx context.Context, id string, deadline time.Time, reason string, at time.Time) (Instance, error)
		// MarkInstanceOverdue flips Active -> Overdue conditioned on the stored
		// deadline being in the past; ErrNotActive when another tick won the race.
		MarkInstanceOverdue(ctx context.Context, id string, now time.Time) (Instance, error)
		// CancelInstance flips any non-terminal row to Cancelled.
		CancelInstance(ctx context.Context, id, reason string, at time.Time) (Instance, error)
	}

	Service struct {
		repo  Repository
		clock core.Clock
	}
)

func NewService(repo Repository, clock core.Clock) *Service {
	return &Service{repo: repo, clock: clock}
}

// Template catalog

func (svc *Service) CreateTemplate(ctx context.Context, nt NewTemplate) (Template, error) {
	if err := core.Validate.Struct(nt); err != nil {
		return Template{}, err
	}
	t := Template{
		Name:          core.CleanString(nt.Name),
		DocumentType:  null.NewString(nt.DocumentType, nt.DocumentType != ""),
		SortOrder:     nt.SortOrder,
		AlertLeadDays: nt.AlertLeadDays,
		ProgramID:     null.NewString(nt.ProgramID, nt.ProgramID != ""),
		DepartmentID:  null.NewString(nt.DepartmentID, nt.DepartmentID != ""),
		IsActive:      true,
	}
	if nt.DefaultDueDays != nil {
		t.DefaultDueDays = null.IntFrom(*nt.DefaultDueDays)
	}
	return svc.repo.CreateTemplate(ctx, t)
}

func (svc *Service) DeactivateTemplate(ctx context.Context, id string) (Template, error) {
	t, err := svc.repo.GetTemplateByID(ctx, id)
	if err != nil {
		return Template{}, err
	}
	t.IsActive = false
	return svc.repo.UpdateTemplate(ctx, t)
}

// ActiveTemplates resolves the template set applying to a program/department:
// among templates of the same sort order, the narrower scope wins (program
// beats department beats global); ties at equal scope resolve by template id
// ascending so materialization stays deterministic.
func (svc *Service) ActiveTemplates(ctx context.Context, programID, departmentID string) ([]Template, error) {
	all, err := svc.repo.FilterTemplates(ctx, TemplateFilter{
		ProgramID:    programID,
		DepartmentID: departmentID,
		ActiveOnly:   true,
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if a.scopeRank() != b.scopeRank() {
			return a.scopeRank() > b.scopeRank()
		}
		return a.ID < b.ID
	})

	selected := make([]Template, 0, len(all))
	for _, t := range all {
		if n := len(selected); n > 0 && selected[n-1].SortOrder == t.SortOrder {
			continue // a narrower (or earlier-id) template already holds this slot
		}
		selected = append(selected, t)
	}
	return selected, nil
}

// Scheduler

// MaterializeForStudent creates one instance per applicable active template.
// defaultDueDays (when set) yields deadline = enrollmentDate + that many days;
// otherwise the deadline stays unset until overridden. Idempotent: instances
// already created from a template are skipped, not duplicated.
func (svc *Service) MaterializeForStudent(ctx context.Context, studentID, programID, departmentID string, enrollmentDate time.Time) ([]Instance, error) {
	tmpls, err := svc.ActiveTemplates(ctx, programID, departmentID)
	if err != nil {
		return nil, err
	}

	now := svc.clock.Now()
	created := make([]Instance, 0, len(tmpls))
	for _, t := range tmpls {
		inst := Instance{
			StudentID:     studentID,
			TemplateID:    null.StringFrom(t.ID),
			Name:          t.Name,
			DocumentType:  t.DocumentType,
			AlertLeadDays: t.AlertLeadDays,
			Status:        StatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if t.DefaultDueDays.Valid {
			inst.Deadline = null.TimeFrom(enrollmentDate.UTC().AddDate(0, 0, t.DefaultDueDays.Int))
		}
		ok, out, err := svc.repo.CreateInstance(ctx, inst)
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, out)
		}
	}
	return created, nil
}

// ScheduleAdHoc creates a milestone not backed by any template.
func (svc *Service) ScheduleAdHoc(ctx context.Context, na NewAdHoc) (Instance, error) {
	if err := core.Validate.Struct(na); err != nil {
		return Instance{}, err
	}
	now := svc.clock.Now()
	inst := Instance{
		StudentID:     na.StudentID,
		Name:          core.CleanString(na.Name),
		DocumentType:  null.NewString(na.DocumentType, na.DocumentType != ""),
		AlertLeadDays: na.AlertLeadDays,
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if na.Deadline != nil {
		inst.Deadline = null.TimeFrom(na.Deadline.UTC())
	}
	_, out, err := svc.repo.CreateInstance(ctx, inst)
	return out, err
}

func (svc *Service) OverrideDeadline(ctx context.Context, id string, newDeadline time.Time, reason, updatedBy string) (Instance, error) {
	if reason == "" {
		return Instance{}, core.NewValidationError(
			nil, core.FieldError{Field: "reason", Error: "a reason is required to override a deadline"})
	}
	return svc.repo.OverrideInstanceDeadline(ctx, id, newDeadline.UTC(), reason, svc.clock.Now())
}

// RecordSubmission marks the student's matching Active milestone Completed.
// A submission with no matching Active instance is accepted but flagged
// unmatched: students may submit ahead of, or without, a formal milestone.
func (svc *Service) RecordSubmission(ctx context.Context, studentID, documentType string, submittedAt time.Time) (SubmissionResult, error) {
	inst, err := svc.repo.FindActiveByDocumentType(ctx, studentID, documentType)
	if err != nil {
		if core.IsNotFound(err) {
			return SubmissionResult{Unmatched: true}, nil
		}
		return SubmissionResult{}, err
	}
	done, err := svc.repo.CompleteInstance(ctx, inst.ID, submittedAt.UTC())
	if err != nil {
		if core.IsInvalidState(err) {
			// a concurrent submission or cancellation got there first
			return SubmissionResult{Unmatched: true}, nil
		}
		return SubmissionResult{}, err
	}
	return SubmissionResult{Instance: &done}, nil
}

func (svc *Service) Cancel(ctx context.Context, id, reason string) (Instance, error) {
	if reason == "" {
		return Instance{}, core.NewValidationError(
			nil, core.FieldError{Field: "reason", Error: "a reason is required to cancel a milestone"})
	}
	return svc.repo.CancelInstance(ctx, id, reason, svc.clock.Now())
}

func (svc *Service) GetByID(ctx context.Context, id string) (Instance, error) {
	return svc.repo.GetInstanceByID(ctx, id)
}

func (svc *Service) StudentInstances(ctx context.Context, studentID string) ([]Instance, error) {
	return svc.repo.StudentInstances(ctx, studentID)
}

// ScanDeadlines classifies every Active instance against now. Pure: no status
// is mutated here; the coordinator commits Overdue transitions one by one.
func (svc *Service) ScanDeadlines(ctx context.Context, now time.Time) ([]ScanHit, error) {
	active, err := svc.repo.ActiveInstances(ctx)
	if err != nil {
		return nil, err
	}
	hits := make([]ScanHit, 0, len(active))
	for _, inst := range active {
		if outcome := Classify(inst, now); outcome != ScanNone {
			hits = append(hits, ScanHit{Instance: inst, Outcome: outcome})
		}
	}
	return hits, nil
}

// MarkOverdue commits a single Overdue transition reported by a scan.
func (svc *Service) MarkOverdue(ctx context.Context, id string, now time.Time) (Instance, error) {
	return svc.repo.MarkInstanceOverdue(ctx, id, now)
}
