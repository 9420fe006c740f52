package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/maendeleo/core/milestone"
)

type templateRow struct {
	ID             string      `db:"id"`
	Name           string      `db:"name"`
	DocumentType   null.String `db:"document_type"`
	SortOrder      int         `db:"sort_order"`
	DefaultDueDays null.Int    `db:"default_due_days"`
	AlertLeadDays  int         `db:"alert_lead_days"`
	ProgramID      null.String `db:"program_id"`
	DepartmentID   null.String `db:"department_id"`
	IsActive       bool        `db:"is_active"`
}

func (r templateRow) toCore() milestone.Template {
	return milestone.Template{
		ID:             r.ID,
		Name:           r.Name,
		DocumentType:   r.DocumentType,
		SortOrder:      r.SortOrder,
		DefaultDueDays: r.DefaultDueDays,
		AlertLeadDays:  r.AlertLeadDays,
		ProgramID:      r.ProgramID,
		DepartmentID:   r.DepartmentID,
		IsActive:       r.IsActive,
	}
}

type instanceRow struct {
	ID            string      `db:"id"`
	StudentID     string      `db:"student_id"`
	TemplateID    null.String `db:"template_id"`
	Name          string      `db:"name"`
	DocumentType  null.String `db:"document_type"`
	Deadline      null.Time   `db:"deadline"`
	AlertLeadDays int         `db:"alert_lead_days"`
	Status        string      `db:"status"`
	Reason        null.String `db:"reason"`
	CompletedAt   null.Time   `db:"completed_at"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func (r instanceRow) toCore() milestone.Instance {
	return milestone.Instance{
		ID:            r.ID,
		StudentID:     r.StudentID,
		TemplateID:    r.TemplateID,
		Name:          r.Name,
		DocumentType:  r.DocumentType,
		Deadline:      r.Deadline,
		AlertLeadDays: r.AlertLeadDays,
		Status:        milestone.Status(r.Status),
		Reason:        r.Reason,
		CompletedAt:   r.CompletedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func instancesToCore(rows []instanceRow) []milestone.Instance {
	out := make([]milestone.Instance, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out
}

type milestoneRepository struct {
	db *sqlx.DB
}

var _ milestone.Repository = (*milestoneRepository)(nil) // interface compliance check

func NewMilestoneRepository(db *sqlx.DB) *milestoneRepository {
	return &milestoneRepository{db: db}
}

// templates

func (repo *milestoneRepository) CreateTemplate(ctx context.Context, t milestone.Template) (milestone.Template, error) {
	const q = `
		INSERT INTO milestone_template
			(id, name, document_type, sort_order, default_due_days, alert_lead_days, program_id, department_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	t.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, q,
		t.ID, t.Name, t.DocumentType, t.SortOrder, t.DefaultDueDays,
		t.AlertLeadDays, t.ProgramID, t.DepartmentID, t.IsActive,
	)
	if err != nil {
		return milestone.Template{}, errors.Wrap(err, "creating template")
	}
	return t, nil
}

func (repo *milestoneRepository) UpdateTemplate(ctx context.Context, t milestone.Template) (milestone.Template, error) {
	const q = `
		UPDATE milestone_template
		SET name = $2, document_type = $3, sort_order = $4, default_due_days = $5,
		    alert_lead_days = $6, program_id = $7, department_id = $8, is_active = $9
		WHERE id = $1
		RETURNING *`

	var row templateRow
	err := repo.db.QueryRowxContext(ctx, q,
		t.ID, t.Name, t.DocumentType, t.SortOrder, t.DefaultDueDays,
		t.AlertLeadDays, t.ProgramID, t.DepartmentID, t.IsActive,
	).StructScan(&row)
	if err != nil {
		return milestone.Template{}, trapNoRowsErr(err, milestone.ErrTemplateNotFound, "updating template")
	}
	return row.toCore(), nil
}

func (repo *milestoneRepository) GetTemplateByID(ctx context.Context, id string) (milestone.Template, error) {
	const q = `SELECT * FROM milestone_template WHERE id = $1`

	var row templateRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return milestone.Template{}, trapNoRowsErr(err, milestone.ErrTemplateNotFound, "getting template")
	}
	return row.toCore(), nil
}

func (repo *milestoneRepository) FilterTemplates(ctx context.Context, filter milestone.TemplateFilter) ([]milestone.Template, error) {
	// scoped templates only match their own program/department; global ones match all
	q := `
		SELECT * FROM milestone_template
		WHERE (program_id IS NULL OR program_id = $1)
		  AND (department_id IS NULL OR department_id = $2)`
	if filter.ActiveOnly {
		q += ` AND is_active`
	}
	q += ` ORDER BY sort_order, id`

	rows := make([]templateRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, q, filter.ProgramID, filter.DepartmentID); err != nil {
		return nil, errors.Wrap(err, "filtering templates")
	}
	out := make([]milestone.Template, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

// instances

func (repo *milestoneRepository) CreateInstance(ctx context.Context, inst milestone.Instance) (bool, milestone.Instance, error) {
	const q = `
		INSERT INTO milestone_instance
			(id, student_id, template_id, name, document_type, deadline, alert_lead_days, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (student_id, template_id) WHERE template_id IS NOT NULL DO NOTHING`

	inst.ID = uuid.New().String()
	var res sql.Result
	err := withRetry(func() error {
		var err error
		res, err = repo.db.ExecContext(ctx, q,
			inst.ID, inst.StudentID, inst.TemplateID, inst.Name, inst.DocumentType,
			inst.Deadline, inst.AlertLeadDays, inst.Status, inst.CreatedAt, inst.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return false, milestone.Instance{}, errors.Wrap(err, "creating instance")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// another materialization already created this (student, template) pair
		existing, err := repo.getByStudentTemplate(ctx, inst.StudentID, inst.TemplateID.String)
		if err != nil {
			return false, milestone.Instance{}, err
		}
		return false, existing, nil
	}
	return true, inst, nil
}

func (repo *milestoneRepository) getByStudentTemplate(ctx context.Context, studentID, templateID string) (milestone.Instance, error) {
	const q = `SELECT * FROM milestone_instance WHERE student_id = $1 AND template_id = $2`

	var row instanceRow
	if err := repo.db.GetContext(ctx, &row, q, studentID, templateID); err != nil {
		return milestone.Instance{}, trapNoRowsErr(err, milestone.ErrNotFound, "getting instance by template")
	}
	return row.toCore(), nil
}

func (repo *milestoneRepository) GetInstanceByID(ctx context.Context, id string) (milestone.Instance, error) {
	const q = `SELECT * FROM milestone_instance WHERE id = $1`

	var row instanceRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return milestone.Instance{}, trapNoRowsErr(err, milestone.ErrNotFound, "getting instance")
	}
	return row.toCore(), nil
}

func (repo *milestoneRepository) StudentInstances(ctx context.Context, studentID string) ([]milestone.Instance, error) {
	const q = `SELECT * FROM milestone_instance WHERE student_id = $1 ORDER BY created_at, id`

	rows := make([]instanceRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "listing student instances")
	}
	return instancesToCore(rows), nil
}

func (repo *milestoneRepository) ActiveInstances(ctx context.Context) ([]milestone.Instance, error) {
	const q = `SELECT * FROM milestone_instance WHERE status = 'active' ORDER BY created_at, id`

	rows := make([]instanceRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "listing active instances")
	}
	return instancesToCore(rows), nil
}

func (repo *milestoneRepository) FindActiveByDocumentType(ctx context.Context, studentID, documentType string) (milestone.Instance, error) {
	const q = `
		SELECT * FROM milestone_instance
		WHERE student_id = $1 AND document_type = $2 AND status = 'active'
		ORDER BY created_at, id
		LIMIT 1`

	var row instanceRow
	if err := repo.db.GetContext(ctx, &row, q, studentID, documentType); err != nil {
		return milestone.Instance{}, trapNoRowsErr(err, milestone.ErrNotFound, "finding active instance")
	}
	return row.toCore(), nil
}

func (repo *milestoneRepository) CompleteInstance(ctx context.Context, id string, at time.Time) (milestone.Instance, error) {
	const q = `
		UPDATE milestone_instance
		SET status = 'completed', completed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'active'
		RETURNING *`

	return repo.conditionalUpdate(ctx, id, milestone.ErrNotActive, "completing instance", q, id, at)
}

func (repo *milestoneRepository) OverrideInstanceDeadline(ctx context.Context, id string, deadline time.Time, reason string, at time.Time) (milestone.Instance, error) {
	// an extended deadline reactivates a missed (overdue) milestone
	const q = `
		UPDATE milestone_instance
		SET deadline = $2, reason = $3, updated_at = $4,
		    status = CASE WHEN status = 'overdue' THEN 'active' ELSE status END
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')
		RETURNING *`

	return repo.conditionalUpdate(ctx, id, milestone.ErrTerminal, "overriding deadline", q, id, deadline, reason, at)
}

func (repo *milestoneRepository) MarkInstanceOverdue(ctx context.Context, id string, now time.Time) (milestone.Instance, error) {
	const q = `
		UPDATE milestone_instance
		SET status = 'overdue', updated_at = $2
		WHERE id = $1 AND status = 'active' AND deadline IS NOT NULL AND deadline < $2
		RETURNING *`

	return repo.conditionalUpdate(ctx, id, milestone.ErrNotActive, "marking instance overdue", q, id, now)
}

func (repo *milestoneRepository) CancelInstance(ctx context.Context, id, reason string, at time.Time) (milestone.Instance, error) {
	const q = `
		UPDATE milestone_instance
		SET status = 'cancelled', reason = $2, updated_at = $3
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')
		RETURNING *`

	return repo.conditionalUpdate(ctx, id, milestone.ErrTerminal, "cancelling instance", q, id, reason, at)
}

// conditionalUpdate runs a status-guarded UPDATE ... RETURNING. No row back
// means either the guard failed (stateErr) or the id is unknown (ErrNotFound),
// told apart by a re-read.
func (repo *milestoneRepository) conditionalUpdate(ctx context.Context, id string, stateErr error, msg, q string, args ...interface{}) (milestone.Instance, error) {
	var row instanceRow
	err := withRetry(func() error {
		return repo.db.QueryRowxContext(ctx, q, args...).StructScan(&row)
	})
	if err == nil {
		return row.toCore(), nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return milestone.Instance{}, errors.Wrap(err, msg)
	}
	if _, gerr := repo.GetInstanceByID(ctx, id); gerr != nil {
		return milestone.Instance{}, gerr
	}
	return milestone.Instance{}, stateErr
}
