package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/maendeleo/core/milestone"
)

type milestoneRepository struct {
	templates *templateTable
	instances *instanceTable
}

var _ milestone.Repository = (*milestoneRepository)(nil) // interface compliance check

func NewMilestoneRepository(db *DB) *milestoneRepository {
	return &milestoneRepository{templates: db.templates, instances: db.instances}
}

// templates

func (repo *milestoneRepository) CreateTemplate(ctx context.Context, t milestone.Template) (milestone.Template, error) {
	repo.templates.mutex.Lock()
	defer repo.templates.mutex.Unlock()

	t.ID = uuid.New().String()
	repo.templates.t[t.ID] = &t
	return t, nil
}

func (repo *milestoneRepository) UpdateTemplate(ctx context.Context, t milestone.Template) (milestone.Template, error) {
	repo.templates.mutex.Lock()
	defer repo.templates.mutex.Unlock()

	if _, ok := repo.templates.t[t.ID]; !ok {
		return milestone.Template{}, milestone.ErrTemplateNotFound
	}
	repo.templates.t[t.ID] = &t
	return t, nil
}

func (repo *milestoneRepository) GetTemplateByID(ctx context.Context, id string) (milestone.Template, error) {
	repo.templates.mutex.RLock()
	defer repo.templates.mutex.RUnlock()

	if t, ok := repo.templates.t[id]; ok {
		return *t, nil
	}
	return milestone.Template{}, milestone.ErrTemplateNotFound
}

func (repo *milestoneRepository) FilterTemplates(ctx context.Context, filter milestone.TemplateFilter) ([]milestone.Template, error) {
	repo.templates.mutex.RLock()
	defer repo.templates.mutex.RUnlock()

	out := make([]milestone.Template, 0, len(repo.templates.t))
	for _, t := range repo.templates.t {
		if filter.ActiveOnly && !t.IsActive {
			continue
		}
		// scoped templates only match their own program/department; global ones match all
		if t.ProgramID.Valid && t.ProgramID.String != filter.ProgramID {
			continue
		}
		if t.DepartmentID.Valid && t.DepartmentID.String != filter.DepartmentID {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// instances

func (repo *milestoneRepository) CreateInstance(ctx context.Context, inst milestone.Instance) (bool, milestone.Instance, error) {
	repo.instances.mutex.Lock()
	defer repo.instances.mutex.Unlock()

	if inst.TemplateID.Valid {
		// in-memory twin of the (student_id, template_id) unique index
		for _, existing := range repo.instances.t {
			if existing.StudentID == inst.StudentID && existing.TemplateID == inst.TemplateID {
				return false, *existing, nil
			}
		}
	}

	inst.ID = uuid.New().String()
	repo.instances.t[inst.ID] = &inst
	return true, inst, nil
}

func (repo *milestoneRepository) GetInstanceByID(ctx context.Context, id string) (milestone.Instance, error) {
	repo.instances.mutex.RLock()
	defer repo.instances.mutex.RUnlock()

	if inst, ok := repo.instances.t[id]; ok {
		return *inst, nil
	}
	return milestone.Instance{}, milestone.ErrNotFound
}

func (repo *milestoneRepository) StudentInstances(ctx context.Context, studentID string) ([]milestone.Instance, error) {
	repo.instances.mutex.RLock()
	defer repo.instances.mutex.RUnlock()

	out := make([]milestone.Instance, 0)
	for _, inst := range repo.instances.t {
		if inst.StudentID == studentID {
			out = append(out, *inst)
		}
	}
	sortInstances(out)
	return out, nil
}

func (repo *milestoneRepository) ActiveInstances(ctx context.Context) ([]milestone.Instance, error) {
	repo.instances.mutex.RLock()
	defer repo.instances.mutex.RUnlock()

	out := make([]milestone.Instance, 0)
	for _, inst := range repo.instances.t {
		if inst.Status == milestone.StatusActive {
			out = append(out, *inst)
		}
	}
	sortInstances(out)
	return out, nil
}

func (repo *milestoneRepository) FindActiveByDocumentType(ctx context.Context, studentID, documentType string) (milestone.Instance, error) {
	repo.instances.mutex.RLock()
	defer repo.instances.mutex.RUnlock()

	for _, inst := range repo.instances.t {
		if inst.StudentID == studentID && inst.Status == milestone.StatusActive &&
			inst.DocumentType.Valid && inst.DocumentType.String == documentType {
			return *inst, nil
		}
	}
	return milestone.Instance{}, milestone.ErrNotFound
}

func (repo *milestoneRepository) CompleteInstance(ctx context.Context, id string, at time.Time) (milestone.Instance, error) {
	repo.instances.mutex.Lock()
	defer repo.instances.mutex.Unlock()

	inst, ok := repo.instances.t[id]
	if !ok {
		return milestone.Instance{}, milestone.ErrNotFound
	}
	if inst.Status != milestone.StatusActive {
		return milestone.Instance{}, milestone.ErrNotActive
	}
	inst.Status = milestone.StatusCompleted
	inst.CompletedAt = null.TimeFrom(at)
	inst.UpdatedAt = at
	return *inst, nil
}

func (repo *milestoneRepository) OverrideInstanceDeadline(ctx context.Context, id string, deadline time.Time, reason string, at time.Time) (milestone.Instance, error) {
	repo.instances.mutex.Lock()
	defer repo.instances.mutex.Unlock()

	inst, ok := repo.instances.t[id]
	if !ok {
		return milestone.Instance{}, milestone.ErrNotFound
	}
	if inst.Status.Terminal() {
		return milestone.Instance{}, milestone.ErrTerminal
	}
	inst.Deadline = null.TimeFrom(deadline)
	inst.Reason = null.StringFrom(reason)
	if inst.Status == milestone.StatusOverdue {
		inst.Status = milestone.StatusActive // an extended deadline reactivates a missed milestone
	}
	inst.UpdatedAt = at
	return *inst, nil
}

func (repo *milestoneRepository) MarkInstanceOverdue(ctx context.Context, id string, now time.Time) (milestone.Instance, error) {
	repo.instances.mutex.Lock()
	defer repo.instances.mutex.Unlock()

	inst, ok := repo.instances.t[id]
	if !ok {
		return milestone.Instance{}, milestone.ErrNotFound
	}
	if inst.Status != milestone.StatusActive || !inst.Deadline.Valid || !now.After(inst.Deadline.Time) {
		return milestone.Instance{}, milestone.ErrNotActive
	}
	inst.Status = milestone.StatusOverdue
	inst.UpdatedAt = now
	return *inst, nil
}

func (repo *milestoneRepository) CancelInstance(ctx context.Context, id, reason string, at time.Time) (milestone.Instance, error) {
	repo.instances.mutex.Lock()
	defer repo.instances.mutex.Unlock()

	inst, ok := repo.instances.t[id]
	if !ok {
		return milestone.Instance{}, milestone.ErrNotFound
	}
	if inst.Status.Terminal() {
		return milestone.Instance{}, milestone.ErrTerminal
	}
	inst.Status = milestone.StatusCancelled
	inst.Reason = null.StringFrom(reason)
	inst.UpdatedAt = at
	return *inst, nil
}

func sortInstances(insts []milestone.Instance) {
	sort.Slice(insts, func(i, j int) bool {
		if !insts[i].CreatedAt.Equal(insts[j].CreatedAt) {
			return insts[i].CreatedAt.Before(insts[j].CreatedAt)
		}
		return insts[i].ID < insts[j].ID
	})
}
