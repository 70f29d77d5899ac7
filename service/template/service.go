// Package template is the authoring API for workflow and appraisal templates.
// Templates are created inactive, edited, validated and then activated; an
// active template is immutable and changes require a new version.
package template

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/approvalflow/internal/clock"
	"github.com/viant/approvalflow/internal/idgen"
	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/schedule"
	"github.com/viant/approvalflow/service/dao"
	daotemplate "github.com/viant/approvalflow/service/dao/template"
	"github.com/viant/approvalflow/validator"
	"go.uber.org/zap"
)

// Service implements template authoring.
type Service struct {
	dao    *daotemplate.Service
	now    func() time.Time
	logger *zap.Logger
	mux    sync.Mutex
}

// CreateTemplate stores a new inactive workflow template.
func (s *Service) CreateTemplate(ctx context.Context, t *model.WorkflowTemplate) (*model.WorkflowTemplate, error) {
	if t == nil {
		return nil, dao.ErrNilEntity
	}
	created := t.Clone()
	if created.ID == "" {
		created.ID = idgen.WithPrefix("wft")
	}
	if created.Version == 0 {
		created.Version = 1
	}
	created.IsActive = false
	created.ActivatedAt = nil
	created.CreatedAt = s.now()
	created.SortSteps()
	for _, step := range created.Steps {
		assignStep(created.ID, step)
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, err := s.dao.Workflows().Load(ctx, created.ID); err == nil {
		return nil, fmt.Errorf("workflow template %v: %w", created.ID, dao.ErrAlreadyExists)
	}
	if err := s.dao.Workflows().Save(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to save workflow template %v: %w", created.ID, err)
	}
	s.logger.Info("workflow template created", zap.String("template", created.ID), zap.Int("version", created.Version))
	return created.Clone(), nil
}

// CreateAppraisalTemplate stores a new inactive appraisal template.
func (s *Service) CreateAppraisalTemplate(ctx context.Context, t *model.AppraisalTemplate) (*model.AppraisalTemplate, error) {
	if t == nil {
		return nil, dao.ErrNilEntity
	}
	created := t.Clone()
	if created.ID == "" {
		created.ID = idgen.WithPrefix("apt")
	}
	if created.Version == 0 {
		created.Version = 1
	}
	created.IsActive = false
	created.ActivatedAt = nil
	created.CreatedAt = s.now()
	for _, phase := range created.Phases {
		assignPhase(created.ID, phase)
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, err := s.dao.Appraisals().Load(ctx, created.ID); err == nil {
		return nil, fmt.Errorf("appraisal template %v: %w", created.ID, dao.ErrAlreadyExists)
	}
	if err := s.dao.Appraisals().Save(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to save appraisal template %v: %w", created.ID, err)
	}
	s.logger.Info("appraisal template created", zap.String("template", created.ID), zap.Int("version", created.Version))
	return created.Clone(), nil
}

// AddStep appends a step, or inserts it at step.Order shifting later steps.
func (s *Service) AddStep(ctx context.Context, templateID string, step *model.Step) (*model.WorkflowTemplate, error) {
	if step == nil {
		return nil, dao.ErrNilEntity
	}
	return s.updateWorkflow(ctx, templateID, func(t *model.WorkflowTemplate) error {
		added := step.Clone()
		if added.Order <= 0 || added.Order > len(t.Steps) {
			added.Order = len(t.Steps) + 1
		} else {
			for _, existing := range t.Steps {
				if existing.Order >= added.Order {
					existing.Order++
					existing.ID = ""
					assignStep(t.ID, existing)
				}
			}
		}
		added.ID = ""
		assignStep(t.ID, added)
		t.Steps = append(t.Steps, added)
		t.SortSteps()
		return nil
	})
}

// RemoveStep deletes the step with order and closes the gap.
func (s *Service) RemoveStep(ctx context.Context, templateID string, order int) (*model.WorkflowTemplate, error) {
	return s.updateWorkflow(ctx, templateID, func(t *model.WorkflowTemplate) error {
		steps := make([]*model.Step, 0, len(t.Steps))
		for _, step := range t.Steps {
			if step.Order == order {
				continue
			}
			if step.Order > order {
				step.Order--
				step.ID = ""
				assignStep(t.ID, step)
			}
			steps = append(steps, step)
		}
		if len(steps) == len(t.Steps) {
			return fmt.Errorf("template %v has no step %d", t.ID, order)
		}
		t.Steps = steps
		return nil
	})
}

// AddPhase appends a phase to an appraisal template.
func (s *Service) AddPhase(ctx context.Context, templateID string, phase *model.Phase) (*model.AppraisalTemplate, error) {
	if phase == nil {
		return nil, dao.ErrNilEntity
	}
	return s.updateAppraisal(ctx, templateID, func(t *model.AppraisalTemplate) error {
		added := *phase
		if added.DisplayOrder == 0 {
			added.DisplayOrder = len(t.Phases) + 1
		}
		assignPhase(t.ID, &added)
		for _, existing := range t.Phases {
			if existing.ID == added.ID {
				return fmt.Errorf("template %v already has phase %v", t.ID, added.ID)
			}
		}
		t.Phases = append(t.Phases, &added)
		return nil
	})
}

// Validate runs the step validator against a workflow template.
func (s *Service) Validate(ctx context.Context, templateID string) (*validator.Result, error) {
	t, err := s.Workflow(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return validator.ValidateWorkflow(t), nil
}

// ValidateAppraisal runs the phase validator against an appraisal template.
func (s *Service) ValidateAppraisal(ctx context.Context, templateID string) (*validator.Result, error) {
	t, err := s.Appraisal(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return validator.ValidateAppraisal(t), nil
}

// Activate validates and activates a workflow template. Issues are returned
// as *model.ValidationError and leave the template inactive.
func (s *Service) Activate(ctx context.Context, templateID string) (*model.WorkflowTemplate, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	t, err := s.loadWorkflow(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if t.IsActive {
		return t, nil
	}
	if result := validator.ValidateWorkflow(t); !result.Valid {
		s.logger.Warn("workflow template failed validation", zap.String("template", templateID), zap.Strings("issues", result.Issues))
		return nil, &model.ValidationError{TemplateID: templateID, Issues: result.Issues}
	}
	now := s.now()
	t.IsActive = true
	t.ActivatedAt = &now
	if err = s.dao.Workflows().Save(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to activate workflow template %v: %w", templateID, err)
	}
	s.logger.Info("workflow template activated", zap.String("template", templateID))
	return t, nil
}

// ActivateAppraisal validates and activates an appraisal template.
func (s *Service) ActivateAppraisal(ctx context.Context, templateID string) (*model.AppraisalTemplate, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	t, err := s.loadAppraisal(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if t.IsActive {
		return t, nil
	}
	if result := validator.ValidateAppraisal(t); !result.Valid {
		s.logger.Warn("appraisal template failed validation", zap.String("template", templateID), zap.Strings("issues", result.Issues))
		return nil, &model.ValidationError{TemplateID: templateID, Issues: result.Issues}
	}
	now := s.now()
	t.IsActive = true
	t.ActivatedAt = &now
	if err = s.dao.Appraisals().Save(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to activate appraisal template %v: %w", templateID, err)
	}
	s.logger.Info("appraisal template activated", zap.String("template", templateID))
	return t, nil
}

// Deactivate stops new instances from being created against a workflow
// template. Running instances keep their snapshot.
func (s *Service) Deactivate(ctx context.Context, templateID string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	t, err := s.loadWorkflow(ctx, templateID)
	if err != nil {
		return err
	}
	if !t.IsActive {
		return nil
	}
	t.IsActive = false
	return s.dao.Workflows().Save(ctx, t)
}

// NewVersion copies a workflow template into a new inactive template with
// the next version number.
func (s *Service) NewVersion(ctx context.Context, templateID string) (*model.WorkflowTemplate, error) {
	source, err := s.Workflow(ctx, templateID)
	if err != nil {
		return nil, err
	}
	next := source.Clone()
	next.ID = fmt.Sprintf("%s-v%d", baseID(source), source.Version+1)
	next.Version = source.Version + 1
	for _, step := range next.Steps {
		step.ID = ""
	}
	return s.CreateTemplate(ctx, next)
}

// Import loads a YAML definition and stores it as a new inactive template.
func (s *Service) Import(ctx context.Context, URL string) (*daotemplate.Definition, error) {
	definition, err := s.dao.Load(ctx, URL)
	if err != nil {
		return nil, err
	}
	if definition.Workflow != nil {
		if definition.Workflow, err = s.CreateTemplate(ctx, definition.Workflow); err != nil {
			return nil, err
		}
		return definition, nil
	}
	if definition.Appraisal, err = s.CreateAppraisalTemplate(ctx, definition.Appraisal); err != nil {
		return nil, err
	}
	return definition, nil
}

// Schedule computes calendar dates of an appraisal template for a cycle.
func (s *Service) Schedule(ctx context.Context, templateID string, cycleStart time.Time) (*schedule.Plan, error) {
	t, err := s.Appraisal(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return schedule.ForTemplate(t, cycleStart)
}

// Workflow returns a workflow template.
func (s *Service) Workflow(ctx context.Context, templateID string) (*model.WorkflowTemplate, error) {
	return s.loadWorkflow(ctx, templateID)
}

// Appraisal returns an appraisal template.
func (s *Service) Appraisal(ctx context.Context, templateID string) (*model.AppraisalTemplate, error) {
	return s.loadAppraisal(ctx, templateID)
}

// Workflows lists workflow templates.
func (s *Service) Workflows(ctx context.Context, parameters ...*dao.Parameter) ([]*model.WorkflowTemplate, error) {
	return s.dao.Workflows().List(ctx, parameters...)
}

func (s *Service) updateWorkflow(ctx context.Context, templateID string, mutate func(t *model.WorkflowTemplate) error) (*model.WorkflowTemplate, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	t, err := s.loadWorkflow(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if t.IsActive {
		return nil, fmt.Errorf("workflow template %v: %w", templateID, model.ErrTemplateActive)
	}
	if err = mutate(t); err != nil {
		return nil, err
	}
	if err = s.dao.Workflows().Save(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save workflow template %v: %w", templateID, err)
	}
	return t, nil
}

func (s *Service) updateAppraisal(ctx context.Context, templateID string, mutate func(t *model.AppraisalTemplate) error) (*model.AppraisalTemplate, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	t, err := s.loadAppraisal(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if t.IsActive {
		return nil, fmt.Errorf("appraisal template %v: %w", templateID, model.ErrTemplateActive)
	}
	if err = mutate(t); err != nil {
		return nil, err
	}
	if err = s.dao.Appraisals().Save(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save appraisal template %v: %w", templateID, err)
	}
	return t, nil
}

func (s *Service) loadWorkflow(ctx context.Context, templateID string) (*model.WorkflowTemplate, error) {
	t, err := s.dao.Workflows().Load(ctx, templateID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", model.ErrTemplateNotFound, templateID)
		}
		return nil, fmt.Errorf("failed to load workflow template %v: %w", templateID, err)
	}
	return t, nil
}

func (s *Service) loadAppraisal(ctx context.Context, templateID string) (*model.AppraisalTemplate, error) {
	t, err := s.dao.Appraisals().Load(ctx, templateID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", model.ErrTemplateNotFound, templateID)
		}
		return nil, fmt.Errorf("failed to load appraisal template %v: %w", templateID, err)
	}
	return t, nil
}

func assignStep(templateID string, step *model.Step) {
	step.TemplateID = templateID
	if step.ID == "" {
		step.ID = fmt.Sprintf("%s-step-%d", templateID, step.Order)
	}
}

func assignPhase(templateID string, phase *model.Phase) {
	phase.TemplateID = templateID
	if phase.ID == "" {
		phase.ID = fmt.Sprintf("%s-phase-%d", templateID, phase.DisplayOrder)
	}
}

// baseID strips a trailing -vN version suffix.
func baseID(t *model.WorkflowTemplate) string {
	suffix := fmt.Sprintf("-v%d", t.Version)
	if len(t.ID) > len(suffix) && t.ID[len(t.ID)-len(suffix):] == suffix {
		return t.ID[:len(t.ID)-len(suffix)]
	}
	return t.ID
}

// Option customises the service.
type Option func(*Service)

// WithDAO sets the template persistence service.
func WithDAO(dao *daotemplate.Service) Option {
	return func(s *Service) {
		s.dao = dao
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a template service.
func New(options ...Option) *Service {
	ret := &Service{now: clock.Now, logger: zap.NewNop()}
	for _, opt := range options {
		opt(ret)
	}
	if ret.dao == nil {
		ret.dao = daotemplate.New()
	}
	return ret
}
