package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viant/approvalflow/internal/clock"
	"github.com/viant/approvalflow/internal/idgen"
	"github.com/viant/approvalflow/metrics"
	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/policy"
	"github.com/viant/approvalflow/progress"
	"github.com/viant/approvalflow/service/dao"
	"github.com/viant/approvalflow/service/dao/instance"
	"github.com/viant/approvalflow/service/event"
	"github.com/viant/approvalflow/service/resolver"
	"github.com/viant/approvalflow/tracing"
	"github.com/viant/approvalflow/validator"
	"go.uber.org/zap"
)

// TemplateSource provides workflow templates by id.
type TemplateSource interface {
	Workflow(ctx context.Context, id string) (*model.WorkflowTemplate, error)
}

// Service drives workflow instances through their steps. Every transition
// is committed against the version it was computed from, so concurrent
// actions on one instance never both succeed.
type Service struct {
	templates TemplateSource
	store     instance.Store
	resolver  *resolver.Service
	policies  *policy.Registry
	events    *event.Service
	metrics   *metrics.Metrics
	progress  *progress.Progress
	authorize Authorizer
	logger    *zap.Logger
	now       func() time.Time
}

// CreateInstance starts a workflow instance on the first step of an active
// template. Creation fails when the first step has no eligible approver.
func (s *Service) CreateInstance(ctx context.Context, request *CreateRequest) (ret *model.Instance, err error) {
	ctx, span := tracing.StartSpan(ctx, "engine.CreateInstance", "INTERNAL")
	span.WithAttributes(map[string]string{tracing.AttrTemplate: request.TemplateID, tracing.AttrActor: request.InitiatedBy})
	defer func() {
		s.observe("create", err)
		tracing.EndSpan(span, err)
	}()
	template, err := s.templates.Workflow(ctx, request.TemplateID)
	if err != nil {
		return nil, err
	}
	if !template.IsActive {
		return nil, &model.ValidationError{TemplateID: template.ID, Issues: []string{"template is not active"}}
	}
	if result := validator.ValidateWorkflow(template); !result.Valid {
		return nil, &model.ValidationError{TemplateID: template.ID, Issues: result.Issues}
	}
	if request.ReferenceType == "" || request.ReferenceID == "" {
		return nil, &model.ValidationError{TemplateID: template.ID, Issues: []string{"reference type and id are required"}}
	}
	template.SortSteps()
	now := s.now()
	ret = &model.Instance{
		ID:                    idgen.WithPrefix("inst"),
		TemplateID:            template.ID,
		TemplateVersion:       template.Version,
		Category:              template.Category,
		Steps:                 template.Clone().Steps,
		AllowReturnToPrevious: template.AllowReturnToPrevious,
		AutoTerminateHours:    cloneInt(template.AutoTerminateHours),
		ReferenceType:         request.ReferenceType,
		ReferenceID:           request.ReferenceID,
		Subject:               request.Subject,
		Status:                model.StatusPending,
		InitiatedBy:           request.InitiatedBy,
		InitiatedAt:           now,
	}
	enter(ret, ret.Steps[0].Order, now)
	approvers, err := s.resolve(ctx, ret)
	if err != nil {
		return nil, err
	}
	if err = s.store.Create(ctx, ret); err != nil {
		return nil, err
	}
	s.progress.Update(progress.Delta{Active: 1})
	s.publish(ctx, event.ContextOf(ret, event.TypeStepAdvanced, request.InitiatedBy), event.StepAdvanced{
		ToStep:    ret.CurrentStepOrder,
		Approvers: approvers,
		Deadline:  ret.CurrentStepDeadlineAt,
	})
	s.logger.Info("instance created",
		zap.String("instance", ret.ID),
		zap.String("template", ret.TemplateID),
		zap.String("reference", ret.ReferenceType+"/"+ret.ReferenceID))
	return ret.Clone(), nil
}

// Act applies one actor action to an instance.
func (s *Service) Act(ctx context.Context, request *ActRequest) (ret *model.Instance, err error) {
	ctx, span := tracing.StartSpan(ctx, "engine.Act", "INTERNAL")
	span.WithAttributes(map[string]string{
		tracing.AttrInstance: request.InstanceID,
		tracing.AttrAction:   string(request.Action),
		tracing.AttrActor:    request.ActorID,
	})
	defer func() {
		s.observe(string(request.Action), err)
		tracing.EndSpan(span, err)
	}()
	if !request.Action.IsValid() {
		return nil, model.NewIllegalTransition(request.InstanceID, request.Action, "unknown action")
	}
	current, err := s.store.Load(ctx, request.InstanceID)
	if err != nil {
		return nil, err
	}
	if request.ExpectedVersion != 0 && request.ExpectedVersion != current.Version {
		return nil, instance.Stale(current.ID, request.ExpectedVersion, current.Version)
	}
	span.WithInt(tracing.AttrStep, current.CurrentStepOrder)
	now := s.now()
	if o, err := autoTerminate(current, now); err == nil {
		if err = s.commit(ctx, o, model.SystemActor); err != nil {
			return nil, err
		}
		return nil, model.NewIllegalTransition(current.ID, request.Action, "instance exceeded %d hours and was terminated", *current.AutoTerminateHours)
	}
	cmd := &command{action: request.Action, actorID: request.ActorID, payload: request.Payload}
	f, err := s.facts(ctx, current, cmd)
	if err != nil {
		return nil, err
	}
	o, err := transition(current, cmd, f, now)
	if err != nil {
		return nil, err
	}
	if err = s.commit(ctx, o, request.ActorID); err != nil {
		return nil, err
	}
	return o.instance.Clone(), nil
}

// Approve approves the current step.
func (s *Service) Approve(ctx context.Context, instanceID, actorID, comment string) (*model.Instance, error) {
	return s.Act(ctx, &ActRequest{InstanceID: instanceID, Action: model.ActionApprove, ActorID: actorID, Payload: Payload{Comment: comment}})
}

// Reject rejects the instance.
func (s *Service) Reject(ctx context.Context, instanceID, actorID, comment string) (*model.Instance, error) {
	return s.Act(ctx, &ActRequest{InstanceID: instanceID, Action: model.ActionReject, ActorID: actorID, Payload: Payload{Comment: comment}})
}

// Return sends the instance back to an earlier step.
func (s *Service) Return(ctx context.Context, instanceID, actorID string, toStep int, reason string) (*model.Instance, error) {
	return s.Act(ctx, &ActRequest{InstanceID: instanceID, Action: model.ActionReturn, ActorID: actorID, Payload: Payload{Comment: reason, ReturnToStep: toStep}})
}

// Delegate lets delegateTo act instead of actorID on the current step.
func (s *Service) Delegate(ctx context.Context, instanceID, actorID, delegateTo, comment string) (*model.Instance, error) {
	return s.Act(ctx, &ActRequest{InstanceID: instanceID, Action: model.ActionDelegate, ActorID: actorID, Payload: Payload{Comment: comment, DelegateTo: delegateTo}})
}

// Comment records a comment without changing state.
func (s *Service) Comment(ctx context.Context, instanceID, actorID, comment string) (*model.Instance, error) {
	return s.Act(ctx, &ActRequest{InstanceID: instanceID, Action: model.ActionComment, ActorID: actorID, Payload: Payload{Comment: comment}})
}

// Cancel cancels the instance.
func (s *Service) Cancel(ctx context.Context, instanceID, actorID, reason string) (*model.Instance, error) {
	return s.Act(ctx, &ActRequest{InstanceID: instanceID, Action: model.ActionCancel, ActorID: actorID, Payload: Payload{Comment: reason}})
}

// Escalate applies the current step's escalation action on behalf of an
// authorized actor, regardless of the deadline.
func (s *Service) Escalate(ctx context.Context, instanceID, actorID string) (*model.Instance, error) {
	return s.Act(ctx, &ActRequest{InstanceID: instanceID, Action: model.ActionEscalate, ActorID: actorID})
}

// Tick applies the clock-driven changes due on one instance: auto
// termination, SLA status refresh and deadline escalation, committed as a
// single update. A nil result with nil error means nothing was due.
func (s *Service) Tick(ctx context.Context, instanceID string) (ret *TickResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "engine.Tick", "INTERNAL")
	span.WithAttributes(map[string]string{tracing.AttrInstance: instanceID})
	defer func() { tracing.EndSpan(span, err) }()
	current, err := s.store.Load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	o, err := tick(current, s.now())
	if errors.Is(err, errNothingDue) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err = s.commit(ctx, o, model.SystemActor); err != nil {
		if o.escalation != "" {
			s.observe(string(model.ActionEscalate), err)
		}
		return nil, err
	}
	if o.escalation != "" {
		s.observe(string(model.ActionEscalate), nil)
	}
	return &TickResult{
		InstanceID: instanceID,
		Terminated: o.terminated,
		SLAChanged: o.slaChanged,
		Escalation: o.escalation,
	}, nil
}

// Instance returns the current state of an instance.
func (s *Service) Instance(ctx context.Context, instanceID string) (*model.Instance, error) {
	return s.store.Load(ctx, instanceID)
}

// Instances lists instances, optionally filtered by status and template.
func (s *Service) Instances(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Instance, error) {
	return s.store.List(ctx, parameters...)
}

// Active lists the instances that have not reached a terminal status.
func (s *Service) Active(ctx context.Context) ([]*model.Instance, error) {
	statuses := make([]string, 0, len(model.ActiveStatuses))
	for _, status := range model.ActiveStatuses {
		statuses = append(statuses, string(status))
	}
	return s.store.List(ctx, dao.NewParameter(dao.ParameterStatus, statuses...))
}

// History returns the ordered action log of an instance.
func (s *Service) History(ctx context.Context, instanceID string) ([]*model.StepAction, error) {
	return s.store.History(ctx, instanceID)
}

// Progress returns the step progress of an instance.
func (s *Service) Progress(ctx context.Context, instanceID string) (*progress.View, error) {
	current, err := s.store.Load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	view := progress.Of(current)
	return &view, nil
}

// Eligible returns the actors that may act on the current step, after
// delegation.
func (s *Service) Eligible(ctx context.Context, instanceID string) ([]string, error) {
	current, err := s.store.Load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if current.IsTerminal() {
		return nil, nil
	}
	approvers, err := s.resolve(ctx, current)
	if err != nil {
		return nil, err
	}
	return Eligible(approvers, current.Delegations, current.CurrentStepOrder), nil
}

// facts resolves what cmd needs to be evaluated against current.
func (s *Service) facts(ctx context.Context, current *model.Instance, cmd *command) (*facts, error) {
	ret := &facts{required: 1}
	switch cmd.action {
	case model.ActionCancel, model.ActionEscalate:
		ret.authorized = s.authorize(ctx, current, cmd.actorID, cmd.action)
		return ret, nil
	}
	if current.IsTerminal() {
		return ret, nil
	}
	approvers, err := s.resolve(ctx, current)
	if err != nil {
		return nil, err
	}
	ret.approvers = approvers
	if step := current.CurrentStep(); step.ApproverType == model.ApproverGovernanceBody {
		ret.required = s.policies.Lookup(step.ApproverTarget).Required(len(approvers))
	}
	if cmd.action == model.ActionDelegate && cmd.payload.DelegateTo != "" {
		if ret.delegateActive, err = s.resolver.Active(ctx, cmd.payload.DelegateTo); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// resolve returns the approvers of the instance's current step.
func (s *Service) resolve(ctx context.Context, current *model.Instance) ([]string, error) {
	step := current.CurrentStep()
	if step == nil {
		return nil, model.NewIllegalTransition(current.ID, "", "current step %d does not exist", current.CurrentStepOrder)
	}
	approvers, err := s.resolver.Resolve(ctx, step, &resolver.Request{Subject: current.Subject, EscalationLevel: current.EscalationLevel})
	if err != nil && resolver.IsUnresolvable(err) {
		s.metrics.ResolverFailed(string(step.ApproverType))
		s.logger.Warn("unresolvable approver",
			zap.String("instance", current.ID),
			zap.Int("step", step.Order),
			zap.Error(err))
	}
	return approvers, err
}

// commit resolves the approvers of a newly entered step, persists the
// outcome against the version it was computed from and publishes events.
// Nothing is written when resolution fails.
func (s *Service) commit(ctx context.Context, o *outcome, actorID string) error {
	var approvers []string
	if o.entered && !o.instance.IsTerminal() {
		var err error
		if approvers, err = s.resolve(ctx, o.instance); err != nil {
			return err
		}
	}
	if err := s.store.Update(ctx, o.instance, o.previous.Version, o.actions...); err != nil {
		return err
	}
	s.track(o)
	s.announce(ctx, o, actorID, approvers)
	return nil
}

func (s *Service) track(o *outcome) {
	delta := progress.Delta{}
	if o.completed() {
		delta = progress.Completion(o.instance.Status)
		s.metrics.Completed(string(o.instance.FinalAction))
	}
	if o.escalation != "" {
		delta.Escalated = 1
		s.metrics.Escalated(string(o.escalation))
	}
	if delta != (progress.Delta{}) {
		s.progress.Update(delta)
	}
}

func (s *Service) announce(ctx context.Context, o *outcome, actorID string, approvers []string) {
	next := o.instance
	if o.escalation != "" {
		notify := approvers
		if o.escalation == model.EscalationNotifyAlternate {
			notify = s.alternate(ctx, o.previous)
		}
		s.publish(ctx, event.ContextOf(next, event.TypeEscalated, actorID), event.Escalated{
			StepOrder: o.previous.CurrentStepOrder,
			Action:    o.escalation,
			Level:     next.EscalationLevel,
			Notify:    notify,
		})
	}
	if o.slaChanged && next.SLAStatus != model.SLAOnTrack {
		s.publish(ctx, event.ContextOf(next, event.TypeDeadlineApproaching, actorID), event.DeadlineApproaching{
			StepOrder: next.CurrentStepOrder,
			SLAStatus: next.SLAStatus,
			Deadline:  next.CurrentStepDeadlineAt,
		})
	}
	switch {
	case o.completed():
		s.publish(ctx, event.ContextOf(next, event.TypeInstanceCompleted, actorID), event.InstanceCompleted{
			Status:      next.Status,
			FinalAction: next.FinalAction,
			CompletedAt: *next.CompletedAt,
		})
		s.logger.Info("instance completed",
			zap.String("instance", next.ID),
			zap.String("status", string(next.Status)),
			zap.String("finalAction", string(next.FinalAction)))
	case o.returned:
		reason := ""
		if len(o.actions) > 0 {
			reason = o.actions[len(o.actions)-1].Comment
		}
		s.publish(ctx, event.ContextOf(next, event.TypeStepReturned, actorID), event.StepReturned{
			FromStep:  o.previous.CurrentStepOrder,
			ToStep:    next.CurrentStepOrder,
			Reason:    reason,
			Approvers: approvers,
		})
	case o.entered && o.escalation != model.EscalationEscalateUp:
		s.publish(ctx, event.ContextOf(next, event.TypeStepAdvanced, actorID), event.StepAdvanced{
			FromStep:  o.previous.CurrentStepOrder,
			ToStep:    next.CurrentStepOrder,
			Approvers: approvers,
			Deadline:  next.CurrentStepDeadlineAt,
		})
	}
}

func (s *Service) alternate(ctx context.Context, current *model.Instance) []string {
	step := current.CurrentStep()
	notify, err := s.resolver.Alternate(ctx, step)
	if err != nil {
		s.logger.Warn("failed to resolve alternate approver", zap.String("instance", current.ID), zap.Error(err))
	}
	if len(notify) > 0 {
		return notify
	}
	approvers, err := s.resolve(ctx, current)
	if err != nil {
		return nil
	}
	return approvers
}

func (s *Service) publish(ctx context.Context, eventContext *event.Context, data interface{}) {
	if s.events == nil {
		return
	}
	var err error
	switch actual := data.(type) {
	case event.StepAdvanced:
		err = event.Publish(ctx, s.events, eventContext, actual)
	case event.StepReturned:
		err = event.Publish(ctx, s.events, eventContext, actual)
	case event.InstanceCompleted:
		err = event.Publish(ctx, s.events, eventContext, actual)
	case event.DeadlineApproaching:
		err = event.Publish(ctx, s.events, eventContext, actual)
	case event.Escalated:
		err = event.Publish(ctx, s.events, eventContext, actual)
	case event.EscalationFailing:
		err = event.Publish(ctx, s.events, eventContext, actual)
	default:
		err = fmt.Errorf("unsupported event %T", data)
	}
	if err != nil {
		s.logger.Error("failed to publish event",
			zap.String("instance", eventContext.InstanceID),
			zap.String("event", eventContext.EventType),
			zap.Error(err))
	}
}

// Alert publishes an escalation failure alert for an instance.
func (s *Service) Alert(ctx context.Context, current *model.Instance, failures int, cause error) {
	s.metrics.EscalationFailing(current.TemplateID)
	s.logger.Error("escalation keeps failing",
		zap.String("instance", current.ID),
		zap.Int("step", current.CurrentStepOrder),
		zap.Int("failures", failures),
		zap.Error(cause))
	s.publish(ctx, event.ContextOf(current, event.TypeEscalationFailing, model.SystemActor), event.EscalationFailing{
		StepOrder: current.CurrentStepOrder,
		Failures:  failures,
		Error:     cause.Error(),
	})
}

func (s *Service) observe(action string, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, model.ErrStaleInstanceState):
		outcome = metrics.OutcomeStale
	case errors.Is(err, model.ErrIllegalTransition):
		outcome = metrics.OutcomeIllegal
	case errors.Is(err, model.ErrInstanceNotFound), errors.Is(err, model.ErrTemplateNotFound):
		outcome = metrics.OutcomeNotFound
	default:
		outcome = metrics.OutcomeError
	}
	s.metrics.Transition(action, outcome)
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	ret := *v
	return &ret
}

// New creates an engine over templates, store and resolver.
func New(templates TemplateSource, store instance.Store, resolver *resolver.Service, options ...Option) *Service {
	ret := &Service{
		templates: templates,
		store:     store,
		resolver:  resolver,
		authorize: AllowAny,
		logger:    zap.NewNop(),
		now:       clock.Now,
		progress:  &progress.Progress{},
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}
