// Package resolver turns a step's approver rule into the concrete set of
// actors eligible to act on it.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/viant/approvalflow/model"
	"go.uber.org/zap"
)

// Request carries the explicit context a step is resolved against.
type Request struct {
	Subject model.Subject
	// EscalationLevel climbs the management chain above the step's base
	// approvers, one level per escalate_up.
	EscalationLevel int
}

// Strategy resolves one approver type.
type Strategy func(ctx context.Context, directory Directory, step *model.Step, request *Request) ([]string, error)

var strategies = map[model.ApproverType]Strategy{
	model.ApproverManager:        resolveManager,
	model.ApproverHR:             resolveHR,
	model.ApproverPosition:       resolveNamed,
	model.ApproverSpecificUser:   resolveNamed,
	model.ApproverWorkflowRole:   resolveRole,
	model.ApproverRole:           resolveRole,
	model.ApproverGovernanceBody: resolveGovernance,
}

// Service resolves approvers. It is stateless and safe for concurrent use.
type Service struct {
	directory Directory
	logger    *zap.Logger
}

// Resolve returns the sorted, de-duplicated approver set for step. Failures
// are reported as *model.UnresolvableApproverError unless the directory
// itself failed.
func (s *Service) Resolve(ctx context.Context, step *model.Step, request *Request) ([]string, error) {
	if request == nil {
		request = &Request{}
	}
	strategy, ok := strategies[step.ApproverType]
	if !ok {
		return nil, unresolvable(step, "unsupported approver type")
	}
	if step.ApproverType.RequiresTarget() && step.ApproverTarget == "" {
		return nil, unresolvable(step, "approver target is required")
	}
	approvers, err := strategy(ctx, s.directory, step, request)
	if err != nil {
		return nil, err
	}
	for level := 0; level < request.EscalationLevel && len(approvers) > 0; level++ {
		if approvers, err = s.managersOf(ctx, approvers); err != nil {
			return nil, err
		}
	}
	if len(approvers) == 0 {
		reason := "no eligible approver"
		if request.EscalationLevel > 0 {
			reason = fmt.Sprintf("no eligible approver at escalation level %d", request.EscalationLevel)
		}
		return nil, unresolvable(step, reason)
	}
	s.logger.Debug("resolved approvers",
		zap.Int("step", step.Order),
		zap.String("approverType", string(step.ApproverType)),
		zap.Strings("approvers", approvers))
	return approvers, nil
}

// Alternate resolves the step's alternate approver, used by notify_alternate.
func (s *Service) Alternate(ctx context.Context, step *model.Step) ([]string, error) {
	if step.AlternateApprover == "" {
		return nil, nil
	}
	return activeOnly(ctx, s.directory, []string{step.AlternateApprover})
}

// Active reports whether id names a known, active actor.
func (s *Service) Active(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	actor, err := s.directory.Actor(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to look up %v: %w", id, err)
	}
	return actor != nil && actor.Active, nil
}

func (s *Service) managersOf(ctx context.Context, actors []string) ([]string, error) {
	var managers []string
	for _, actor := range actors {
		manager, err := s.directory.ManagerOf(ctx, actor)
		if err != nil {
			return nil, fmt.Errorf("failed to look up manager of %v: %w", actor, err)
		}
		if manager != "" {
			managers = append(managers, manager)
		}
	}
	return activeOnly(ctx, s.directory, managers)
}

func resolveManager(ctx context.Context, directory Directory, step *model.Step, request *Request) ([]string, error) {
	if request.Subject.ActorID == "" {
		return nil, unresolvable(step, "subject actor is required")
	}
	manager, err := directory.ManagerOf(ctx, request.Subject.ActorID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up manager of %v: %w", request.Subject.ActorID, err)
	}
	if manager == "" {
		return nil, unresolvable(step, fmt.Sprintf("%v has no manager", request.Subject.ActorID))
	}
	return activeOnly(ctx, directory, []string{manager})
}

func resolveHR(ctx context.Context, directory Directory, _ *model.Step, request *Request) ([]string, error) {
	members, err := directory.HRManagers(ctx, request.Subject.OrgUnit)
	if err != nil {
		return nil, fmt.Errorf("failed to look up hr managers: %w", err)
	}
	return activeOnly(ctx, directory, members)
}

func resolveNamed(ctx context.Context, directory Directory, step *model.Step, _ *Request) ([]string, error) {
	actor, err := directory.Actor(ctx, step.ApproverTarget)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %v: %w", step.ApproverTarget, err)
	}
	if actor == nil {
		return nil, unresolvable(step, "target no longer exists")
	}
	if !actor.Active {
		return nil, unresolvable(step, "target is inactive")
	}
	return []string{actor.ID}, nil
}

func resolveRole(ctx context.Context, directory Directory, step *model.Step, _ *Request) ([]string, error) {
	members, err := directory.RoleMembers(ctx, step.ApproverTarget)
	if err != nil {
		return nil, fmt.Errorf("failed to look up role %v: %w", step.ApproverTarget, err)
	}
	return activeOnly(ctx, directory, members)
}

func resolveGovernance(ctx context.Context, directory Directory, step *model.Step, _ *Request) ([]string, error) {
	members, err := directory.GovernanceMembers(ctx, step.ApproverTarget)
	if err != nil {
		return nil, fmt.Errorf("failed to look up governance body %v: %w", step.ApproverTarget, err)
	}
	return activeOnly(ctx, directory, members)
}

// activeOnly keeps known, active actors and returns them sorted and unique.
func activeOnly(ctx context.Context, directory Directory, ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	ret := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		actor, err := directory.Actor(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to look up %v: %w", id, err)
		}
		if actor == nil || !actor.Active {
			continue
		}
		ret = append(ret, id)
	}
	sort.Strings(ret)
	return ret, nil
}

func unresolvable(step *model.Step, reason string) error {
	return &model.UnresolvableApproverError{
		StepOrder:    step.Order,
		ApproverType: step.ApproverType,
		Target:       step.ApproverTarget,
		Reason:       reason,
	}
}

// IsUnresolvable reports whether err signals a missing approver rather than a
// directory failure.
func IsUnresolvable(err error) bool {
	return errors.Is(err, model.ErrUnresolvableApprover)
}

// Option customises the resolver.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a resolver over directory.
func New(directory Directory, options ...Option) *Service {
	ret := &Service{directory: directory, logger: zap.NewNop()}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}
