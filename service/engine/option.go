package engine

import (
	"context"
	"time"

	"github.com/viant/approvalflow/metrics"
	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/policy"
	"github.com/viant/approvalflow/progress"
	"github.com/viant/approvalflow/service/event"
	"go.uber.org/zap"
)

// Option customises the engine.
type Option func(*Service)

// Authorizer decides whether actorID may perform an administrative action
// (cancel, manual escalation) on instance.
type Authorizer func(ctx context.Context, instance *model.Instance, actorID string, action model.ActionType) bool

// AllowAny authorizes every non empty actor.
func AllowAny(_ context.Context, _ *model.Instance, actorID string, _ model.ActionType) bool {
	return actorID != ""
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

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPolicies sets the governance body approval policies.
func WithPolicies(registry *policy.Registry) Option {
	return func(s *Service) {
		s.policies = registry
	}
}

// WithEvents sets the outbound event service.
func WithEvents(events *event.Service) Option {
	return func(s *Service) {
		s.events = events
	}
}

// WithProgress sets the aggregated progress tracker.
func WithProgress(p *progress.Progress) Option {
	return func(s *Service) {
		s.progress = p
	}
}

// WithAuthorizer sets the administrative action authorizer.
func WithAuthorizer(authorizer Authorizer) Option {
	return func(s *Service) {
		s.authorize = authorizer
	}
}
