package sla

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/viant/approvalflow/metrics"
	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/service/engine"
	"github.com/viant/approvalflow/tracing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sweep results.
const (
	ResultEscalated  = "escalated"
	ResultTerminated = "terminated"
	ResultSLAUpdated = "sla_updated"
	ResultSkipped    = "skipped"
	ResultFailed     = "failed"
)

// Report summarises one sweep.
type Report struct {
	Scanned    int `json:"scanned"`
	Escalated  int `json:"escalated"`
	Terminated int `json:"terminated"`
	SLAUpdated int `json:"slaUpdated"`
	// Skipped counts instances that moved on while being swept; they are
	// picked up again by the next sweep.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (r *Report) add(result *engine.TickResult) {
	if result == nil {
		return
	}
	if result.Terminated {
		r.Terminated++
	}
	if result.Escalation != "" {
		r.Escalated++
	}
	if result.SLAChanged {
		r.SLAUpdated++
	}
}

// Service sweeps active instances.
type Service struct {
	config  Config
	engine  *engine.Service
	metrics *metrics.Metrics
	logger  *zap.Logger

	mux      sync.Mutex
	failures map[string]int

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// Sweep ticks every active instance once. Instance level failures are
// counted in the report; only a failure to list instances is returned.
func (s *Service) Sweep(ctx context.Context) (report *Report, err error) {
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "sla.Sweep", "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()
	active, err := s.engine.Active(ctx)
	if err != nil {
		return nil, err
	}
	report = &Report{Scanned: len(active)}
	var reportMux sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.config.Workers)
	for _, instance := range active {
		instance := instance
		group.Go(func() error {
			result, err := s.engine.Tick(groupCtx, instance.ID)
			if err != nil && !errors.Is(err, model.ErrStaleInstanceState) && !errors.Is(err, model.ErrInstanceNotFound) {
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}
				s.fail(groupCtx, instance, err)
			}
			reportMux.Lock()
			defer reportMux.Unlock()
			switch {
			case err == nil:
				report.add(result)
				s.reset(instance.ID)
			case errors.Is(err, model.ErrStaleInstanceState), errors.Is(err, model.ErrInstanceNotFound):
				report.Skipped++
			default:
				report.Failed++
			}
			return nil
		})
	}
	err = group.Wait()
	s.prune(active)
	span.WithInt("sweep.scanned", report.Scanned)
	s.metrics.Swept(time.Since(started))
	s.metrics.SweepResult(ResultEscalated, report.Escalated)
	s.metrics.SweepResult(ResultTerminated, report.Terminated)
	s.metrics.SweepResult(ResultSLAUpdated, report.SLAUpdated)
	s.metrics.SweepResult(ResultSkipped, report.Skipped)
	s.metrics.SweepResult(ResultFailed, report.Failed)
	s.logger.Debug("sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("escalated", report.Escalated),
		zap.Int("terminated", report.Terminated),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", time.Since(started)))
	return report, err
}

// Failures returns the consecutive failure count of an instance.
func (s *Service) Failures(instanceID string) int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.failures[instanceID]
}

func (s *Service) fail(ctx context.Context, instance *model.Instance, cause error) {
	s.mux.Lock()
	s.failures[instance.ID]++
	count := s.failures[instance.ID]
	s.mux.Unlock()
	s.logger.Warn("failed to sweep instance",
		zap.String("instance", instance.ID),
		zap.Int("failures", count),
		zap.Error(cause))
	if count%s.config.AlertThreshold == 0 {
		s.engine.Alert(ctx, instance, count, cause)
	}
}

func (s *Service) reset(instanceID string) {
	s.mux.Lock()
	delete(s.failures, instanceID)
	s.mux.Unlock()
}

// prune forgets failure counts of instances that are no longer active.
func (s *Service) prune(active []*model.Instance) {
	ids := make(map[string]bool, len(active))
	for _, instance := range active {
		ids[instance.ID] = true
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	for id := range s.failures {
		if !ids[id] {
			delete(s.failures, id)
		}
	}
}

// Start sweeps every Interval until ctx is done or Shutdown is called.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdownCh:
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Shutdown stops Start.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// Option customises the sweeper.
type Option func(*Service)

// WithConfig sets the sweep configuration.
func WithConfig(config Config) Option {
	return func(s *Service) {
		config.Init()
		s.config = config
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a sweeper over the engine.
func New(engine *engine.Service, options ...Option) *Service {
	ret := &Service{
		config:     DefaultConfig(),
		engine:     engine,
		logger:     zap.NewNop(),
		failures:   map[string]int{},
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}
