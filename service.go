package approvalflow

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/approvalflow/internal/clock"
	"github.com/viant/approvalflow/logging"
	"github.com/viant/approvalflow/metrics"
	"github.com/viant/approvalflow/policy"
	"github.com/viant/approvalflow/progress"
	"github.com/viant/approvalflow/service/dao/instance"
	instancefs "github.com/viant/approvalflow/service/dao/instance/fs"
	instancememory "github.com/viant/approvalflow/service/dao/instance/memory"
	"github.com/viant/approvalflow/service/dao/instance/pg"
	daotemplate "github.com/viant/approvalflow/service/dao/template"
	"github.com/viant/approvalflow/service/engine"
	"github.com/viant/approvalflow/service/event"
	"github.com/viant/approvalflow/service/messaging"
	"github.com/viant/approvalflow/service/messaging/memory"
	"github.com/viant/approvalflow/service/resolver"
	dirmemory "github.com/viant/approvalflow/service/resolver/memory"
	"github.com/viant/approvalflow/service/sla"
	"github.com/viant/approvalflow/service/template"
	"github.com/viant/approvalflow/tracing"
	"go.uber.org/zap"
)

// Service wires template authoring, the instance engine and the SLA sweep.
type Service struct {
	logger            *zap.Logger
	now               func() time.Time
	store             instance.Store
	directory         resolver.Directory
	policies          *policy.Registry
	events            *event.Service
	registerer        prometheus.Registerer
	sweepConfig       sla.Config
	authorizer        engine.Authorizer
	templateBaseURL   string
	templateFsOptions []storage.Option

	metrics   *metrics.Metrics
	progress  *progress.Progress
	templates *template.Service
	engine    *engine.Service
	sweeper   *sla.Service
	closers   []func()
}

func (s *Service) init(options []Option) error {
	for _, option := range options {
		option(s)
	}
	if err := s.ensureBaseSetup(); err != nil {
		return err
	}
	s.metrics = metrics.New(s.registerer)
	s.progress = &progress.Progress{}
	s.templates = template.New(
		template.WithDAO(daotemplate.New(daotemplate.WithFS(afs.New(), s.templateBaseURL, s.templateFsOptions...))),
		template.WithClock(s.now),
		template.WithLogger(s.logger))
	engineOptions := []engine.Option{
		engine.WithClock(s.now),
		engine.WithLogger(s.logger),
		engine.WithMetrics(s.metrics),
		engine.WithPolicies(s.policies),
		engine.WithEvents(s.events),
		engine.WithProgress(s.progress),
	}
	if s.authorizer != nil {
		engineOptions = append(engineOptions, engine.WithAuthorizer(s.authorizer))
	}
	s.engine = engine.New(s.templates, s.store, resolver.New(s.directory, resolver.WithLogger(s.logger)), engineOptions...)
	s.sweeper = sla.New(s.engine,
		sla.WithConfig(s.sweepConfig),
		sla.WithMetrics(s.metrics),
		sla.WithLogger(s.logger))
	return nil
}

func (s *Service) ensureBaseSetup() error {
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = clock.Now
	}
	if s.store == nil {
		s.store = instancememory.New()
	}
	if s.directory == nil {
		s.directory = dirmemory.New()
	}
	if s.policies == nil {
		s.policies = policy.NewRegistry()
	}
	s.sweepConfig.Init()
	if err := s.sweepConfig.Validate(); err != nil {
		return fmt.Errorf("invalid sweep config: %w", err)
	}
	if s.events == nil {
		events, err := event.New(messaging.VendorMemory, event.WithLogger(s.logger))
		if err != nil {
			return err
		}
		s.events = events
	}
	return nil
}

// Templates returns the template authoring service.
func (s *Service) Templates() *template.Service {
	return s.templates
}

// Engine returns the instance engine.
func (s *Service) Engine() *engine.Service {
	return s.engine
}

// Sweeper returns the SLA sweep.
func (s *Service) Sweeper() *sla.Service {
	return s.sweeper
}

// Events returns the outbound event service.
func (s *Service) Events() *event.Service {
	return s.events
}

// Policies returns the governance policy registry.
func (s *Service) Policies() *policy.Registry {
	return s.policies
}

// Metrics returns the Prometheus collectors.
func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

// Progress returns a snapshot of the aggregated instance counters.
func (s *Service) Progress() progress.Progress {
	return s.progress.Snapshot()
}

// Logger returns the service logger.
func (s *Service) Logger() *zap.Logger {
	return s.logger
}

// Start runs the SLA sweep in the background.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.sweeper.Start(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sweeper stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops the sweep and event listeners and releases store resources.
func (s *Service) Shutdown(ctx context.Context) error {
	s.sweeper.Shutdown()
	s.events.Shutdown()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
	_ = s.logger.Sync()
	return nil
}

// New creates a service; unset components default to in-memory ones.
func New(options ...Option) (*Service, error) {
	ret := &Service{}
	if err := ret.init(options); err != nil {
		return nil, err
	}
	return ret, nil
}

// NewFromConfig builds a service from configuration. Options are applied
// after the configured components and take precedence.
func NewFromConfig(ctx context.Context, cfg *Config, options ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	if err = tracing.Setup(&cfg.Tracing); err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	var closers []func()
	store, closer, err := newStore(ctx, &cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	directory := dirmemory.New()
	if cfg.Directory.URL != "" {
		if directory, err = dirmemory.Load(ctx, afs.New(), cfg.Directory.URL); err != nil {
			return nil, err
		}
	}
	registry := policy.NewRegistry()
	for body, config := range cfg.Policies {
		if err = registry.Register(body, policy.FromConfig(config)); err != nil {
			return nil, err
		}
	}
	eventsConfig := cfg.Events
	events, err := event.New(messaging.VendorMemory,
		event.WithLogger(logger),
		event.WithNewMemoryQueueConfig(func(string) memory.Config { return eventsConfig }))
	if err != nil {
		return nil, err
	}
	configured := []Option{
		WithLogger(logger),
		WithStore(store),
		WithDirectory(directory),
		WithPolicies(registry),
		WithEventService(events),
		WithSweepConfig(cfg.Sweep),
		WithTemplateBaseURL(cfg.Templates.BaseURL),
	}
	ret, err := New(append(configured, options...)...)
	if err != nil {
		return nil, err
	}
	ret.closers = closers
	if err = ret.preload(ctx, &cfg.Templates); err != nil {
		_ = ret.Shutdown(ctx)
		return nil, err
	}
	return ret, nil
}

func (s *Service) preload(ctx context.Context, cfg *TemplatesConfig) error {
	for _, URL := range cfg.Preload {
		definition, err := s.templates.Import(ctx, URL)
		if err != nil {
			return err
		}
		if cfg.Activate && definition.Workflow != nil {
			if _, err = s.templates.Activate(ctx, definition.Workflow.ID); err != nil {
				return err
			}
		}
		s.logger.Info("template loaded", zap.String("template", definition.ID()), zap.String("url", URL))
	}
	return nil
}

func newStore(ctx context.Context, cfg *StoreConfig, logger *zap.Logger) (instance.Store, func(), error) {
	switch cfg.Vendor {
	case StoreFS:
		store, err := instancefs.New(ctx, cfg.BaseURL, instancefs.WithLogger(logger))
		return store, nil, err
	case StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		store := pg.New(pool)
		if err = store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	}
	return instancememory.New(), nil, nil
}
