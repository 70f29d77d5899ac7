package approvalflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/afs/storage"
	"github.com/viant/approvalflow/policy"
	"github.com/viant/approvalflow/service/dao/instance"
	"github.com/viant/approvalflow/service/engine"
	"github.com/viant/approvalflow/service/event"
	"github.com/viant/approvalflow/service/resolver"
	"github.com/viant/approvalflow/service/sla"
	"github.com/viant/approvalflow/tracing"
	"go.uber.org/zap"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the service.
type Option func(s *Service)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithStore sets the instance store.
func WithStore(store instance.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithDirectory sets the organisation directory approvers are resolved from.
func WithDirectory(directory resolver.Directory) Option {
	return func(s *Service) {
		s.directory = directory
	}
}

// WithPolicies sets the governance body approval policies.
func WithPolicies(registry *policy.Registry) Option {
	return func(s *Service) {
		s.policies = registry
	}
}

// WithEventService sets the outbound event service.
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.events = service
	}
}

// WithTemplateBaseURL sets the location template files are imported from.
func WithTemplateBaseURL(URL string, options ...storage.Option) Option {
	return func(s *Service) {
		s.templateBaseURL = URL
		s.templateFsOptions = options
	}
}

// WithClock sets the time source used by the engine and template authoring.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithMetricsRegisterer registers the Prometheus collectors with registerer.
func WithMetricsRegisterer(registerer prometheus.Registerer) Option {
	return func(s *Service) {
		s.registerer = registerer
	}
}

// WithSweepConfig sets the SLA sweep configuration.
func WithSweepConfig(config sla.Config) Option {
	return func(s *Service) {
		s.sweepConfig = config
	}
}

// WithAuthorizer sets the authorizer of administrative actions.
func WithAuthorizer(authorizer engine.Authorizer) Option {
	return func(s *Service) {
		s.authorizer = authorizer
	}
}

// WithTracing configures OpenTelemetry tracing with the stdout exporter
// writing to outputFile, or os.Stdout when empty. The first successful
// initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, for example OTLP. The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
