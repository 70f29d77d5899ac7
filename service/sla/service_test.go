package sla

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvalflow/internal/clock"
	"github.com/viant/approvalflow/metrics"
	"github.com/viant/approvalflow/model"
	instancememory "github.com/viant/approvalflow/service/dao/instance/memory"
	"github.com/viant/approvalflow/service/engine"
	"github.com/viant/approvalflow/service/event"
	"github.com/viant/approvalflow/service/messaging"
	"github.com/viant/approvalflow/service/resolver"
	dirmemory "github.com/viant/approvalflow/service/resolver/memory"
)

var start = time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)

type templates map[string]*model.WorkflowTemplate

func (t templates) Workflow(_ context.Context, id string) (*model.WorkflowTemplate, error) {
	ret, ok := t[id]
	if !ok {
		return nil, model.ErrTemplateNotFound
	}
	return ret.Clone(), nil
}

var testTemplates = templates{
	"leave": {ID: "leave", Name: "Leave", Version: 1, IsActive: true, Steps: []*model.Step{
		{Order: 1, Name: "Manager", ApproverType: model.ApproverManager, EscalationHours: model.Hours(24), EscalationAction: model.EscalationAutoApprove},
		{Order: 2, Name: "HR", ApproverType: model.ApproverHR},
	}},
	"chase": {ID: "chase", Name: "Chase", Version: 1, IsActive: true, Steps: []*model.Step{
		{Order: 1, Name: "Manager", ApproverType: model.ApproverManager, EscalationHours: model.Hours(24),
			EscalationAction: model.EscalationNotifyAlternate, AlternateApprover: "deputy-1"},
	}},
	"climb": {ID: "climb", Name: "Climb", Version: 1, IsActive: true, Steps: []*model.Step{
		{Order: 1, Name: "Manager", ApproverType: model.ApproverManager, EscalationHours: model.Hours(24), EscalationAction: model.EscalationEscalateUp},
	}},
}

type fixture struct {
	clock   *clock.Manual
	events  *event.Service
	metrics *metrics.Metrics
	engine  *engine.Service
	sweeper *Service
}

func newFixture(t *testing.T, config Config) *fixture {
	directory := dirmemory.New()
	directory.Put(&resolver.Actor{ID: "emp-1", Active: true, ManagerID: "mgr-1", OrgUnit: "ops"})
	directory.Put(&resolver.Actor{ID: "mgr-1", Active: true, ManagerID: "dir-1"})
	directory.Put(&resolver.Actor{ID: "dir-1", Active: true})
	directory.Put(&resolver.Actor{ID: "deputy-1", Active: true})
	directory.Put(&resolver.Actor{ID: "hr-1", Active: true, Capabilities: []string{resolver.CapabilityHRManager}})

	events, err := event.New(messaging.VendorMemory)
	require.NoError(t, err)
	t.Cleanup(events.Shutdown)
	manual := clock.NewManual(start)
	m := metrics.New(prometheus.NewRegistry())
	srv := engine.New(testTemplates, instancememory.New(), resolver.New(directory),
		engine.WithClock(manual.Now), engine.WithEvents(events), engine.WithMetrics(m))
	return &fixture{
		clock:   manual,
		events:  events,
		metrics: m,
		engine:  srv,
		sweeper: New(srv, WithConfig(config), WithMetrics(m)),
	}
}

func (f *fixture) create(t *testing.T, templateID, reference string) *model.Instance {
	ret, err := f.engine.CreateInstance(context.Background(), &engine.CreateRequest{
		TemplateID:    templateID,
		ReferenceType: "request",
		ReferenceID:   reference,
		Subject:       model.Subject{ActorID: "emp-1", OrgUnit: "ops"},
		InitiatedBy:   "emp-1",
	})
	require.NoError(t, err)
	return ret
}

func countEvents[T any](t *testing.T, events *event.Service) int {
	publisher, err := event.PublisherOf[T](events)
	require.NoError(t, err)
	count := 0
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := publisher.Consume(ctx)
		cancel()
		if err != nil {
			return count
		}
		count++
	}
}

func TestService_Sweep_AutoApprove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())
	inst := f.create(t, "leave", "LR-1")

	f.clock.Advance(23 * time.Hour)
	report, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Report{Scanned: 1}, report)

	f.clock.Advance(2 * time.Hour)
	report, err = f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Escalated)

	updated, err := f.engine.Instance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentStepOrder)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.Equal(t, f.clock.Now(), updated.CurrentStepStartedAt)
	assert.Nil(t, updated.CurrentStepDeadlineAt)

	report, err = f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Escalated)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.SweepInstances.WithLabelValues(ResultEscalated)))
}

func TestService_Sweep_EscalatesOncePerDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig())
	f.create(t, "chase", "EX-1")

	f.clock.Advance(25 * time.Hour)
	for i := 0; i < 3; i++ {
		_, err := f.sweeper.Sweep(ctx)
		require.NoError(t, err)
		f.clock.Advance(time.Hour)
	}
	assert.Equal(t, 1, countEvents[event.Escalated](t, f.events))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Escalations.WithLabelValues(string(model.EscalationNotifyAlternate))))
}

func TestService_Sweep_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{Interval: time.Minute, Workers: 4, AlertThreshold: 3})
	for i := 0; i < 20; i++ {
		f.create(t, "leave", fmt.Sprintf("LR-%d", i))
	}
	f.clock.Advance(25 * time.Hour)
	report, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, report.Scanned)
	assert.Equal(t, 20, report.Escalated)
	assert.Equal(t, 0, report.Failed)
}

func TestService_Sweep_AlertsOnRepeatedFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{Interval: time.Minute, Workers: 2, AlertThreshold: 2})
	inst := f.create(t, "climb", "CL-1")

	f.clock.Advance(25 * time.Hour)
	report, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Escalated)

	f.clock.Advance(25 * time.Hour)
	for i := 1; i <= 3; i++ {
		report, err = f.sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, i, f.sweeper.Failures(inst.ID))
	}
	assert.Equal(t, 1, countEvents[event.EscalationFailing](t, f.events))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.EscalationFailures.WithLabelValues("climb")))

	_, err = f.engine.Cancel(ctx, inst.ID, "hr-1", "stuck")
	require.NoError(t, err)
	_, err = f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, f.sweeper.Failures(inst.ID))
}

func TestService_Sweep_PartialConfig(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{Workers: 4})
	inst := f.create(t, "climb", "CL-2")

	f.clock.Advance(25 * time.Hour)
	_, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	for i := 1; i <= 3; i++ {
		report, err := f.sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, i, f.sweeper.Failures(inst.ID))
	}
	assert.Equal(t, 1, countEvents[event.EscalationFailing](t, f.events))
}

func TestService_StartShutdown(t *testing.T) {
	f := newFixture(t, Config{Interval: 5 * time.Millisecond, Workers: 1, AlertThreshold: 1})
	done := make(chan error, 1)
	go func() { done <- f.sweeper.Start(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	f.sweeper.Shutdown()
	f.sweeper.Shutdown()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestConfig_Init(t *testing.T) {
	var testCases = []struct {
		description string
		config      Config
		expect      Config
	}{
		{description: "empty", expect: DefaultConfig()},
		{description: "workers only", config: Config{Workers: 4}, expect: Config{Interval: time.Minute, Workers: 4, AlertThreshold: 3}},
		{description: "all set", config: Config{Interval: time.Second, Workers: 1, AlertThreshold: 5}, expect: Config{Interval: time.Second, Workers: 1, AlertThreshold: 5}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			config := testCase.config
			config.Init()
			assert.Equal(t, testCase.expect, config)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	config := DefaultConfig()
	assert.NoError(t, config.Validate())
	config.Workers = 0
	assert.Error(t, config.Validate())
}
