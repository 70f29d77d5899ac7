package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvalflow/internal/clock"
	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/policy"
	instancememory "github.com/viant/approvalflow/service/dao/instance/memory"
	"github.com/viant/approvalflow/service/event"
	"github.com/viant/approvalflow/service/messaging"
	"github.com/viant/approvalflow/service/resolver"
	dirmemory "github.com/viant/approvalflow/service/resolver/memory"
)

var start = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

type templates map[string]*model.WorkflowTemplate

func (t templates) Workflow(_ context.Context, id string) (*model.WorkflowTemplate, error) {
	ret, ok := t[id]
	if !ok {
		return nil, model.ErrTemplateNotFound
	}
	return ret.Clone(), nil
}

func newDirectory() *dirmemory.Directory {
	ret := dirmemory.New()
	ret.Put(&resolver.Actor{ID: "emp-1", Active: true, ManagerID: "mgr-1", OrgUnit: "ops"})
	ret.Put(&resolver.Actor{ID: "mgr-1", Active: true, ManagerID: "dir-1", OrgUnit: "ops"})
	ret.Put(&resolver.Actor{ID: "dir-1", Active: true})
	ret.Put(&resolver.Actor{ID: "hr-1", Active: true, OrgUnit: "ops", Capabilities: []string{resolver.CapabilityHRManager}})
	ret.Put(&resolver.Actor{ID: "deputy-1", Active: true})
	ret.Put(&resolver.Actor{ID: "gone", Active: false})
	for _, id := range []string{"b-1", "b-2", "b-3"} {
		ret.Put(&resolver.Actor{ID: id, Active: true})
	}
	ret.SetGovernance("board", "b-1", "b-2", "b-3")
	return ret
}

func newTemplates() templates {
	return templates{
		"leave": {ID: "leave", Name: "Leave", Category: model.CategoryLeaveRequest, Version: 1, IsActive: true,
			Steps: []*model.Step{
				{Order: 1, Name: "Manager", ApproverType: model.ApproverManager, SLAWarningHours: model.Hours(8), SLACriticalHours: model.Hours(16),
					EscalationHours: model.Hours(24), EscalationAction: model.EscalationAutoApprove},
				{Order: 2, Name: "HR", ApproverType: model.ApproverHR, EscalationHours: model.Hours(48), EscalationAction: model.EscalationEscalateUp, RequiresComment: true},
			}},
		"promotion": {ID: "promotion", Name: "Promotion", Category: model.CategoryPromotion, Version: 1, IsActive: true, AllowReturnToPrevious: true,
			Steps: []*model.Step{
				{Order: 1, Name: "Manager", ApproverType: model.ApproverManager},
				{Order: 2, Name: "HR", ApproverType: model.ApproverHR},
				{Order: 3, Name: "Director", ApproverType: model.ApproverSpecificUser, ApproverTarget: "dir-1"},
			}},
		"chase": {ID: "chase", Name: "Chase", Category: model.CategoryExpenseClaim, Version: 1, IsActive: true,
			Steps: []*model.Step{
				{Order: 1, Name: "Manager", ApproverType: model.ApproverManager, SLAWarningHours: model.Hours(8),
					EscalationHours: model.Hours(24), EscalationAction: model.EscalationNotifyAlternate, AlternateApprover: "deputy-1"},
			}},
		"climb": {ID: "climb", Name: "Climb", Category: model.CategoryGeneral, Version: 1, IsActive: true,
			Steps: []*model.Step{
				{Order: 1, Name: "Manager", ApproverType: model.ApproverManager, EscalationHours: model.Hours(24), EscalationAction: model.EscalationEscalateUp},
				{Order: 2, Name: "HR", ApproverType: model.ApproverHR},
			}},
		"board": {ID: "board", Name: "Board", Category: model.CategorySalaryChange, Version: 1, IsActive: true,
			Steps: []*model.Step{
				{Order: 1, Name: "Board", ApproverType: model.ApproverGovernanceBody, ApproverTarget: "board"},
			}},
		"ceiling": {ID: "ceiling", Name: "Ceiling", Category: model.CategoryLoanRequest, Version: 1, IsActive: true, AutoTerminateHours: model.Hours(48),
			Steps: []*model.Step{
				{Order: 1, Name: "Manager", ApproverType: model.ApproverManager},
			}},
		"draft": {ID: "draft", Name: "Draft", Category: model.CategoryGeneral, Version: 1,
			Steps: []*model.Step{{Order: 1, Name: "Manager", ApproverType: model.ApproverManager}}},
	}
}

type fixture struct {
	clock  *clock.Manual
	events *event.Service
	srv    *Service
}

func newFixture(t *testing.T, options ...Option) *fixture {
	events, err := event.New(messaging.VendorMemory)
	require.NoError(t, err)
	t.Cleanup(events.Shutdown)
	manual := clock.NewManual(start)
	options = append([]Option{WithClock(manual.Now), WithEvents(events)}, options...)
	return &fixture{
		clock:  manual,
		events: events,
		srv:    New(newTemplates(), instancememory.New(), resolver.New(newDirectory()), options...),
	}
}

func (f *fixture) create(t *testing.T, templateID string) *model.Instance {
	ret, err := f.srv.CreateInstance(context.Background(), &CreateRequest{
		TemplateID:    templateID,
		ReferenceType: "request",
		ReferenceID:   "REQ-1",
		Subject:       model.Subject{ActorID: "emp-1", OrgUnit: "ops"},
		InitiatedBy:   "emp-1",
	})
	require.NoError(t, err)
	return ret
}

func consume[T any](t *testing.T, events *event.Service) *event.Event[T] {
	publisher, err := event.PublisherOf[T](events)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ret, err := publisher.Consume(ctx)
	require.NoError(t, err)
	return ret
}

func assertNoEvent[T any](t *testing.T, events *event.Service) {
	publisher, err := event.PublisherOf[T](events)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = publisher.Consume(ctx)
	assert.Error(t, err)
}

func TestService_CreateInstance(t *testing.T) {
	f := newFixture(t)
	inst := f.create(t, "leave")

	assert.Equal(t, model.StatusInProgress, inst.Status)
	assert.Equal(t, 1, inst.CurrentStepOrder)
	assert.EqualValues(t, 1, inst.Version)
	assert.Equal(t, model.SLAOnTrack, inst.SLAStatus)
	require.NotNil(t, inst.CurrentStepDeadlineAt)
	assert.Equal(t, start.Add(24*time.Hour), *inst.CurrentStepDeadlineAt)
	assert.Len(t, inst.Steps, 2)

	advanced := consume[event.StepAdvanced](t, f.events)
	assert.Equal(t, 1, advanced.Data.ToStep)
	assert.Equal(t, []string{"mgr-1"}, advanced.Data.Approvers)
	assert.Equal(t, inst.ID, advanced.Context.InstanceID)

	eligible, err := f.srv.Eligible(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"mgr-1"}, eligible)
}

func TestService_CreateInstance_Errors(t *testing.T) {
	var testCases = []struct {
		description string
		request     *CreateRequest
		expect      error
	}{
		{
			description: "inactive template",
			request:     &CreateRequest{TemplateID: "draft", ReferenceType: "r", ReferenceID: "1", Subject: model.Subject{ActorID: "emp-1"}},
			expect:      model.ErrValidation,
		},
		{
			description: "unknown template",
			request:     &CreateRequest{TemplateID: "missing", ReferenceType: "r", ReferenceID: "1"},
			expect:      model.ErrTemplateNotFound,
		},
		{
			description: "missing reference",
			request:     &CreateRequest{TemplateID: "leave", Subject: model.Subject{ActorID: "emp-1"}},
			expect:      model.ErrValidation,
		},
		{
			description: "first step unresolvable",
			request:     &CreateRequest{TemplateID: "leave", ReferenceType: "r", ReferenceID: "1", Subject: model.Subject{ActorID: "dir-1"}},
			expect:      model.ErrUnresolvableApprover,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.srv.CreateInstance(context.Background(), testCase.request)
			assert.ErrorIs(t, err, testCase.expect)
			active, err := f.srv.Active(context.Background())
			require.NoError(t, err)
			assert.Empty(t, active)
		})
	}
}

func TestService_ApproveToCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "leave")
	consume[event.StepAdvanced](t, f.events)

	f.clock.Advance(2 * time.Hour)
	updated, err := f.srv.Approve(ctx, inst.ID, "mgr-1", "ok")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentStepOrder)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.EqualValues(t, 2, updated.Version)
	assert.Equal(t, start.Add(50*time.Hour), *updated.CurrentStepDeadlineAt)

	advanced := consume[event.StepAdvanced](t, f.events)
	assert.Equal(t, 1, advanced.Data.FromStep)
	assert.Equal(t, 2, advanced.Data.ToStep)
	assert.Equal(t, []string{"hr-1"}, advanced.Data.Approvers)

	updated, err = f.srv.Approve(ctx, inst.ID, "hr-1", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, updated.Status)
	assert.Equal(t, model.FinalApprove, updated.FinalAction)
	require.NotNil(t, updated.CompletedAt)

	completed := consume[event.InstanceCompleted](t, f.events)
	assert.Equal(t, model.StatusApproved, completed.Data.Status)

	history, err := f.srv.History(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.EqualValues(t, 1, history[0].Sequence)
	assert.Equal(t, "mgr-1", history[0].ActorID)
	assert.Equal(t, 1, history[0].StepOrder)
	assert.EqualValues(t, 2, history[1].Sequence)
	assert.Equal(t, 2, history[1].StepOrder)

	view, err := f.srv.Progress(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, view.Percent)

	snapshot := f.srv.progress.Snapshot()
	assert.Equal(t, 0, snapshot.ActiveInstances)
	assert.Equal(t, 1, snapshot.ApprovedInstances)
}

func TestService_IllegalTransitions(t *testing.T) {
	var testCases = []struct {
		description string
		template    string
		prepare     func(f *fixture, id string)
		request     ActRequest
	}{
		{description: "not an approver", template: "leave", request: ActRequest{Action: model.ActionApprove, ActorID: "emp-1"}},
		{description: "missing actor", template: "leave", request: ActRequest{Action: model.ActionApprove}},
		{description: "unknown action", template: "leave", request: ActRequest{Action: "sign", ActorID: "mgr-1"}},
		{description: "return not allowed", template: "leave", request: ActRequest{Action: model.ActionReturn, ActorID: "mgr-1", Payload: Payload{ReturnToStep: 1}}},
		{description: "return to current step", template: "promotion", request: ActRequest{Action: model.ActionReturn, ActorID: "mgr-1", Payload: Payload{ReturnToStep: 1, Comment: "x"}}},
		{description: "empty comment", template: "leave", request: ActRequest{Action: model.ActionComment, ActorID: "mgr-1"}},
		{description: "delegate to self", template: "leave", request: ActRequest{Action: model.ActionDelegate, ActorID: "mgr-1", Payload: Payload{DelegateTo: "mgr-1"}}},
		{description: "delegate to inactive", template: "leave", request: ActRequest{Action: model.ActionDelegate, ActorID: "mgr-1", Payload: Payload{DelegateTo: "gone"}}},
		{description: "manual escalation without action", template: "promotion", request: ActRequest{Action: model.ActionEscalate, ActorID: "admin"}},
		{
			description: "reject requires comment",
			template:    "leave",
			prepare: func(f *fixture, id string) {
				_, err := f.srv.Approve(context.Background(), id, "mgr-1", "")
				require.NoError(t, err)
			},
			request: ActRequest{Action: model.ActionReject, ActorID: "hr-1"},
		},
		{
			description: "terminal instance",
			template:    "leave",
			prepare: func(f *fixture, id string) {
				_, err := f.srv.Reject(context.Background(), id, "mgr-1", "")
				require.NoError(t, err)
			},
			request: ActRequest{Action: model.ActionApprove, ActorID: "hr-1"},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			inst := f.create(t, testCase.template)
			if testCase.prepare != nil {
				testCase.prepare(f, inst.ID)
			}
			before, err := f.srv.Instance(ctx, inst.ID)
			require.NoError(t, err)
			request := testCase.request
			request.InstanceID = inst.ID
			_, err = f.srv.Act(ctx, &request)
			assert.ErrorIs(t, err, model.ErrIllegalTransition)
			after, err := f.srv.Instance(ctx, inst.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestService_Reject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "leave")

	_, err := f.srv.Approve(ctx, inst.ID, "mgr-1", "")
	require.NoError(t, err)
	updated, err := f.srv.Reject(ctx, inst.ID, "hr-1", "insufficient balance")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, updated.Status)
	assert.Equal(t, model.FinalReject, updated.FinalAction)
	assert.Equal(t, 1, f.srv.progress.Snapshot().RejectedInstances)
}

func TestService_ReturnToPrevious(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "promotion")

	_, err := f.srv.Approve(ctx, inst.ID, "mgr-1", "")
	require.NoError(t, err)
	_, err = f.srv.Approve(ctx, inst.ID, "hr-1", "")
	require.NoError(t, err)
	updated, err := f.srv.Return(ctx, inst.ID, "dir-1", 1, "missing documentation")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentStepOrder)
	assert.Equal(t, model.StatusInProgress, updated.Status)

	history, err := f.srv.History(ctx, inst.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, model.ActionReturn, last.Action)
	assert.Equal(t, 1, last.ReturnToStep)
	assert.Equal(t, 3, last.StepOrder)
	assert.Equal(t, "missing documentation", last.Comment)

	returned := consume[event.StepReturned](t, f.events)
	assert.Equal(t, 3, returned.Data.FromStep)
	assert.Equal(t, 1, returned.Data.ToStep)
	assert.Equal(t, []string{"mgr-1"}, returned.Data.Approvers)
}

func TestService_Delegate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "leave")

	_, err := f.srv.Delegate(ctx, inst.ID, "mgr-1", "deputy-1", "on leave")
	require.NoError(t, err)
	eligible, err := f.srv.Eligible(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"deputy-1"}, eligible)

	_, err = f.srv.Approve(ctx, inst.ID, "mgr-1", "")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
	updated, err := f.srv.Approve(ctx, inst.ID, "deputy-1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentStepOrder)

	eligible, err = f.srv.Eligible(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"hr-1"}, eligible)
}

func TestService_Comment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "leave")

	updated, err := f.srv.Comment(ctx, inst.ID, "emp-1", "any update?")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentStepOrder)
	assert.EqualValues(t, 2, updated.Version)

	_, err = f.srv.Comment(ctx, inst.ID, "hr-1", "not mine")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
}

func TestService_GovernanceQuorum(t *testing.T) {
	ctx := context.Background()
	registry := policy.NewRegistry()
	require.NoError(t, registry.Register("board", &policy.Policy{Mode: policy.ModeQuorum, Quorum: 2}))
	f := newFixture(t, WithPolicies(registry))
	inst := f.create(t, "board")

	updated, err := f.srv.Approve(ctx, inst.ID, "b-1", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.Equal(t, []string{"b-1"}, updated.StepApprovals)

	_, err = f.srv.Approve(ctx, inst.ID, "b-1", "")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)

	updated, err = f.srv.Approve(ctx, inst.ID, "b-3", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, updated.Status)
}

func TestService_GovernanceQuorumDelegation(t *testing.T) {
	ctx := context.Background()
	registry := policy.NewRegistry()
	require.NoError(t, registry.Register("board", &policy.Policy{Mode: policy.ModeQuorum, Quorum: 2}))
	f := newFixture(t, WithPolicies(registry))
	inst := f.create(t, "board")

	_, err := f.srv.Approve(ctx, inst.ID, "b-1", "")
	require.NoError(t, err)
	_, err = f.srv.Delegate(ctx, inst.ID, "b-1", "deputy-1", "away")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
	_, err = f.srv.Approve(ctx, inst.ID, "deputy-1", "")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)

	_, err = f.srv.Delegate(ctx, inst.ID, "b-2", "deputy-1", "away")
	require.NoError(t, err)
	updated, err := f.srv.Approve(ctx, inst.ID, "deputy-1", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, updated.Status)
	assert.Equal(t, []string{"b-1", "b-2"}, updated.StepApprovals)
}

func TestService_GovernanceUnanimousDelegation(t *testing.T) {
	ctx := context.Background()
	registry := policy.NewRegistry()
	require.NoError(t, registry.Register("board", &policy.Policy{Mode: policy.ModeUnanimous}))
	f := newFixture(t, WithPolicies(registry))
	inst := f.create(t, "board")

	_, err := f.srv.Delegate(ctx, inst.ID, "b-1", "b-2", "conflict of interest")
	require.NoError(t, err)
	eligible, err := f.srv.Eligible(ctx, inst.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b-2", "b-3"}, eligible)

	updated, err := f.srv.Approve(ctx, inst.ID, "b-2", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.ElementsMatch(t, []string{"b-1", "b-2"}, updated.StepApprovals)

	_, err = f.srv.Approve(ctx, inst.ID, "b-2", "")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)

	updated, err = f.srv.Approve(ctx, inst.ID, "b-3", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, updated.Status)
}

func TestService_GovernanceWithoutPolicy(t *testing.T) {
	f := newFixture(t)
	inst := f.create(t, "board")
	updated, err := f.srv.Approve(context.Background(), inst.ID, "b-2", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, updated.Status)
}

func TestService_ConcurrentActs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "leave")

	actions := []ActRequest{
		{InstanceID: inst.ID, ExpectedVersion: inst.Version, Action: model.ActionApprove, ActorID: "mgr-1"},
		{InstanceID: inst.ID, ExpectedVersion: inst.Version, Action: model.ActionReject, ActorID: "mgr-1", Payload: Payload{Comment: "no"}},
	}
	errs := make([]error, len(actions))
	var wg sync.WaitGroup
	for i := range actions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.srv.Act(ctx, &actions[i])
		}(i)
	}
	wg.Wait()

	succeeded, stale := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, model.ErrStaleInstanceState):
			stale++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, stale)

	history, err := f.srv.History(ctx, inst.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestService_Tick_AutoApprove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "leave")
	consume[event.StepAdvanced](t, f.events)

	f.clock.Advance(25 * time.Hour)
	result, err := f.srv.Tick(ctx, inst.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, model.EscalationAutoApprove, result.Escalation)

	updated, err := f.srv.Instance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentStepOrder)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.Equal(t, f.clock.Now(), updated.CurrentStepStartedAt)
	assert.Equal(t, f.clock.Now().Add(48*time.Hour), *updated.CurrentStepDeadlineAt)
	assert.Equal(t, model.SLAOnTrack, updated.SLAStatus)

	history, err := f.srv.History(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.ActionEscalate, history[0].Action)
	assert.Equal(t, model.ActionApprove, history[1].Action)
	assert.Equal(t, model.SystemActor, history[1].ActorID)

	escalated := consume[event.Escalated](t, f.events)
	assert.Equal(t, model.EscalationAutoApprove, escalated.Data.Action)
	advanced := consume[event.StepAdvanced](t, f.events)
	assert.Equal(t, 2, advanced.Data.ToStep)

	result, err = f.srv.Tick(ctx, inst.ID)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestService_Tick_NotifyAlternateOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "chase")

	f.clock.Advance(25 * time.Hour)
	result, err := f.srv.Tick(ctx, inst.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, model.EscalationNotifyAlternate, result.Escalation)
	assert.True(t, result.SLAChanged)

	f.clock.Advance(time.Hour)
	result, err = f.srv.Tick(ctx, inst.ID)
	require.NoError(t, err)
	assert.Nil(t, result)

	escalated := consume[event.Escalated](t, f.events)
	assert.Equal(t, []string{"deputy-1"}, escalated.Data.Notify)
	assertNoEvent[event.Escalated](t, f.events)

	updated, err := f.srv.Instance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SLABreached, updated.SLAStatus)
	assert.True(t, updated.EscalatedForDeadline())
	assert.Equal(t, 1, f.srv.progress.Snapshot().Escalations)
}

func TestService_Tick_EscalateUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "climb")

	f.clock.Advance(25 * time.Hour)
	result, err := f.srv.Tick(ctx, inst.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, model.EscalationEscalateUp, result.Escalation)

	updated, err := f.srv.Instance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEscalated, updated.Status)
	assert.Equal(t, 1, updated.EscalationLevel)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), *updated.CurrentStepDeadlineAt)

	escalated := consume[event.Escalated](t, f.events)
	assert.Equal(t, []string{"dir-1"}, escalated.Data.Notify)
	assert.Equal(t, 1, escalated.Data.Level)

	_, err = f.srv.Approve(ctx, inst.ID, "mgr-1", "")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
	updated, err = f.srv.Approve(ctx, inst.ID, "dir-1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentStepOrder)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.Equal(t, 0, updated.EscalationLevel)
}

func TestService_Tick_EscalateUpUnresolvable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "climb")

	f.clock.Advance(25 * time.Hour)
	_, err := f.srv.Tick(ctx, inst.ID)
	require.NoError(t, err)
	f.clock.Advance(25 * time.Hour)
	_, err = f.srv.Tick(ctx, inst.ID)
	assert.ErrorIs(t, err, model.ErrUnresolvableApprover)

	updated, err := f.srv.Instance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.EscalationLevel)
	assert.EqualValues(t, 2, updated.Version)
}

func TestService_Tick_SLAWarning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "leave")

	f.clock.Advance(9 * time.Hour)
	result, err := f.srv.Tick(ctx, inst.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.SLAChanged)
	assert.Empty(t, result.Escalation)

	approaching := consume[event.DeadlineApproaching](t, f.events)
	assert.Equal(t, model.SLAWarning, approaching.Data.SLAStatus)

	f.clock.Advance(8 * time.Hour)
	_, err = f.srv.Tick(ctx, inst.ID)
	require.NoError(t, err)
	updated, err := f.srv.Instance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SLACritical, updated.SLAStatus)
}

func TestService_AutoTerminate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "ceiling")

	f.clock.Advance(49 * time.Hour)
	_, err := f.srv.Approve(ctx, inst.ID, "mgr-1", "")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)

	updated, err := f.srv.Instance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, updated.Status)
	assert.Equal(t, model.FinalTerminate, updated.FinalAction)

	completed := consume[event.InstanceCompleted](t, f.events)
	assert.Equal(t, model.FinalTerminate, completed.Data.FinalAction)
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "leave")
	updated, err := f.srv.Cancel(ctx, inst.ID, "hr-admin", "withdrawn")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, updated.Status)
	assert.Equal(t, model.FinalCancel, updated.FinalAction)

	denied := newFixture(t, WithAuthorizer(func(context.Context, *model.Instance, string, model.ActionType) bool { return false }))
	inst = denied.create(t, "leave")
	_, err = denied.srv.Cancel(ctx, inst.ID, "hr-admin", "withdrawn")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
}

func TestService_StaleExpectedVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inst := f.create(t, "leave")
	_, err := f.srv.Comment(ctx, inst.ID, "emp-1", "ping")
	require.NoError(t, err)
	_, err = f.srv.Act(ctx, &ActRequest{InstanceID: inst.ID, ExpectedVersion: 1, Action: model.ActionApprove, ActorID: "mgr-1"})
	assert.ErrorIs(t, err, model.ErrStaleInstanceState)
}
