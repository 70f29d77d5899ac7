package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/service/messaging"
)

func TestService_Publish(t *testing.T) {
	srv, err := New(messaging.VendorMemory)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	instance := &model.Instance{ID: "i-1", TemplateID: "leave", ReferenceType: "leave_request", ReferenceID: "LR-1"}
	eventContext := ContextOf(instance, TypeInstanceCompleted, "mgr-1")
	require.NoError(t, Publish(ctx, srv, eventContext, InstanceCompleted{Status: model.StatusApproved, FinalAction: model.FinalApprove}))

	completed, err := PublisherOf[InstanceCompleted](srv)
	require.NoError(t, err)
	actual, err := completed.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.FinalApprove, actual.Data.FinalAction)
	assert.Equal(t, "LR-1", actual.Context.ReferenceID)
	assert.False(t, actual.CreatedAt.IsZero())

	again, err := PublisherOf[InstanceCompleted](srv)
	require.NoError(t, err)
	assert.Same(t, completed, again)

	all, err := srv.publisher.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, TypeInstanceCompleted, all.Context.EventType)
	assert.IsType(t, InstanceCompleted{}, all.Data)
}

func TestService_Listeners(t *testing.T) {
	srv, err := New(messaging.VendorMemory)
	require.NoError(t, err)
	defer srv.Shutdown()

	escalated := make(chan *Event[Escalated], 1)
	require.NoError(t, SetListenerOf[Escalated](srv, func(e *Event[Escalated]) { escalated <- e }))
	all := make(chan *Event[any], 1)
	srv.SetListener(func(e *Event[any]) { all <- e })

	instance := &model.Instance{ID: "i-2"}
	require.NoError(t, Publish(context.Background(), srv, ContextOf(instance, TypeEscalated, model.SystemActor),
		Escalated{StepOrder: 1, Action: model.EscalationEscalateUp, Level: 1}))

	select {
	case e := <-escalated:
		assert.Equal(t, model.EscalationEscalateUp, e.Data.Action)
	case <-time.After(time.Second):
		t.Fatal("typed listener did not receive event")
	}
	select {
	case e := <-all:
		assert.Equal(t, "i-2", e.Context.InstanceID)
	case <-time.After(time.Second):
		t.Fatal("listener did not receive event")
	}
}

func TestNew_UnsupportedVendor(t *testing.T) {
	_, err := New("kafka")
	assert.Error(t, err)
}
