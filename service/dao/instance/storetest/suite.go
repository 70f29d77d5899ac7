// Package storetest holds the behavioural suite every instance.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/service/dao"
	"github.com/viant/approvalflow/service/dao/instance"
)

var initiatedAt = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

// NewInstance returns an in-progress two step instance.
func NewInstance(id string) *model.Instance {
	return &model.Instance{
		ID:               id,
		TemplateID:       "leave",
		TemplateVersion:  1,
		Category:         model.CategoryLeaveRequest,
		Steps:            []*model.Step{{Order: 1, ApproverType: model.ApproverManager}, {Order: 2, ApproverType: model.ApproverHR}},
		ReferenceType:    "leave_request",
		ReferenceID:      "LR-" + id,
		Subject:          model.Subject{ActorID: "emp-1", OrgUnit: "ops"},
		Status:           model.StatusInProgress,
		CurrentStepOrder: 1,
		SLAStatus:        model.SLAOnTrack,
		InitiatedAt:      initiatedAt,
	}
}

func action(id string, kind model.ActionType) *model.StepAction {
	return &model.StepAction{ID: id, StepOrder: 1, Action: kind, ActorID: "mgr-1", Timestamp: initiatedAt}
}

// Run exercises store contract semantics against a fresh store from factory.
func Run(t *testing.T, factory func(t *testing.T) instance.Store) {
	ctx := context.Background()

	t.Run("create and load", func(t *testing.T) {
		store := factory(t)
		inst := NewInstance("i-1")
		require.NoError(t, store.Create(ctx, inst))
		assert.EqualValues(t, 1, inst.Version)

		loaded, err := store.Load(ctx, "i-1")
		require.NoError(t, err)
		assert.EqualValues(t, 1, loaded.Version)
		assert.Equal(t, "LR-i-1", loaded.ReferenceID)
		assert.Equal(t, model.StatusInProgress, loaded.Status)
		assert.Len(t, loaded.Steps, 2)
		assert.True(t, initiatedAt.Equal(loaded.InitiatedAt))

		loaded.Status = model.StatusCancelled
		reloaded, err := store.Load(ctx, "i-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusInProgress, reloaded.Status)

		err = store.Create(ctx, NewInstance("i-1"))
		assert.ErrorIs(t, err, dao.ErrAlreadyExists)
	})

	t.Run("not found", func(t *testing.T) {
		store := factory(t)
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrInstanceNotFound)
		_, err = store.History(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrInstanceNotFound)
		err = store.Update(ctx, NewInstance("missing"), 1)
		assert.ErrorIs(t, err, model.ErrInstanceNotFound)
	})

	t.Run("update appends actions", func(t *testing.T) {
		store := factory(t)
		inst := NewInstance("i-2")
		require.NoError(t, store.Create(ctx, inst, action("a-0", model.ActionComment)))

		inst.CurrentStepOrder = 2
		approve := action("a-1", model.ActionApprove)
		require.NoError(t, store.Update(ctx, inst, 1, approve))
		assert.EqualValues(t, 2, inst.Version)
		assert.EqualValues(t, 2, approve.Sequence)
		assert.Equal(t, "i-2", approve.InstanceID)

		require.NoError(t, store.Update(ctx, inst, 2, action("a-2", model.ActionComment), action("a-3", model.ActionApprove)))
		history, err := store.History(ctx, "i-2")
		require.NoError(t, err)
		require.Len(t, history, 4)
		for i, entry := range history {
			assert.EqualValues(t, i+1, entry.Sequence)
			assert.Equal(t, fmt.Sprintf("a-%d", i), entry.ID)
		}
		loaded, err := store.Load(ctx, "i-2")
		require.NoError(t, err)
		assert.EqualValues(t, 3, loaded.Version)
		assert.Equal(t, 2, loaded.CurrentStepOrder)
	})

	t.Run("stale update leaves state unchanged", func(t *testing.T) {
		store := factory(t)
		inst := NewInstance("i-3")
		require.NoError(t, store.Create(ctx, inst))

		inst.Status = model.StatusApproved
		err := store.Update(ctx, inst, 7, action("a-1", model.ActionApprove))
		var stale *model.StaleInstanceStateError
		require.True(t, errors.As(err, &stale))
		assert.EqualValues(t, 7, stale.Expected)
		assert.EqualValues(t, 1, stale.Actual)
		assert.ErrorIs(t, err, model.ErrStaleInstanceState)

		loaded, err := store.Load(ctx, "i-3")
		require.NoError(t, err)
		assert.Equal(t, model.StatusInProgress, loaded.Status)
		history, err := store.History(ctx, "i-3")
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("concurrent updates on one version", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Create(ctx, NewInstance("i-4")))

		const writers = 8
		var wg sync.WaitGroup
		errs := make([]error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				candidate := NewInstance("i-4")
				candidate.CurrentStepOrder = 2
				errs[i] = store.Update(ctx, candidate, 1, action(fmt.Sprintf("c-%d", i), model.ActionApprove))
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, model.ErrStaleInstanceState)
		}
		assert.Equal(t, 1, succeeded)
		history, err := store.History(ctx, "i-4")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("list by status", func(t *testing.T) {
		store := factory(t)
		for i, status := range []model.Status{model.StatusInProgress, model.StatusApproved, model.StatusEscalated} {
			inst := NewInstance(fmt.Sprintf("l-%d", i))
			inst.Status = status
			inst.InitiatedAt = initiatedAt.Add(time.Duration(i) * time.Hour)
			require.NoError(t, store.Create(ctx, inst))
		}
		all, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "l-0", all[0].ID)

		active, err := store.List(ctx, dao.NewParameter(dao.ParameterStatus, "in_progress", "escalated"))
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "l-0", active[0].ID)
		assert.Equal(t, "l-2", active[1].ID)

		byTemplate, err := store.List(ctx, dao.NewParameter(dao.ParameterTemplate, "other"))
		require.NoError(t, err)
		assert.Empty(t, byTemplate)
	})
}
