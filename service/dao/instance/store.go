// Package instance defines the versioned workflow instance store. Every
// implementation appends step actions atomically with the instance update
// they belong to and rejects updates against a stale version.
package instance

import (
	"context"
	"fmt"

	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/service/dao"
)

// Store persists instances and their append-only action log.
type Store interface {
	// Create stores a new instance at version 1 together with its initial
	// actions.
	Create(ctx context.Context, instance *model.Instance, actions ...*model.StepAction) error

	Load(ctx context.Context, id string) (*model.Instance, error)

	// Update replaces the instance when its stored version equals expected.
	// On success instance.Version is expected+1 and actions carry their
	// assigned sequence numbers.
	Update(ctx context.Context, instance *model.Instance, expected int64, actions ...*model.StepAction) error

	List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Instance, error)

	History(ctx context.Context, id string) ([]*model.StepAction, error)
}

// NotFound returns the error reported for an unknown instance id.
func NotFound(id string) error {
	return fmt.Errorf("%w: %s", model.ErrInstanceNotFound, id)
}

// Exists returns the error reported when creating a duplicate instance.
func Exists(id string) error {
	return fmt.Errorf("instance %s: %w", id, dao.ErrAlreadyExists)
}

// Stale returns the error reported for a version mismatch.
func Stale(id string, expected, actual int64) error {
	return &model.StaleInstanceStateError{InstanceID: id, Expected: expected, Actual: actual}
}

// Sequence assigns consecutive sequence numbers after last and stamps the
// instance id.
func Sequence(instanceID string, last int64, actions []*model.StepAction) {
	for _, action := range actions {
		last++
		action.InstanceID = instanceID
		action.Sequence = last
	}
}

// Validate checks the arguments shared by Create and Update.
func Validate(instance *model.Instance) error {
	if instance == nil {
		return dao.ErrNilEntity
	}
	if instance.ID == "" {
		return dao.ErrInvalidID
	}
	return nil
}
