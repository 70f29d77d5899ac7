// Package memory provides an in-process instance store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/service/dao"
	"github.com/viant/approvalflow/service/dao/criteria"
	"github.com/viant/approvalflow/service/dao/instance"
)

// Service implements an in-memory, thread-safe instance store. All API
// methods work with copies to eliminate data races between goroutines.
type Service struct {
	instances map[string]*model.Instance
	actions   map[string][]*model.StepAction
	mux       sync.RWMutex
}

var _ instance.Store = (*Service)(nil)

func (s *Service) Create(_ context.Context, inst *model.Instance, actions ...*model.StepAction) error {
	if err := instance.Validate(inst); err != nil {
		return err
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.instances[inst.ID]; ok {
		return instance.Exists(inst.ID)
	}
	inst.Version = 1
	instance.Sequence(inst.ID, 0, actions)
	s.instances[inst.ID] = inst.Clone()
	s.actions[inst.ID] = copyActions(actions)
	return nil
}

func (s *Service) Load(_ context.Context, id string) (*model.Instance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	defer s.mux.RUnlock()
	inst, ok := s.instances[id]
	if !ok {
		return nil, instance.NotFound(id)
	}
	return inst.Clone(), nil
}

func (s *Service) Update(_ context.Context, inst *model.Instance, expected int64, actions ...*model.StepAction) error {
	if err := instance.Validate(inst); err != nil {
		return err
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	existing, ok := s.instances[inst.ID]
	if !ok {
		return instance.NotFound(inst.ID)
	}
	if existing.Version != expected {
		return instance.Stale(inst.ID, expected, existing.Version)
	}
	inst.Version = expected + 1
	log := s.actions[inst.ID]
	instance.Sequence(inst.ID, int64(len(log)), actions)
	s.instances[inst.ID] = inst.Clone()
	s.actions[inst.ID] = append(log, copyActions(actions)...)
	return nil
}

func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*model.Instance, error) {
	s.mux.RLock()
	out := make([]*model.Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		if !criteria.FilterByStatus(string(inst.Status), parameters) {
			continue
		}
		if !criteria.Match(dao.ParameterTemplate, inst.TemplateID, parameters) {
			continue
		}
		out = append(out, inst.Clone())
	}
	s.mux.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].InitiatedAt.Equal(out[j].InitiatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].InitiatedAt.Before(out[j].InitiatedAt)
	})
	return out, nil
}

func (s *Service) History(_ context.Context, id string) ([]*model.StepAction, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	if _, ok := s.instances[id]; !ok {
		return nil, instance.NotFound(id)
	}
	return copyActions(s.actions[id]), nil
}

func copyActions(actions []*model.StepAction) []*model.StepAction {
	ret := make([]*model.StepAction, 0, len(actions))
	for _, action := range actions {
		clone := *action
		ret = append(ret, &clone)
	}
	return ret
}

func New() *Service {
	return &Service{
		instances: map[string]*model.Instance{},
		actions:   map[string][]*model.StepAction{},
	}
}
