// Package fs provides an instance store that keeps one JSON document per
// instance on any afs-supported file system.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/service/dao"
	"github.com/viant/approvalflow/service/dao/criteria"
	"github.com/viant/approvalflow/service/dao/instance"
	"go.uber.org/zap"
)

// record is the persisted document. The instance and its action log share a
// single file so one upload commits both.
type record struct {
	Instance *model.Instance     `json:"instance"`
	Actions  []*model.StepAction `json:"actions"`
}

// Service implements a filesystem-based instance store.
type Service struct {
	basePath string
	fs       afs.Service
	logger   *zap.Logger
	mu       sync.RWMutex
}

var _ instance.Store = (*Service)(nil)

func (s *Service) Create(ctx context.Context, inst *model.Instance, actions ...*model.StepAction) error {
	if err := instance.Validate(inst); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exists, err := s.fs.Exists(ctx, s.instancePath(inst.ID))
	if err != nil {
		return fmt.Errorf("failed to check if instance exists: %w", err)
	}
	if exists {
		return instance.Exists(inst.ID)
	}
	inst.Version = 1
	instance.Sequence(inst.ID, 0, actions)
	return s.save(ctx, &record{Instance: inst, Actions: actions})
}

func (s *Service) Load(ctx context.Context, id string) (*model.Instance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Instance, nil
}

func (s *Service) Update(ctx context.Context, inst *model.Instance, expected int64, actions ...*model.StepAction) error {
	if err := instance.Validate(inst); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(ctx, inst.ID)
	if err != nil {
		return err
	}
	if rec.Instance.Version != expected {
		return instance.Stale(inst.ID, expected, rec.Instance.Version)
	}
	instance.Sequence(inst.ID, int64(len(rec.Actions)), actions)
	updated := inst.Clone()
	updated.Version = expected + 1
	if err := s.save(ctx, &record{Instance: updated, Actions: append(rec.Actions, actions...)}); err != nil {
		return err
	}
	inst.Version = updated.Version
	return nil
}

func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list instance files: %w", err)
	}
	var instances []*model.Instance
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			s.logger.Warn("failed to read instance file", zap.String("url", object.URL()), zap.Error(err))
			continue
		}
		rec := &record{}
		if err := json.Unmarshal(data, rec); err != nil || rec.Instance == nil {
			s.logger.Warn("failed to decode instance file", zap.String("url", object.URL()), zap.Error(err))
			continue
		}
		if !criteria.FilterByStatus(string(rec.Instance.Status), parameters) {
			continue
		}
		if !criteria.Match(dao.ParameterTemplate, rec.Instance.TemplateID, parameters) {
			continue
		}
		instances = append(instances, rec.Instance)
	}
	sort.Slice(instances, func(i, j int) bool {
		if instances[i].InitiatedAt.Equal(instances[j].InitiatedAt) {
			return instances[i].ID < instances[j].ID
		}
		return instances[i].InitiatedAt.Before(instances[j].InitiatedAt)
	})
	return instances, nil
}

func (s *Service) History(ctx context.Context, id string) ([]*model.StepAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Actions == nil {
		return []*model.StepAction{}, nil
	}
	return rec.Actions, nil
}

func (s *Service) load(ctx context.Context, id string) (*record, error) {
	filePath := s.instancePath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if instance exists: %w", err)
	}
	if !exists {
		return nil, instance.NotFound(id)
	}
	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read instance file: %w", err)
	}
	rec := &record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance %s: %w", id, err)
	}
	if rec.Instance == nil {
		return nil, fmt.Errorf("instance file %s has no instance", filePath)
	}
	return rec, nil
}

func (s *Service) save(ctx context.Context, rec *record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}
	filePath := s.instancePath(rec.Instance.ID)
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save instance to file %s: %w", filePath, err)
	}
	return nil
}

func (s *Service) instancePath(id string) string {
	return url.Join(s.basePath, path.Clean(id)+".json")
}

// Option customises the store.
type Option func(*Service)

// WithLogger sets the logger used for unreadable files.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFS replaces the file system, for example with a memory one in tests.
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// New creates a new filesystem instance store rooted at basePath.
func New(ctx context.Context, basePath string, options ...Option) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	ret := &Service{fs: afs.New(), logger: zap.NewNop()}
	for _, opt := range options {
		opt(ret)
	}
	exists, _ := ret.fs.Exists(ctx, basePath)
	if !exists {
		if err := ret.fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	ret.basePath = url.Normalize(basePath, file.Scheme)
	return ret, nil
}
