// Package template persists workflow and appraisal templates and loads their
// YAML definitions from any afs-supported location.
package template

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/service/dao"
	"github.com/viant/approvalflow/service/dao/criteria"
	"github.com/viant/approvalflow/service/dao/store"
)

// Service holds workflow and appraisal templates.
type Service struct {
	workflows  dao.Service[string, model.WorkflowTemplate]
	appraisals dao.Service[string, model.AppraisalTemplate]
	fs         afs.Service
	baseURL    string
	options    []storage.Option
}

// Workflows returns the workflow template store.
func (s *Service) Workflows() dao.Service[string, model.WorkflowTemplate] {
	return s.workflows
}

// Appraisals returns the appraisal template store.
func (s *Service) Appraisals() dao.Service[string, model.AppraisalTemplate] {
	return s.appraisals
}

// Load reads a YAML template definition. Relative URLs resolve against the
// configured base URL and a missing extension defaults to .yaml.
func (s *Service) Load(ctx context.Context, URL string) (*Definition, error) {
	if path.Ext(URL) == "" {
		URL += ".yaml"
	}
	if s.baseURL != "" && url.IsRelative(URL) {
		URL = url.Join(s.baseURL, URL)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL, s.options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load template from %s: %w", URL, err)
	}
	definition, err := DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode template from %s: %w", URL, err)
	}
	definition.applyDefaults(nameFromURL(URL))
	return definition, nil
}

func nameFromURL(URL string) string {
	base := path.Base(URL)
	return strings.TrimSuffix(base, path.Ext(base))
}

func activeMatcher(active bool, parameters []*dao.Parameter) bool {
	state := "inactive"
	if active {
		state = "active"
	}
	return criteria.FilterByStatus(state, parameters)
}

// New creates a template service backed by in-memory stores.
func New(options ...Option) *Service {
	ret := &Service{
		workflows: store.NewMemoryStore[string, model.WorkflowTemplate](
			func(t *model.WorkflowTemplate) string { return t.ID },
			store.WithCloner[string, model.WorkflowTemplate]((*model.WorkflowTemplate).Clone),
			store.WithMatcher[string, model.WorkflowTemplate](func(t *model.WorkflowTemplate, parameters []*dao.Parameter) bool {
				return activeMatcher(t.IsActive, parameters) && criteria.Match(dao.ParameterCategory, string(t.Category), parameters)
			}),
			store.WithOrder[string, model.WorkflowTemplate](func(a, b *model.WorkflowTemplate) bool { return a.ID < b.ID }),
		),
		appraisals: store.NewMemoryStore[string, model.AppraisalTemplate](
			func(t *model.AppraisalTemplate) string { return t.ID },
			store.WithCloner[string, model.AppraisalTemplate]((*model.AppraisalTemplate).Clone),
			store.WithMatcher[string, model.AppraisalTemplate](func(t *model.AppraisalTemplate, parameters []*dao.Parameter) bool {
				return activeMatcher(t.IsActive, parameters)
			}),
			store.WithOrder[string, model.AppraisalTemplate](func(a, b *model.AppraisalTemplate) bool { return a.ID < b.ID }),
		),
		fs: afs.New(),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}
