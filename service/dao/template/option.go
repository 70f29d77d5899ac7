package template

import (
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/service/dao"
)

type Option func(*Service)

// WithFS sets the file system, base URL and storage options used by Load.
func WithFS(fs afs.Service, baseURL string, options ...storage.Option) Option {
	return func(s *Service) {
		s.fs = fs
		s.baseURL = baseURL
		s.options = options
	}
}

// WithWorkflowStore replaces the workflow template store.
func WithWorkflowStore(workflows dao.Service[string, model.WorkflowTemplate]) Option {
	return func(s *Service) {
		s.workflows = workflows
	}
}

// WithAppraisalStore replaces the appraisal template store.
func WithAppraisalStore(appraisals dao.Service[string, model.AppraisalTemplate]) Option {
	return func(s *Service) {
		s.appraisals = appraisals
	}
}
