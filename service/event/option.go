package event

import (
	"github.com/viant/approvalflow/service/messaging/memory"
	"go.uber.org/zap"
)

type Option func(s *Service)

// WithNewMemoryQueueConfig sets the memory queue configuration per queue name.
func WithNewMemoryQueueConfig(newConfig func(name string) memory.Config) Option {
	return func(s *Service) {
		s.memNewQueueConfig = newConfig
	}
}

// WithLogger sets the logger used by listeners.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
