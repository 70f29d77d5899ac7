package store

import (
	"context"
	"sort"
	"sync"

	"github.com/viant/approvalflow/service/dao"
)

// MemoryStore is a generic in-memory implementation of dao.Service.
// It keeps entities of type *T mapped by a comparable key K obtained from
// keySelector. When a cloner is supplied, values are copied on the way in and
// out so callers never share state with the store.
type MemoryStore[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	keySelector func(*T) K
	cloner      func(*T) *T
	matcher     func(*T, []*dao.Parameter) bool
	less        func(a, b *T) bool
}

// MemoryOption customises a MemoryStore.
type MemoryOption[K comparable, T any] func(*MemoryStore[K, T])

// WithCloner sets the copy function.
func WithCloner[K comparable, T any](cloner func(*T) *T) MemoryOption[K, T] {
	return func(s *MemoryStore[K, T]) {
		s.cloner = cloner
	}
}

// WithMatcher sets the List filter.
func WithMatcher[K comparable, T any](matcher func(*T, []*dao.Parameter) bool) MemoryOption[K, T] {
	return func(s *MemoryStore[K, T]) {
		s.matcher = matcher
	}
}

// WithOrder sets the List ordering.
func WithOrder[K comparable, T any](less func(a, b *T) bool) MemoryOption[K, T] {
	return func(s *MemoryStore[K, T]) {
		s.less = less
	}
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore[K comparable, T any](keySelector func(*T) K, options ...MemoryOption[K, T]) *MemoryStore[K, T] {
	ret := &MemoryStore[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	var zero K
	key := s.keySelector(v)
	if key == zero {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = s.copy(v)
	return nil
}

// Load returns a record by key.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return s.copy(v), nil
}

// Delete removes a record.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return dao.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// List returns stored records accepted by the matcher.
func (s *MemoryStore[K, T]) List(_ context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	out := make([]*T, 0, len(s.records))
	for _, v := range s.records {
		if s.matcher != nil && !s.matcher(v, parameters) {
			continue
		}
		out = append(out, s.copy(v))
	}
	s.mu.RUnlock()
	if s.less != nil {
		sort.SliceStable(out, func(i, j int) bool { return s.less(out[i], out[j]) })
	}
	return out, nil
}

func (s *MemoryStore[K, T]) copy(v *T) *T {
	if s.cloner == nil {
		return v
	}
	return s.cloner(v)
}
