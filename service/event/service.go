package event

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/viant/approvalflow/service/messaging"
	"github.com/viant/approvalflow/service/messaging/memory"
	"go.uber.org/zap"
)

// Service owns one queue per event payload type plus a queue of all events.
type Service struct {
	publisher         *Publisher[any]
	listener          *Listener[any]
	typedPublishers   map[reflect.Type]any
	typedListener     map[reflect.Type]any
	mux               *sync.RWMutex
	queueVendor       messaging.Vendor
	memNewQueueConfig func(name string) memory.Config
	logger            *zap.Logger
}

// SetListener subscribes handler to every event regardless of type.
func (s *Service) SetListener(handler func(*Event[any])) {
	s.mux.Lock()
	previous := s.listener
	s.listener = NewListener[any](s.publisher, handler, s.logger)
	s.listener.Start()
	s.mux.Unlock()
	if previous != nil {
		previous.Stop()
	}
}

// Shutdown stops all listeners.
func (s *Service) Shutdown() {
	s.mux.Lock()
	listeners := make([]interface{ Stop() }, 0, len(s.typedListener)+1)
	if s.listener != nil {
		listeners = append(listeners, s.listener)
		s.listener = nil
	}
	for key, listener := range s.typedListener {
		listeners = append(listeners, listener.(interface{ Stop() }))
		delete(s.typedListener, key)
	}
	s.mux.Unlock()
	for _, listener := range listeners {
		listener.Stop()
	}
}

func New(queueVendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		queueVendor:       queueVendor,
		typedPublishers:   make(map[reflect.Type]any),
		typedListener:     make(map[reflect.Type]any),
		mux:               &sync.RWMutex{},
		memNewQueueConfig: func(string) memory.Config { return memory.DefaultConfig() },
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	queue, err := QueueOf[Event[any]](ret, "any")
	if err != nil {
		return nil, err
	}
	ret.publisher = NewPublisher[any](queue)
	return ret, nil
}

func QueueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.queueVendor {
	case messaging.VendorMemory:
		return memory.NewQueue[T](s.memNewQueueConfig(name)), nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", s.queueVendor)
}

func keyOf[T any]() reflect.Type {
	rType := reflect.TypeOf((*T)(nil)).Elem()
	if rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return rType
}

// SetListenerOf subscribes handler to events carrying T.
func SetListenerOf[T any](s *Service, handler func(*Event[T])) error {
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return err
	}
	key := keyOf[T]()
	listener := NewListener[T](publisher, handler, s.logger)
	s.mux.Lock()
	previous, ok := s.typedListener[key]
	s.typedListener[key] = listener
	listener.Start()
	s.mux.Unlock()
	if ok {
		previous.(*Listener[T]).Stop()
	}
	return nil
}

// PublisherOf returns a publisher for the provided type
func PublisherOf[T any](s *Service) (*Publisher[T], error) {
	key := keyOf[T]()
	s.mux.RLock()
	ret, ok := s.typedPublishers[key]
	s.mux.RUnlock()
	if ok {
		return ret.(*Publisher[T]), nil
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if ret, ok = s.typedPublishers[key]; ok {
		return ret.(*Publisher[T]), nil
	}
	queue, err := QueueOf[Event[T]](s, key.String())
	if err != nil {
		return nil, err
	}
	publisher := NewPublisher[T](queue)
	publisher.anyQueue = s.publisher.queue
	s.typedPublishers[key] = publisher
	return publisher, nil
}

// Publish wraps data in an event and publishes it on its typed queue.
func Publish[T any](ctx context.Context, s *Service, eventContext *Context, data T) error {
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return err
	}
	return publisher.Publish(ctx, NewEvent[T](eventContext, data))
}
