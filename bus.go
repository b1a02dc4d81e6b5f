package control_toolbox

import (
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// WrenchHandler receives wrench messages from a bus subscription.
type WrenchHandler func(WrenchStamped)

// Subscription is a handle on an active topic subscription.
type Subscription interface {
	Close()
}

// WrenchBus carries wrench streams between sensors and managers, keyed by
// topic name. Implementations must serialize handler invocations: two
// handlers on the same bus never run concurrently.
type WrenchBus interface {
	Subscribe(topic string, handler WrenchHandler) (Subscription, error)
	Publish(topic string, msg WrenchStamped) error
}

// LocalBus is an in-process WrenchBus. Delivery happens on the publisher's
// goroutine; a single dispatch lock serializes all handler invocations,
// standing in for the middleware executor that serializes callback delivery.
type LocalBus struct {
	mu       sync.RWMutex
	dispatch sync.Mutex
	closed   bool
	topics   map[string]map[int]WrenchHandler
	nextID   int
	logger   logging.Logger
}

func NewLocalBus(logger logging.Logger) *LocalBus {
	return &LocalBus{
		topics: make(map[string]map[int]WrenchHandler),
		logger: logger,
	}
}

func (b *LocalBus) Subscribe(topic string, handler WrenchHandler) (Subscription, error) {
	if handler == nil {
		return nil, errors.New("nil wrench handler")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("bus is closed")
	}

	if b.topics[topic] == nil {
		b.topics[topic] = make(map[int]WrenchHandler)
	}
	id := b.nextID
	b.nextID++
	b.topics[topic][id] = handler

	return &localSubscription{bus: b, topic: topic, id: id}, nil
}

func (b *LocalBus) Publish(topic string, msg WrenchStamped) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("bus is closed")
	}
	handlers := make([]WrenchHandler, 0, len(b.topics[topic]))
	for _, h := range b.topics[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	b.dispatch.Lock()
	defer b.dispatch.Unlock()
	for _, h := range handlers {
		h(msg)
	}
	return nil
}

// Close drops all subscriptions. Further publishes and subscribes fail.
func (b *LocalBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.topics = make(map[string]map[int]WrenchHandler)
}

type localSubscription struct {
	bus   *LocalBus
	topic string
	id    int
	once  sync.Once
}

func (s *localSubscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if handlers, ok := s.bus.topics[s.topic]; ok {
			delete(handlers, s.id)
			if len(handlers) == 0 {
				delete(s.bus.topics, s.topic)
			}
		}
	})
}
