// Package hooks implements the in-process event bus that fans out execution
// lifecycle events to subscribers (step:start/complete/error,
// workflow:pause/resume/complete/error, activity:*), per §4.4 and §5's
// per-execution total-ordering guarantee.
package hooks

import (
	"context"
	"errors"
	"sync"
)

// Event is a single published lifecycle or activity event. Seq is assigned
// by the Bus per execution id and is monotonically increasing within that
// execution; events across executions are not ordered with each other (§5).
type Event struct {
	ExecutionID string
	Seq         uint64
	Type        string
	Payload     map[string]any
}

// Bus publishes events to registered subscribers in a synchronous fan-out
// pattern and assigns per-execution sequence numbers.
type Bus interface {
	// Publish assigns the next sequence number for event.ExecutionID, delivers
	// the event to every registered subscriber in registration order, and
	// returns the sequenced event. Delivery stops at the first subscriber
	// error, mirroring the fail-fast behaviour subscribers rely on (e.g. a
	// persistence subscriber that must halt the run on write failure).
	Publish(ctx context.Context, event Event) (Event, error)

	// Register adds a subscriber and returns a Subscription that can be
	// closed to unregister.
	Register(sub Subscriber) (Subscription, error)
}

// Subscriber reacts to published events.
type Subscriber interface {
	HandleEvent(ctx context.Context, event Event) error
}

// SubscriberFunc adapts a function to a Subscriber.
type SubscriberFunc func(ctx context.Context, event Event) error

func (f SubscriberFunc) HandleEvent(ctx context.Context, event Event) error { return f(ctx, event) }

// Subscription represents an active registration; Close is idempotent.
type Subscription interface {
	Close() error
}

type bus struct {
	mu          sync.RWMutex
	subscribers []registered
	seqs        map[string]uint64
}

type registered struct {
	s   *subscription
	sub Subscriber
}

type subscription struct {
	bus  *bus
	once sync.Once
}

// NewBus constructs an in-memory event bus ready for immediate use.
func NewBus() Bus {
	return &bus{
		seqs: make(map[string]uint64),
	}
}

func (b *bus) Publish(ctx context.Context, event Event) (Event, error) {
	b.mu.Lock()
	b.seqs[event.ExecutionID]++
	event.Seq = b.seqs[event.ExecutionID]
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, r := range b.subscribers {
		subs = append(subs, r.sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		if err := sub.HandleEvent(ctx, event); err != nil {
			return event, err
		}
	}
	return event, nil
}

func (b *bus) Register(sub Subscriber) (Subscription, error) {
	if sub == nil {
		return nil, errors.New("subscriber is required")
	}
	s := &subscription{bus: b}
	b.mu.Lock()
	b.subscribers = append(b.subscribers, registered{s: s, sub: sub})
	b.mu.Unlock()
	return s, nil
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		for i, r := range s.bus.subscribers {
			if r.s == s {
				s.bus.subscribers = append(s.bus.subscribers[:i], s.bus.subscribers[i+1:]...)
				break
			}
		}
		s.bus.mu.Unlock()
	})
	return nil
}
