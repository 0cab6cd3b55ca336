package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/germanamz/tether/pkg/agent"
	"github.com/germanamz/tether/pkg/chats/message"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	// EventMessage carries a presentation Message.
	EventMessage EventKind = "message"
	// EventState carries a submission state transition.
	EventState EventKind = "state"
	// EventConnection reports a tool server connection outcome. Err is set
	// when the server is unreachable; the UI should treat that as blocking.
	EventConnection EventKind = "connection"
)

// Event is an immutable notification of engine activity.
type Event struct {
	Kind      EventKind
	SessionID string
	Timestamp time.Time
	Message   message.Message // EventMessage only.
	State     agent.State     // EventState only.
	Err       error           // EventConnection failures.
}

// Subscription receives events from an EventBus.
type Subscription struct {
	C       <-chan Event
	ch      chan Event
	dropped atomic.Int64
}

// Dropped returns how many events were discarded because C was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// EventBus fans out events to all active subscribers. It is safe for
// concurrent use.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
	log  *slog.Logger
}

// NewEventBus creates an EventBus ready for use.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[*Subscription]struct{}),
		log:  slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger that reports dropped events.
func (b *EventBus) SetLogger(l *slog.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.log = l
}

// Subscribe creates a new subscription with the given channel buffer size.
// The caller should read from sub.C and eventually call Unsubscribe.
func (b *EventBus) Subscribe(bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish sends an event to all subscribers without blocking. When a
// subscriber's buffer is full the event is dropped for that subscriber and
// logged at debug level.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			n := sub.dropped.Add(1)
			b.log.Debug("event dropped, subscriber buffer full",
				"kind", e.Kind,
				"session_id", e.SessionID,
				"message_id", e.Message.ID,
				"dropped", n,
			)
		}
	}
}
