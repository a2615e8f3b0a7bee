// Package bus implements the per-world publish/subscribe event stream
// that carries message, streaming, tool, activity, system and log
// events out of the orchestrator to whatever is listening (a
// websocket transport, a test harness, a CLI).
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/kadirpekel/worldcore/logctx"
	"github.com/kadirpekel/worldcore/observability"
)

// EventKind identifies the shape of an event's payload.
type EventKind string

const (
	KindMessage  EventKind = "message"
	KindSSE      EventKind = "sse"
	KindTool     EventKind = "tool"
	KindActivity EventKind = "activity"
	KindSystem   EventKind = "system"
	KindLog      EventKind = "log"
)

// Event is the envelope delivered to every subscriber.
type Event struct {
	Kind    EventKind
	Payload any
}

// Handler receives events for the kinds it was subscribed to.
type Handler func(Event)

const subscriptionBuffer = 1024

type subscription struct {
	id      int
	kind    EventKind
	handler Handler
	ch      chan Event
	closed  atomic.Bool
}

type workItem struct {
	event Event
}

// Bus is a single world's event bus. The zero value is not usable;
// construct with New.
type Bus struct {
	queue chan workItem
	done  chan struct{}

	mu       sync.Mutex
	nextID   int
	subs     map[EventKind][]*subscription
	allSubs  []*subscription

	cancelled sync.Map // chatID string -> struct{}

	worldID string
	metrics *observability.Metrics
}

// SetMetrics attaches a metrics sink labeled with worldID. A nil
// metrics is fine; every recorder call on it is a no-op.
func (b *Bus) SetMetrics(worldID string, m *observability.Metrics) {
	b.mu.Lock()
	b.worldID = worldID
	b.metrics = m
	b.mu.Unlock()
}

// New creates a Bus and starts its single drain goroutine. Call Close
// to stop the goroutine when the world is torn down.
func New() *Bus {
	b := &Bus{
		queue: make(chan workItem, 4096),
		done:  make(chan struct{}),
		subs:  make(map[EventKind][]*subscription),
	}
	go b.drain()
	return b
}

// Close stops the drain goroutine. Publish after Close is a no-op.
func (b *Bus) Close() {
	close(b.done)
}

func (b *Bus) drain() {
	for {
		select {
		case <-b.done:
			return
		case item := <-b.queue:
			b.dispatch(item.event)
		}
	}
}

func (b *Bus) dispatch(ev Event) {
	b.mu.Lock()
	subs := append([]*subscription(nil), b.subs[ev.Kind]...)
	worldID, metrics := b.worldID, b.metrics
	b.mu.Unlock()

	metrics.SetBusQueueDepth(worldID, len(b.queue))

	for _, s := range subs {
		if s.closed.Load() {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			// overflow: drop oldest, then enqueue the new event
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- ev:
			default:
			}
			b.warnDropped(ev.Kind, s.id)
		}
	}
}

func (b *Bus) warnDropped(kind EventKind, subID int) {
	logctx.Default().Warn("dropped event", "category", "bus", "kind", string(kind), "subscriptionId", subID)
	b.mu.Lock()
	worldID, metrics := b.worldID, b.metrics
	b.mu.Unlock()
	metrics.RecordBusDropped(worldID)
}

// Publish enqueues an event for asynchronous delivery to subscribers
// of kind, in registration order. Publish never blocks the caller on
// a slow subscriber — per-subscription buffering and drop-oldest
// absorbs that.
func (b *Bus) Publish(kind EventKind, payload any) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.queue <- workItem{event: Event{Kind: kind, Payload: payload}}:
	case <-b.done:
	}
}

// Subscribe registers handler for events of kind and starts a goroutine
// that invokes handler, in order, for every event delivered to this
// subscription's buffer. The returned func unsubscribes: it stops
// delivery and is safe to call more than once.
func (b *Bus) Subscribe(kind EventKind, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	s := &subscription{
		id:      b.nextID,
		kind:    kind,
		handler: handler,
		ch:      make(chan Event, subscriptionBuffer),
	}
	b.subs[kind] = append(b.subs[kind], s)
	b.allSubs = append(b.allSubs, s)
	b.mu.Unlock()

	go func() {
		for ev := range s.ch {
			s.handler(ev)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.closed.Store(true)
			b.mu.Lock()
			list := b.subs[s.kind]
			for i, other := range list {
				if other == s {
					list[i] = nil
				}
			}
			b.subs[s.kind] = compact(list)
			b.mu.Unlock()
			close(s.ch)
		})
	}
}

func compact(list []*subscription) []*subscription {
	out := list[:0]
	for _, s := range list {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Cancel marks chatID as cancelled. Suspension points inside streaming
// LLM calls and tool execution poll Cancelled to stop early.
func (b *Bus) Cancel(chatID string) {
	b.cancelled.Store(chatID, struct{}{})
}

// Cancelled reports whether chatID has been cancelled.
func (b *Bus) Cancelled(chatID string) bool {
	_, ok := b.cancelled.Load(chatID)
	return ok
}

// ClearCancelled resets the cancellation flag for chatID, called once
// a new turn begins on that chat.
func (b *Bus) ClearCancelled(chatID string) {
	b.cancelled.Delete(chatID)
}
