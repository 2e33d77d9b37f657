package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AllEvents subscribes to every event name.
const AllEvents = "*"

// Event is one notification travelling through the bus.
type Event struct {
	Name    string
	Payload any
	Time    time.Time
}

// Handler consumes events on an attached subscription.
type Handler func(ctx context.Context, ev Event)

// Subscription is a bounded queue of events for one consumer.
type Subscription struct {
	name string
	ch   chan Event
	once sync.Once
}

// Events returns the receive side; it is closed on Unsubscribe or Bus.Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Bus fans published events out to subscriptions without ever blocking the publisher.
type Bus struct {
	mu            sync.RWMutex
	subs          map[*Subscription]struct{}
	closed        bool
	defaultBuffer int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewBus creates a bus whose subscriptions default to defaultBuffer slots.
func NewBus(defaultBuffer int, logger zerolog.Logger) *Bus {
	if defaultBuffer <= 0 {
		defaultBuffer = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		subs:          make(map[*Subscription]struct{}),
		defaultBuffer: defaultBuffer,
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger.With().Str("component", "NotificationBus").Logger(),
	}
}

// Publish delivers the event to every matching subscription with room in its buffer.
// Full buffers drop the event.
func (b *Bus) Publish(name string, payload any) {
	ev := Event{Name: name, Payload: payload, Time: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		if sub.name != AllEvents && sub.name != name {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.logger.Debug().Str("event", name).Str("subscription", sub.name).Msg("Subscriber buffer full, event dropped")
		}
	}
}

// Subscribe registers a queue for name (or AllEvents). buffer <= 0 uses the bus default.
func (b *Bus) Subscribe(name string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = b.defaultBuffer
	}
	sub := &Subscription{name: name, ch: make(chan Event, buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.close()
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	sub.close()
}

// Attach subscribes to name and runs handler for each event on its own goroutine
// until the subscription ends.
func (b *Bus) Attach(name string, handler Handler) *Subscription {
	sub := b.Subscribe(name, 0)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for ev := range sub.ch {
			b.dispatch(handler, ev)
		}
	}()
	return sub
}

func (b *Bus) dispatch(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("event", ev.Name).Msg("Event handler panicked")
		}
	}()
	handler(b.ctx, ev)
}

// Close ends every subscription, cancels in-flight handlers and waits for attached consumers.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.close()
	}
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}
