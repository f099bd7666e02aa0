package bus

import (
	"context"
	"sync"
	"sync/atomic"

	pkglog "github.com/pawhub/feedsync/pkg/log"
)

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine, in subscription order.
type Handler func(Event)

// Subscription is the cancellation token returned by Subscribe.
type Subscription struct {
	bus    *Bus
	topic  string
	id     uint64
	fn     Handler
	active atomic.Bool
}

// Cancel removes the subscription. It is idempotent and safe to call
// from inside a handler during delivery.
func (s *Subscription) Cancel() {
	if s == nil || !s.active.CompareAndSwap(true, false) {
		return
	}
	s.bus.remove(s.topic, s.id)
}

// Bus is the process-wide publish/subscribe channel. Delivery within a
// single Publish is synchronous and ordered; no ordering is guaranteed
// between independent publishes.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]*Subscription
	nextID uint64

	bridge Bridge
	origin string
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]*Subscription)}
}

// Subscribe registers a handler for a topic. The topic may be a per-kind
// wildcard such as TopicAnyAvatar.
func (b *Bus) Subscribe(topic string, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{bus: b, topic: topic, id: b.nextID, fn: fn}
	sub.active.Store(true)
	b.subs[topic] = append(b.subs[topic], sub)
	return sub
}

// Publish delivers the event to all current subscribers of its topic
// and the matching wildcard topic, then forwards it to the cross-session
// bridge when one is attached.
func (b *Bus) Publish(e Event) {
	b.dispatch(e)
	b.forward(e)
}

// dispatch performs local delivery only.
func (b *Bus) dispatch(e Event) {
	topic := e.Topic()

	b.mu.Lock()
	snapshot := make([]*Subscription, 0, len(b.subs[topic]))
	snapshot = append(snapshot, b.subs[topic]...)
	if w := wildcardOf(topic); w != "" {
		snapshot = append(snapshot, b.subs[w]...)
	}
	b.mu.Unlock()

	for _, sub := range snapshot {
		if !sub.active.Load() {
			continue
		}
		deliver(sub, e)
	}
}

// deliver invokes a single handler; a panic in one handler must not
// prevent delivery to the remaining handlers.
func deliver(sub *Subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			pkglog.L().Error().
				Interface("panic", r).
				Str(pkglog.FieldTopic, sub.topic).
				Msg("event handler panicked")
		}
	}()
	sub.fn(e)
}

func (b *Bus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[topic]
	for i, sub := range list {
		if sub.id == id {
			b.subs[topic] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// AttachBridge connects the bus to a cross-session bridge. Local
// publishes are forwarded; messages originating elsewhere are
// re-published locally. Forwarding is best-effort: a dead bridge never
// blocks local delivery.
func (b *Bus) AttachBridge(ctx context.Context, bridge Bridge, origin string) error {
	msgs, err := bridge.Listen(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.bridge = bridge
	b.origin = origin
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-msgs:
				if !ok {
					return
				}
				e, from, err := decodeEnvelope(data)
				if err != nil {
					pkglog.L().Warn().Err(err).Msg("dropping undecodable bridge message")
					continue
				}
				if from == origin {
					continue // our own forward echoed back
				}
				b.dispatch(e)
			}
		}
	}()

	return nil
}

func (b *Bus) forward(e Event) {
	b.mu.Lock()
	bridge, origin := b.bridge, b.origin
	b.mu.Unlock()
	if bridge == nil {
		return
	}

	data, err := encodeEnvelope(e, origin)
	if err != nil {
		pkglog.L().Warn().Err(err).Str(pkglog.FieldTopic, e.Topic()).Msg("failed to encode event for bridge")
		return
	}

	go func() {
		if err := bridge.Forward(context.Background(), data); err != nil {
			pkglog.L().Warn().Err(err).Msg("bridge forward failed")
		}
	}()
}
