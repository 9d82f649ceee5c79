package sink

import "sync"

// BackpressurePolicy controls what a Hub does when a subscriber's outbound
// channel is full (spec §4.E). Generalized from
// kstaniek-go-ampio-server's internal/hub.Hub, which broadcasts can.Frame
// to socket clients; this Hub is generic over the message payload so one
// implementation serves the targets/clusters/cube/transform/info topics
// alike.
type BackpressurePolicy int

const (
	// PolicyDrop silently discards the message for a slow subscriber.
	PolicyDrop BackpressurePolicy = iota
	// PolicyKick closes the slow subscriber (its Closed channel fires),
	// signalling it to reconnect rather than silently fall behind forever.
	// Out is not closed and the subscriber stays registered until
	// Unsubscribe.
	PolicyKick
)

// Subscriber is one consumer of a Hub's broadcasts.
type Subscriber[T any] struct {
	Out       chan T
	closed    chan struct{}
	closeOnce sync.Once
}

func newSubscriber[T any](bufSize int) *Subscriber[T] {
	return &Subscriber[T]{Out: make(chan T, bufSize), closed: make(chan struct{})}
}

// Close signals the subscriber is done; idempotent.
func (s *Subscriber[T]) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Closed reports whether Close has been called.
func (s *Subscriber[T]) Closed() <-chan struct{} { return s.closed }

// Hub fans one topic's messages out to any number of subscribers.
type Hub[T any] struct {
	mu      sync.RWMutex
	subs    map[*Subscriber[T]]struct{}
	bufSize int
	policy  BackpressurePolicy

	onDrop func()
	onKick func()
}

// NewHub returns a Hub with the given per-subscriber buffer size and
// backpressure policy. onDrop/onKick, if non-nil, are called once per
// occurrence for metrics wiring; either may be nil.
func NewHub[T any](bufSize int, policy BackpressurePolicy, onDrop, onKick func()) *Hub[T] {
	if onDrop == nil {
		onDrop = func() {}
	}
	if onKick == nil {
		onKick = func() {}
	}
	return &Hub[T]{subs: make(map[*Subscriber[T]]struct{}), bufSize: bufSize, policy: policy, onDrop: onDrop, onKick: onKick}
}

// Subscribe registers and returns a new Subscriber.
func (h *Hub[T]) Subscribe() *Subscriber[T] {
	s := newSubscriber[T](h.bufSize)
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Unsubscribe removes and closes a Subscriber; safe to call more than once.
func (h *Hub[T]) Unsubscribe(s *Subscriber[T]) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	s.Close()
}

// Publish sends msg to every current subscriber, honoring the backpressure
// policy for any subscriber whose buffer is full.
func (h *Hub[T]) Publish(msg T) {
	for _, s := range h.snapshot() {
		select {
		case s.Out <- msg:
		default:
			if h.policy == PolicyKick {
				h.onKick()
				s.Close()
			} else {
				h.onDrop()
			}
		}
	}
}

func (h *Hub[T]) snapshot() []*Subscriber[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Subscriber[T], 0, len(h.subs))
	for s := range h.subs {
		out = append(out, s)
	}
	return out
}

// Count returns the number of active subscribers.
func (h *Hub[T]) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
