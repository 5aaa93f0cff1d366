// Package eventbus fans events out to independent subscribers.
//
// Every subscriber owns an overwrite-oldest ring buffer and a delivery
// goroutine. Publish never blocks: a subscriber that stops reading only loses
// its own oldest events, the others keep receiving at their own pace.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/bandlink/internal/groutine"
)

const (
	// DefaultBufferSize is the per-subscriber ring capacity used when none is given.
	DefaultBufferSize uint32 = 256

	// MaxBufferSize guards against accidental misconfiguration.
	MaxBufferSize uint32 = 64 * 1024
)

// SubscriberID identifies a subscription for removal.
type SubscriberID = uuid.UUID

// Bus delivers published values to all current subscribers in registration order.
// Late subscribers only see values published after they subscribed.
type Bus[T any] struct {
	mu         sync.Mutex
	subs       *orderedmap.OrderedMap[SubscriberID, *Subscription[T]]
	bufferSize uint32
	logger     *logrus.Logger
	closed     bool
}

// New creates a bus. A zero bufferSize selects DefaultBufferSize.
func New[T any](bufferSize uint32, logger *logrus.Logger) *Bus[T] {
	if bufferSize == 0 {
		bufferSize = DefaultBufferSize
	}
	if bufferSize > MaxBufferSize {
		bufferSize = MaxBufferSize
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Bus[T]{
		subs:       orderedmap.New[SubscriberID, *Subscription[T]](),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe registers a new subscriber. On a closed bus the returned
// subscription's channel is already closed.
func (b *Bus[T]) Subscribe() *Subscription[T] {
	sub := newSubscription[T](b.bufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.stop()
		close(sub.out)
		return sub
	}

	b.subs.Set(sub.id, sub)
	groutine.Go(context.Background(), "eventbus-subscriber-"+sub.id.String(), func(context.Context) {
		sub.pump()
	})

	b.logger.WithFields(logrus.Fields{
		"subscriber":  sub.id,
		"subscribers": b.subs.Len(),
	}).Debug("Subscriber registered")
	return sub
}

// Unsubscribe removes the subscriber with the given id and closes its channel.
// Returns false if no such subscriber is registered.
func (b *Bus[T]) Unsubscribe(id SubscriberID) bool {
	b.mu.Lock()
	sub, ok := b.subs.Delete(id)
	remaining := b.subs.Len()
	b.mu.Unlock()

	if !ok {
		return false
	}
	sub.stop()

	m := sub.Metrics()
	b.logger.WithFields(logrus.Fields{
		"subscriber":  id,
		"delivered":   m.Delivered,
		"dropped":     m.Dropped,
		"subscribers": remaining,
	}).Debug("Subscriber removed")
	return true
}

// Publish hands v to every subscriber without blocking.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for pair := b.subs.Oldest(); pair != nil; pair = pair.Next() {
		pair.Value.enqueue(v, b.logger)
	}
}

// Subscribers returns the registered ids in registration order.
func (b *Bus[T]) Subscribers() []SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]SubscriberID, 0, b.subs.Len())
	for pair := b.subs.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// Len returns the number of registered subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs.Len()
}

// Close removes all subscribers and closes their channels. Further publishes are ignored.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true

	subs := make([]*Subscription[T], 0, b.subs.Len())
	for pair := b.subs.Oldest(); pair != nil; pair = pair.Next() {
		subs = append(subs, pair.Value)
	}
	b.subs = orderedmap.New[SubscriberID, *Subscription[T]]()
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

// Subscription is a single consumer's view of the bus.
type Subscription[T any] struct {
	id   SubscriberID
	ring mpmc.RichOverlappedRingBuffer[T]
	wake chan struct{}
	out  chan T
	done chan struct{}
	once sync.Once

	delivered atomic.Int64
	dropped   atomic.Int64
	errors    atomic.Int64
}

// Metrics is a snapshot of per-subscriber delivery counters.
type Metrics struct {
	Delivered int64
	Dropped   int64
	Errors    int64
}

func newSubscription[T any](size uint32) *Subscription[T] {
	return &Subscription[T]{
		id:   uuid.New(),
		ring: mpmc.NewOverlappedRingBuffer[T](size),
		wake: make(chan struct{}, 1),
		out:  make(chan T),
		done: make(chan struct{}),
	}
}

// ID returns the subscriber id.
func (s *Subscription[T]) ID() SubscriberID {
	return s.id
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan T {
	return s.out
}

// Metrics returns the current delivery counters.
func (s *Subscription[T]) Metrics() Metrics {
	return Metrics{
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
		Errors:    s.errors.Load(),
	}
}

func (s *Subscription[T]) enqueue(v T, logger *logrus.Logger) {
	overwrites, err := s.ring.EnqueueM(v)
	if err != nil {
		s.errors.Add(1)
		logger.WithFields(logrus.Fields{
			"subscriber": s.id,
			"error":      err,
		}).Warn("Failed to buffer event for subscriber")
		return
	}
	if overwrites > 0 {
		s.dropped.Add(int64(overwrites))
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) pump() {
	defer close(s.out)

	for {
		for !s.ring.IsEmpty() {
			v, err := s.ring.Dequeue()
			if err != nil {
				break
			}
			select {
			case s.out <- v:
				s.delivered.Add(1)
			case <-s.done:
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription[T]) stop() {
	s.once.Do(func() { close(s.done) })
}
