package session

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/bandlink/internal/eventbus"
	"github.com/srg/bandlink/internal/groutine"
	"github.com/srg/bandlink/internal/protocol"
	"github.com/srg/bandlink/internal/reassembly"
)

// Session owns the link to a single band.
//
// All state changes happen on one actor goroutine. Commands and transport
// callbacks are queued in an unbounded mailbox and processed in arrival
// order; outcomes are published as events. State and KnownDevices may be
// read from any goroutine.
type Session struct {
	transport Transport
	logger    *logrus.Logger
	opts      Options

	bus     *eventbus.Bus[Event]
	reasm   *reassembly.Reassembler
	devices *hashmap.Map[string, DeviceHandle]

	mailbox   *mailbox
	quit      chan struct{}
	stopped   chan struct{}
	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once

	stateMu sync.RWMutex
	state   ConnectionState
	target  *DeviceHandle

	// Owned by the actor goroutine.
	scanWanted   bool
	scanning     bool
	scanAttempts int
	scanTimer    *time.Timer

	stats stats
}

type stats struct {
	decoded   atomic.Int64
	malformed atomic.Int64
	unknown   atomic.Int64
	ignored   atomic.Int64
}

// Stats are counters of inbound notification handling.
type Stats struct {
	Decoded   int64
	Malformed int64
	Unknown   int64
	Ignored   int64
}

// New creates a session on top of transport and installs itself as its listener.
// Call Start before issuing commands.
func New(transport Transport, logger *logrus.Logger, opts *Options) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	o := opts.withDefaults()

	s := &Session{
		transport: transport,
		logger:    logger,
		opts:      o,
		bus:       eventbus.New[Event](o.BufferSize, logger),
		reasm:     reassembly.New(),
		devices:   hashmap.New[string, DeviceHandle](),
		mailbox:   newMailbox(),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		state:     ConnectionState{Status: Disconnected},
	}
	transport.SetListener(listener{s})
	return s
}

// Start launches the actor goroutine. The session stops when ctx is done or
// Close is called; either way every subscription channel is closed.
func (s *Session) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session already started")
	}

	groutine.GoRecover(ctx, "session-actor", s.logger, s.run)
	s.logger.Debug("Session started")
	return nil
}

// Close stops the actor, drops the link, clears the device cache and closes
// all subscriptions. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.quit)
		if s.started.Load() {
			<-s.stopped
		} else {
			close(s.stopped)
		}
		s.bus.Close()
		s.logger.Debug("Session closed")
	})
	return nil
}

// Execute queues cmd and waits until the actor has processed it. Outcomes,
// including rejections, are reported as events; the only errors returned
// are ErrNotStarted and ErrClosed.
func (s *Session) Execute(cmd protocol.Command) error {
	return s.call(func() { s.handle(cmd) })
}

// Subscribe registers a new event subscriber.
func (s *Session) Subscribe() *eventbus.Subscription[Event] {
	return s.bus.Subscribe()
}

// Unsubscribe removes the subscriber with the given id.
func (s *Session) Unsubscribe(id eventbus.SubscriberID) bool {
	return s.bus.Unsubscribe(id)
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Current returns the device being connected to or connected, if any.
func (s *Session) Current() (DeviceHandle, bool) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.target == nil {
		return DeviceHandle{}, false
	}
	return *s.target, true
}

// KnownDevices returns the devices discovered so far, ordered by id.
func (s *Session) KnownDevices() []DeviceHandle {
	out := make([]DeviceHandle, 0, s.devices.Len())
	s.devices.Range(func(_ string, dev DeviceHandle) bool {
		out = append(out, dev)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClearDevices empties the discovery cache.
func (s *Session) ClearDevices() error {
	return s.call(s.clearDevices)
}

// BoundDevices lists devices known to the system that expose the band service.
func (s *Session) BoundDevices() ([]DeviceHandle, error) {
	return s.transport.BoundDevices(s.opts.Service)
}

// Stats returns notification handling counters.
func (s *Session) Stats() Stats {
	return Stats{
		Decoded:   s.stats.decoded.Load(),
		Malformed: s.stats.malformed.Load(),
		Unknown:   s.stats.unknown.Load(),
		Ignored:   s.stats.ignored.Load(),
	}
}

func (s *Session) Scan() error       { return s.Execute(protocol.Scan{}) }
func (s *Session) StopScan() error   { return s.Execute(protocol.StopScan{}) }
func (s *Session) Disconnect() error { return s.Execute(protocol.Disconnect{}) }
func (s *Session) StopRealtime() error {
	return s.Execute(protocol.StopRealtime{})
}
func (s *Session) StartPPG() error { return s.Execute(protocol.StartPPG{}) }

func (s *Session) Connect(id string) error {
	return s.Execute(protocol.Connect{ID: id})
}

func (s *Session) StartRealtime(kind uint8) error {
	return s.Execute(protocol.StartRealtime{Kind: kind})
}

// RequestTotalActivity asks for activity totals starting today.
func (s *Session) RequestTotalActivity() error {
	return s.Execute(protocol.RequestTotalActivity{Since: s.opts.Now()})
}

// RequestSleep asks for sleep records starting today.
func (s *Session) RequestSleep() error {
	return s.Execute(protocol.RequestSleep{Since: s.opts.Now()})
}

// RequestHRV asks for HRV records starting today.
func (s *Session) RequestHRV() error {
	return s.Execute(protocol.RequestHRV{Since: s.opts.Now()})
}

// call runs fn on the actor goroutine and waits for it.
func (s *Session) call(fn func()) error {
	if !s.started.Load() {
		if s.closed.Load() {
			return ErrClosed
		}
		return ErrNotStarted
	}
	if s.closed.Load() {
		return ErrClosed
	}

	done := make(chan struct{})
	s.mailbox.push(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-s.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	}
}

// post queues fn without waiting. Jobs posted after shutdown are dropped.
func (s *Session) post(fn func()) {
	if s.closed.Load() {
		return
	}
	s.mailbox.push(fn)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.stopped)

	for {
		select {
		case <-s.mailbox.wake:
			for _, job := range s.mailbox.drain() {
				job()
			}
		case <-s.quit:
			s.shutdown()
			return
		case <-ctx.Done():
			s.closed.Store(true)
			s.shutdown()
			return
		}
	}
}

func (s *Session) shutdown() {
	s.scanWanted = false
	if s.scanTimer != nil {
		s.scanTimer.Stop()
	}
	if s.scanning {
		if err := s.transport.StopDiscovery(); err != nil {
			s.logger.WithField("error", err).Warn("Failed to stop discovery during shutdown")
		}
		s.scanning = false
	}

	if s.State().Status != Disconnected {
		if err := s.transport.Disconnect(); err != nil {
			s.logger.WithField("error", err).Warn("Failed to disconnect during shutdown")
		}
		s.setState(ConnectionState{Status: Disconnected}, nil)
	}

	s.reasm.Reset()
	s.clearDevices()
	s.bus.Close()
}

func (s *Session) now() time.Time {
	return s.opts.Now()
}

func (s *Session) publish(p EventPayload) {
	s.bus.Publish(Event{Time: s.now(), Payload: p})
}

// setState records a new state and publishes it.
func (s *Session) setState(state ConnectionState, target *DeviceHandle) {
	s.stateMu.Lock()
	s.state = state
	s.target = target
	s.stateMu.Unlock()

	id := ""
	if target != nil {
		id = target.ID
	}
	s.publish(ConnectionStateChanged{DeviceID: id, State: state})
}

// reportFailure publishes a Failed event without changing the current state.
func (s *Session) reportFailure(id string, err error) {
	s.logger.WithFields(logrus.Fields{
		"device": id,
		"error":  err,
	}).Warn("Session operation failed")
	s.publish(ConnectionStateChanged{DeviceID: id, State: ConnectionState{Status: Failed, Err: err}})
}

func (s *Session) clearDevices() {
	keys := make([]string, 0, s.devices.Len())
	s.devices.Range(func(k string, _ DeviceHandle) bool {
		keys = append(keys, k)
		return true
	})
	for _, k := range keys {
		s.devices.Del(k)
	}
}

// listener adapts transport callbacks to actor jobs.
type listener struct {
	s *Session
}

func (l listener) OnDiscovered(dev DeviceHandle) {
	l.s.post(func() { l.s.onDiscovered(dev) })
}

func (l listener) OnDiscoveryStopped(err error) {
	l.s.post(func() { l.s.onDiscoveryStopped(err) })
}

func (l listener) OnConnected(id string) {
	l.s.post(func() { l.s.onConnected(id) })
}

func (l listener) OnConnectFailed(id string, err error) {
	l.s.post(func() { l.s.onConnectFailed(id, err) })
}

func (l listener) OnDisconnected(id string, reason error) {
	l.s.post(func() { l.s.onDisconnected(id, reason) })
}

func (l listener) OnNotify(characteristic string, data []byte) {
	data = slices.Clone(data)
	l.s.post(func() { l.s.onNotify(characteristic, data) })
}
