//go:build test

package testutils

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/bandlink/internal/eventbus"
	"github.com/srg/bandlink/internal/session"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// DefaultEventTimeout bounds every wait for a session event.
const DefaultEventTimeout = 2 * time.Second

// MockSessionSuite runs a real session.Session on top of a MockTransport and
// subscribes to its events before each test.
//
//	type ConnectSuite struct {
//	    testutils.MockSessionSuite
//	}
//
//	func (s *ConnectSuite) TestSomething() {
//	    s.Transport.On("StartDiscovery", mock.Anything).Return(nil)
//	    s.Require().NoError(s.Session.Scan())
//	    ev := s.NextEvent(session.EventScanResult)
//	}
type MockSessionSuite struct {
	suite.Suite

	Logger    *logrus.Logger
	Transport *MockTransport
	Session   *session.Session
	Events    *eventbus.Subscription[session.Event]
	Options   *session.Options

	cancel context.CancelFunc
}

// Now is the fixed clock used by the suite's session.
var Now = time.Date(2024, time.March, 15, 13, 45, 0, 0, time.Local)

func (s *MockSessionSuite) SetupTest() {
	s.Logger = logrus.New()
	s.Logger.SetLevel(logrus.DebugLevel)

	s.Transport = NewMockTransport()
	if s.Options == nil {
		s.Options = &session.Options{ScanRetryDelay: 10 * time.Millisecond}
	}
	s.Options.Now = func() time.Time { return Now }

	s.Session = session.New(s.Transport, s.Logger, s.Options)
	s.Events = s.Session.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.Require().NoError(s.Session.Start(ctx), "session MUST start")
}

func (s *MockSessionSuite) TearDownTest() {
	// Shutdown may disconnect or stop discovery; allow it without asserting.
	s.Transport.On("Disconnect").Return(nil).Maybe()
	s.Transport.On("StopDiscovery").Return(nil).Maybe()

	s.Require().NoError(s.Session.Close())
	s.cancel()
	s.Options = nil
}

// NextEvent returns the next event with the given name, skipping others.
func (s *MockSessionSuite) NextEvent(name string) session.Event {
	deadline := time.After(DefaultEventTimeout)
	for {
		select {
		case ev, ok := <-s.Events.C():
			s.Require().True(ok, "event channel MUST stay open")
			if ev.Name() == name {
				return ev
			}
		case <-deadline:
			s.FailNow("timed out waiting for event " + name)
			return session.Event{}
		}
	}
}

// NextState returns the next connection state event.
func (s *MockSessionSuite) NextState() session.ConnectionStateChanged {
	return s.NextEvent(session.EventConnectionState).Payload.(session.ConnectionStateChanged)
}

// NextData returns the next realtime data event.
func (s *MockSessionSuite) NextData() session.RealtimeData {
	return s.NextEvent(session.EventRealtimeData).Payload.(session.RealtimeData)
}

// DrainEvents collects events published within d.
func (s *MockSessionSuite) DrainEvents(d time.Duration) []session.Event {
	var out []session.Event
	deadline := time.After(d)
	for {
		select {
		case ev, ok := <-s.Events.C():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			return out
		}
	}
}

// ExpectImmediateConnect makes Connect succeed by reporting OnConnected synchronously.
func (s *MockSessionSuite) ExpectImmediateConnect() *mock.Call {
	return s.Transport.On("Connect", mock.Anything).Run(func(args mock.Arguments) {
		s.Transport.Listener().OnConnected(args.Get(0).(session.DeviceHandle).ID)
	}).Return(nil)
}

// Discover reports a sighting through the transport listener and waits for the scan result.
func (s *MockSessionSuite) Discover(id, name string, rssi int) session.ScanResult {
	s.Transport.Listener().OnDiscovered(session.DeviceHandle{ID: id, Name: name, RSSI: &rssi})
	return s.NextEvent(session.EventScanResult).Payload.(session.ScanResult)
}

// ConnectTo discovers id and connects it, consuming the Connecting and Connected events.
func (s *MockSessionSuite) ConnectTo(id string) {
	s.Discover(id, "Band", -60)
	s.ExpectImmediateConnect().Once()

	s.Require().NoError(s.Session.Connect(id))
	s.Require().Equal(session.Connecting, s.NextState().State.Status, "MUST report connecting first")
	s.Require().Equal(session.Connected, s.NextState().State.Status, "MUST report connected")
}
