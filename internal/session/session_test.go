//go:build test

package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/bandlink/internal/protocol"
	"github.com/srg/bandlink/internal/session"
	"github.com/srg/bandlink/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type SessionTestSuite struct {
	testutils.MockSessionSuite
}

func (suite *SessionTestSuite) TestScanConnectRequestSleep() {
	// GOAL: Verify the full happy path from discovery to a reassembled sleep response
	//
	// TEST SCENARIO: scan → sighting A/"Band"/-60 → connect A → Connecting → Connected →
	// RequestSleep → one write → two fragments → one final RealtimeData

	suite.Transport.On("StartDiscovery", mock.Anything).Run(func(mock.Arguments) {
		rssi := -60
		suite.Transport.Listener().OnDiscovered(session.DeviceHandle{ID: "A", Name: "Band", RSSI: &rssi})
	}).Return(nil).Once()
	suite.ExpectImmediateConnect().Once()
	suite.Transport.On("Write", session.ServiceUUID, session.WriteCharUUID, mock.Anything).Return(nil).Once()

	suite.Require().NoError(suite.Session.Scan())
	scan := suite.NextEvent(session.EventScanResult).Payload.(session.ScanResult)
	suite.Equal(session.ScanResult{ID: "A", Name: "Band", RSSI: -60, FirstSeen: true}, scan)

	suite.Require().NoError(suite.Session.Connect("A"))
	connecting := suite.NextState()
	suite.Equal(session.Connecting, connecting.State.Status, "MUST report connecting first")
	suite.Equal("A", connecting.DeviceID)
	suite.Equal(session.Connected, suite.NextState().State.Status, "MUST report connected")
	suite.Equal(session.Connected, suite.Session.State().Status)

	suite.Require().NoError(suite.Session.RequestSleep())
	suite.Transport.AssertNumberOfCalls(suite.T(), "Write", 1)

	writes := suite.Transport.Writes()
	suite.Require().Len(writes, 1)
	cmd, err := protocol.ParseCommand(writes[0])
	suite.Require().NoError(err, "written frame MUST be a valid command")
	suite.Equal(protocol.RequestSleep{Since: protocol.StartOfDay(testutils.Now)}, cmd, "sleep request MUST start at today's midnight")

	start := time.Date(2024, time.March, 14, 23, 0, 0, 0, time.Local)
	suite.Transport.Listener().OnNotify("FFF7", testutils.SleepRecordFrame(1, start, 1, 2, 3))
	suite.Transport.Listener().OnNotify("fff7", testutils.EndOfTransfer(protocol.CodeSleep))

	data := suite.NextData()
	suite.Equal(protocol.DetailSleepData, data.TypeCode)
	suite.Equal("DetailSleepData", data.TypeName)
	suite.True(data.IsFinal)
	sleep, ok := data.Payload().(protocol.Sleep)
	suite.Require().True(ok, "payload MUST be sleep records")
	suite.Require().Len(sleep.Records, 1)
	suite.Equal([]int{1, 2, 3}, sleep.Records[0].Quality)

	for _, ev := range suite.DrainEvents(100 * time.Millisecond) {
		suite.NotEqual(session.EventRealtimeData, ev.Name(), "MUST publish exactly one data event per response")
	}
}

func (suite *SessionTestSuite) TestConnect_UnknownDevice() {
	// GOAL: Verify connecting to an id that was neither discovered nor bound fails cleanly
	//
	// TEST SCENARIO: empty cache, no bound devices → connect → Failed "Peripheral not found" → Disconnected

	suite.Transport.On("BoundDevices", session.ServiceUUID).Return(nil, nil).Once()

	suite.Require().NoError(suite.Session.Connect("unknown-id"))

	failed := suite.NextState()
	suite.Equal(session.Failed, failed.State.Status)
	suite.ErrorIs(failed.State.Err, session.ErrUnknownDevice)
	suite.Equal("Peripheral not found", failed.State.Err.Error())
	suite.Equal(session.Disconnected, suite.Session.State().Status, "state MUST stay disconnected")
	suite.Transport.AssertNotCalled(suite.T(), "Connect", mock.Anything)
}

func (suite *SessionTestSuite) TestConnect_BoundDevice() {
	// GOAL: Verify a device known to the system is connectable without scanning
	//
	// TEST SCENARIO: bound device B → connect B → transport Connect(B) → Connected

	suite.Transport.On("BoundDevices", session.ServiceUUID).
		Return([]session.DeviceHandle{{ID: "B", Name: "Bound Band"}}, nil).Once()
	suite.ExpectImmediateConnect().Once()

	suite.Require().NoError(suite.Session.Connect("B"))
	suite.Equal(session.Connecting, suite.NextState().State.Status)
	suite.Equal(session.Connected, suite.NextState().State.Status)

	dev, ok := suite.Session.Current()
	suite.Require().True(ok)
	suite.Equal("Bound Band", dev.Name)
	suite.Len(suite.Session.KnownDevices(), 1, "bound device MUST be cached")
}

func (suite *SessionTestSuite) TestConnect_WhileConnectingIsRejected() {
	// GOAL: Verify a second connect during an attempt changes nothing
	//
	// TEST SCENARIO: connect A (pending) → connect A again → Failed already connecting → still Connecting

	suite.Discover("A", "Band", -50)
	suite.Transport.On("Connect", mock.Anything).Return(nil).Once()

	suite.Require().NoError(suite.Session.Connect("A"))
	suite.Equal(session.Connecting, suite.NextState().State.Status)

	suite.Require().NoError(suite.Session.Connect("A"))
	rejected := suite.NextState()
	suite.Equal(session.Failed, rejected.State.Status)
	suite.ErrorIs(rejected.State.Err, session.ErrAlreadyConnecting)

	suite.Equal(session.Connecting, suite.Session.State().Status, "state MUST NOT change")
	suite.Transport.AssertNumberOfCalls(suite.T(), "Connect", 1)
}

func (suite *SessionTestSuite) TestConnect_WhileConnectedIsRejected() {
	suite.ConnectTo("A")

	suite.Require().NoError(suite.Session.Connect("A"))
	rejected := suite.NextState()
	suite.Equal(session.Failed, rejected.State.Status)
	suite.True(session.IsKind(rejected.State.Err, session.AlreadyConnected))
	suite.Equal(session.Connected, suite.Session.State().Status)
}

func (suite *SessionTestSuite) TestConnect_FailureSettlesDisconnected() {
	// GOAL: Verify a failed attempt reports the cause and returns to Disconnected
	//
	// TEST SCENARIO: connect → transport reports failure → Failed(err) → Disconnected

	cause := errors.New("dial timeout")
	suite.Discover("A", "Band", -50)
	suite.Transport.On("Connect", mock.Anything).Run(func(mock.Arguments) {
		suite.Transport.Listener().OnConnectFailed("A", cause)
	}).Return(nil).Once()

	suite.Require().NoError(suite.Session.Connect("A"))
	suite.Equal(session.Connecting, suite.NextState().State.Status)

	failed := suite.NextState()
	suite.Equal(session.Failed, failed.State.Status)
	suite.ErrorIs(failed.State.Err, cause)
	suite.Equal(session.Disconnected, suite.NextState().State.Status)
	suite.Equal(session.Disconnected, suite.Session.State().Status)
}

func (suite *SessionTestSuite) TestConnect_SynchronousErrorIsAFailure() {
	suite.Discover("A", "Band", -50)
	suite.Transport.On("Connect", mock.Anything).Return(errors.New("radio busy")).Once()

	suite.Require().NoError(suite.Session.Connect("A"))
	suite.Equal(session.Connecting, suite.NextState().State.Status)
	suite.Equal(session.Failed, suite.NextState().State.Status)
	suite.Equal(session.Disconnected, suite.NextState().State.Status)
}

func (suite *SessionTestSuite) TestDeviceCommand_RequiresConnection() {
	// GOAL: Verify device-bound commands are rejected before a link exists
	//
	// TEST SCENARIO: disconnected → StartRealtime → Failed not connected, no write

	suite.Require().NoError(suite.Session.StartRealtime(1))

	failed := suite.NextState()
	suite.Equal(session.Failed, failed.State.Status)
	suite.ErrorIs(failed.State.Err, session.ErrNotConnected)
	suite.Equal("Not connected", failed.State.Err.Error())
	suite.Transport.AssertNotCalled(suite.T(), "Write", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *SessionTestSuite) TestWriteFailure_KeepsConnection() {
	suite.ConnectTo("A")
	suite.Transport.On("Write", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("gatt busy")).Once()

	suite.Require().NoError(suite.Session.StartPPG())

	failed := suite.NextState()
	suite.Equal(session.Failed, failed.State.Status)
	suite.ErrorContains(failed.State.Err, "gatt busy")
	suite.Equal(session.Connected, suite.Session.State().Status, "write failure MUST NOT drop the link")
}

func (suite *SessionTestSuite) TestInvalidCommand_ReportsFailure() {
	suite.ConnectTo("A")

	suite.Require().NoError(suite.Session.StartRealtime(0))
	failed := suite.NextState()
	suite.Equal(session.Failed, failed.State.Status)
	suite.ErrorIs(failed.State.Err, protocol.ErrInvalidCommand)
	suite.Transport.AssertNotCalled(suite.T(), "Write", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *SessionTestSuite) TestDisconnect_ResetsReassembly() {
	// GOAL: Verify a dropped link discards partial responses
	//
	// TEST SCENARIO: connected → record fragment → disconnect → reconnect → terminator → no stale record

	suite.ConnectTo("A")
	suite.Transport.On("Disconnect").Run(func(mock.Arguments) {
		suite.Transport.Listener().OnDisconnected("A", nil)
	}).Return(nil).Once()

	suite.Transport.Listener().OnNotify(session.NotifyCharUUID, testutils.SleepRecordFrame(7, testutils.Now, 4))
	suite.Require().NoError(suite.Session.Disconnect())

	disconnected := suite.NextState()
	suite.Equal(session.Disconnected, disconnected.State.Status)
	suite.NoError(disconnected.State.Err, "requested disconnect MUST carry no error")

	suite.ExpectImmediateConnect().Once()
	suite.Require().NoError(suite.Session.Connect("A"))
	suite.Equal(session.Connecting, suite.NextState().State.Status)
	suite.Equal(session.Connected, suite.NextState().State.Status)

	suite.Transport.Listener().OnNotify(session.NotifyCharUUID, testutils.EndOfTransfer(protocol.CodeSleep))
	data := suite.NextData()
	suite.Empty(data.Fields, "stale fragment MUST NOT survive a disconnect")
}

func (suite *SessionTestSuite) TestUnexpectedDisconnect_CarriesReason() {
	suite.ConnectTo("A")

	reason := errors.New("link supervision timeout")
	suite.Transport.Listener().OnDisconnected("A", reason)

	st := suite.NextState()
	suite.Equal(session.Disconnected, st.State.Status)
	suite.ErrorIs(st.State.Err, reason)
	_, ok := suite.Session.Current()
	suite.False(ok, "no device MUST be current after disconnect")
}

func (suite *SessionTestSuite) TestDisconnect_AlwaysCallsTransport() {
	suite.Transport.On("Disconnect").Return(nil).Once()

	suite.Require().NoError(suite.Session.Disconnect())
	suite.Transport.AssertNumberOfCalls(suite.T(), "Disconnect", 1)
	suite.Equal(session.Disconnected, suite.Session.State().Status)
}

func (suite *SessionTestSuite) TestStaleConnectSuccess_IsDropped() {
	// GOAL: Verify a late success for an abandoned attempt does not resurrect the link
	//
	// TEST SCENARIO: disconnected → OnConnected("A") → transport Disconnect, state unchanged

	suite.Transport.On("Disconnect").Return(nil).Once()
	suite.Transport.Listener().OnConnected("A")

	suite.Eventually(func() bool {
		return suite.Transport.CallCount("Disconnect") == 1
	}, testutils.DefaultEventTimeout, 5*time.Millisecond, "stale link MUST be dropped")
	suite.Equal(session.Disconnected, suite.Session.State().Status)
}

func (suite *SessionTestSuite) TestNotify_UnknownTypePassesThrough() {
	suite.ConnectTo("A")

	suite.Transport.Listener().OnNotify(session.NotifyCharUUID, []byte{0x77, 0x01, 0x02})
	data := suite.NextData()
	suite.Equal("DataType_375", data.TypeName)
	suite.Equal([]byte{0x77, 0x01, 0x02}, data.Fields[protocol.FieldRaw])
	suite.EqualValues(1, suite.Session.Stats().Unknown)
}

func (suite *SessionTestSuite) TestNotify_MalformedAndForeignFramesDropped() {
	suite.ConnectTo("A")

	suite.Transport.Listener().OnNotify(session.NotifyCharUUID, []byte{0x09, 0x01})
	suite.Transport.Listener().OnNotify("2a37", testutils.RealtimeFrame(1, 1, 1, 60, 360))
	suite.Transport.Listener().OnNotify(session.NotifyCharUUID, testutils.RealtimeFrame(1200, 5000, 90, 70, 365))

	data := suite.NextData()
	suite.Equal(protocol.RealTimeStep, data.TypeCode, "only the valid frame MUST be published")
	rt := data.Payload().(protocol.Realtime)
	suite.Equal(1200, rt.Steps)
	suite.Equal(70, rt.HeartRate)

	stats := suite.Session.Stats()
	suite.EqualValues(1, stats.Malformed)
	suite.EqualValues(1, stats.Ignored)
	suite.EqualValues(1, stats.Decoded)
}

func (suite *SessionTestSuite) TestDiscovery_RefreshKeepsName() {
	// GOAL: Verify repeat sightings refresh RSSI without losing a known name
	//
	// TEST SCENARIO: sighting "Band" -70 → sighting "" -40 → cache has "Band" -40, second event not first-seen

	first := suite.Discover("A", "  Band ", -70)
	suite.True(first.FirstSeen)
	suite.Equal("Band", first.Name)

	second := suite.Discover("A", "", -40)
	suite.False(second.FirstSeen)
	suite.Equal("Band", second.Name)
	suite.Equal(-40, second.RSSI)

	anon := suite.Discover("C", "", -90)
	suite.Equal(session.UnknownName, anon.Name)

	devs := suite.Session.KnownDevices()
	suite.Require().Len(devs, 2)
	suite.Equal("A", devs[0].ID)
	suite.Equal(-40, devs[0].RSSIValue())

	suite.Require().NoError(suite.Session.ClearDevices())
	suite.Empty(suite.Session.KnownDevices())
}

func (suite *SessionTestSuite) TestScan_RetriesUntilRadioReady() {
	// GOAL: Verify discovery start is retried while the radio is not ready
	//
	// TEST SCENARIO: StartDiscovery fails once → retry after delay → succeeds

	suite.Transport.On("StartDiscovery", mock.Anything).Return(errors.New("bluetooth is turned off")).Once()
	suite.Transport.On("StartDiscovery", mock.Anything).Return(nil).Once()
	suite.Transport.On("StopDiscovery").Return(nil).Once()

	suite.Require().NoError(suite.Session.Scan())
	suite.Eventually(func() bool {
		return suite.Transport.CallCount("StartDiscovery") == 2
	}, testutils.DefaultEventTimeout, 5*time.Millisecond, "discovery MUST be retried")

	suite.Require().NoError(suite.Session.StopScan())
	suite.Transport.AssertNumberOfCalls(suite.T(), "StopDiscovery", 1)
}

func (suite *SessionTestSuite) TestScan_GivesUpAfterRetries() {
	suite.Transport.On("StartDiscovery", mock.Anything).Return(errors.New("no adapter"))

	suite.Require().NoError(suite.Session.Scan())
	failed := suite.NextState()
	suite.Equal(session.Failed, failed.State.Status)
	suite.ErrorContains(failed.State.Err, "no adapter")
	suite.Transport.AssertNumberOfCalls(suite.T(), "StartDiscovery", 4)
}

func (suite *SessionTestSuite) TestSubscribers_AreIndependent() {
	// GOAL: Verify two subscribers receive the same events and can be removed independently
	//
	// TEST SCENARIO: second subscriber → event → both receive → remove second → event → first still receives

	other := suite.Session.Subscribe()

	suite.Discover("A", "Band", -60)
	select {
	case ev := <-other.C():
		suite.Equal(session.EventScanResult, ev.Name())
	case <-time.After(testutils.DefaultEventTimeout):
		suite.FailNow("second subscriber MUST receive the event")
	}

	suite.True(suite.Session.Unsubscribe(other.ID()))
	suite.Discover("B", "Band 2", -61)
	_, open := <-other.C()
	suite.False(open, "removed subscriber MUST be closed")
}

func (suite *SessionTestSuite) TestScan_RestartsAfterConnect() {
	// GOAL: Verify Scan reaches the transport again once a connect took the radio
	//
	// TEST SCENARIO: Scan → connect A (transport ends discovery) → Scan → StartDiscovery called twice

	suite.Transport.On("StartDiscovery", mock.Anything).Return(nil)

	suite.Require().NoError(suite.Session.Scan())
	suite.ConnectTo("A")

	suite.Require().NoError(suite.Session.Scan())
	suite.Transport.AssertNumberOfCalls(suite.T(), "StartDiscovery", 2)
}

func (suite *SessionTestSuite) TestScan_EndedByTransport() {
	// GOAL: Verify a scan the transport ended by itself is reported and can be restarted
	//
	// TEST SCENARIO: Scan → OnDiscoveryStopped(err) → Failed carrying err → Scan → StartDiscovery called again

	suite.Transport.On("StartDiscovery", mock.Anything).Return(nil)
	suite.Require().NoError(suite.Session.Scan())

	suite.Transport.Listener().OnDiscoveryStopped(errors.New("hci reset"))
	failed := suite.NextState()
	suite.Equal(session.Failed, failed.State.Status, "scan loss MUST be reported")
	suite.ErrorContains(failed.State.Err, "hci reset")

	suite.Require().NoError(suite.Session.Scan())
	suite.Transport.AssertNumberOfCalls(suite.T(), "StartDiscovery", 2)
}

func (suite *SessionTestSuite) TestScan_FinishedQuietly() {
	suite.Transport.On("StartDiscovery", mock.Anything).Return(nil)
	suite.Require().NoError(suite.Session.Scan())

	suite.Transport.Listener().OnDiscoveryStopped(nil)
	suite.Require().NoError(suite.Session.Scan())
	suite.Transport.AssertNumberOfCalls(suite.T(), "StartDiscovery", 2)

	for _, ev := range suite.DrainEvents(50 * time.Millisecond) {
		suite.NotEqual(session.EventConnectionState, ev.Name(), "a finished scan MUST NOT report a failure")
	}
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func TestSession_LifecycleErrors(t *testing.T) {
	transport := testutils.NewMockTransport()
	s := session.New(transport, nil, nil)

	if err := s.Scan(); !errors.Is(err, session.ErrNotStarted) {
		t.Fatalf("Execute before Start MUST fail with ErrNotStarted, got %v", err)
	}

	_ = s.Close()
	if err := s.Scan(); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("Execute after Close MUST fail with ErrClosed, got %v", err)
	}
}

func TestSession_NoScanRetries(t *testing.T) {
	transport := testutils.NewMockTransport()
	transport.On("StartDiscovery", mock.Anything).Return(errors.New("no adapter"))

	s := session.New(transport, nil, &session.Options{ScanRetries: session.NoScanRetries})
	events := s.Subscribe()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start MUST succeed: %v", err)
	}
	defer s.Close()

	if err := s.Scan(); err != nil {
		t.Fatalf("Scan MUST be accepted: %v", err)
	}
	select {
	case ev := <-events.C():
		state, ok := ev.Payload.(session.ConnectionStateChanged)
		if !ok || state.State.Status != session.Failed {
			t.Fatalf("first event MUST be Failed, got %+v", ev.Payload)
		}
	case <-time.After(testutils.DefaultEventTimeout):
		t.Fatal("Failed MUST be reported without retrying")
	}
	transport.AssertNumberOfCalls(t, "StartDiscovery", 1)
}

func TestSession_ContextCancelClosesSubscriptions(t *testing.T) {
	// GOAL: Verify cancelling the Start context releases subscribers
	//
	// TEST SCENARIO: Start(ctx) → subscribe → cancel ctx → subscription channel closes

	s := session.New(testutils.NewMockTransport(), nil, nil)
	events := s.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start MUST succeed: %v", err)
	}
	cancel()

	deadline := time.After(testutils.DefaultEventTimeout)
	for {
		select {
		case _, ok := <-events.C():
			if !ok {
				if err := s.Scan(); !errors.Is(err, session.ErrClosed) {
					t.Fatalf("Execute after cancel MUST fail with ErrClosed, got %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("subscription MUST close when the session context is cancelled")
		}
	}
}
