//go:build test

package testutils

import (
	"sync"

	"github.com/srg/bandlink/internal/session"
	"github.com/stretchr/testify/mock"
)

// MockTransport is a testify mock of session.Transport that captures the
// listener so tests can drive transport callbacks.
//
// Expectations for every method other than SetListener must be set by the test:
//
//	t := testutils.NewMockTransport()
//	t.On("Connect", mock.Anything).Run(func(args mock.Arguments) {
//	    t.Listener().OnConnected(args.Get(0).(session.DeviceHandle).ID)
//	}).Return(nil)
type MockTransport struct {
	mock.Mock

	mu       sync.Mutex
	listener session.Listener
	counts   map[string]int
	writes   [][]byte
}

// NewMockTransport creates a mock with no expectations.
func NewMockTransport() *MockTransport {
	return &MockTransport{counts: make(map[string]int)}
}

func (m *MockTransport) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[method]++
}

// CallCount returns how many times method was invoked. Safe to poll while
// the session is running.
func (m *MockTransport) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[method]
}

// Listener returns the listener installed by the session.
func (m *MockTransport) Listener() session.Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listener
}

func (m *MockTransport) SetListener(l session.Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

func (m *MockTransport) StartDiscovery(services []string) error {
	m.record("StartDiscovery")
	args := m.Called(services)
	return args.Error(0)
}

func (m *MockTransport) StopDiscovery() error {
	m.record("StopDiscovery")
	args := m.Called()
	return args.Error(0)
}

func (m *MockTransport) Connect(dev session.DeviceHandle) error {
	m.record("Connect")
	args := m.Called(dev)
	return args.Error(0)
}

func (m *MockTransport) Disconnect() error {
	m.record("Disconnect")
	args := m.Called()
	return args.Error(0)
}

func (m *MockTransport) Write(service, characteristic string, data []byte) error {
	m.mu.Lock()
	m.counts["Write"]++
	m.writes = append(m.writes, append([]byte(nil), data...))
	m.mu.Unlock()

	args := m.Called(service, characteristic, data)
	return args.Error(0)
}

func (m *MockTransport) BoundDevices(service string) ([]session.DeviceHandle, error) {
	m.record("BoundDevices")
	args := m.Called(service)
	devs, _ := args.Get(0).([]session.DeviceHandle)
	return devs, args.Error(1)
}

// Writes returns the frames passed to Write, in call order.
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.writes...)
}
