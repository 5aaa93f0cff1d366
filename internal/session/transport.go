package session

import "strings"

// UnknownName is reported for devices that advertise no name.
const UnknownName = "Unknown"

// DeviceHandle identifies a band seen during discovery or known to the system.
type DeviceHandle struct {
	ID   string
	Name string
	// RSSI is nil for devices that were not seen over the air.
	RSSI *int
}

// DisplayName returns the trimmed name, or UnknownName when it is empty.
func (d DeviceHandle) DisplayName() string {
	if name := strings.TrimSpace(d.Name); name != "" {
		return name
	}
	return UnknownName
}

// RSSIValue returns the signal strength, or 0 when unknown.
func (d DeviceHandle) RSSIValue() int {
	if d.RSSI == nil {
		return 0
	}
	return *d.RSSI
}

// Transport is the radio capability a Session drives. Implementations report
// asynchronous outcomes through the Listener installed with SetListener and
// may invoke it from any goroutine, including synchronously from inside a
// Transport call.
type Transport interface {
	SetListener(l Listener)

	// StartDiscovery starts scanning. Empty services means no filter.
	StartDiscovery(services []string) error
	StopDiscovery() error

	// Connect starts a connection attempt and stops any running discovery.
	// The outcome is reported through Listener.OnConnected or Listener.OnConnectFailed.
	Connect(dev DeviceHandle) error
	// Disconnect drops the link or cancels a pending attempt. The outcome is
	// reported through Listener.OnDisconnected or Listener.OnConnectFailed.
	Disconnect() error

	Write(service, characteristic string, data []byte) error

	// BoundDevices lists devices already known to the system that expose service.
	BoundDevices(service string) ([]DeviceHandle, error)
}

// Listener receives transport callbacks.
type Listener interface {
	OnDiscovered(dev DeviceHandle)
	// OnDiscoveryStopped reports a scan that ended without StopDiscovery being
	// called. err is nil when the radio simply finished scanning.
	OnDiscoveryStopped(err error)
	OnConnected(id string)
	OnConnectFailed(id string, err error)
	OnDisconnected(id string, reason error)
	OnNotify(characteristic string, data []byte)
}
