package session

import (
	"time"

	"github.com/srg/bandlink/internal/protocol"
)

// Event names as used on the wire.
const (
	EventScanResult      = "scanResult"
	EventConnectionState = "connectionState"
	EventRealtimeData    = "realtimeData"
)

// Event is a timestamped notification published to subscribers.
type Event struct {
	Time    time.Time
	Payload EventPayload
}

// Name returns the wire name of the payload.
func (e Event) Name() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.EventName()
}

// EventPayload is implemented by ScanResult, ConnectionStateChanged and RealtimeData.
type EventPayload interface {
	EventName() string
	eventPayload()
}

// ScanResult reports a discovery sighting.
type ScanResult struct {
	ID        string
	Name      string
	RSSI      int
	FirstSeen bool
}

// ConnectionStateChanged reports a connection status transition or a rejected operation.
type ConnectionStateChanged struct {
	DeviceID string
	State    ConnectionState
}

// RealtimeData carries one complete decoded device response.
// Fields must not be modified by receivers.
type RealtimeData struct {
	TypeCode protocol.DataType
	TypeName string
	Fields   map[string]any
	IsFinal  bool
}

// Message rebuilds the device message the event was created from.
func (d RealtimeData) Message() protocol.DeviceMessage {
	return protocol.DeviceMessage{TypeCode: d.TypeCode, Fields: d.Fields, IsFinal: d.IsFinal}
}

// Payload interprets the fields according to the data type.
func (d RealtimeData) Payload() protocol.Payload {
	return d.Message().Payload()
}

func (ScanResult) EventName() string             { return EventScanResult }
func (ConnectionStateChanged) EventName() string { return EventConnectionState }
func (RealtimeData) EventName() string           { return EventRealtimeData }

func (ScanResult) eventPayload()             {}
func (ConnectionStateChanged) eventPayload() {}
func (RealtimeData) eventPayload()           {}
