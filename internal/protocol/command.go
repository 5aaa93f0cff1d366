package protocol

import (
	"fmt"
	"time"
)

// Command is a request issued to a session. The set of commands is closed;
// only types in this package implement it.
type Command interface {
	// Name returns a short name for logging.
	Name() string
	// DeviceBound reports whether the command is written to the band as a frame.
	// Commands that are not device bound are handled by the transport.
	DeviceBound() bool

	command()
}

// Scan starts discovery of nearby devices.
type Scan struct{}

// StopScan stops an ongoing discovery.
type StopScan struct{}

// Connect opens a link to the device with the given identifier.
type Connect struct {
	ID string
}

// Disconnect closes the current link or cancels a pending connect.
type Disconnect struct{}

// StartRealtime enables live step, heart rate and temperature reporting.
// Kind selects the realtime report flavour and must be non-zero.
type StartRealtime struct {
	Kind uint8
}

// StopRealtime disables live reporting.
type StopRealtime struct{}

// RequestTotalActivity asks for daily activity totals starting at the day of Since.
type RequestTotalActivity struct {
	Since time.Time
}

// RequestSleep asks for detailed sleep records starting at the day of Since.
type RequestSleep struct {
	Since time.Time
}

// RequestHRV asks for heart rate variability records starting at the day of Since.
type RequestHRV struct {
	Since time.Time
}

// StartPPG starts an on-demand PPG measurement.
type StartPPG struct{}

func (Scan) Name() string                 { return "scan" }
func (StopScan) Name() string             { return "stopScan" }
func (Connect) Name() string              { return "connect" }
func (Disconnect) Name() string           { return "disconnect" }
func (StartRealtime) Name() string        { return "startRealtime" }
func (StopRealtime) Name() string         { return "stopRealtime" }
func (RequestTotalActivity) Name() string { return "requestTotalActivityData" }
func (RequestSleep) Name() string         { return "requestSleepData" }
func (RequestHRV) Name() string           { return "requestHRVData" }
func (StartPPG) Name() string             { return "startPpgMeasurement" }

func (Scan) DeviceBound() bool                 { return false }
func (StopScan) DeviceBound() bool             { return false }
func (Connect) DeviceBound() bool              { return false }
func (Disconnect) DeviceBound() bool           { return false }
func (StartRealtime) DeviceBound() bool        { return true }
func (StopRealtime) DeviceBound() bool         { return true }
func (RequestTotalActivity) DeviceBound() bool { return true }
func (RequestSleep) DeviceBound() bool         { return true }
func (RequestHRV) DeviceBound() bool           { return true }
func (StartPPG) DeviceBound() bool             { return true }

func (Scan) command()                 {}
func (StopScan) command()             {}
func (Connect) command()              {}
func (Disconnect) command()           {}
func (StartRealtime) command()        {}
func (StopRealtime) command()         {}
func (RequestTotalActivity) command() {}
func (RequestSleep) command()         {}
func (RequestHRV) command()           {}
func (StartPPG) command()             {}

func (c Connect) String() string {
	return fmt.Sprintf("connect(%s)", c.ID)
}

func (c StartRealtime) String() string {
	return fmt.Sprintf("startRealtime(%d)", c.Kind)
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
