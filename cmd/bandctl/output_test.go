//go:build test

package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/bandlink/internal/protocol"
	"github.com/srg/bandlink/internal/session"
	"github.com/srg/bandlink/internal/testutils"
	"github.com/srg/bandlink/internal/transport/goble"
)

func TestDisplayScanTable(t *testing.T) {
	var buf bytes.Buffer
	err := displayScanTable(&buf, []session.ScanResult{
		{ID: "aa:02", Name: "Band With A Really Long Name", RSSI: -70},
		{ID: "aa:01", Name: "Band", RSSI: -45},
		{ID: "aa:00", Name: "Twin", RSSI: -70},
	})
	require.NoError(t, err)

	testutils.NewTextAsserter(t).Assert(buf.String(), `
NAME                      IDENTIFIER  RSSI
----                      ----------  ----
Band                      aa:01       -45 dBm
Twin                      aa:00       -70 dBm
Band With A Really Lo...  aa:02       -70 dBm
`[1:])
}

func TestDisplayDeviceTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, displayDeviceTable(&buf, []session.DeviceHandle{{ID: "aa:01"}}))

	testutils.NewTextAsserter(t).Assert(buf.String(), `
NAME     IDENTIFIER
----     ----------
Unknown  aa:01
`[1:])
}

func TestEventPrinterText(t *testing.T) {
	at := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	p := newEventPrinter(&buf, false)

	require.NoError(t, p.Print(session.Event{Time: at, Payload: session.ConnectionStateChanged{
		DeviceID: "aa:01",
		State:    session.ConnectionState{Status: session.Connected},
	}}))
	require.NoError(t, p.Print(session.Event{Time: at, Payload: session.RealtimeData{
		TypeCode: protocol.RealTimeStep,
		TypeName: "RealTimeStep",
		Fields:   map[string]any{"steps": 10, "heartRate": 61},
		IsFinal:  true,
	}}))

	testutils.NewTextAsserter(t).Assert(buf.String(), `
08:30:00 state  connected
08:30:00 data   RealTimeStep (end) heartRate=61 steps=10
`[1:])
}

func TestEventPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := newEventPrinter(&buf, true)
	require.NoError(t, p.Print(session.Event{
		Time:    time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC),
		Payload: session.ScanResult{ID: "aa:01", Name: "Band", RSSI: -50},
	}))

	testutils.NewJSONAsserter(t).Assert(buf.String(), `{
		"event": "scanResult",
		"timestamp": "2024-03-01T08:30:00Z",
		"data": {"identifier": "aa:01", "name": "Band", "rssi": -50}
	}`)
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{goble.ErrBluetoothOff, "Bluetooth is turned off"},
		{goble.ErrUnsupported, "not supported"},
		{session.ErrUnknownDevice, "bandctl scan"},
		{errors.Join(ErrConnectionLost, goble.ErrConnectionLost), "was lost"},
		{errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		assert.Contains(t, FormatUserError(tt.err), tt.want)
	}
}

func TestConfigureLogger(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{}
		cmd.Flags().String("log-level", "", "")
		cmd.Flags().Bool("verbose", false, "")
		return cmd
	}

	logger, err := configureLogger(newCmd(), "verbose", logrus.PanicLevel)
	require.NoError(t, err)
	assert.Equal(t, logrus.PanicLevel, logger.GetLevel(), "fallback MUST apply without flags")

	cmd := newCmd()
	require.NoError(t, cmd.Flags().Set("verbose", "true"))
	logger, err = configureLogger(cmd, "verbose", logrus.PanicLevel)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	cmd = newCmd()
	require.NoError(t, cmd.Flags().Set("verbose", "true"))
	require.NoError(t, cmd.Flags().Set("log-level", "warn"))
	logger, err = configureLogger(cmd, "verbose", logrus.PanicLevel)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel(), "--log-level MUST win over --verbose")

	cmd = newCmd()
	require.NoError(t, cmd.Flags().Set("log-level", "loud"))
	_, err = configureLogger(cmd, "verbose", logrus.PanicLevel)
	assert.Error(t, err)
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.0", formatVersion("1.2.0"))
	assert.Equal(t, "dev", formatVersion("dev"))
}
