package main

import (
	"errors"

	"github.com/srg/bandlink/internal/session"
	"github.com/srg/bandlink/internal/transport/goble"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the band dropped the link while a command was
	// still using it.
	ErrConnectionLost = errors.New("connection lost")

	ErrConnectTimeout = errors.New("timed out waiting for the band to connect")
)

// FormatUserError turns known errors into a hint the user can act on.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, goble.ErrBluetoothOff):
		return "Bluetooth is turned off. Turn it on and try again."
	case errors.Is(err, goble.ErrUnsupported):
		return "Bluetooth is not supported on this platform."
	case errors.Is(err, session.ErrUnknownDevice):
		return "Band not found. Run 'bandctl scan' and make sure the band is nearby and awake."
	case errors.Is(err, ErrConnectionLost):
		return "Connection to the band was lost."
	default:
		return err.Error()
	}
}
