package session

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected or failed session operation.
type ErrorKind string

const (
	UnknownDevice     ErrorKind = "unknown_device"
	NotConnected      ErrorKind = "not_connected"
	AlreadyConnecting ErrorKind = "already_connecting"
	AlreadyConnected  ErrorKind = "already_connected"
)

var kindMessages = map[ErrorKind]string{
	UnknownDevice:     "Peripheral not found",
	NotConnected:      "Not connected",
	AlreadyConnecting: "Already connecting",
	AlreadyConnected:  "Already connected",
}

// SessionError is reported in Failed connection state events.
//
//nolint:revive // SessionError reads better than Error at call sites outside the package
type SessionError struct {
	Kind ErrorKind
	Msg  string
}

func (e *SessionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	text, ok := kindMessages[e.Kind]
	if !ok {
		text = string(e.Kind)
	}
	if e.Msg == "" {
		return text
	}
	return fmt.Sprintf("%s: %s", text, e.Msg)
}

// Is allows errors.Is to compare SessionError values by Kind.
func (e *SessionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrUnknownDevice     = &SessionError{Kind: UnknownDevice}
	ErrNotConnected      = &SessionError{Kind: NotConnected}
	ErrAlreadyConnecting = &SessionError{Kind: AlreadyConnecting}
	ErrAlreadyConnected  = &SessionError{Kind: AlreadyConnected}
)

var (
	// ErrClosed is returned by Execute after the session has been closed.
	ErrClosed = errors.New("session closed")

	// ErrNotStarted is returned by Execute before Start.
	ErrNotStarted = errors.New("session not started")
)

// IsKind reports whether err is a SessionError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var serr *SessionError
	if errors.As(err, &serr) {
		return serr.Kind == kind
	}
	return false
}
