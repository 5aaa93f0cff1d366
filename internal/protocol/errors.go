package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFrame is returned by Encode for commands that are handled by the
	// transport and never reach the band.
	ErrNoFrame = errors.New("command produces no device frame")

	// ErrInvalidCommand is returned for commands with out-of-range parameters.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrMalformed marks frames that are empty, truncated or carry invalid fields.
	ErrMalformed = errors.New("malformed frame")

	// ErrChecksum marks outbound frames whose checksum byte does not match.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrUnknownType marks frames whose header has no decoder.
	ErrUnknownType = errors.New("unknown data type")
)

// DecodeError describes why a frame could not be decoded.
type DecodeError struct {
	Header byte
	Len    int
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Reason == "" {
		return fmt.Sprintf("frame 0x%02x (%d bytes): %v", e.Header, e.Len, e.Err)
	}
	return fmt.Sprintf("frame 0x%02x (%d bytes): %v: %s", e.Header, e.Len, e.Err, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func malformed(frame []byte, format string, args ...any) error {
	e := &DecodeError{Len: len(frame), Reason: fmt.Sprintf(format, args...), Err: ErrMalformed}
	if len(frame) > 0 {
		e.Header = frame[0]
	}
	return e
}
