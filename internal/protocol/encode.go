package protocol

import (
	"fmt"
	"time"
)

// FrameSize is the length of every outbound command frame.
const FrameSize = 16

// Command codes, which are also the header bytes of the band's responses.
const (
	CodeRealtime      byte = 0x09
	CodeTotalActivity byte = 0x51
	CodeSleep         byte = 0x53
	CodeHRV           byte = 0x56
	CodePPGRaw        byte = 0x3B
	CodePPG           byte = 0x3C
	CodeError         byte = 0xFF
)

const (
	// modeLatest asks the band for its newest records, starting at the given day.
	modeLatest byte = 0x00
	// endOfData is the second byte of the short frame that closes a history transfer.
	endOfData byte = 0xFF

	ppgModeStart   byte = 0x01
	ppgStatusStart byte = 0x00
)

// Encode produces the frame for a device-bound command.
// Transport-level commands (Scan, StopScan, Connect, Disconnect) return ErrNoFrame.
func Encode(cmd Command) ([]byte, error) {
	var frame [FrameSize]byte

	switch c := cmd.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil command", ErrInvalidCommand)
	case Scan, StopScan, Connect, Disconnect:
		return nil, ErrNoFrame
	case StartRealtime:
		if c.Kind == 0 {
			return nil, fmt.Errorf("%w: realtime kind must be non-zero", ErrInvalidCommand)
		}
		frame[0] = CodeRealtime
		frame[1] = c.Kind
	case StopRealtime:
		frame[0] = CodeRealtime
	case RequestTotalActivity:
		putHistoryRequest(frame[:], CodeTotalActivity, c.Since)
	case RequestSleep:
		putHistoryRequest(frame[:], CodeSleep, c.Since)
	case RequestHRV:
		putHistoryRequest(frame[:], CodeHRV, c.Since)
	case StartPPG:
		frame[0] = CodePPG
		frame[1] = ppgModeStart
		frame[2] = ppgStatusStart
	default:
		return nil, fmt.Errorf("%w: unsupported command %T", ErrInvalidCommand, cmd)
	}

	frame[FrameSize-1] = checksum(frame[:FrameSize-1])
	return frame[:], nil
}

// ParseCommand is the inverse of Encode. History requests are returned with
// Since at local midnight of the encoded day.
func ParseCommand(frame []byte) (Command, error) {
	if len(frame) != FrameSize {
		return nil, malformed(frame, "command frame must be %d bytes", FrameSize)
	}
	if sum := checksum(frame[:FrameSize-1]); sum != frame[FrameSize-1] {
		return nil, fmt.Errorf("%w: want 0x%02x, got 0x%02x", ErrChecksum, sum, frame[FrameSize-1])
	}

	switch frame[0] {
	case CodeRealtime:
		if frame[1] == 0 {
			return StopRealtime{}, nil
		}
		return StartRealtime{Kind: frame[1]}, nil
	case CodeTotalActivity, CodeSleep, CodeHRV:
		since, err := decodeBCDTime(frame[4:10], time.Local)
		if err != nil {
			return nil, malformed(frame, "request date: %v", err)
		}
		switch frame[0] {
		case CodeTotalActivity:
			return RequestTotalActivity{Since: since}, nil
		case CodeSleep:
			return RequestSleep{Since: since}, nil
		default:
			return RequestHRV{Since: since}, nil
		}
	case CodePPG:
		return StartPPG{}, nil
	default:
		return nil, &DecodeError{Header: frame[0], Len: len(frame), Err: ErrUnknownType}
	}
}

func putHistoryRequest(frame []byte, code byte, since time.Time) {
	frame[0] = code
	frame[1] = modeLatest
	putBCDTime(frame[4:10], StartOfDay(since))
}

// checksum is the low byte of the sum of all bytes.
func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}
