//go:build test

package testutils

import (
	"encoding/binary"
	"time"
)

func bcd(v int) byte {
	return byte((v/10)<<4 | v%10)
}

func bcdTime(t time.Time) []byte {
	return []byte{
		bcd(t.Year() % 100), bcd(int(t.Month())), bcd(t.Day()),
		bcd(t.Hour()), bcd(t.Minute()), bcd(t.Second()),
	}
}

// SleepRecordFrame builds a detailed sleep notification for record index.
func SleepRecordFrame(index uint16, start time.Time, quality ...byte) []byte {
	frame := []byte{0x53, 0, 0}
	binary.LittleEndian.PutUint16(frame[1:3], index)
	frame = append(frame, bcdTime(start)...)
	frame = append(frame, byte(len(quality)))
	return append(frame, quality...)
}

// HRVRecordFrame builds an HRV notification for record index.
func HRVRecordFrame(index uint16, at time.Time, hrv, stress, hr, systolic, diastolic byte) []byte {
	frame := []byte{0x56, 0, 0}
	binary.LittleEndian.PutUint16(frame[1:3], index)
	frame = append(frame, bcdTime(at)...)
	return append(frame, hrv, stress, hr, systolic, diastolic)
}

// RealtimeFrame builds a live activity notification.
func RealtimeFrame(steps, caloriesCenti, distanceCenti uint32, hr byte, tempDeci uint16) []byte {
	frame := make([]byte, 16)
	frame[0] = 0x09
	binary.LittleEndian.PutUint32(frame[1:5], steps)
	binary.LittleEndian.PutUint32(frame[5:9], caloriesCenti)
	binary.LittleEndian.PutUint32(frame[9:13], distanceCenti)
	frame[13] = hr
	binary.LittleEndian.PutUint16(frame[14:16], tempDeci)
	return frame
}

// EndOfTransfer builds the terminator of a history transfer for command code.
func EndOfTransfer(code byte) []byte {
	return []byte{code, 0xFF}
}
