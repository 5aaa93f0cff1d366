package protocol

import (
	"encoding/binary"
	"slices"
	"time"
)

const (
	realtimeLen = 16
	activityLen = 19
	sleepMinLen = 10
	hrvLen      = 14
	ppgRawLen   = 27
	ppgResult   = 6
	ppgProgress = 3
)

// ppgStates maps the status byte of a PPG response to its data type.
var ppgStates = []DataType{
	PPGStartSucceeded,
	PPGStartFailed,
	PPGResult,
	PPGStop,
	PPGQuit,
	PPGMeasurementProgress,
}

// Decode turns one notification frame into a DeviceMessage.
//
// Empty and truncated frames fail with an error wrapping ErrMalformed. A frame
// with an unrecognised header is still returned as a final passthrough message
// carrying the raw bytes, together with an error wrapping ErrUnknownType.
func Decode(frame []byte) (DeviceMessage, error) {
	if len(frame) == 0 {
		return DeviceMessage{}, malformed(frame, "empty frame")
	}

	switch frame[0] {
	case CodeRealtime:
		return decodeRealtime(frame)
	case CodeTotalActivity:
		return decodeActivity(frame)
	case CodeSleep:
		return decodeSleep(frame)
	case CodeHRV:
		return decodeHRV(frame)
	case CodePPGRaw:
		return decodePPGRaw(frame)
	case CodePPG:
		return decodePPGStatus(frame)
	case CodeError:
		return DeviceMessage{
			TypeCode: DataError,
			Fields:   map[string]any{FieldRaw: slices.Clone(frame)},
			IsFinal:  true,
		}, nil
	default:
		msg := DeviceMessage{
			TypeCode: unknownType(frame[0]),
			Fields:   map[string]any{FieldRaw: slices.Clone(frame)},
			IsFinal:  true,
		}
		return msg, &DecodeError{Header: frame[0], Len: len(frame), Err: ErrUnknownType}
	}
}

func decodeRealtime(frame []byte) (DeviceMessage, error) {
	if len(frame) < realtimeLen {
		return DeviceMessage{}, malformed(frame, "realtime frame needs %d bytes", realtimeLen)
	}

	return DeviceMessage{
		TypeCode: RealTimeStep,
		Fields: map[string]any{
			FieldSteps:       int(binary.LittleEndian.Uint32(frame[1:5])),
			FieldCalories:    float64(binary.LittleEndian.Uint32(frame[5:9])) / 100,
			FieldDistance:    float64(binary.LittleEndian.Uint32(frame[9:13])) / 100,
			FieldHeartRate:   int(frame[13]),
			FieldTemperature: float64(binary.LittleEndian.Uint16(frame[14:16])) / 10,
		},
		IsFinal: true,
	}, nil
}

// endOfTransfer reports whether frame is the short terminator of a history transfer.
func endOfTransfer(frame []byte, recordLen int) bool {
	return len(frame) >= 2 && len(frame) < recordLen && frame[1] == endOfData
}

func terminator(t DataType) DeviceMessage {
	return DeviceMessage{TypeCode: t, Fields: map[string]any{}, IsFinal: true}
}

func decodeActivity(frame []byte) (DeviceMessage, error) {
	if endOfTransfer(frame, activityLen) {
		return terminator(TotalActivityData), nil
	}
	if len(frame) < activityLen {
		return DeviceMessage{}, malformed(frame, "activity record needs %d bytes", activityLen)
	}

	date, err := decodeBCDTime(frame[2:5], time.Local)
	if err != nil {
		return DeviceMessage{}, malformed(frame, "activity date: %v", err)
	}

	rec := ActivityRecord{
		Index:           int(frame[1]),
		Date:            date,
		Steps:           int(binary.LittleEndian.Uint32(frame[5:9])),
		ExerciseMinutes: int(binary.LittleEndian.Uint16(frame[9:11])),
		DistanceKm:      float64(binary.LittleEndian.Uint32(frame[11:15])) / 100,
		Calories:        float64(binary.LittleEndian.Uint32(frame[15:19])) / 100,
	}

	return DeviceMessage{
		TypeCode: TotalActivityData,
		Fields:   map[string]any{RecordKey(rec.Index): rec},
	}, nil
}

func decodeSleep(frame []byte) (DeviceMessage, error) {
	if endOfTransfer(frame, sleepMinLen) {
		return terminator(DetailSleepData), nil
	}
	if len(frame) < sleepMinLen {
		return DeviceMessage{}, malformed(frame, "sleep record needs at least %d bytes", sleepMinLen)
	}

	n := int(frame[9])
	if len(frame) < sleepMinLen+n {
		return DeviceMessage{}, malformed(frame, "sleep record announces %d values, has %d", n, len(frame)-sleepMinLen)
	}

	start, err := decodeBCDTime(frame[3:9], time.Local)
	if err != nil {
		return DeviceMessage{}, malformed(frame, "sleep start: %v", err)
	}

	quality := make([]int, n)
	for i, v := range frame[sleepMinLen : sleepMinLen+n] {
		quality[i] = int(v)
	}

	rec := SleepRecord{
		Index:   int(binary.LittleEndian.Uint16(frame[1:3])),
		Start:   start,
		Quality: quality,
	}

	return DeviceMessage{
		TypeCode: DetailSleepData,
		Fields:   map[string]any{RecordKey(rec.Index): rec},
	}, nil
}

func decodeHRV(frame []byte) (DeviceMessage, error) {
	if endOfTransfer(frame, hrvLen) {
		return terminator(HRVData), nil
	}
	if len(frame) < hrvLen {
		return DeviceMessage{}, malformed(frame, "HRV record needs %d bytes", hrvLen)
	}

	at, err := decodeBCDTime(frame[3:9], time.Local)
	if err != nil {
		return DeviceMessage{}, malformed(frame, "HRV time: %v", err)
	}

	rec := HRVRecord{
		Index:     int(binary.LittleEndian.Uint16(frame[1:3])),
		Time:      at,
		HRV:       int(frame[9]),
		Stress:    int(frame[10]),
		HeartRate: int(frame[11]),
		Systolic:  int(frame[12]),
		Diastolic: int(frame[13]),
	}

	return DeviceMessage{
		TypeCode: HRVData,
		Fields:   map[string]any{RecordKey(rec.Index): rec},
	}, nil
}

func decodePPGRaw(frame []byte) (DeviceMessage, error) {
	if len(frame) < ppgRawLen {
		return DeviceMessage{}, malformed(frame, "PPG sample needs %d bytes", ppgRawLen)
	}

	// Channel 5 at offset 15 is not populated by the firmware.
	body := frame[3:]
	channels := []int{
		uint24BE(body[0:3]),
		uint24BE(body[3:6]),
		uint24BE(body[6:9]),
		uint24BE(body[9:12]),
		uint24BE(body[15:18]),
	}

	return DeviceMessage{
		TypeCode: RealtimePPGData,
		Fields: map[string]any{
			FieldPPG:  channels,
			FieldAccX: int(int16(binary.BigEndian.Uint16(body[18:20]))),
			FieldAccY: int(int16(binary.BigEndian.Uint16(body[20:22]))),
			FieldAccZ: int(int16(binary.BigEndian.Uint16(body[22:24]))),
		},
		IsFinal: true,
	}, nil
}

func decodePPGStatus(frame []byte) (DeviceMessage, error) {
	if len(frame) < 2 {
		return DeviceMessage{}, malformed(frame, "PPG status frame needs a status byte")
	}
	status := int(frame[1])
	if status >= len(ppgStates) {
		return DeviceMessage{}, malformed(frame, "unknown PPG status %d", status)
	}

	msg := DeviceMessage{TypeCode: ppgStates[status], Fields: map[string]any{}, IsFinal: true}

	switch msg.TypeCode {
	case PPGResult:
		if len(frame) < ppgResult {
			return DeviceMessage{}, malformed(frame, "PPG result needs %d bytes", ppgResult)
		}
		msg.Fields[FieldHeartRate] = int(frame[2])
		msg.Fields[FieldHRV] = int(frame[3])
		msg.Fields[FieldSystolic] = int(frame[4])
		msg.Fields[FieldDiastolic] = int(frame[5])
	case PPGMeasurementProgress:
		if len(frame) < ppgProgress {
			return DeviceMessage{}, malformed(frame, "PPG progress needs %d bytes", ppgProgress)
		}
		msg.Fields[FieldProgress] = int(frame[2])
	}

	return msg, nil
}

func uint24BE(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}
