package protocol

import (
	"slices"
	"sort"
	"strings"
)

// Payload is the typed view of a DeviceMessage. The set of variants is closed.
type Payload interface {
	payload()
}

// Realtime is a live activity snapshot.
type Realtime struct {
	Steps       int
	Calories    float64
	DistanceKm  float64
	HeartRate   int
	Temperature float64
}

// TotalActivity holds the daily totals collected in one transfer.
type TotalActivity struct {
	Records []ActivityRecord
}

// Sleep holds the sleep blocks collected in one transfer.
type Sleep struct {
	Records []SleepRecord
}

// HRV holds the variability samples collected in one transfer.
type HRV struct {
	Records []HRVRecord
}

// PPGSample is one raw optical and accelerometer sample.
type PPGSample struct {
	Channels         []int
	AccX, AccY, AccZ int
}

// PPGStatus reports the progress or the outcome of a PPG measurement.
// HeartRate, HRV, Systolic and Diastolic are set for PPGResult only and
// Progress for PPGMeasurementProgress only.
type PPGStatus struct {
	State     DataType
	HeartRate int
	HRV       int
	Systolic  int
	Diastolic int
	Progress  int
}

// DeviceFault is an error report from the band.
type DeviceFault struct {
	Raw []byte
}

// Unknown carries a message the decoder does not interpret.
type Unknown struct {
	TypeCode DataType
	Fields   map[string]any
}

func (Realtime) payload()      {}
func (TotalActivity) payload() {}
func (Sleep) payload()         {}
func (HRV) payload()           {}
func (PPGSample) payload()     {}
func (PPGStatus) payload()     {}
func (DeviceFault) payload()   {}
func (Unknown) payload()       {}

// Payload interprets the message fields according to its type.
func (m DeviceMessage) Payload() Payload {
	switch m.TypeCode {
	case RealTimeStep:
		return Realtime{
			Steps:       intField(m.Fields, FieldSteps),
			Calories:    floatField(m.Fields, FieldCalories),
			DistanceKm:  floatField(m.Fields, FieldDistance),
			HeartRate:   intField(m.Fields, FieldHeartRate),
			Temperature: floatField(m.Fields, FieldTemperature),
		}
	case TotalActivityData:
		return TotalActivity{Records: records[ActivityRecord](m.Fields)}
	case DetailSleepData:
		return Sleep{Records: records[SleepRecord](m.Fields)}
	case HRVData:
		return HRV{Records: records[HRVRecord](m.Fields)}
	case RealtimePPGData:
		ch, _ := m.Fields[FieldPPG].([]int)
		return PPGSample{
			Channels: slices.Clone(ch),
			AccX:     intField(m.Fields, FieldAccX),
			AccY:     intField(m.Fields, FieldAccY),
			AccZ:     intField(m.Fields, FieldAccZ),
		}
	case PPGStartSucceeded, PPGStartFailed, PPGResult, PPGStop, PPGQuit, PPGMeasurementProgress:
		return PPGStatus{
			State:     m.TypeCode,
			HeartRate: intField(m.Fields, FieldHeartRate),
			HRV:       intField(m.Fields, FieldHRV),
			Systolic:  intField(m.Fields, FieldSystolic),
			Diastolic: intField(m.Fields, FieldDiastolic),
			Progress:  intField(m.Fields, FieldProgress),
		}
	case DataError:
		raw, _ := m.Fields[FieldRaw].([]byte)
		return DeviceFault{Raw: slices.Clone(raw)}
	default:
		return Unknown{TypeCode: m.TypeCode, Fields: m.Fields}
	}
}

// records collects history entries of type T ordered by record index.
func records[T any](fields map[string]any) []T {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if strings.HasPrefix(k, recordPrefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]T, 0, len(keys))
	for _, k := range keys {
		if rec, ok := fields[k].(T); ok {
			out = append(out, rec)
		}
	}
	return out
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func floatField(fields map[string]any, key string) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
