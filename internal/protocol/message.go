package protocol

import (
	"fmt"
	"maps"
	"time"
)

// Field names used in DeviceMessage.Fields.
const (
	FieldSteps       = "steps"
	FieldCalories    = "calories"
	FieldDistance    = "distance"
	FieldHeartRate   = "heartRate"
	FieldTemperature = "temperature"
	FieldHRV         = "hrv"
	FieldSystolic    = "systolic"
	FieldDiastolic   = "diastolic"
	FieldProgress    = "progress"
	FieldPPG         = "ppg"
	FieldAccX        = "accX"
	FieldAccY        = "accY"
	FieldAccZ        = "accZ"
	FieldRaw         = "raw"

	// recordPrefix namespaces history records by their index so fragments of
	// one transfer merge into distinct entries.
	recordPrefix = "records."
)

// DeviceMessage is one decoded unit from the band. A logical response may span
// several messages of the same TypeCode; only the last one has IsFinal set.
type DeviceMessage struct {
	TypeCode DataType
	Fields   map[string]any
	IsFinal  bool
}

// TypeName returns the symbolic name of the message type.
func (m DeviceMessage) TypeName() string {
	return TypeName(m.TypeCode)
}

// Clone returns a copy with its own Fields map.
func (m DeviceMessage) Clone() DeviceMessage {
	m.Fields = maps.Clone(m.Fields)
	if m.Fields == nil {
		m.Fields = map[string]any{}
	}
	return m
}

// RecordKey returns the field name under which the history record with the
// given index is stored.
func RecordKey(index int) string {
	return fmt.Sprintf("%s%05d", recordPrefix, index)
}

// ActivityRecord is one day of activity totals.
type ActivityRecord struct {
	Index           int       `json:"index"`
	Date            time.Time `json:"date"`
	Steps           int       `json:"steps"`
	ExerciseMinutes int       `json:"exerciseMinutes"`
	DistanceKm      float64   `json:"distance"`
	Calories        float64   `json:"calories"`
}

// SleepRecord is one block of per-minute sleep quality values.
type SleepRecord struct {
	Index   int       `json:"index"`
	Start   time.Time `json:"start"`
	Quality []int     `json:"quality"`
}

// HRVRecord is one heart rate variability sample.
type HRVRecord struct {
	Index     int       `json:"index"`
	Time      time.Time `json:"time"`
	HRV       int       `json:"hrv"`
	Stress    int       `json:"stress"`
	HeartRate int       `json:"heartRate"`
	Systolic  int       `json:"systolic"`
	Diastolic int       `json:"diastolic"`
}
