//go:build test

package protocol_test

import (
	"testing"
	"time"

	"github.com/srg/bandlink/internal/protocol"
	"github.com/stretchr/testify/suite"
)

type CodecTestSuite struct {
	suite.Suite
	day time.Time
}

func (suite *CodecTestSuite) SetupTest() {
	suite.day = time.Date(2024, time.March, 15, 13, 45, 10, 0, time.Local)
}

// frame builds a 16-byte command frame with a valid trailing checksum.
func frame(b ...byte) []byte {
	out := make([]byte, protocol.FrameSize)
	copy(out, b)
	var sum byte
	for _, v := range out[:protocol.FrameSize-1] {
		sum += v
	}
	out[protocol.FrameSize-1] = sum
	return out
}

func (suite *CodecTestSuite) TestEncode_TransportCommandsProduceNoFrame() {
	// GOAL: Verify commands handled by the radio layer never produce device bytes
	//
	// TEST SCENARIO: Encode Scan, StopScan, Connect, Disconnect → ErrNoFrame, nil frame

	for _, cmd := range []protocol.Command{
		protocol.Scan{},
		protocol.StopScan{},
		protocol.Connect{ID: "AA:BB"},
		protocol.Disconnect{},
	} {
		suite.Run(cmd.Name(), func() {
			out, err := protocol.Encode(cmd)
			suite.ErrorIs(err, protocol.ErrNoFrame, "transport command MUST NOT be encoded")
			suite.Nil(out, "no frame MUST be produced")
			suite.False(cmd.DeviceBound(), "transport command MUST NOT be device bound")
		})
	}
}

func (suite *CodecTestSuite) TestEncode_Frames() {
	// GOAL: Verify the byte layout of every device-bound command
	//
	// TEST SCENARIO: Encode command → compare with reference frame

	tests := []struct {
		name string
		cmd  protocol.Command
		want []byte
	}{
		{"start realtime", protocol.StartRealtime{Kind: 1}, frame(0x09, 0x01)},
		{"stop realtime", protocol.StopRealtime{}, frame(0x09, 0x00)},
		{"total activity", protocol.RequestTotalActivity{Since: suite.day}, frame(0x51, 0x00, 0, 0, 0x24, 0x03, 0x15)},
		{"sleep", protocol.RequestSleep{Since: suite.day}, frame(0x53, 0x00, 0, 0, 0x24, 0x03, 0x15)},
		{"hrv", protocol.RequestHRV{Since: suite.day}, frame(0x56, 0x00, 0, 0, 0x24, 0x03, 0x15)},
		{"ppg", protocol.StartPPG{}, frame(0x3C, 0x01, 0x00)},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			out, err := protocol.Encode(tt.cmd)
			suite.Require().NoError(err)
			suite.Equal(tt.want, out, "frame MUST match the reference layout")
		})
	}
}

func (suite *CodecTestSuite) TestEncode_SleepChecksum() {
	out, err := protocol.Encode(protocol.RequestSleep{Since: suite.day})
	suite.Require().NoError(err)
	suite.Len(out, protocol.FrameSize)
	suite.Equal(byte(0x8F), out[15], "checksum MUST be the low byte of the sum of bytes 0..14")
}

func (suite *CodecTestSuite) TestEncode_RejectsZeroRealtimeKind() {
	_, err := protocol.Encode(protocol.StartRealtime{})
	suite.ErrorIs(err, protocol.ErrInvalidCommand, "kind 0 is reserved for StopRealtime")

	_, err = protocol.Encode(nil)
	suite.ErrorIs(err, protocol.ErrInvalidCommand)
}

func (suite *CodecTestSuite) TestParseCommand_RoundTrip() {
	// GOAL: Verify ParseCommand is the inverse of Encode for device-bound commands
	//
	// TEST SCENARIO: Encode → ParseCommand → same command (history dates at day start)

	midnight := protocol.StartOfDay(suite.day)
	for _, cmd := range []protocol.Command{
		protocol.StartRealtime{Kind: 1},
		protocol.StartRealtime{Kind: 3},
		protocol.StopRealtime{},
		protocol.RequestTotalActivity{Since: midnight},
		protocol.RequestSleep{Since: midnight},
		protocol.RequestHRV{Since: midnight},
		protocol.StartPPG{},
	} {
		suite.Run(cmd.Name(), func() {
			out, err := protocol.Encode(cmd)
			suite.Require().NoError(err)

			parsed, err := protocol.ParseCommand(out)
			suite.Require().NoError(err)
			suite.Equal(cmd, parsed, "round trip MUST preserve the command")
		})
	}
}

func (suite *CodecTestSuite) TestParseCommand_RejectsBadFrames() {
	good, err := protocol.Encode(protocol.StartPPG{})
	suite.Require().NoError(err)

	corrupt := append([]byte(nil), good...)
	corrupt[15]++
	_, err = protocol.ParseCommand(corrupt)
	suite.ErrorIs(err, protocol.ErrChecksum, "checksum mismatch MUST be rejected")

	_, err = protocol.ParseCommand(good[:10])
	suite.ErrorIs(err, protocol.ErrMalformed, "short frame MUST be rejected")
}

func (suite *CodecTestSuite) TestDecode_Realtime() {
	msg, err := protocol.Decode([]byte{
		0x09,
		0xE8, 0x03, 0x00, 0x00, // 1000 steps
		0xC6, 0x11, 0x00, 0x00, // 45.50 kcal
		0x7B, 0x00, 0x00, 0x00, // 1.23 km
		72,         // bpm
		0x6D, 0x01, // 36.5 C
	})
	suite.Require().NoError(err)
	suite.Equal(protocol.RealTimeStep, msg.TypeCode)
	suite.True(msg.IsFinal, "realtime reports MUST be complete in one frame")
	suite.Equal(protocol.Realtime{
		Steps:       1000,
		Calories:    45.5,
		DistanceKm:  1.23,
		HeartRate:   72,
		Temperature: 36.5,
	}, msg.Payload())
}

func (suite *CodecTestSuite) TestDecode_SleepRecordAndTerminator() {
	// GOAL: Verify history records decode as non-final fragments and the terminator closes them
	//
	// TEST SCENARIO: sleep record frame → non-final with one record → terminator → final, no fields

	msg, err := protocol.Decode([]byte{0x53, 0x01, 0x00, 0x24, 0x03, 0x15, 0x23, 0x10, 0x00, 3, 1, 2, 3})
	suite.Require().NoError(err)
	suite.Equal(protocol.DetailSleepData, msg.TypeCode)
	suite.False(msg.IsFinal, "record frame MUST NOT be final")

	sleep, ok := msg.Payload().(protocol.Sleep)
	suite.Require().True(ok, "payload MUST be a Sleep")
	suite.Require().Len(sleep.Records, 1)
	suite.Equal(1, sleep.Records[0].Index)
	suite.Equal(time.Date(2024, time.March, 15, 23, 10, 0, 0, time.Local), sleep.Records[0].Start)
	suite.Equal([]int{1, 2, 3}, sleep.Records[0].Quality)

	end, err := protocol.Decode([]byte{0x53, 0xFF})
	suite.Require().NoError(err)
	suite.True(end.IsFinal, "terminator MUST be final")
	suite.Empty(end.Fields)
}

func (suite *CodecTestSuite) TestDecode_HRVAndActivity() {
	msg, err := protocol.Decode([]byte{0x56, 0x02, 0x00, 0x24, 0x03, 0x15, 0x08, 0x30, 0x00, 55, 30, 68, 118, 76})
	suite.Require().NoError(err)
	hrv, ok := msg.Payload().(protocol.HRV)
	suite.Require().True(ok)
	suite.Require().Len(hrv.Records, 1)
	suite.Equal(protocol.HRVRecord{
		Index:     2,
		Time:      time.Date(2024, time.March, 15, 8, 30, 0, 0, time.Local),
		HRV:       55,
		Stress:    30,
		HeartRate: 68,
		Systolic:  118,
		Diastolic: 76,
	}, hrv.Records[0])

	msg, err = protocol.Decode([]byte{
		0x51, 0x00, 0x24, 0x03, 0x15,
		0x10, 0x27, 0x00, 0x00, // 10000 steps
		0x2D, 0x00, // 45 minutes
		0xF4, 0x01, 0x00, 0x00, // 5.00 km
		0x28, 0x23, 0x00, 0x00, // 90.00 kcal
	})
	suite.Require().NoError(err)
	act, ok := msg.Payload().(protocol.TotalActivity)
	suite.Require().True(ok)
	suite.Require().Len(act.Records, 1)
	suite.Equal(10000, act.Records[0].Steps)
	suite.Equal(45, act.Records[0].ExerciseMinutes)
	suite.InDelta(5.0, act.Records[0].DistanceKm, 0.001)
	suite.InDelta(90.0, act.Records[0].Calories, 0.001)
}

func (suite *CodecTestSuite) TestDecode_PPG() {
	msg, err := protocol.Decode([]byte{0x3C, 0x02, 75, 40, 120, 80})
	suite.Require().NoError(err)
	suite.Equal(protocol.PPGResult, msg.TypeCode)
	suite.Equal(protocol.PPGStatus{State: protocol.PPGResult, HeartRate: 75, HRV: 40, Systolic: 120, Diastolic: 80}, msg.Payload())

	msg, err = protocol.Decode([]byte{0x3C, 0x05, 60})
	suite.Require().NoError(err)
	suite.Equal(protocol.PPGMeasurementProgress, msg.TypeCode)
	suite.Equal(60, msg.Fields[protocol.FieldProgress])

	raw := make([]byte, 27)
	raw[0] = 0x3B
	copy(raw[3:], []byte{0x01, 0x00, 0x00}) // ch1 = 65536
	copy(raw[21:], []byte{0xFF, 0xFE})      // accX = -2
	msg, err = protocol.Decode(raw)
	suite.Require().NoError(err)
	sample, ok := msg.Payload().(protocol.PPGSample)
	suite.Require().True(ok)
	suite.Equal(65536, sample.Channels[0])
	suite.Equal(-2, sample.AccX)
}

func (suite *CodecTestSuite) TestDecode_Errors() {
	// GOAL: Verify malformed frames fail and unknown headers pass through
	//
	// TEST SCENARIO: empty/truncated → ErrMalformed; unknown header → passthrough + ErrUnknownType

	_, err := protocol.Decode(nil)
	suite.ErrorIs(err, protocol.ErrMalformed, "empty frame MUST be malformed")

	_, err = protocol.Decode([]byte{0x09, 0x01, 0x02})
	suite.ErrorIs(err, protocol.ErrMalformed, "truncated frame MUST be malformed")

	_, err = protocol.Decode([]byte{0x53, 0x01, 0x00, 0x24, 0x13, 0x15, 0x23, 0x10, 0x00, 0})
	suite.ErrorIs(err, protocol.ErrMalformed, "invalid month MUST be malformed")

	msg, err := protocol.Decode([]byte{0x77, 0x01})
	suite.ErrorIs(err, protocol.ErrUnknownType)
	suite.True(msg.IsFinal, "passthrough MUST be final")
	suite.Equal("DataType_375", msg.TypeName())
	suite.Equal([]byte{0x77, 0x01}, msg.Fields[protocol.FieldRaw])
	suite.IsType(protocol.Unknown{}, msg.Payload())
}

func (suite *CodecTestSuite) TestTypeName() {
	suite.Equal("RealTimeStep", protocol.TypeName(24))
	suite.Equal("DetailSleepData", protocol.DetailSleepData.String())
	suite.Equal("DataType_999", protocol.TypeName(999))
	suite.False(protocol.DataType(999).IsKnown())
}

func TestCodecTestSuite(t *testing.T) {
	suite.Run(t, new(CodecTestSuite))
}
