//go:build test

package testutils

import (
	"testing"

	"github.com/sirupsen/logrus"
)

// BandServiceUUID is the primary service the band advertises.
const BandServiceUUID = "FFF0"

// TestHelper holds what the BLE peripheral suite shares across one suite run.
type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a helper whose logger traces transport and session
// activity at debug level.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	return &TestHelper{T: t, Logger: logger}
}

// CreateMockAdvertisement starts an advertisement for any peripheral.
func CreateMockAdvertisement(name, address string, rssi int) *AdvertisementBuilder {
	return NewAdvertisementBuilder().WithName(name).WithAddress(address).WithRSSI(rssi)
}

// CreateBandAdvertisement starts an advertisement for a band carrying its service UUID.
func CreateBandAdvertisement(name, address string, rssi int) *AdvertisementBuilder {
	return CreateMockAdvertisement(name, address, rssi).WithServices(BandServiceUUID)
}
