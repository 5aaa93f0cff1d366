//go:build test

package testutils

import (
	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/srg/bandlink/internal/transport/goble"
)

// BandProfileJSON is the GATT profile exposed by a band.
const BandProfileJSON = `
{
	"services": [
		{
			"uuid": "FFF0",
			"characteristics": [
				{ "uuid": "FFF6", "properties": "write" },
				{ "uuid": "FFF7", "properties": "notify" }
			]
		}
	]
}`

// MockBLEPeripheralSuite swaps goble.DeviceFactory for a FakeDevice.
//
// Configure the peripheral before calling the parent SetupTest:
//
//	func (s *TransportSuite) SetupTest() {
//	    s.WithPeripheral().
//	        WithScanAdvertisements(testutils.CreateMockAdvertisement("Band", "AA:BB:CC:DD:EE:FF", -50).Build())
//
//	    s.MockBLEPeripheralSuite.SetupTest() // Call parent last to apply configuration
//	}
type MockBLEPeripheralSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	// Device is the fake handed out by goble.DeviceFactory for the current test.
	Device *FakeDevice

	PeripheralBuilder *PeripheralDeviceBuilder

	originalDeviceFactory func() (blelib.Device, error)
}

// SetupSuite initializes the test helper and logger.
func (s *MockBLEPeripheralSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
}

// SetupTest builds the configured peripheral and installs it as the device factory.
func (s *MockBLEPeripheralSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralDeviceBuilder().FromJSON(BandProfileJSON)
	}
	if len(s.PeripheralBuilder.GetServices()) == 0 {
		s.PeripheralBuilder.FromJSON(BandProfileJSON)
	}

	s.Device = s.PeripheralBuilder.Build()

	s.originalDeviceFactory = goble.DeviceFactory
	goble.DeviceFactory = func() (blelib.Device, error) {
		return s.Device, nil
	}
}

// TearDownTest restores the device factory and resets the builder.
func (s *MockBLEPeripheralSuite) TearDownTest() {
	if s.originalDeviceFactory != nil {
		goble.DeviceFactory = s.originalDeviceFactory
	}
	s.PeripheralBuilder = nil
	s.Device = nil
}

// WithPeripheral returns the peripheral builder for fluent configuration.
func (s *MockBLEPeripheralSuite) WithPeripheral() *PeripheralDeviceBuilder {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralDeviceBuilder()
	}
	return s.PeripheralBuilder
}
