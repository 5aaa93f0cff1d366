//go:build test

package testutils

import (
	"fmt"
	"time"

	blelib "github.com/go-ble/ble"
)

// CharacteristicConfig represents a BLE characteristic configuration for faking
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g., "write,notify"
}

// ServiceConfig represents a BLE service configuration for faking
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// DeviceProfileConfig represents the complete device profile for faking
type DeviceProfileConfig struct {
	Services []ServiceConfig `json:"services"`
}

// PeripheralDeviceBuilder builds a FakeDevice with a GATT profile and scan results.
type PeripheralDeviceBuilder struct {
	profile            DeviceProfileConfig
	scanAdvertisements []blelib.Advertisement
	scanErr            error
	scanLifetime       time.Duration
	scanEndErr         error
	dialErr            error
	dialDelay          time.Duration
	discoverErr        error
}

// NewPeripheralDeviceBuilder creates a new peripheral device builder
func NewPeripheralDeviceBuilder() *PeripheralDeviceBuilder {
	return &PeripheralDeviceBuilder{
		profile: DeviceProfileConfig{
			Services: []ServiceConfig{},
		},
	}
}

// WithService adds a service to the device profile
func (b *PeripheralDeviceBuilder) WithService(uuid string) *PeripheralDeviceBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{
		UUID:            uuid,
		Characteristics: []CharacteristicConfig{},
	})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralDeviceBuilder) WithCharacteristic(uuid, properties string) *PeripheralDeviceBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}

	last := len(b.profile.Services) - 1
	b.profile.Services[last].Characteristics = append(b.profile.Services[last].Characteristics,
		CharacteristicConfig{UUID: uuid, Properties: properties})
	return b
}

// FromJSON fills the device profile from JSON
func (b *PeripheralDeviceBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralDeviceBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var config DeviceProfileConfig
	if err := jsonAPI.Unmarshal([]byte(jsonStr), &config); err != nil {
		panic(fmt.Sprintf("PeripheralDeviceBuilder.FromJSON: failed to unmarshal: %v", err))
	}

	b.profile = config
	return b
}

// WithScanAdvertisements sets the advertisements replayed by every Scan call.
func (b *PeripheralDeviceBuilder) WithScanAdvertisements(ads ...blelib.Advertisement) *PeripheralDeviceBuilder {
	b.scanAdvertisements = append(b.scanAdvertisements, ads...)
	return b
}

// WithScanError makes Scan fail immediately.
func (b *PeripheralDeviceBuilder) WithScanError(err error) *PeripheralDeviceBuilder {
	b.scanErr = err
	return b
}

// WithScanEnding makes Scan return err by itself once it has run for d.
func (b *PeripheralDeviceBuilder) WithScanEnding(d time.Duration, err error) *PeripheralDeviceBuilder {
	b.scanLifetime = d
	b.scanEndErr = err
	return b
}

// WithDialError makes Dial fail.
func (b *PeripheralDeviceBuilder) WithDialError(err error) *PeripheralDeviceBuilder {
	b.dialErr = err
	return b
}

// WithDialDelay makes Dial wait before it returns.
func (b *PeripheralDeviceBuilder) WithDialDelay(d time.Duration) *PeripheralDeviceBuilder {
	b.dialDelay = d
	return b
}

// WithDiscoverError makes DiscoverProfile fail on dialled clients.
func (b *PeripheralDeviceBuilder) WithDiscoverError(err error) *PeripheralDeviceBuilder {
	b.discoverErr = err
	return b
}

// parseCharacteristicProperties converts property string to ble.Property flags
func parseCharacteristicProperties(props string) blelib.Property {
	switch props {
	case "write":
		return blelib.CharWrite
	case "notify":
		return blelib.CharNotify
	case "write,notify":
		return blelib.CharWrite | blelib.CharNotify
	default:
		return blelib.CharRead | blelib.CharWrite | blelib.CharNotify
	}
}

// Build creates a FakeDevice with the configured profile
func (b *PeripheralDeviceBuilder) Build() *FakeDevice {
	profile := &blelib.Profile{}
	for _, svcConfig := range b.profile.Services {
		svc := &blelib.Service{UUID: blelib.MustParse(svcConfig.UUID)}
		for _, charConfig := range svcConfig.Characteristics {
			svc.Characteristics = append(svc.Characteristics, &blelib.Characteristic{
				UUID:     blelib.MustParse(charConfig.UUID),
				Property: parseCharacteristicProperties(charConfig.Properties),
			})
		}
		profile.Services = append(profile.Services, svc)
	}

	return &FakeDevice{
		advertisements: append([]blelib.Advertisement(nil), b.scanAdvertisements...),
		profile:        profile,
		scanErr:        b.scanErr,
		scanLifetime:   b.scanLifetime,
		scanEndErr:     b.scanEndErr,
		dialErr:        b.dialErr,
		dialDelay:      b.dialDelay,
		discoverErr:    b.discoverErr,
	}
}

// GetServices returns the configured services
func (b *PeripheralDeviceBuilder) GetServices() []ServiceConfig {
	return b.profile.Services
}
