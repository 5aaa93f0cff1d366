//go:build test

package testutils

import (
	"fmt"

	"github.com/go-ble/ble"
)

// AdvertisementBuilder builds fake BLE advertisements for testing.
type AdvertisementBuilder struct {
	name     string
	address  string
	rssi     int
	services []string
}

// NewAdvertisementBuilder creates a builder with RSSI -50 and no services.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{rssi: -50}
}

// WithName sets the local name for the advertisement.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.name = name
	return b
}

// WithAddress sets the device address for the advertisement.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.address = addr
	return b
}

// WithRSSI sets the signal strength for the advertisement.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.rssi = rssi
	return b
}

// WithServices adds service UUIDs to the advertisement.
// UUIDs can be in short form (e.g., "FFF0") or full form.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.services = append(b.services, uuids...)
	return b
}

// FromJSON fills builder fields from a JSON string with format support.
// Panics on invalid JSON as this is intended for test data setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var data struct {
		Name     *string  `json:"name"`
		Address  *string  `json:"address"`
		RSSI     *int     `json:"rssi"`
		Services []string `json:"services"`
	}
	if err := jsonAPI.Unmarshal([]byte(jsonStr), &data); err != nil {
		panic(fmt.Sprintf("FromJSON: failed to unmarshal: %v", err))
	}

	if data.Name != nil {
		b.name = *data.Name
	}
	if data.Address != nil {
		b.address = *data.Address
	}
	if data.RSSI != nil {
		b.rssi = *data.RSSI
	}
	b.services = append(b.services, data.Services...)
	return b
}

// Build creates a FakeAdvertisement with the configured fields.
func (b *AdvertisementBuilder) Build() *FakeAdvertisement {
	services := make([]ble.UUID, 0, len(b.services))
	for _, s := range b.services {
		services = append(services, ble.MustParse(s))
	}

	return &FakeAdvertisement{
		name:     b.name,
		addr:     ble.NewAddr(b.address),
		rssi:     b.rssi,
		services: services,
	}
}
