//go:build test

package bluez_test

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/bandlink/internal/session"
	"github.com/srg/bandlink/internal/transport/bluez"
)

func device(props map[string]any) map[string]map[string]dbus.Variant {
	vs := make(map[string]dbus.Variant, len(props))
	for k, v := range props {
		vs[k] = dbus.MakeVariant(v)
	}
	return map[string]map[string]dbus.Variant{"org.bluez.Device1": vs}
}

func objects() bluez.ManagedObjects {
	return bluez.ManagedObjects{
		"/org/bluez/hci0": {
			"org.bluez.Adapter1": {"Powered": dbus.MakeVariant(true)},
		},
		"/org/bluez/hci0/dev_CC_CC_CC_CC_CC_CC": device(map[string]any{
			"Address":   "CC:CC:CC:CC:CC:CC",
			"Name":      "Band B",
			"Connected": true,
			"UUIDs":     []string{"0000fff0-0000-1000-8000-00805f9b34fb"},
			"RSSI":      int16(-61),
		}),
		"/org/bluez/hci0/dev_AA_AA_AA_AA_AA_AA": device(map[string]any{
			"Alias":  "Band A",
			"Paired": true,
			"UUIDs":  []string{"0000180f-0000-1000-8000-00805f9b34fb", "0000fff0-0000-1000-8000-00805f9b34fb"},
		}),
		// not paired nor connected
		"/org/bluez/hci0/dev_DD_DD_DD_DD_DD_DD": device(map[string]any{
			"Address": "DD:DD:DD:DD:DD:DD",
			"UUIDs":   []string{"0000fff0-0000-1000-8000-00805f9b34fb"},
		}),
		// paired headphones
		"/org/bluez/hci0/dev_EE_EE_EE_EE_EE_EE": device(map[string]any{
			"Address": "EE:EE:EE:EE:EE:EE",
			"Paired":  true,
			"UUIDs":   []string{"0000110b-0000-1000-8000-00805f9b34fb"},
		}),
	}
}

func TestParseDevices(t *testing.T) {
	// GOAL: Verify only paired or connected devices exposing the band service are listed
	//
	// TEST SCENARIO: Four devices → two match → sorted by address with names and optional RSSI

	got := bluez.ParseDevices(objects(), session.ServiceUUID)
	require.Len(t, got, 2)

	assert.Equal(t, "aa:aa:aa:aa:aa:aa", got[0].ID, "address MUST fall back to the object path")
	assert.Equal(t, "Band A", got[0].Name, "Alias MUST be used when Name is absent")
	assert.Nil(t, got[0].RSSI)

	assert.Equal(t, "cc:cc:cc:cc:cc:cc", got[1].ID)
	assert.Equal(t, "Band B", got[1].Name)
	require.NotNil(t, got[1].RSSI)
	assert.Equal(t, -61, *got[1].RSSI)
}

func TestParseDevicesWithoutFilter(t *testing.T) {
	got := bluez.ParseDevices(objects(), "")
	assert.Len(t, got, 3, "empty service MUST list every bound device")
}

func TestListerBoundDevices(t *testing.T) {
	lister := bluez.NewListerWithSource(nil, func() (bluez.ManagedObjects, error) {
		return objects(), nil
	})
	got, err := lister.BoundDevices("FFF0")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NoError(t, lister.Close())

	busErr := errors.New("no bus")
	failing := bluez.NewListerWithSource(nil, func() (bluez.ManagedObjects, error) {
		return nil, busErr
	})
	_, err = failing.BoundDevices("FFF0")
	assert.ErrorIs(t, err, busErr)
}
