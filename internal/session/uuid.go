package session

import "strings"

// Identifiers of the band's GATT service and characteristics.
const (
	ServiceUUID     = "fff0"
	WriteCharUUID   = "fff6"
	NotifyCharUUID  = "fff7"
	sigBaseUUIDTail = "00001000800000805f9b34fb"
)

// NormalizeUUID converts a UUID to lowercase without dashes or 0x prefix.
// Full 128-bit UUIDs built on the Bluetooth SIG base are reduced to their
// 16-bit short form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.ReplaceAll(u, "-", "")

	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseUUIDTail) {
		return u[4:8]
	}
	return u
}

// ContainsUUID reports whether uuids holds target, comparing normalised forms.
func ContainsUUID(uuids []string, target string) bool {
	want := NormalizeUUID(target)
	for _, u := range uuids {
		if NormalizeUUID(u) == want {
			return true
		}
	}
	return false
}
