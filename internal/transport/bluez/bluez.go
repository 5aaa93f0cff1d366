// Package bluez lists devices BlueZ already knows about over the system D-Bus.
package bluez

import (
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/srg/bandlink/internal/session"
)

const (
	busName       = "org.bluez"
	deviceIface   = "org.bluez.Device1"
	objectManager = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
)

// ManagedObjects is the reply shape of ObjectManager.GetManagedObjects.
type ManagedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Lister reports paired or connected BlueZ devices exposing a service.
type Lister struct {
	logger *logrus.Logger

	// fetch is replaced in tests
	fetch func() (ManagedObjects, error)
	conn  *dbus.Conn
}

// NewLister connects to the system bus.
func NewLister(logger *logrus.Logger) (*Lister, error) {
	if logger == nil {
		logger = logrus.New()
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	l := &Lister{logger: logger, conn: conn}
	l.fetch = l.managedObjects
	return l, nil
}

// NewListerWithSource builds a Lister over a custom object source.
func NewListerWithSource(logger *logrus.Logger, fetch func() (ManagedObjects, error)) *Lister {
	if logger == nil {
		logger = logrus.New()
	}
	return &Lister{logger: logger, fetch: fetch}
}

// Close releases the bus connection, if any.
func (l *Lister) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

func (l *Lister) managedObjects() (ManagedObjects, error) {
	var objects ManagedObjects
	err := l.conn.Object(busName, "/").Call(objectManager, 0).Store(&objects)
	if err != nil {
		return nil, fmt.Errorf("get managed objects: %w", err)
	}
	return objects, nil
}

// BoundDevices returns devices that are paired or connected and advertise service.
func (l *Lister) BoundDevices(service string) ([]session.DeviceHandle, error) {
	objects, err := l.fetch()
	if err != nil {
		return nil, err
	}

	devices := ParseDevices(objects, service)
	l.logger.WithFields(logrus.Fields{
		"service": service,
		"count":   len(devices),
	}).Debug("Listed bound BlueZ devices")
	return devices, nil
}

// ParseDevices extracts matching devices from a GetManagedObjects reply,
// sorted by address.
func ParseDevices(objects ManagedObjects, service string) []session.DeviceHandle {
	var devices []session.DeviceHandle
	for path, ifaces := range objects {
		props, ok := ifaces[deviceIface]
		if !ok {
			continue
		}

		paired, _ := props["Paired"].Value().(bool)
		connected, _ := props["Connected"].Value().(bool)
		if !paired && !connected {
			continue
		}

		uuids, _ := props["UUIDs"].Value().([]string)
		if service != "" && !session.ContainsUUID(uuids, service) {
			continue
		}

		addr, _ := props["Address"].Value().(string)
		if addr == "" {
			addr = addressFromPath(path)
		}
		if addr == "" {
			continue
		}

		dev := session.DeviceHandle{ID: strings.ToLower(addr)}
		if name, ok := props["Alias"].Value().(string); ok {
			dev.Name = name
		}
		if name, ok := props["Name"].Value().(string); ok {
			dev.Name = name
		}
		if rssi, ok := props["RSSI"].Value().(int16); ok {
			v := int(rssi)
			dev.RSSI = &v
		}
		devices = append(devices, dev)
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// addressFromPath extracts the MAC from "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF".
func addressFromPath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, "/dev_")
	if i < 0 {
		return ""
	}
	return strings.ReplaceAll(s[i+len("/dev_"):], "_", ":")
}
