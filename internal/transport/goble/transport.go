// Package goble implements session.Transport on top of go-ble.
package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/srg/bandlink/internal/groutine"
	"github.com/srg/bandlink/internal/session"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
var DeviceFactory = newPlatformDevice

// BoundLister lists devices already known to the operating system.
type BoundLister interface {
	BoundDevices(service string) ([]session.DeviceHandle, error)
}

// Options configures a Transport.
type Options struct {
	Service    string `default:"fff0"`
	NotifyChar string `default:"fff7"`

	ConnectTimeout time.Duration `default:"10s"`
	// ScanStartGrace is how long StartDiscovery waits for an early scan error,
	// such as the radio being powered off.
	ScanStartGrace time.Duration `default:"250ms"`

	// Writes are split into chunks of ChunkSize bytes, ChunkDelay apart.
	ChunkSize  int           `default:"20"`
	ChunkDelay time.Duration `default:"10ms"`
	// WriteWithoutResponse selects write commands instead of write requests.
	WriteWithoutResponse bool
}

// Transport drives one BLE link through go-ble.
type Transport struct {
	logger *logrus.Logger
	opts   Options
	bound  BoundLister

	mu       sync.Mutex
	listener session.Listener
	dev      ble.Device
	scan     *scanRun
	link     *link

	writeMu sync.Mutex
}

type scanRun struct {
	cancel context.CancelFunc
}

// link is a connection attempt or an established connection.
type link struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	// set under Transport.mu once established
	client ble.Client
	chars  map[string]*ble.Characteristic
}

// New creates a transport. bound may be nil, in which case BoundDevices returns nothing.
func New(logger *logrus.Logger, opts *Options, bound BoundLister) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	var o Options
	if opts != nil {
		o = *opts
	}
	defaults.SetDefaults(&o)
	o.Service = session.NormalizeUUID(o.Service)
	o.NotifyChar = session.NormalizeUUID(o.NotifyChar)

	return &Transport{logger: logger, opts: o, bound: bound}
}

// SetListener installs the callback receiver.
func (t *Transport) SetListener(l session.Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listener = l
}

func (t *Transport) events() session.Listener {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nopListener{}
	}
	return t.listener
}

// device returns the shared ble.Device, creating it on first use. Caller holds t.mu.
func (t *Transport) deviceLocked() (ble.Device, error) {
	if t.dev != nil {
		return t.dev, nil
	}
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	t.dev = dev
	return dev, nil
}

// StartDiscovery starts scanning in the background. Errors raised while the
// scan starts up are returned; later errors are logged.
func (t *Transport) StartDiscovery(services []string) error {
	t.mu.Lock()
	if t.scan != nil {
		t.mu.Unlock()
		return nil
	}
	dev, err := t.deviceLocked()
	if err != nil {
		t.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	run := &scanRun{cancel: cancel}
	t.scan = run
	t.mu.Unlock()

	t.logger.WithField("services", services).Info("Starting BLE scan...")

	// ended carries the scan result and whether it ended on its own rather
	// than through StopDiscovery.
	type scanEnd struct {
		err         error
		unrequested bool
	}
	ended := make(chan scanEnd, 1)
	groutine.GoRecover(ctx, "ble-scan", t.logger, func(ctx context.Context) {
		err := dev.Scan(ctx, true, t.handleAdvertisement(services))

		t.mu.Lock()
		unrequested := t.scan == run
		if unrequested {
			t.scan = nil
		}
		t.mu.Unlock()

		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			err = nil
		}
		ended <- scanEnd{err: NormalizeError(err), unrequested: unrequested}
	})

	select {
	case end := <-ended:
		cancel()
		if end.err != nil {
			return fmt.Errorf("scan failed: %w", end.err)
		}
		if end.unrequested {
			t.events().OnDiscoveryStopped(nil)
		}
		return nil
	case <-time.After(t.opts.ScanStartGrace):
		groutine.Go(ctx, "ble-scan-watch", func(context.Context) {
			end := <-ended
			if end.err != nil {
				t.logger.WithField("error", end.err).Warn("BLE scan stopped with error")
			}
			if end.unrequested {
				t.events().OnDiscoveryStopped(end.err)
			}
		})
		return nil
	}
}

// StopDiscovery cancels an ongoing scan.
func (t *Transport) StopDiscovery() error {
	t.mu.Lock()
	run := t.scan
	t.scan = nil
	t.mu.Unlock()

	if run != nil {
		run.cancel()
		t.logger.Info("BLE scan stopped")
	}
	return nil
}

func (t *Transport) handleAdvertisement(services []string) ble.AdvHandler {
	return func(adv ble.Advertisement) {
		if len(services) > 0 && !advertises(adv, services) {
			return
		}
		rssi := adv.RSSI()
		t.events().OnDiscovered(session.DeviceHandle{
			ID:   adv.Addr().String(),
			Name: adv.LocalName(),
			RSSI: &rssi,
		})
	}
}

func advertises(adv ble.Advertisement, services []string) bool {
	advertised := make([]string, 0, len(adv.Services()))
	for _, u := range adv.Services() {
		advertised = append(advertised, u.String())
	}
	for _, want := range services {
		if session.ContainsUUID(advertised, want) {
			return true
		}
	}
	return false
}

// Connect starts a connection attempt in the background.
func (t *Transport) Connect(dev session.DeviceHandle) error {
	if dev.ID == "" {
		return fmt.Errorf("device address is empty")
	}

	t.mu.Lock()
	if t.link != nil {
		t.mu.Unlock()
		return session.ErrAlreadyConnected
	}
	radio, err := t.deviceLocked()
	if err != nil {
		t.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &link{id: dev.ID, cancel: cancel, done: make(chan struct{})}
	t.link = l
	t.mu.Unlock()

	// Scanning and connecting share the radio.
	_ = t.StopDiscovery()

	groutine.GoRecover(ctx, "ble-connect", t.logger, func(ctx context.Context) {
		t.establish(ctx, radio, l)
	})
	return nil
}

func (t *Transport) establish(ctx context.Context, radio ble.Device, l *link) {
	log := t.logger.WithField("address", l.id)
	log.WithField("timeout", t.opts.ConnectTimeout).Info("Connecting to BLE device...")

	dialCtx, cancel := context.WithTimeout(ctx, t.opts.ConnectTimeout)
	defer cancel()

	client, err := radio.Dial(dialCtx, ble.NewAddr(l.id))
	if err != nil {
		log.WithField("error", err).Error("Failed to dial BLE device")
		t.abandon(ctx, l, fmt.Errorf("failed to connect to device with address %q: %w", l.id, NormalizeError(err)))
		return
	}

	chars, err := t.setup(client, l)
	if err != nil {
		log.WithField("error", err).Error("Failed to set up BLE device")
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			log.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection after setup failure")
		}
		t.abandon(ctx, l, err)
		return
	}

	t.mu.Lock()
	if t.link != l {
		// Disconnect was requested while the link was being set up.
		t.mu.Unlock()
		_ = client.CancelConnection()
		close(l.done)
		t.events().OnDisconnected(l.id, nil)
		return
	}
	l.client = client
	l.chars = chars
	t.mu.Unlock()

	log.WithField("characteristics", len(chars)).Info("BLE device connected successfully")
	t.events().OnConnected(l.id)

	if dc, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.GoRecover(context.Background(), "ble-connection-monitor", t.logger, func(context.Context) {
			select {
			case <-dc.Disconnected():
				t.lost(l)
			case <-l.done:
			}
		})
	} else {
		log.Debug("Client does not report disconnections")
	}
}

// setup discovers the band service and subscribes to its notify characteristic.
func (t *Transport) setup(client ble.Client, l *link) (map[string]*ble.Characteristic, error) {
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	var svc *ble.Service
	for _, s := range profile.Services {
		if session.NormalizeUUID(s.UUID.String()) == t.opts.Service {
			svc = s
			break
		}
	}
	if svc == nil {
		return nil, &NotFoundError{Resource: "service", UUIDs: []string{t.opts.Service}}
	}

	chars := make(map[string]*ble.Characteristic, len(svc.Characteristics))
	for _, c := range svc.Characteristics {
		chars[session.NormalizeUUID(c.UUID.String())] = c
	}

	notify, ok := chars[t.opts.NotifyChar]
	if !ok {
		return nil, &NotFoundError{Resource: "characteristic", UUIDs: []string{t.opts.Service, t.opts.NotifyChar}}
	}

	notifyChar := t.opts.NotifyChar
	err = client.Subscribe(notify, false, func(data []byte) {
		t.events().OnNotify(notifyChar, data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", notifyChar, NormalizeError(err))
	}

	t.logger.WithFields(logrus.Fields{
		"address":  l.id,
		"services": len(profile.Services),
	}).Debug("Profile discovered successfully")
	return chars, nil
}

// abandon reports the end of an attempt that never produced a link.
func (t *Transport) abandon(ctx context.Context, l *link, err error) {
	t.mu.Lock()
	requested := t.link != l
	if !requested {
		t.link = nil
	}
	t.mu.Unlock()
	close(l.done)

	if requested || ctx.Err() != nil {
		t.events().OnDisconnected(l.id, nil)
		return
	}
	t.events().OnConnectFailed(l.id, err)
}

// lost handles a disconnection reported by the platform.
func (t *Transport) lost(l *link) {
	t.mu.Lock()
	if t.link != l {
		t.mu.Unlock()
		return
	}
	t.link = nil
	t.mu.Unlock()
	close(l.done)

	t.logger.WithField("address", l.id).Warn("BLE device reported disconnection")
	t.events().OnDisconnected(l.id, ErrConnectionLost)
}

// Disconnect drops the current link or cancels a pending attempt.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	l := t.link
	t.link = nil
	var client ble.Client
	if l != nil {
		client = l.client
	}
	t.mu.Unlock()

	if l == nil {
		t.logger.Debug("Disconnect called but already disconnected")
		return nil
	}

	l.cancel()
	if client == nil {
		// Still connecting; establish reports the outcome.
		t.logger.WithField("address", l.id).Info("Cancelling connection attempt...")
		return nil
	}

	t.logger.WithField("address", l.id).Info("Disconnecting BLE device...")
	close(l.done)
	err := client.CancelConnection()
	t.events().OnDisconnected(l.id, nil)

	if err != nil {
		t.logger.WithField("error", err).Warn("BLE device disconnected with errors")
		return NormalizeError(err)
	}
	t.logger.Info("BLE device disconnected successfully")
	return nil
}

// Write sends data to a characteristic in chunks.
func (t *Transport) Write(service, characteristic string, data []byte) error {
	if session.NormalizeUUID(service) != t.opts.Service {
		return &NotFoundError{Resource: "service", UUIDs: []string{service}}
	}

	t.mu.Lock()
	l := t.link
	var client ble.Client
	var char *ble.Characteristic
	if l != nil && l.client != nil {
		client = l.client
		char = l.chars[session.NormalizeUUID(characteristic)]
	}
	t.mu.Unlock()

	if client == nil {
		return session.ErrNotConnected
	}
	if char == nil {
		return &NotFoundError{Resource: "characteristic", UUIDs: []string{service, characteristic}}
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for start := 0; start < len(data); start += t.opts.ChunkSize {
		end := min(start+t.opts.ChunkSize, len(data))
		if err := client.WriteCharacteristic(char, data[start:end], t.opts.WriteWithoutResponse); err != nil {
			return fmt.Errorf("failed to write chunk at offset %d: %w", start, NormalizeError(err))
		}
		if end < len(data) {
			time.Sleep(t.opts.ChunkDelay)
		}
	}

	t.logger.WithFields(logrus.Fields{
		"characteristic": characteristic,
		"bytes":          len(data),
	}).Debug("Wrote characteristic")
	return nil
}

// BoundDevices delegates to the configured BoundLister.
func (t *Transport) BoundDevices(service string) ([]session.DeviceHandle, error) {
	if t.bound == nil {
		return nil, nil
	}
	return t.bound.BoundDevices(service)
}

type nopListener struct{}

func (nopListener) OnDiscovered(session.DeviceHandle) {}
func (nopListener) OnConnected(string)                {}
func (nopListener) OnConnectFailed(string, error)     {}
func (nopListener) OnDisconnected(string, error)      {}
func (nopListener) OnNotify(string, []byte)           {}
func (nopListener) OnDiscoveryStopped(error)          {}
