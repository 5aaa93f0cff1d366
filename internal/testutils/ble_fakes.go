//go:build test

package testutils

import (
	"context"
	"sync"
	"time"

	blelib "github.com/go-ble/ble"
)

// FakeAdvertisement implements blelib.Advertisement with fixed values.
// Methods not overridden here panic through the nil embedded interface.
type FakeAdvertisement struct {
	blelib.Advertisement

	name     string
	addr     blelib.Addr
	rssi     int
	services []blelib.UUID
}

func (a *FakeAdvertisement) LocalName() string        { return a.name }
func (a *FakeAdvertisement) Addr() blelib.Addr        { return a.addr }
func (a *FakeAdvertisement) RSSI() int                { return a.rssi }
func (a *FakeAdvertisement) Services() []blelib.UUID  { return a.services }
func (a *FakeAdvertisement) ManufacturerData() []byte { return nil }
func (a *FakeAdvertisement) Connectable() bool        { return true }

// FakeClient implements the subset of blelib.Client the transport uses and
// records writes and subscriptions.
type FakeClient struct {
	blelib.Client

	profile      *blelib.Profile
	discoverErr  error
	subscribeErr error
	writeErr     error

	mu           sync.Mutex
	handlers     map[string]blelib.NotificationHandler
	writes       [][]byte
	cancels      int
	disconnected chan struct{}
	closeOnce    sync.Once
}

func newFakeClient(profile *blelib.Profile) *FakeClient {
	return &FakeClient{
		profile:      profile,
		handlers:     make(map[string]blelib.NotificationHandler),
		disconnected: make(chan struct{}),
	}
}

func (c *FakeClient) DiscoverProfile(bool) (*blelib.Profile, error) {
	if c.discoverErr != nil {
		return nil, c.discoverErr
	}
	return c.profile, nil
}

func (c *FakeClient) Subscribe(char *blelib.Characteristic, _ bool, h blelib.NotificationHandler) error {
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[char.UUID.String()] = h
	return nil
}

func (c *FakeClient) WriteCharacteristic(_ *blelib.Characteristic, value []byte, _ bool) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), value...))
	return nil
}

func (c *FakeClient) CancelConnection() error {
	c.mu.Lock()
	c.cancels++
	c.mu.Unlock()
	c.Drop()
	return nil
}

// Disconnected matches the optional interface go-ble clients expose.
func (c *FakeClient) Disconnected() <-chan struct{} {
	return c.disconnected
}

// Drop simulates the peripheral going away.
func (c *FakeClient) Drop() {
	c.closeOnce.Do(func() { close(c.disconnected) })
}

// Notify delivers data to the handler subscribed on characteristic uuid.
// Returns false when nothing is subscribed.
func (c *FakeClient) Notify(uuid string, data []byte) bool {
	c.mu.Lock()
	h, ok := c.handlers[blelib.MustParse(uuid).String()]
	c.mu.Unlock()
	if !ok {
		return false
	}
	h(data)
	return true
}

// Writes returns a copy of every chunk written so far.
func (c *FakeClient) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

// Cancels returns how many times CancelConnection was called.
func (c *FakeClient) Cancels() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancels
}

// FakeDevice implements blelib.Device. Scan replays its advertisements and
// then blocks until cancelled or its lifetime ends; Dial hands out one
// FakeClient per call.
type FakeDevice struct {
	blelib.Device

	advertisements []blelib.Advertisement
	profile        *blelib.Profile
	scanErr        error
	scanLifetime   time.Duration
	scanEndErr     error
	dialErr        error
	dialDelay      time.Duration
	discoverErr    error

	mu      sync.Mutex
	clients []*FakeClient
	scans   int
}

func (d *FakeDevice) Scan(ctx context.Context, _ bool, h blelib.AdvHandler) error {
	d.mu.Lock()
	d.scans++
	d.mu.Unlock()

	if d.scanErr != nil {
		return d.scanErr
	}
	for _, adv := range d.advertisements {
		h(adv)
	}
	if d.scanLifetime > 0 {
		select {
		case <-time.After(d.scanLifetime):
			return d.scanEndErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (d *FakeDevice) Dial(ctx context.Context, _ blelib.Addr) (blelib.Client, error) {
	if d.dialDelay > 0 {
		select {
		case <-time.After(d.dialDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.dialErr != nil {
		return nil, d.dialErr
	}

	c := newFakeClient(d.profile)
	c.discoverErr = d.discoverErr
	d.mu.Lock()
	d.clients = append(d.clients, c)
	d.mu.Unlock()
	return c, nil
}

// LastClient returns the most recently dialled client, or nil.
func (d *FakeDevice) LastClient() *FakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.clients) == 0 {
		return nil
	}
	return d.clients[len(d.clients)-1]
}

// Scans returns how many times Scan was called.
func (d *FakeDevice) Scans() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scans
}
