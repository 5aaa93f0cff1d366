package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/bandlink/internal/protocol"
)

func (s *Session) handle(cmd protocol.Command) {
	s.logger.WithField("command", cmd.Name()).Debug("Processing command")

	switch c := cmd.(type) {
	case protocol.Scan:
		s.startScan()
	case protocol.StopScan:
		s.stopScan()
	case protocol.Connect:
		s.connect(c.ID)
	case protocol.Disconnect:
		s.disconnect()
	case nil:
		s.logger.Warn("Ignoring nil command")
	default:
		s.sendToDevice(cmd)
	}
}

func (s *Session) startScan() {
	s.scanWanted = true
	if s.scanning {
		s.logger.Debug("Scan requested while already scanning")
		return
	}
	s.scanAttempts = 0
	s.tryStartDiscovery()
}

func (s *Session) tryStartDiscovery() {
	if !s.scanWanted || s.scanning {
		return
	}

	err := s.transport.StartDiscovery(nil)
	if err == nil {
		s.scanning = true
		s.scanAttempts = 0
		s.logger.Info("Discovery started")
		return
	}

	s.scanAttempts++
	if s.scanAttempts > s.opts.ScanRetries {
		s.scanWanted = false
		s.reportFailure("", fmt.Errorf("start discovery: %w", err))
		return
	}

	s.logger.WithFields(logrus.Fields{
		"error":   err,
		"attempt": s.scanAttempts,
		"retryIn": s.opts.ScanRetryDelay,
	}).Warn("Failed to start discovery, retrying")

	s.scanTimer = time.AfterFunc(s.opts.ScanRetryDelay, func() {
		s.post(s.tryStartDiscovery)
	})
}

func (s *Session) stopScan() {
	s.scanWanted = false
	if s.scanTimer != nil {
		s.scanTimer.Stop()
		s.scanTimer = nil
	}
	if !s.scanning {
		return
	}
	s.scanning = false
	if err := s.transport.StopDiscovery(); err != nil {
		s.logger.WithField("error", err).Warn("Failed to stop discovery")
		return
	}
	s.logger.Info("Discovery stopped")
}

// releaseScan forgets a running or pending scan without asking the transport
// to stop it.
func (s *Session) releaseScan() {
	s.scanWanted = false
	if s.scanTimer != nil {
		s.scanTimer.Stop()
		s.scanTimer = nil
	}
	if s.scanning {
		s.scanning = false
		s.logger.Debug("Discovery ended by connect")
	}
}

func (s *Session) onDiscoveryStopped(err error) {
	if !s.scanning {
		return
	}
	s.scanning = false
	s.scanWanted = false

	if err != nil {
		s.reportFailure("", fmt.Errorf("discovery: %w", err))
		return
	}
	s.logger.Info("Discovery ended")
}

func (s *Session) onDiscovered(dev DeviceHandle) {
	if dev.ID == "" {
		return
	}
	dev.Name = strings.TrimSpace(dev.Name)

	prev, known := s.devices.Get(dev.ID)
	if known {
		if dev.Name == "" {
			dev.Name = prev.Name
		}
		if dev.RSSI == nil {
			dev.RSSI = prev.RSSI
		}
	}
	s.devices.Set(dev.ID, dev)

	if !known {
		s.logger.WithFields(logrus.Fields{
			"device": dev.ID,
			"name":   dev.DisplayName(),
			"rssi":   dev.RSSIValue(),
		}).Info("Discovered new device")
	}

	s.publish(ScanResult{
		ID:        dev.ID,
		Name:      dev.DisplayName(),
		RSSI:      dev.RSSIValue(),
		FirstSeen: !known,
	})
}

// lookup resolves a device id from the discovery cache, then from the
// devices already bound to the system.
func (s *Session) lookup(id string) (DeviceHandle, bool) {
	if dev, ok := s.devices.Get(id); ok {
		return dev, true
	}

	bound, err := s.transport.BoundDevices(s.opts.Service)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"device": id,
			"error":  err,
		}).Warn("Failed to list bound devices")
		return DeviceHandle{}, false
	}
	for _, dev := range bound {
		if dev.ID == id {
			s.devices.Set(dev.ID, dev)
			return dev, true
		}
	}
	return DeviceHandle{}, false
}

func (s *Session) connect(id string) {
	switch s.State().Status {
	case Connecting:
		s.reportFailure(id, ErrAlreadyConnecting)
		return
	case Connected:
		s.reportFailure(id, ErrAlreadyConnected)
		return
	}

	dev, ok := s.lookup(id)
	if !ok {
		s.reportFailure(id, ErrUnknownDevice)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"device": dev.ID,
		"name":   dev.DisplayName(),
	}).Info("Connecting to device...")
	s.setState(ConnectionState{Status: Connecting}, &dev)

	// Transport.Connect takes the radio from any running scan.
	s.releaseScan()
	if err := s.transport.Connect(dev); err != nil {
		s.onConnectFailed(dev.ID, err)
	}
}

func (s *Session) onConnected(id string) {
	target, _ := s.Current()
	status := s.State().Status

	switch {
	case status == Connecting && target.ID == id:
		s.logger.WithField("device", id).Info("Device connected")
		s.setState(ConnectionState{Status: Connected}, &target)
	case status == Connected && target.ID == id:
		s.logger.WithField("device", id).Debug("Duplicate connect notification ignored")
	default:
		// The attempt was cancelled or superseded; drop the stray link.
		s.logger.WithFields(logrus.Fields{
			"device": id,
			"status": status,
		}).Warn("Connect succeeded for an abandoned attempt, disconnecting")
		if err := s.transport.Disconnect(); err != nil {
			s.logger.WithField("error", err).Warn("Failed to drop stale link")
		}
	}
}

func (s *Session) onConnectFailed(id string, err error) {
	target, _ := s.Current()
	if s.State().Status != Connecting || target.ID != id {
		s.logger.WithFields(logrus.Fields{
			"device": id,
			"error":  err,
		}).Debug("Ignoring connect failure for an inactive attempt")
		return
	}

	s.reportFailure(id, err)
	s.reasm.Reset()
	s.setState(ConnectionState{Status: Disconnected}, nil)
}

func (s *Session) onDisconnected(id string, reason error) {
	target, _ := s.Current()
	status := s.State().Status
	if status == Disconnected || (target.ID != "" && target.ID != id) {
		s.logger.WithFields(logrus.Fields{
			"device": id,
			"status": status,
		}).Debug("Ignoring disconnect notification")
		return
	}

	fields := logrus.Fields{"device": id}
	if reason != nil {
		fields["reason"] = reason
	}
	s.logger.WithFields(fields).Info("Device disconnected")

	s.reasm.Reset()
	s.stateMu.Lock()
	s.state = ConnectionState{Status: Disconnected, Err: reason}
	s.target = nil
	s.stateMu.Unlock()
	s.publish(ConnectionStateChanged{DeviceID: id, State: ConnectionState{Status: Disconnected, Err: reason}})
}

func (s *Session) disconnect() {
	target, _ := s.Current()
	if err := s.transport.Disconnect(); err != nil {
		s.reportFailure(target.ID, fmt.Errorf("disconnect: %w", err))
	}
}

func (s *Session) sendToDevice(cmd protocol.Command) {
	target, _ := s.Current()
	if s.State().Status != Connected {
		s.reportFailure(target.ID, ErrNotConnected)
		return
	}

	frame, err := protocol.Encode(cmd)
	if err != nil {
		s.reportFailure(target.ID, fmt.Errorf("encode %s: %w", cmd.Name(), err))
		return
	}

	s.logger.WithFields(logrus.Fields{
		"command": cmd.Name(),
		"frame":   fmt.Sprintf("% x", frame),
	}).Debug("Writing command frame")

	if err := s.transport.Write(s.opts.Service, s.opts.WriteChar, frame); err != nil {
		s.reportFailure(target.ID, fmt.Errorf("write %s: %w", cmd.Name(), err))
	}
}

func (s *Session) onNotify(characteristic string, data []byte) {
	if NormalizeUUID(characteristic) != s.opts.NotifyChar {
		s.stats.ignored.Add(1)
		s.logger.WithFields(logrus.Fields{
			"characteristic": characteristic,
			"bytes":          len(data),
		}).Debug("Ignoring notification from unexpected characteristic")
		return
	}
	if s.State().Status != Connected {
		s.stats.ignored.Add(1)
		s.logger.Debug("Dropping notification received while not connected")
		return
	}

	msg, err := protocol.Decode(data)
	switch {
	case err == nil:
	case errors.Is(err, protocol.ErrUnknownType):
		s.stats.unknown.Add(1)
		s.logger.WithFields(logrus.Fields{
			"frame": fmt.Sprintf("% x", data),
			"type":  msg.TypeName(),
		}).Warn("Passing through frame of unknown type")
	default:
		s.stats.malformed.Add(1)
		s.logger.WithFields(logrus.Fields{
			"frame": fmt.Sprintf("% x", data),
			"error": err,
		}).Warn("Dropping malformed frame")
		return
	}
	s.stats.decoded.Add(1)

	full, done := s.reasm.Feed(msg)
	if !done {
		s.logger.WithFields(logrus.Fields{
			"type":    msg.TypeName(),
			"pending": len(s.reasm.Pending()),
		}).Debug("Buffered response fragment")
		return
	}

	s.publish(RealtimeData{
		TypeCode: full.TypeCode,
		TypeName: full.TypeName(),
		Fields:   full.Fields,
		IsFinal:  true,
	})
}
