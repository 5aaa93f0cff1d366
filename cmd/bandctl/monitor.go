package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/bandlink/internal/eventbus"
	"github.com/srg/bandlink/internal/session"
)

// monitorCmd connects to a band and prints what it reports
var monitorCmd = &cobra.Command{
	Use:   "monitor <identifier>",
	Short: "Connect to a band and print its data",
	Long: `Scan until the band is seen, connect, issue the requested commands and
print every event until Ctrl+C or until --duration elapses.

Realtime reporting (steps, heart rate, temperature) is on by default;
use --realtime 0 to turn it off.`,
	Example: `  bandctl monitor AA:BB:CC:DD:EE:FF
  bandctl monitor AA:BB:CC:DD:EE:FF --realtime 0 --sleep --hrv --json`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

var (
	monitorRealtime uint8
	monitorSleep    bool
	monitorActivity bool
	monitorHRV      bool
	monitorPPG      bool
	monitorJSON     bool
	monitorDuration time.Duration
)

func init() {
	monitorCmd.Flags().Uint8Var(&monitorRealtime, "realtime", 1, "Realtime report type (0 disables)")
	monitorCmd.Flags().BoolVar(&monitorSleep, "sleep", false, "Request sleep history")
	monitorCmd.Flags().BoolVar(&monitorActivity, "activity", false, "Request activity totals")
	monitorCmd.Flags().BoolVar(&monitorHRV, "hrv", false, "Request HRV history")
	monitorCmd.Flags().BoolVar(&monitorPPG, "ppg", false, "Start a PPG measurement")
	monitorCmd.Flags().BoolVar(&monitorJSON, "json", false, "Print events as JSON envelopes, one per line")
	monitorCmd.Flags().DurationVar(&monitorDuration, "duration", 0, "Stop after this long (0 runs until Ctrl+C)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	id := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cmd, cfg, logrus.PanicLevel)
	if err != nil {
		return err
	}
	defer a.Close()

	cmd.SilenceUsage = true

	sub := a.session.Subscribe()
	defer a.session.Unsubscribe(sub.ID())

	prog := startProgress(cmd.ErrOrStderr(), "Looking for "+id, "scanning", cfg.Scan.Duration)
	defer prog.Stop()

	if err := findDevice(ctx, a.session, sub, id, cfg.Scan.Duration); err != nil {
		return err
	}
	prog.Phase("connecting", cfg.Connect.Timeout)
	if err := connectDevice(ctx, a.session, sub, id, cfg.Connect.Timeout); err != nil {
		return err
	}
	prog.Stop()
	defer func() { _ = a.session.Disconnect() }()

	if err := issueRequests(a.session); err != nil {
		return err
	}

	if monitorDuration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, monitorDuration)
		defer stop()
	}

	printer := newEventPrinter(cmd.OutOrStdout(), monitorJSON)
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return session.ErrClosed
			}
			if err := printer.Print(ev); err != nil {
				return err
			}
			if p, ok := ev.Payload.(session.ConnectionStateChanged); ok && p.State.Status == session.Disconnected {
				if p.State.Err != nil {
					return fmt.Errorf("%w: %w", ErrConnectionLost, p.State.Err)
				}
				return ErrConnectionLost
			}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return ctx.Err()
		}
	}
}

// findDevice scans until id is sighted. Bound devices need no sighting since
// the session resolves them on connect.
func findDevice(ctx context.Context, sess *session.Session, sub *eventbus.Subscription[session.Event], id string, timeout time.Duration) error {
	bound, _ := sess.BoundDevices()
	for _, d := range bound {
		if d.ID == id {
			return nil
		}
	}

	if err := sess.Scan(); err != nil {
		return err
	}
	defer func() { _ = sess.StopScan() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return session.ErrClosed
			}
			switch p := ev.Payload.(type) {
			case session.ScanResult:
				if p.ID == id {
					return nil
				}
			case session.ConnectionStateChanged:
				if p.State.Status == session.Failed {
					return p.State.Err
				}
			}
		case <-timer.C:
			return fmt.Errorf("%w: %s", session.ErrUnknownDevice, id)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// connectDevice requests a connection and waits for it to be established.
func connectDevice(ctx context.Context, sess *session.Session, sub *eventbus.Subscription[session.Event], id string, timeout time.Duration) error {
	if err := sess.Connect(id); err != nil {
		return err
	}

	// The transport enforces its own dial timeout; this only guards against a
	// link that never reports back.
	timer := time.NewTimer(timeout + time.Second)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return session.ErrClosed
			}
			p, ok := ev.Payload.(session.ConnectionStateChanged)
			if !ok {
				continue
			}
			switch p.State.Status {
			case session.Connected:
				return nil
			case session.Failed:
				return p.State.Err
			}
		case <-timer.C:
			_ = sess.Disconnect()
			return ErrConnectTimeout
		case <-ctx.Done():
			_ = sess.Disconnect()
			return ctx.Err()
		}
	}
}

func issueRequests(sess *session.Session) error {
	steps := []struct {
		enabled bool
		run     func() error
	}{
		{monitorRealtime > 0, func() error { return sess.StartRealtime(monitorRealtime) }},
		{monitorActivity, sess.RequestTotalActivity},
		{monitorSleep, sess.RequestSleep},
		{monitorHRV, sess.RequestHRV},
		{monitorPPG, sess.StartPPG},
	}
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		if err := step.run(); err != nil {
			return err
		}
	}
	return nil
}
