package main

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/bandlink/internal/session"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for bands",
	Long: `Scan for nearby BLE devices and print their names, identifiers and
signal strength. Scanning is not filtered by service because bands do not
always advertise FFF0.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanJSON     bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from config, 10s)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print results as JSON")
}

type scanRow struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	RSSI       int    `json:"rssi"`
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	duration := scanDuration
	if duration <= 0 {
		duration = cfg.Scan.Duration
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cmd, cfg, logrus.PanicLevel)
	if err != nil {
		return err
	}
	defer a.Close()

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	results, err := collectScan(ctx, a.session, duration)
	if err != nil {
		return err
	}

	if scanJSON {
		rows := make([]scanRow, 0, len(results))
		for _, r := range results {
			rows = append(rows, scanRow{Identifier: r.ID, Name: r.Name, RSSI: r.RSSI})
		}
		return writeJSON(cmd.OutOrStdout(), rows)
	}
	return displayScanTable(cmd.OutOrStdout(), results)
}

// collectScan scans for duration and returns the last sighting of every device.
// Ctrl+C ends the scan early without an error.
func collectScan(ctx context.Context, sess *session.Session, duration time.Duration) ([]session.ScanResult, error) {
	sub := sess.Subscribe()
	defer sess.Unsubscribe(sub.ID())

	if err := sess.Scan(); err != nil {
		return nil, err
	}
	defer func() { _ = sess.StopScan() }()

	timer := time.NewTimer(duration)
	defer timer.Stop()

	seen := make(map[string]session.ScanResult)
	order := make([]string, 0)
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return nil, session.ErrClosed
			}
			switch p := ev.Payload.(type) {
			case session.ScanResult:
				if _, ok := seen[p.ID]; !ok {
					order = append(order, p.ID)
				}
				seen[p.ID] = p
			case session.ConnectionStateChanged:
				if p.State.Status == session.Failed {
					return nil, p.State.Err
				}
			}
		case <-timer.C:
			return ordered(seen, order), nil
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return ordered(seen, order), nil
			}
			return nil, ctx.Err()
		}
	}
}

func ordered(seen map[string]session.ScanResult, order []string) []session.ScanResult {
	out := make([]session.ScanResult, 0, len(order))
	for _, id := range order {
		out = append(out, seen[id])
	}
	return out
}
