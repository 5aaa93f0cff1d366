package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/term"

	"github.com/srg/bandlink/bridge"
	"github.com/srg/bandlink/internal/session"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	data, err := jsonAPI.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// palette colours output only when it goes to a terminal.
type palette struct {
	header, good, fair, poor, data, state *color.Color
}

func newPalette(w io.Writer) *palette {
	p := &palette{
		header: color.New(color.Bold),
		good:   color.New(color.FgGreen),
		fair:   color.New(color.FgYellow),
		poor:   color.New(color.FgRed),
		data:   color.New(color.FgCyan),
		state:  color.New(color.FgMagenta, color.Bold),
	}
	if !isTerminal(w) {
		for _, c := range []*color.Color{p.header, p.good, p.fair, p.poor, p.data, p.state} {
			c.DisableColor()
		}
	}
	return p
}

func isTerminal(w io.Writer) bool {
	if color.NoColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *palette) rssi(v int) string {
	s := fmt.Sprintf("%d dBm", v)
	switch {
	case v >= -60:
		return p.good.Sprint(s)
	case v >= -80:
		return p.fair.Sprint(s)
	default:
		return p.poor.Sprint(s)
	}
}

// displayScanTable prints discovered devices, strongest signal first.
func displayScanTable(w io.Writer, results []session.ScanResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No devices discovered")
		return err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RSSI != results[j].RSSI {
			return results[i].RSSI > results[j].RSSI
		}
		return results[i].ID < results[j].ID
	})

	p := newPalette(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, p.header.Sprint("NAME")+"\t"+p.header.Sprint("IDENTIFIER")+"\t"+p.header.Sprint("RSSI"))
	fmt.Fprintln(tw, "----\t----------\t----")
	for _, r := range results {
		name := r.Name
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, r.ID, p.rssi(r.RSSI))
	}
	return tw.Flush()
}

// displayDeviceTable prints bound devices.
func displayDeviceTable(w io.Writer, devices []session.DeviceHandle) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No bound devices")
		return err
	}

	p := newPalette(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, p.header.Sprint("NAME")+"\t"+p.header.Sprint("IDENTIFIER"))
	fmt.Fprintln(tw, "----\t----------")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\n", d.DisplayName(), d.ID)
	}
	return tw.Flush()
}

// eventPrinter writes session events either as bridge envelopes (one JSON
// object per line) or as readable text.
type eventPrinter struct {
	w       io.Writer
	json    bool
	palette *palette
}

func newEventPrinter(w io.Writer, asJSON bool) *eventPrinter {
	return &eventPrinter{w: w, json: asJSON, palette: newPalette(w)}
}

func (p *eventPrinter) Print(ev session.Event) error {
	if p.json {
		data, err := jsonAPI.Marshal(bridge.NewEnvelope(ev))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.w, string(data))
		return err
	}

	ts := ev.Time.Format("15:04:05")
	switch v := ev.Payload.(type) {
	case session.ScanResult:
		_, err := fmt.Fprintf(p.w, "%s scan   %s %q %s\n", ts, v.ID, v.Name, p.palette.rssi(v.RSSI))
		return err
	case session.ConnectionStateChanged:
		_, err := fmt.Fprintf(p.w, "%s state  %s\n", ts, p.palette.state.Sprint(v.State.String()))
		return err
	case session.RealtimeData:
		end := ""
		if v.IsFinal {
			end = " (end)"
		}
		_, err := fmt.Fprintf(p.w, "%s data   %s%s %s\n", ts, p.palette.data.Sprint(v.TypeName), end, formatFields(v.Fields))
		return err
	default:
		return nil
	}
}

// formatFields renders fields as sorted key=value pairs.
func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}
