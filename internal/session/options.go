package session

import (
	"time"

	"github.com/mcuadros/go-defaults"
)

// Options configures a Session. Zero fields take the values in their default tags.
type Options struct {
	// GATT layout of the band.
	Service    string `default:"fff0"`
	WriteChar  string `default:"fff6"`
	NotifyChar string `default:"fff7"`

	// ScanRetries is how many times a failed discovery start is retried
	// (e.g. while the radio is still powering on) before reporting Failed.
	// Zero means the default; NoScanRetries disables retrying.
	ScanRetries    int           `default:"3"`
	ScanRetryDelay time.Duration `default:"2s"`

	// BufferSize is the per-subscriber event ring capacity.
	BufferSize uint32 `default:"256"`

	// Now is the clock used for event timestamps and for "today" in history requests.
	Now func() time.Time
}

// NoScanRetries as Options.ScanRetries reports the first discovery start failure.
const NoScanRetries = -1

// DefaultOptions returns options with every default applied.
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	return opts
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	defaults.SetDefaults(&out)
	if out.ScanRetries < 0 {
		out.ScanRetries = 0
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	out.Service = NormalizeUUID(out.Service)
	out.WriteChar = NormalizeUUID(out.WriteChar)
	out.NotifyChar = NormalizeUUID(out.NotifyChar)
	return out
}
