// Package reassembly merges multi-frame device responses into complete messages.
package reassembly

import (
	"maps"
	"slices"
	"sync"

	"github.com/srg/bandlink/internal/protocol"
)

// Reassembler buffers non-final fragments per data type.
//
// Fragments of one type are merged in arrival order with last-write-wins on
// field names. A final fragment flushes the buffer for its type. There is no
// ordering or loss detection: a fragment arriving with no open buffer starts
// a new one. Buffers of different types are independent.
//
// Safe for concurrent use.
type Reassembler struct {
	mu      sync.Mutex
	pending map[protocol.DataType]map[string]any
}

// New creates an empty Reassembler.
func New() *Reassembler {
	return &Reassembler{pending: make(map[protocol.DataType]map[string]any)}
}

// Feed adds a fragment. It returns the merged message and true when msg is
// final, otherwise the zero message and false.
func (r *Reassembler) Feed(msg protocol.DeviceMessage) (protocol.DeviceMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, open := r.pending[msg.TypeCode]
	if !open {
		buf = make(map[string]any, len(msg.Fields))
	}
	maps.Copy(buf, msg.Fields)

	if !msg.IsFinal {
		r.pending[msg.TypeCode] = buf
		return protocol.DeviceMessage{}, false
	}

	delete(r.pending, msg.TypeCode)
	return protocol.DeviceMessage{TypeCode: msg.TypeCode, Fields: buf, IsFinal: true}, true
}

// Pending returns the data types with an open buffer, in ascending order.
func (r *Reassembler) Pending() []protocol.DataType {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Sorted(maps.Keys(r.pending))
}

// Reset discards all open buffers.
func (r *Reassembler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.pending)
}
