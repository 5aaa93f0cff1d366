package bridge

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/srg/bandlink/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the outbound event frame.
type Envelope struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// NewEnvelope converts a session event to its wire form.
func NewEnvelope(ev session.Event) Envelope {
	return Envelope{
		Event:     ev.Name(),
		Timestamp: ev.Time.UTC().Format(time.RFC3339),
		Data:      eventData(ev.Payload),
	}
}

func eventData(p session.EventPayload) map[string]any {
	switch v := p.(type) {
	case session.ScanResult:
		return map[string]any{
			"identifier": v.ID,
			"name":       v.Name,
			"rssi":       v.RSSI,
		}
	case session.ConnectionStateChanged:
		data := map[string]any{
			"state": v.State.Status.String(),
			"error": nil,
		}
		if v.State.Err != nil {
			data["error"] = v.State.Err.Error()
		}
		if v.DeviceID != "" {
			data["identifier"] = v.DeviceID
		}
		return data
	case session.RealtimeData:
		fields := v.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		return map[string]any{
			"dataType":     int(v.TypeCode),
			"dataTypeName": v.TypeName,
			"dicData":      fields,
			"dataEnd":      v.IsFinal,
		}
	default:
		return map[string]any{}
	}
}

// Request is an inbound method call.
type Request struct {
	ID     any            `json:"id,omitempty"`
	Method string         `json:"method"`
	Args   map[string]any `json:"args,omitempty"`
}

// Reply answers a Request. Exactly one of Result or Error is meaningful.
type Reply struct {
	ID     any         `json:"id"`
	Result any         `json:"result"`
	Error  *ReplyError `json:"error,omitempty"`
}

// Error codes carried in ReplyError.Code.
const (
	CodeInvalidArgs    = "INVALID_ARGS"
	CodeNotImplemented = "NOT_IMPLEMENTED"
	CodeBadRequest     = "BAD_REQUEST"
	CodeUnavailable    = "UNAVAILABLE"
)

type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ReplyError) Error() string {
	return e.Code + ": " + e.Message
}
