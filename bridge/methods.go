package bridge

import (
	"fmt"
	"math"

	"github.com/srg/bandlink/internal/eventbus"
	"github.com/srg/bandlink/internal/protocol"
	"github.com/srg/bandlink/internal/session"
)

// Session is the part of *session.Session the bridge drives.
type Session interface {
	Execute(cmd protocol.Command) error
	Subscribe() *eventbus.Subscription[session.Event]
	Unsubscribe(id eventbus.SubscriberID) bool
	State() session.ConnectionState
	Current() (session.DeviceHandle, bool)
	BoundDevices() ([]session.DeviceHandle, error)
}

// dispatch runs one request and builds its reply.
func (s *Server) dispatch(req Request) Reply {
	result, err := s.invoke(req)
	if err != nil {
		re, ok := err.(*ReplyError)
		if !ok {
			re = &ReplyError{Code: CodeUnavailable, Message: err.Error()}
		}
		return Reply{ID: req.ID, Error: re}
	}
	return Reply{ID: req.ID, Result: result}
}

func (s *Server) invoke(req Request) (any, error) {
	switch req.Method {
	case "getRetrievedDevices":
		devices, err := s.session.BoundDevices()
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(devices))
		for _, d := range devices {
			out = append(out, map[string]any{"identifier": d.ID, "name": d.Name})
		}
		return out, nil

	case "getConnectionState":
		return s.connectionState(), nil

	case "discoveryByQROrOther":
		return nil, &ReplyError{Code: CodeNotImplemented, Message: req.Method + " is not implemented"}
	}

	cmd, err := s.command(req)
	if err != nil {
		return nil, err
	}
	if err := s.session.Execute(cmd); err != nil {
		return nil, err
	}
	return nil, nil
}

// command maps a method name and its arguments to a protocol command.
func (s *Server) command(req Request) (protocol.Command, error) {
	now := s.opts.Now()

	switch req.Method {
	case protocol.Scan{}.Name():
		return protocol.Scan{}, nil
	case protocol.StopScan{}.Name():
		return protocol.StopScan{}, nil
	case protocol.Connect{}.Name():
		id, ok := req.Args["identifier"].(string)
		if !ok || id == "" {
			return nil, &ReplyError{Code: CodeInvalidArgs, Message: "identifier required"}
		}
		return protocol.Connect{ID: id}, nil
	case protocol.Disconnect{}.Name():
		return protocol.Disconnect{}, nil
	case protocol.StartRealtime{}.Name():
		kind, err := realtimeKind(req.Args)
		if err != nil {
			return nil, err
		}
		if kind == 0 {
			return protocol.StopRealtime{}, nil
		}
		return protocol.StartRealtime{Kind: kind}, nil
	case protocol.StopRealtime{}.Name():
		return protocol.StopRealtime{}, nil
	case protocol.RequestTotalActivity{}.Name():
		return protocol.RequestTotalActivity{Since: now}, nil
	case protocol.RequestSleep{}.Name():
		return protocol.RequestSleep{Since: now}, nil
	case protocol.RequestHRV{}.Name():
		return protocol.RequestHRV{Since: now}, nil
	case protocol.StartPPG{}.Name():
		return protocol.StartPPG{}, nil
	default:
		return nil, &ReplyError{Code: CodeNotImplemented, Message: fmt.Sprintf("unknown method %q", req.Method)}
	}
}

// realtimeKind reads the optional "type" argument, defaulting to 1.
func realtimeKind(args map[string]any) (uint8, error) {
	raw, ok := args["type"]
	if !ok || raw == nil {
		return 1, nil
	}
	f, ok := raw.(float64)
	if !ok || f != math.Trunc(f) || f < 0 || f > math.MaxUint8 {
		return 0, &ReplyError{Code: CodeInvalidArgs, Message: "type must be an integer between 0 and 255"}
	}
	return uint8(f), nil
}

func (s *Server) connectionState() map[string]any {
	state := s.session.State()
	out := map[string]any{
		"connected": state.Status == session.Connected,
		"state":     state.Status.String(),
	}
	if dev, ok := s.session.Current(); ok {
		out["identifier"] = dev.ID
		out["name"] = dev.Name
	}
	return out
}
