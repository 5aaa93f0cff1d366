package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/srg/bandlink/internal/eventbus"
	"github.com/srg/bandlink/internal/groutine"
	"github.com/srg/bandlink/internal/session"
)

// client is one WebSocket connection and its bus subscription.
type client struct {
	conn *websocket.Conn
	sub  *eventbus.Subscription[session.Event]
	send chan []byte
	done chan struct{}
	log  *logrus.Entry

	writeTimeout time.Duration
	once         sync.Once
	dropped      int
}

func newClient(conn *websocket.Conn, sub *eventbus.Subscription[session.Event], opts Options, log *logrus.Entry) *client {
	return &client{
		conn:         conn,
		sub:          sub,
		send:         make(chan []byte, opts.SendBuffer),
		done:         make(chan struct{}),
		log:          log.WithField("subscriber", sub.ID().String()),
		writeTimeout: opts.WriteTimeout,
	}
}

// start runs both pumps. A panic in either is logged and closes this client only.
func (c *client) start() {
	groutine.GoRecover(context.Background(), "bridge-write-pump", c.log.Logger, func(context.Context) { c.writePump() })
	groutine.GoRecover(context.Background(), "bridge-event-pump", c.log.Logger, func(context.Context) { c.eventPump() })
}

// writePump is the only writer on conn.
func (c *client) writePump() {
	defer c.conn.Close()
	defer c.close()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.WithField("error", err).Debug("Bridge write failed")
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// eventPump forwards bus events until the subscription closes.
func (c *client) eventPump() {
	defer c.close()
	for {
		select {
		case ev, ok := <-c.sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(NewEnvelope(ev))
			if err != nil {
				c.log.WithField("error", err).Warn("Failed to encode event")
				continue
			}
			c.queue(data, false)
		case <-c.done:
			return
		}
	}
}

// queue hands data to the write pump. Events are dropped when the client is
// behind; replies wait for room.
func (c *client) queue(data []byte, wait bool) {
	if wait {
		select {
		case c.send <- data:
		case <-c.done:
		}
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.dropped++
		c.log.WithField("dropped", c.dropped).Warn("Bridge client is slow, dropping event")
	}
}

func (c *client) readLoop(s *Server) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.WithField("error", err).Debug("Bridge read failed")
			}
			return
		}

		var req Request
		var reply Reply
		if err := json.Unmarshal(msg, &req); err != nil || req.Method == "" {
			reply = Reply{Error: &ReplyError{Code: CodeBadRequest, Message: "expected {\"method\": ..., \"args\": {...}}"}}
		} else {
			c.log.WithField("method", req.Method).Debug("Bridge request")
			reply = s.dispatch(req)
		}

		data, err := json.Marshal(reply)
		if err != nil {
			c.log.WithField("error", err).Warn("Failed to encode reply")
			continue
		}
		c.queue(data, true)
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}
