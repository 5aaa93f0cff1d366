// Package bridge exposes a band session over WebSocket: JSON method calls in,
// timestamped event envelopes out.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/srg/bandlink/internal/groutine"
)

// EventsPath is where clients connect.
const EventsPath = "/events"

// Options configures a Server.
type Options struct {
	Listen string `default:":8765"`
	// SendBuffer is the number of outbound frames queued per client before
	// further events are dropped for that client.
	SendBuffer   int           `default:"64"`
	WriteTimeout time.Duration `default:"10s"`
	// AllowedOrigins restricts browser clients. Empty allows any origin.
	AllowedOrigins []string
	// Now stamps history requests. Defaults to time.Now.
	Now func() time.Time
}

// Server serves one session to any number of WebSocket clients.
type Server struct {
	session  Session
	logger   *logrus.Logger
	opts     Options
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewServer creates a bridge for sess.
func NewServer(sess Session, logger *logrus.Logger, opts *Options) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	var o Options
	if opts != nil {
		o = *opts
	}
	defaults.SetDefaults(&o)
	if o.Now == nil {
		o.Now = time.Now
	}

	s := &Server{
		session: sess,
		logger:  logger,
		opts:    o,
		clients: make(map[*client]struct{}),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// Handler returns the HTTP handler serving EventsPath.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(EventsPath, s.handleEvents)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	groutine.Go(ctx, "bridge-shutdown", func(ctx context.Context) {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.closeClients()
	})

	s.logger.WithField("address", ln.Addr().String()).Info("Bridge listening")
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithField("error", err).Warn("WebSocket upgrade failed")
		return
	}

	c := s.addClient(conn, r.RemoteAddr)
	defer s.removeClient(c)

	c.readLoop(s)
}

func (s *Server) addClient(conn *websocket.Conn, remote string) *client {
	c := newClient(conn, s.session.Subscribe(), s.opts, s.logger.WithField("remote", remote))

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	c.start()
	c.log.Info("Bridge client connected")
	return c
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()

	if ok {
		s.session.Unsubscribe(c.sub.ID())
		c.close()
		c.log.Info("Bridge client disconnected")
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		s.removeClient(c)
	}
}
