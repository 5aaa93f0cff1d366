package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/bandlink/internal/session"
	"github.com/srg/bandlink/internal/transport/bluez"
	"github.com/srg/bandlink/internal/transport/goble"
	"github.com/srg/bandlink/pkg/config"
)

// boundListerFactory returns the source of system-bound devices (can be overridden in tests)
var boundListerFactory = func(logger *logrus.Logger) (goble.BoundLister, func(), error) {
	if runtime.GOOS != "linux" {
		return nil, func() {}, nil
	}
	l, err := bluez.NewLister(logger)
	if err != nil {
		return nil, func() {}, err
	}
	return l, func() { _ = l.Close() }, nil
}

// app is the wiring shared by every command: config, logger, transport and session.
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	session *session.Session
	closers []func()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envPath, _ := cmd.Flags().GetString("env-file")
	return config.Load(path, envPath)
}

// newApp builds and starts a session. fallback is the log level used when no
// logging flag is given.
func newApp(ctx context.Context, cmd *cobra.Command, cfg *config.Config, fallback logrus.Level) (*app, error) {
	logger, err := configureLogger(cmd, "verbose", fallback)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	lister, closeLister, err := boundListerFactory(logger)
	if err != nil {
		logger.WithField("error", err).Debug("Bound device lookup unavailable")
	}
	a.closers = append(a.closers, closeLister)

	transport := goble.New(logger, &goble.Options{
		Service:        cfg.Device.Service,
		NotifyChar:     cfg.Device.NotifyChar,
		ConnectTimeout: cfg.Connect.Timeout,
	}, lister)

	a.session = session.New(transport, logger, &session.Options{
		Service:    cfg.Device.Service,
		WriteChar:  cfg.Device.WriteChar,
		NotifyChar: cfg.Device.NotifyChar,
		BufferSize: cfg.Bus.BufferSize,
	})
	if err := a.session.Start(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.session.Close() })

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
