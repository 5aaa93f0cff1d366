package main

import (
	"github.com/spf13/cobra"

	"github.com/srg/bandlink/bridge"
)

// serveCmd runs the WebSocket bridge
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the band over WebSocket",
	Long: `Run a WebSocket bridge on ` + bridge.EventsPath + `. Clients send
{"id": 1, "method": "scan"} style calls and receive every session event as
{"event": ..., "timestamp": ..., "data": {...}}.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveListen string

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from config, :8765)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Bridge.Listen = serveListen
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cmd, cfg, cfg.Level())
	if err != nil {
		return err
	}
	defer a.Close()

	cmd.SilenceUsage = true

	srv := bridge.NewServer(a.session, a.logger, &bridge.Options{Listen: cfg.Bridge.Listen})
	return srv.ListenAndServe(ctx)
}
