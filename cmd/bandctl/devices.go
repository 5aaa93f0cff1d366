package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// devicesCmd lists bands already known to the operating system
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List bands bound to this system",
	Long: `List devices the operating system already knows about (paired or
connected) that expose the band service. On Linux these come from BlueZ.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

var devicesJSON bool

func init() {
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false, "Print results as JSON")
}

type deviceRow struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

func runDevices(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cmd, cfg, logrus.PanicLevel)
	if err != nil {
		return err
	}
	defer a.Close()

	cmd.SilenceUsage = true

	devices, err := a.session.BoundDevices()
	if err != nil {
		return err
	}

	if devicesJSON {
		rows := make([]deviceRow, 0, len(devices))
		for _, d := range devices {
			rows = append(rows, deviceRow{Identifier: d.ID, Name: d.Name})
		}
		return writeJSON(cmd.OutOrStdout(), rows)
	}
	return displayDeviceTable(cmd.OutOrStdout(), devices)
}
