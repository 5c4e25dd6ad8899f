package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "linkband-server",
	Short: "LinkBand biosignal acquisition server",
	Long: `linkband-server bridges a LinkBand EEG/PPG/ACC headband to HTTP and
WebSocket clients: it scans for and connects to the device over BLE,
runs the per-sensor processing pipelines, optionally records sessions
to disk, and serves live telemetry and control over HTTP/WS.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}
