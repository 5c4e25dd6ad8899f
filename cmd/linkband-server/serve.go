package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linkband-io/linkband-server/internal/engine"
	"github.com/linkband-io/linkband-server/pkg/config"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the LinkBand acquisition server",
	Long: `Start the HTTP/WebSocket server, bring up the device link, and begin
streaming, processing, and (on request) recording sensor data until
interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to a config file (optional)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl == "" {
		logger.SetLevel(cfg.LogLevel)
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithField("http_port", cfg.HTTPPort).Info("linkband-server: starting")
	return eng.Run(ctx)
}
