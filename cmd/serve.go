package cmd

import (
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/wavrec/internal/server"
	"github.com/audiolibrelab/wavrec/internal/service"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server for remote control",
	Long: `Start the wavrec web server to start and stop recordings over HTTP
and to browse, stream and download finished recordings.

The server will display the local network URL for easy access from other devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		svc := service.New(cfg, cfgFile)
		srv := server.New(svc, port)

		slog.Info("wavrec web server starting", "port", port, "output", cfg.Output.Directory)

		// Start server (this blocks)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "port for the web server (overrides config)")
}
