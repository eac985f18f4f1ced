package cmd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"platmaster/internal/config"
	"platmaster/internal/logger"
	"platmaster/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve plat extraction over HTTP",
	Long: `Start the PlatMaster HTTP API.

Endpoints:
  POST /extract - upload a PDF, receive the extracted record as JSON
  GET  /health  - health check
  GET  /        - API information

Optional environment variables:
  SERVER_ADDR - listen address (default: :7777)`,
	Example: `  # Start on the default port
  platmaster serve

  # Start on a custom address
  SERVER_ADDR=:8080 platmaster serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve-cmd")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, backend, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	srv := server.New(p, server.Config{Addr: cfg.ServerAddr})

	log.Info().Str("addr", cfg.ServerAddr).Msg("Starting PlatMaster server")
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}
