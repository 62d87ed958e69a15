package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/dubsync/configs"
	"github.com/RyanBlaney/dubsync/internal/app"
	"github.com/RyanBlaney/dubsync/internal/httpapi"
	"github.com/RyanBlaney/dubsync/internal/session"
	"github.com/RyanBlaney/dubsync/pkg/logging"
)

var (
	// Serve command flags
	serveHost string
	servePort int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review API server",
	Long: `Start the HTTP review server.

The server accepts a multipart upload of one reference recording plus
any number of comparison recordings, runs the drift and integrity
analysis, and returns the report as JSON. Uploads live in volatile
per-request session directories that are removed when the request
completes.

Endpoints:
  POST /upload       multipart analysis request (reference + comparison[])
  POST /clear_cache  drop cached fingerprints and leftover session files
  GET  /healthz      liveness probe
  GET  /             service descriptor

Examples:
  # Serve on the configured address
  dubsync serve

  # Override the listen address
  dubsync serve --host 127.0.0.1 --port 9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"listen host (overrides config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"listen port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if serveHost != "" {
		config.Server.Host = serveHost
	}
	if servePort > 0 {
		config.Server.Port = servePort
	}
	if err := configs.ValidateConfig(config); err != nil {
		return err
	}

	level := config.LogLevel
	if config.Verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(logging.Config{
		Level:  level,
		Format: config.LogFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	components, err := app.BuildComponents(config, logger)
	if err != nil {
		return err
	}
	defer func() { _ = components.Close() }()

	sessions, err := session.NewStore(config.SessionRoot(), logger)
	if err != nil {
		return err
	}

	// One server per data dir; concurrent instances would race on the
	// fingerprint cache and the history database.
	lock := flock.New(filepath.Join(config.DataDir, "dubsync.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire data dir lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another dubsync server is already using %s", config.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	server := httpapi.NewServer(&httpapi.ServerConfig{
		Addr:           config.ListenAddr(),
		MaxUploadBytes: config.Server.MaxUploadBytes,
		RecordHistory:  config.Server.RecordHistory,
		Version:        version,
	}, httpapi.ServerDeps{
		Orchestrator: components.Orchestrator,
		Fingerprints: components.Fingerprints,
		Sessions:     sessions,
		History:      components.History,
		Metrics:      components.Metrics,
		Logger:       logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
