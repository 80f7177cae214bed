package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/vaultsync/internal/api"
	"github.com/marmos91/vaultsync/internal/logger"
	"github.com/marmos91/vaultsync/internal/purger"
	syncengine "github.com/marmos91/vaultsync/internal/sync"
	"github.com/marmos91/vaultsync/pkg/metrics"
	"github.com/marmos91/vaultsync/pkg/store/blob"
	"github.com/marmos91/vaultsync/pkg/vault/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the synchronization server",
	Long: `Start the synchronization server.

The server opens the database, runs pending schema migrations, and begins
accepting HTTP and websocket connections. It shuts down gracefully on
SIGINT or SIGTERM.

Examples:
  # Start with the default config location
  vaultsync serve

  # Start with a custom config file
  vaultsync serve --config /etc/vaultsync/config.yaml

  # Override single settings via environment
  VAULTSYNC_DEBUG=true VAULTSYNC_PURGE__INTERVAL=6 vaultsync serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	blobs, err := blob.New(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}

	hub := syncengine.NewHub(s, metrics.NewSyncMetrics())
	server := api.NewServer(cfg, s, blobs, hub)

	if cfg.Purge.Enabled {
		p := purger.New(s, blobs, cfg.Purge, metrics.NewPurgeMetrics())
		go func() {
			if err := p.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("purger stopped", "error", err)
			}
		}()
	}

	// Shut down on SIGINT or SIGTERM.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	logger.Info("starting sync server",
		"version", Version,
		"listen_addr", cfg.ListenAddr,
		"database", string(cfg.Database.Type),
		"blob_backend", string(cfg.Blob.Backend),
	)
	return server.Start(ctx)
}
