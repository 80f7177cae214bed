package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/vaultsync/internal/logger"
	syncengine "github.com/marmos91/vaultsync/internal/sync"
	"github.com/marmos91/vaultsync/pkg/config"
	"github.com/marmos91/vaultsync/pkg/store/blob"
	"github.com/marmos91/vaultsync/pkg/vault/store"
)

// Server is the HTTP server carrying the REST endpoints and the sync
// websocket.
type Server struct {
	server       *http.Server
	addr         string
	shutdownOnce sync.Once
}

// NewServer builds the server on the full router. No read or write
// timeouts are set: sync sockets are long-lived and stream large
// blobs.
func NewServer(cfg *config.Config, s *store.GORMStore, blobs blob.Store, hub *syncengine.Hub) *Server {
	router := NewRouter(cfg, s, blobs, hub)

	return &Server{
		server: &http.Server{
			Addr:        cfg.ListenAddr,
			Handler:     router,
			IdleTimeout: 120 * time.Second,
		},
		addr: cfg.ListenAddr,
	}
}

// Start serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	}
}

// Stop shuts the server down gracefully. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		} else {
			logger.Info("server stopped gracefully")
		}
	})
	return shutdownErr
}
