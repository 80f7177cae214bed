package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/vaultsync/internal/logger"
	"github.com/marmos91/vaultsync/internal/sync"
	"github.com/marmos91/vaultsync/pkg/config"
	"github.com/marmos91/vaultsync/pkg/metrics"
	"github.com/marmos91/vaultsync/pkg/store/blob"
	"github.com/marmos91/vaultsync/pkg/vault/store"
)

// NewRouter builds the full HTTP surface: account and vault
// management, the sync websocket, health and metrics.
func NewRouter(cfg *config.Config, s *store.GORMStore, blobs blob.Store, hub *sync.Hub) http.Handler {
	r := chi.NewRouter()

	origins := cfg.CORS.Origins
	if len(origins) == 0 {
		origins = config.DefaultClientOrigins
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(origins))

	userHandler := NewUserHandler(s)
	r.Route("/user", func(r chi.Router) {
		r.Post("/signin", userHandler.Signin)
		r.Post("/info", userHandler.Info)
		r.Post("/signout", userHandler.Signout)
	})

	vaultHandler := NewVaultHandler(s)
	r.Route("/vault", func(r chi.Router) {
		r.Post("/list", vaultHandler.List)
		r.Post("/create", vaultHandler.Create)
		r.Post("/delete", vaultHandler.Delete)
		r.Post("/access", vaultHandler.Access)
	})

	syncHandler := NewSyncHandler(hub, blobs)
	r.Get("/sync", syncHandler.Handle)
	if cfg.Debug {
		r.Get("/sync/status", syncHandler.Status)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "healthy"})
	})

	if cfg.Metrics.Enabled {
		r.Get("/metrics", promhttp.HandlerFor(
			metrics.GetRegistry(),
			promhttp.HandlerOpts{},
		).ServeHTTP)
	}

	return r
}

// corsMiddleware answers preflight requests and stamps the allow
// headers for the configured client origins.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
				if r.Method == http.MethodOptions {
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", r.Header.Get("Access-Control-Request-Headers"))
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs request start at DEBUG and completion at INFO.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
