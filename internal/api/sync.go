package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/marmos91/vaultsync/internal/logger"
	"github.com/marmos91/vaultsync/internal/sync"
	"github.com/marmos91/vaultsync/pkg/store/blob"
)

// SyncHandler upgrades /sync requests into sync protocol sessions.
type SyncHandler struct {
	hub   *sync.Hub
	blobs blob.Store

	upgrader websocket.Upgrader
}

func NewSyncHandler(hub *sync.Hub, blobs blob.Store) *SyncHandler {
	return &SyncHandler{
		hub:   hub,
		blobs: blobs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  sync.ChunkSize,
			WriteBufferSize: sync.ChunkSize,
			// The desktop and mobile clients connect from app://
			// origins; origin checks happen via the token and vault
			// keyhash during init.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades websocket requests and serves the sync protocol.
// Plain GETs receive the banner so a browser check shows the server is
// up.
func (h *SyncHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Sync server"))
		return
	}

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	conn := sync.NewConn(sock, h.hub, h.blobs)
	conn.Serve(r.Context())
}

type statusResponse struct {
	Vaults      []sync.ChannelStatus `json:"vaults"`
	VaultsCount int                  `json:"vaults_count"`
}

// Status reports the live channels. Only routed when debug is enabled.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	vaults := h.hub.Status(r.Context())
	writeJSON(w, statusResponse{Vaults: vaults, VaultsCount: len(vaults)})
}
