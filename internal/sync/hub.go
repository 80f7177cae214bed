package sync

import (
	"context"
	"sync"

	"github.com/marmos91/vaultsync/internal/auth"
	"github.com/marmos91/vaultsync/internal/logger"
	"github.com/marmos91/vaultsync/pkg/metrics"
	"github.com/marmos91/vaultsync/pkg/vault/models"
	"github.com/marmos91/vaultsync/pkg/vault/store"
)

// Hub tracks which vaults have live connections. A channel exists
// exactly while at least one connection is joined to its vault.
type Hub struct {
	store   *store.GORMStore
	metrics *metrics.SyncMetrics

	mu       sync.Mutex
	channels map[int64]*Channel
}

// NewHub creates an empty hub backed by the given store.
func NewHub(s *store.GORMStore, m *metrics.SyncMetrics) *Hub {
	return &Hub{
		store:    s,
		metrics:  m,
		channels: make(map[int64]*Channel),
	}
}

// Join admits a connection to a vault's channel, creating the channel
// if this is the first member. The caller's access is verified against
// the share table and the vault keyhash is compared in constant time.
func (h *Hub) Join(ctx context.Context, conn *Conn, userID, vaultID int64, keyhash string) (*Channel, error) {
	vault, err := h.store.GetVault(ctx, vaultID, nil, false)
	if err != nil {
		return nil, err
	}

	ok, err := h.store.CheckAccess(ctx, vaultID, &userID, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrAccessDenied
	}

	if !auth.ConstantTimeEquals(vault.KeyHash, keyhash) {
		return nil, models.ErrInvalidKeyHash
	}

	h.mu.Lock()
	channel := h.channels[vaultID]
	if channel == nil {
		channel = &Channel{hub: h, vaultID: vaultID}
		h.channels[vaultID] = channel
	}
	channel.conns = append(channel.conns, conn)
	h.mu.Unlock()

	logger.Debug("vault join", "vault_id", vaultID, "device", conn.device)
	h.metrics.ConnectionJoined()
	return channel, nil
}

// ChannelStatus is a point-in-time view of one live channel, exposed by
// the debug status route.
type ChannelStatus struct {
	VaultID int64    `json:"id"`
	Size    int64    `json:"size"`
	Devices []string `json:"conn_devices"`
}

// Status snapshots every live channel.
func (h *Hub) Status(ctx context.Context) []ChannelStatus {
	h.mu.Lock()
	channels := make([]*Channel, 0, len(h.channels))
	for _, channel := range h.channels {
		channels = append(channels, channel)
	}
	h.mu.Unlock()

	statuses := make([]ChannelStatus, 0, len(channels))
	for _, channel := range channels {
		size, err := h.store.GetVaultSize(ctx, channel.vaultID)
		if err != nil {
			logger.Warn("failed to read vault size for status", "vault_id", channel.vaultID, "error", err)
		}

		h.mu.Lock()
		devices := make([]string, 0, len(channel.conns))
		for _, conn := range channel.conns {
			devices = append(devices, conn.device)
		}
		h.mu.Unlock()

		statuses = append(statuses, ChannelStatus{
			VaultID: channel.vaultID,
			Size:    size,
			Devices: devices,
		})
	}
	return statuses
}

// Channel is the live-delivery bus for one vault. It carries no
// persistent cursor; catch-up tasks bridge the gap between a client's
// cursor and live broadcasts.
type Channel struct {
	hub     *Hub
	vaultID int64
	conns   []*Conn
}

// Leave removes a connection. The last member out tears the channel
// down.
func (c *Channel) Leave(conn *Conn) {
	c.hub.mu.Lock()
	for i, member := range c.conns {
		if member == conn {
			c.conns = append(c.conns[:i], c.conns[i+1:]...)
			break
		}
	}
	if len(c.conns) == 0 {
		delete(c.hub.channels, c.vaultID)
	}
	c.hub.mu.Unlock()

	logger.Debug("vault leave", "vault_id", c.vaultID, "device", conn.device)
	c.hub.metrics.ConnectionLeft()
}

// Push appends a record to the vault log and broadcasts it to every
// member, the originator included.
func (c *Channel) Push(ctx context.Context, record *models.DocumentRecord) error {
	if err := c.hub.store.InsertRecord(ctx, record); err != nil {
		return err
	}
	c.hub.metrics.RecordPushed()
	c.Broadcast(record)
	return nil
}

// Broadcast delivers a push frame for the record to the current
// members. The member list is snapshotted first; socket writes happen
// outside the hub lock.
func (c *Channel) Broadcast(record *models.DocumentRecord) {
	c.hub.mu.Lock()
	members := make([]*Conn, len(c.conns))
	copy(members, c.conns)
	c.hub.mu.Unlock()

	frame := recordToPushFrame(record)
	for _, member := range members {
		if err := member.send(frame); err != nil {
			logger.Debug("broadcast send failed", "vault_id", c.vaultID, "device", member.device, "error", err)
			continue
		}
		c.hub.metrics.BroadcastFrame()
	}
}
