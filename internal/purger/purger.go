// Package purger reclaims storage in the background: vaults that were
// soft-deleted over HTTP and blob uploads that never committed a
// record.
package purger

import (
	"context"
	"time"

	"github.com/marmos91/vaultsync/internal/logger"
	"github.com/marmos91/vaultsync/pkg/metrics"
	"github.com/marmos91/vaultsync/pkg/store/blob"
	"github.com/marmos91/vaultsync/pkg/vault/store"
)

// Config controls the purge schedule.
type Config struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval between runs, in hours.
	Interval int `mapstructure:"interval" yaml:"interval"`

	// VaultAge is accepted for configuration compatibility; every
	// soft-deleted vault is reclaimed on the next run regardless of
	// age.
	VaultAge int `mapstructure:"vault_age" yaml:"vault_age"`

	// PendingAge is the age in days past which an uncommitted upload
	// counts as abandoned.
	PendingAge int `mapstructure:"pending_age" yaml:"pending_age"`
}

// ApplyDefaults fills zero values with defaults. Enabled defaults are
// handled by the config loader.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = 1
	}
	if c.VaultAge == 0 {
		c.VaultAge = 30
	}
	if c.PendingAge == 0 {
		c.PendingAge = 7
	}
}

// Purger runs the reclaim loop.
type Purger struct {
	store   *store.GORMStore
	blobs   blob.Store
	config  Config
	metrics *metrics.PurgeMetrics
}

// New creates a purger. A nil metrics receiver disables instrumentation.
func New(s *store.GORMStore, blobs blob.Store, config Config, m *metrics.PurgeMetrics) *Purger {
	config.ApplyDefaults()
	return &Purger{store: s, blobs: blobs, config: config, metrics: m}
}

// Run sleeps for the configured interval, purges, and repeats until the
// context is cancelled. Errors in one run are logged and do not stop
// the loop.
func (p *Purger) Run(ctx context.Context) error {
	interval := time.Duration(p.config.Interval) * time.Hour

	for {
		logger.Info("next purge scheduled", "in", interval.String())

		select {
		case <-ctx.Done():
			logger.Debug("purger stopped")
			return ctx.Err()
		case <-time.After(interval):
		}

		if err := p.Purge(ctx); err != nil {
			logger.Error("purge run failed", "error", err)
		}
	}
}

// Purge performs one full reclaim pass.
func (p *Purger) Purge(ctx context.Context) error {
	logger.Info("purging")

	if err := p.purgeDeletedVaults(ctx); err != nil {
		return err
	}
	if err := p.purgeStalePendingUploads(ctx); err != nil {
		return err
	}

	if err := p.store.Vacuum(ctx); err != nil {
		logger.Warn("storage reclaim failed", "error", err)
	}

	p.metrics.RunCompleted()
	return nil
}

// purgeDeletedVaults hard-deletes every soft-deleted vault: all its
// rows in one transaction per vault, then its blob directory
// best-effort.
func (p *Purger) purgeDeletedVaults(ctx context.Context) error {
	vaults, err := p.store.ListSoftDeletedVaults(ctx)
	if err != nil {
		return err
	}

	for _, vault := range vaults {
		logger.Debug("purging deleted vault", "vault_id", vault.ID, "name", vault.Name)

		if err := p.store.PurgeVault(ctx, vault.ID); err != nil {
			logger.Warn("failed to purge vault", "vault_id", vault.ID, "error", err)
			continue
		}
		if err := p.blobs.RemoveVault(ctx, vault.ID); err != nil {
			logger.Warn("failed to remove vault blobs", "vault_id", vault.ID, "error", err)
		}

		p.metrics.VaultPurged()
		logger.Info("purged vault", "vault_id", vault.ID, "name", vault.Name)
	}
	return nil
}

// purgeStalePendingUploads removes blobs whose upload began more than
// PendingAge days ago without a committing record.
func (p *Purger) purgeStalePendingUploads(ctx context.Context) error {
	cutoff := time.Now().Add(-time.Duration(p.config.PendingAge) * 24 * time.Hour)

	pending, err := p.store.ListStalePendingUploads(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, file := range pending {
		if err := p.blobs.Remove(ctx, file.VaultID, file.Hash); err != nil {
			logger.Warn("failed to remove abandoned blob", "vault_id", file.VaultID, "hash", file.Hash, "error", err)
		}
		if err := p.store.DeletePendingFileByID(ctx, file.ID); err != nil {
			logger.Warn("failed to delete pending row", "id", file.ID, "error", err)
			continue
		}
		p.metrics.PendingPurged()
	}

	if len(pending) > 0 {
		logger.Info("purged pending uploads", "count", len(pending))
	}
	return nil
}
