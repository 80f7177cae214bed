package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PurgeMetrics instruments the background purger.
type PurgeMetrics struct {
	runs          prometheus.Counter
	vaultsPurged  prometheus.Counter
	pendingPurged prometheus.Counter
}

// NewPurgeMetrics creates a Prometheus-backed PurgeMetrics instance.
//
// Returns nil if metrics are not enabled; all methods on a nil receiver
// are no-ops.
func NewPurgeMetrics() *PurgeMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &PurgeMetrics{
		runs: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "vaultsync_purge_runs_total",
			Help: "Total number of completed purge iterations",
		}),
		vaultsPurged: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "vaultsync_purge_vaults_purged_total",
			Help: "Total number of soft-deleted vaults reclaimed",
		}),
		pendingPurged: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "vaultsync_purge_pending_purged_total",
			Help: "Total number of stale pending uploads reclaimed",
		}),
	}
}

// RunCompleted counts one finished purge iteration.
func (m *PurgeMetrics) RunCompleted() {
	if m == nil {
		return
	}
	m.runs.Inc()
}

// VaultPurged counts one hard-deleted vault.
func (m *PurgeMetrics) VaultPurged() {
	if m == nil {
		return
	}
	m.vaultsPurged.Inc()
}

// PendingPurged counts one reclaimed pending upload.
func (m *PurgeMetrics) PendingPurged() {
	if m == nil {
		return
	}
	m.pendingPurged.Inc()
}
