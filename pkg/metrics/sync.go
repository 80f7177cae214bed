package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncMetrics instruments the vault sync plane: connection lifecycle,
// record pushes, broadcast fan-out, and blob transfer volume.
type SyncMetrics struct {
	connections     prometheus.Gauge
	recordsPushed   prometheus.Counter
	broadcastFrames prometheus.Counter
	blobBytes       *prometheus.CounterVec
}

// NewSyncMetrics creates a Prometheus-backed SyncMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called); all
// methods on a nil receiver are no-ops.
func NewSyncMetrics() *SyncMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &SyncMetrics{
		connections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "vaultsync_sync_connections",
			Help: "Number of currently joined sync connections",
		}),
		recordsPushed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "vaultsync_sync_records_pushed_total",
			Help: "Total number of document records committed via push or restore",
		}),
		broadcastFrames: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "vaultsync_sync_broadcast_frames_total",
			Help: "Total number of push frames fanned out to connections",
		}),
		blobBytes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "vaultsync_sync_blob_bytes_total",
			Help: "Total blob bytes transferred over sync sockets by direction",
		}, []string{"direction"}), // "up", "down"
	}
}

// ConnectionJoined increments the live connection gauge.
func (m *SyncMetrics) ConnectionJoined() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnectionLeft decrements the live connection gauge.
func (m *SyncMetrics) ConnectionLeft() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// RecordPushed counts one committed document record.
func (m *SyncMetrics) RecordPushed() {
	if m == nil {
		return
	}
	m.recordsPushed.Inc()
}

// BroadcastFrame counts one push frame delivered to a connection.
func (m *SyncMetrics) BroadcastFrame() {
	if m == nil {
		return
	}
	m.broadcastFrames.Inc()
}

// BlobBytes counts blob bytes transferred; direction is "up" or "down".
func (m *SyncMetrics) BlobBytes(direction string, n int64) {
	if m == nil {
		return
	}
	m.blobBytes.WithLabelValues(direction).Add(float64(n))
}
