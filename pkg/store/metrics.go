package store

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PebbleStats is a compact view of the storage engine's health, exposed as
// prometheus gauges alongside the application counters.
type PebbleStats struct {
	DiskUsageBytes    uint64
	WALBytes          uint64
	CompactionBacklog uint64
	L0Files           int64
	L0Bytes           int64
}

// Stats snapshots pebble's internal metrics. Zero values when the store is
// not open.
func Stats() PebbleStats {
	if db == nil {
		return PebbleStats{}
	}
	m := db.Metrics()
	return PebbleStats{
		DiskUsageBytes:    m.DiskSpaceUsage(),
		WALBytes:          m.WAL.Size,
		CompactionBacklog: m.Compact.EstimatedDebt,
		L0Files:           m.Levels[0].NumFiles,
		L0Bytes:           m.Levels[0].Size,
	}
}

var statsOnce sync.Once

// registerStats publishes pebble gauges on the default prometheus
// registry. Called from Open; safe across reopen.
func registerStats() {
	statsOnce.Do(func() {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "chatsync_pebble_disk_usage_bytes",
			Help: "Total bytes used by the pebble store.",
		}, func() float64 { return float64(Stats().DiskUsageBytes) })
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "chatsync_pebble_wal_bytes",
			Help: "Size of the pebble write-ahead log.",
		}, func() float64 { return float64(Stats().WALBytes) })
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "chatsync_pebble_compaction_backlog_bytes",
			Help: "Estimated compaction debt in bytes.",
		}, func() float64 { return float64(Stats().CompactionBacklog) })
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "chatsync_pebble_l0_files",
			Help: "Number of files in level 0.",
		}, func() float64 { return float64(Stats().L0Files) })
	})
}
