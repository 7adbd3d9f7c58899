package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// BlocksProcessed counts per-block outcomes: "first_sighting",
	// "duplicate" or "failed".
	BlocksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "carvault_blocks_processed_total", Help: "Blocks processed by outcome"},
		[]string{"outcome"},
	)

	// ArchivesIngested counts per-archive outcomes: "completed", "skipped"
	// or "failed".
	ArchivesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "carvault_archives_ingested_total", Help: "Archive ingestions by outcome"},
		[]string{"outcome"},
	)

	// ArchiveDuration observes wall time per completed archive.
	ArchiveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "carvault_archive_duration_seconds", Help: "Archive ingestion latency", Buckets: prometheus.DefBuckets},
	)
)

func init() {
	prometheus.MustRegister(BlocksProcessed, ArchivesIngested, ArchiveDuration)
}
