// Package metrics wires the core's counters and histograms to
// prometheus/client_golang, the metrics library the rest of the retrieved
// corpus (ChuLiYu-raft-recovery, mbiondo-logAnalyzer) reaches for rather
// than a hand-rolled text exporter.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every Prometheus collector the core registers. A nil
// *Metrics is valid everywhere it's threaded through: every method is a
// no-op on a nil receiver, so components don't need a "metrics enabled"
// branch at every call site.
type Metrics struct {
	WritesTotal       *prometheus.CounterVec
	LinesRejected     *prometheus.CounterVec
	WalFlushTotal      prometheus.Counter
	WalFlushSeconds    prometheus.Histogram
	WalBufferedBytes    prometheus.Gauge
	SnapshotsTotal      prometheus.Counter
	SnapshotSeconds     prometheus.Histogram
	PersistedFilesTotal prometheus.Counter
	CatalogFilesTotal   prometheus.Counter
	TableBufferRows     *prometheus.GaugeVec
	LastCacheHits       prometheus.Counter
	LastCacheMisses     prometheus.Counter
}

// New registers a fresh set of collectors against reg. Passing a
// prometheus.NewRegistry() per-test keeps tests from colliding on the
// global default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gen1db_writes_total",
			Help: "Total write_lp calls by database and result.",
		}, []string{"db", "result"}),
		LinesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gen1db_lines_rejected_total",
			Help: "Total line-protocol lines rejected by error kind.",
		}, []string{"kind"}),
		WalFlushTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gen1db_wal_flush_total",
			Help: "Total WAL flush cycles that sealed and uploaded a file.",
		}),
		WalFlushSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gen1db_wal_flush_seconds",
			Help:    "Latency of a WAL flush cycle (seal + upload + notify).",
			Buckets: prometheus.DefBuckets,
		}),
		WalBufferedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gen1db_wal_buffered_bytes",
			Help: "Current size of the in-memory WAL buffer awaiting flush.",
		}),
		SnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gen1db_snapshots_total",
			Help: "Total snapshots completed.",
		}),
		SnapshotSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gen1db_snapshot_seconds",
			Help:    "Latency of a full snapshot (drain + persist + manifest).",
			Buckets: prometheus.DefBuckets,
		}),
		PersistedFilesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gen1db_persisted_files_total",
			Help: "Total parquet files registered in the persisted-files index.",
		}),
		CatalogFilesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gen1db_catalog_files_total",
			Help: "Total catalog snapshot files written (only on sequence change).",
		}),
		TableBufferRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gen1db_table_buffer_rows",
			Help: "Rows currently buffered in memory per table.",
		}, []string{"db", "table"}),
		LastCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gen1db_last_cache_hits_total",
			Help: "Total last-cache reads that found a matching key.",
		}),
		LastCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gen1db_last_cache_misses_total",
			Help: "Total last-cache reads that found no matching key.",
		}),
	}
	reg.MustRegister(
		m.WritesTotal, m.LinesRejected, m.WalFlushTotal, m.WalFlushSeconds,
		m.WalBufferedBytes, m.SnapshotsTotal, m.SnapshotSeconds,
		m.PersistedFilesTotal, m.CatalogFilesTotal, m.TableBufferRows,
		m.LastCacheHits, m.LastCacheMisses,
	)
	return m
}

func (m *Metrics) ObserveWrite(db, result string) {
	if m == nil {
		return
	}
	m.WritesTotal.WithLabelValues(db, result).Inc()
}

func (m *Metrics) ObserveRejectedLine(kind string) {
	if m == nil {
		return
	}
	m.LinesRejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveTableBufferRows(db, table string, rows float64) {
	if m == nil {
		return
	}
	m.TableBufferRows.WithLabelValues(db, table).Set(rows)
}
