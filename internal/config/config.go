// Package config holds the plain Go structs that size and time every
// component in the core. There is no YAML/env loader here: configuration
// loading is named an external collaborator in the spec this module
// implements, so wiring a config file format is left to the embedding
// process (e.g. cmd/gen1db).
package config

import "time"

// FlushMode selects when the WAL seals its in-memory buffer into an
// immutable file and uploads it, in the teacher's FsyncMode idiom adapted
// from local fsync to an object-store upload.
type FlushMode int

const (
	// FlushAlways uploads a one-record WAL file per write; highest
	// durability latency, no batching.
	FlushAlways FlushMode = iota
	// FlushBatched uploads when MaxWriteBufferSize or FlushInterval is
	// reached, whichever comes first. Default.
	FlushBatched
	// FlushOnInterval uploads strictly on the FlushInterval ticker,
	// regardless of buffered size.
	FlushOnInterval
	// FlushNone never uploads automatically; only an explicit Sync call
	// flushes. For benchmarks/tests only — never durable otherwise.
	FlushNone
)

// WALConfig matches spec.md §6's WalConfig exactly.
type WALConfig struct {
	// Gen1Duration is the time-bucket width rows are partitioned by.
	Gen1Duration time.Duration
	// MaxWriteBufferSize is the backpressure threshold, in bytes, for the
	// WAL's in-memory buffer.
	MaxWriteBufferSize uint64
	// FlushInterval is the period of the background flush loop.
	FlushInterval time.Duration
	// SnapshotSize is how many flushed WAL files trigger a snapshot.
	SnapshotSize int
	// Mode selects the group-commit strategy; see FlushMode.
	Mode FlushMode
}

// DefaultWALConfig mirrors the teacher's DefaultConfig() shape: small,
// conservative numbers suitable for a single-node dev/test run.
func DefaultWALConfig() WALConfig {
	return WALConfig{
		Gen1Duration:       time.Minute,
		MaxWriteBufferSize: 16 << 20, // 16MiB
		FlushInterval:      time.Second,
		SnapshotSize:       600, // ~10 minutes of 1m WAL files at one-per-flush-interval
		Mode:               FlushBatched,
	}
}

// Config is the top-level configuration for a running core instance.
type Config struct {
	// HostID identifies this node in the object-store path prefix
	// ("/{host}/...") — see spec.md §6.
	HostID string
	// DataDir is used only by the filesystem object-store provider for
	// local/dev/test runs; a real deployment would point objectstore at a
	// durable bucket instead.
	DataDir string

	WAL WALConfig

	// N is the number of most-recent snapshots to load on startup while
	// searching for the latest one (influxdb3's N_SNAPSHOTS_TO_LOAD_ON_START).
	SnapshotsToLoadOnStart int

	// LastCacheDefaultTTL is the TTL applied to a last-cache entry when the
	// cache definition does not specify one.
	LastCacheDefaultTTL time.Duration
	// LastCacheDefaultCount is the default "last N" retained per key.
	LastCacheDefaultCount int
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:                "./data",
		WAL:                    DefaultWALConfig(),
		SnapshotsToLoadOnStart: 1000,
		LastCacheDefaultTTL:    4 * time.Hour,
		LastCacheDefaultCount:  1,
	}
}
