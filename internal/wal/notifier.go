package wal

// FileNotifier is implemented once by QueryableBuffer (spec.md §4.3) so that
// both the live-ingest flush loop and the startup replay path can apply a
// sealed WAL file's records through a single code path: sequence rows into
// TableBuffers and commit the accompanying CatalogBatch.
//
// Grounded on the teacher's internal/wal/rotator.go RotationCallback — a
// single-method hook invoked whenever a sealed segment becomes durable.
type FileNotifier interface {
	// Notify applies every record in a freshly sealed WAL file. path is the
	// object-store key the file was (or, for replay, previously was)
	// uploaded at.
	Notify(path string, records []*Record) error

	// NotifyAndSnapshot is Notify followed by triggering (or counting
	// towards) a snapshot, used once every config.WALConfig.SnapshotSize
	// sealed files per spec.md §4.5.
	NotifyAndSnapshot(path string, records []*Record) error
}
