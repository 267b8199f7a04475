// Package objectstore provides the blob put/get surface the core treats as
// an external collaborator (spec.md §1), plus the deterministic path
// layout of spec.md §6. It is a thin shim over github.com/thanos-io/objstore,
// the Bucket abstraction used for exactly this purpose in the wider corpus
// (polarsignals-arcticdb and the projects built on Thanos/Cortex).
package objectstore

import (
	"fmt"
	"strings"

	"github.com/kartikbazzad/gen1db/internal/types"
)

// CatalogPath returns "{host}/catalog/{sequence}.json", sequence zero-padded
// to 20 digits.
func CatalogPath(host string, sequence uint64) string {
	return fmt.Sprintf("%s/catalog/%020d.json", host, sequence)
}

// WALPath returns "{host}/wal/{sequence}.wal", sequence zero-padded to 20
// digits.
func WALPath(host string, sequence uint64) string {
	return fmt.Sprintf("%s/wal/%020d.wal", host, sequence)
}

// SnapshotPath returns "{host}/snapshots/{sequence}.json", sequence
// zero-padded to 20 digits.
func SnapshotPath(host string, sequence uint64) string {
	return fmt.Sprintf("%s/snapshots/%020d.json", host, sequence)
}

// ParquetPath returns "{host}/db/{db}/tbl/{tbl}/{chunk_time}/{file_id}.parquet".
func ParquetPath(host string, db types.DbId, tbl types.TableId, chunkTime int64, file types.ParquetFileId) string {
	return fmt.Sprintf("%s/db/%d/tbl/%d/%d/%d.parquet", host, db, tbl, chunkTime, file)
}

// WALDir returns the directory prefix under which WAL files for host live,
// used by Iter-based directory scans during replay.
func WALDir(host string) string {
	return host + "/wal/"
}

// CatalogDir returns the directory prefix under which catalog snapshots for
// host live.
func CatalogDir(host string) string {
	return host + "/catalog/"
}

// SnapshotDir returns the directory prefix under which manifest snapshots
// for host live.
func SnapshotDir(host string) string {
	return host + "/snapshots/"
}

// TrimDir strips a trailing slash, matching how objstore.Bucket.Iter keys
// are reported (without a leading slash, relative to the bucket root).
func TrimDir(s string) string {
	return strings.TrimSuffix(s, "/")
}
