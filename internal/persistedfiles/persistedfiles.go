// Package persistedfiles is the in-memory index of parquet files already
// written to object storage (spec.md §4.4's PersistedFiles), keyed by
// (DbId, TableId) so queries can find every file relevant to a table
// without listing object storage on every read.
//
// Grounded on the teacher's internal/docdb/compaction.go segment registry —
// a concurrent-map-guarded index of immutable on-disk segments, rebuilt from
// a manifest on startup and appended to as new segments land.
package persistedfiles

import (
	"sort"
	"sync"

	"github.com/kartikbazzad/gen1db/internal/types"
)

// File describes one immutable parquet file already durable in object
// storage.
type File struct {
	ID        types.ParquetFileId `json:"id"`
	Path      string              `json:"path"`
	SizeBytes uint64              `json:"size_bytes"`
	RowCount  uint64              `json:"row_count"`
	ChunkTime int64               `json:"chunk_time"`
	MinTime   int64               `json:"min_time"`
	MaxTime   int64               `json:"max_time"`
}

type tableKey struct {
	Db    types.DbId
	Table types.TableId
}

// Index is the process-wide registry of persisted files, safe for
// concurrent use by the flush path (adding files) and queries (listing
// them).
type Index struct {
	mu    sync.RWMutex
	files map[tableKey][]File
}

func New() *Index {
	return &Index{files: make(map[tableKey][]File)}
}

// Add registers a newly persisted file under (db, table).
func (idx *Index) Add(db types.DbId, table types.TableId, f File) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	k := tableKey{db, table}
	idx.files[k] = append(idx.files[k], f)
}

// List returns every file registered for (db, table), ordered by ChunkTime
// ascending (then by ID, for files sharing one chunk_time bucket).
func (idx *Index) List(db types.DbId, table types.TableId) []File {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	src := idx.files[tableKey{db, table}]
	out := make([]File, len(src))
	copy(out, src)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChunkTime != out[j].ChunkTime {
			return out[i].ChunkTime < out[j].ChunkTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Count reports how many files are registered across every table, for
// metrics/admin status.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := 0
	for _, files := range idx.files {
		n += len(files)
	}
	return n
}

// LoadAll replaces the entire index contents, used when restoring from a
// snapshot manifest at startup.
func (idx *Index) LoadAll(entries map[types.DbId]map[types.TableId][]File) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.files = make(map[tableKey][]File)
	for db, tables := range entries {
		for table, files := range tables {
			idx.files[tableKey{db, table}] = append([]File{}, files...)
		}
	}
}

// SnapshotAll returns every entry for inclusion in a manifest write.
func (idx *Index) SnapshotAll() map[types.DbId]map[types.TableId][]File {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[types.DbId]map[types.TableId][]File)
	for k, files := range idx.files {
		tbls, ok := out[k.Db]
		if !ok {
			tbls = make(map[types.TableId][]File)
			out[k.Db] = tbls
		}
		tbls[k.Table] = append([]File{}, files...)
	}
	return out
}
