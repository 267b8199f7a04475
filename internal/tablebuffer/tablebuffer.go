// Package tablebuffer implements the in-memory, chunk_time-bucketed row
// buffer described in spec.md §4.4 (the "gen1" buffer): rows accepted since
// the last snapshot, grouped into ColumnarPartitions keyed by chunk_time,
// in the insertion order they arrived.
//
// Grounded on the teacher's internal/docdb/partition.go (a sharded,
// insertion-ordered in-memory row store) generalized from one shard key to
// the time-bucket key this spec uses.
package tablebuffer

import (
	"sort"
	"sync"

	"github.com/kartikbazzad/gen1db/internal/types"
)

// ColumnarPartition holds every row observed for one chunk_time bucket, in
// append order. MinTime/MaxTime track the observed timestamp range so
// queries can prune partitions without scanning rows.
type ColumnarPartition struct {
	ChunkTime int64
	Rows      []types.Row
	MinTime   int64
	MaxTime   int64
}

func newPartition(chunkTime int64) *ColumnarPartition {
	return &ColumnarPartition{ChunkTime: chunkTime, MinTime: 0, MaxTime: 0}
}

func (p *ColumnarPartition) append(row types.Row) {
	if len(p.Rows) == 0 || row.Timestamp < p.MinTime {
		p.MinTime = row.Timestamp
	}
	if len(p.Rows) == 0 || row.Timestamp > p.MaxTime {
		p.MaxTime = row.Timestamp
	}
	p.Rows = append(p.Rows, row)
}

// TableBuffer is the per-(DbId,TableId) buffer of not-yet-persisted rows.
// QueryableBuffer owns one TableBuffer per table; appends and snapshot reads
// are synchronized by TableBuffer's own RWMutex, so concurrent readers share
// the lock and an append waits for in-progress reads to finish.
type TableBuffer struct {
	mu         sync.RWMutex
	partitions map[int64]*ColumnarPartition
}

func New() *TableBuffer {
	return &TableBuffer{partitions: make(map[int64]*ColumnarPartition)}
}

// Append adds row to its chunk_time partition, creating the partition if
// this is the first row seen for that bucket.
func (b *TableBuffer) Append(row types.Row) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.partitions[row.ChunkTime]
	if !ok {
		p = newPartition(row.ChunkTime)
		b.partitions[row.ChunkTime] = p
	}
	p.append(row)
}

// AppendBatch appends every row in rows, each to its own chunk_time bucket.
func (b *TableBuffer) AppendBatch(rows []types.Row) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, row := range rows {
		p, ok := b.partitions[row.ChunkTime]
		if !ok {
			p = newPartition(row.ChunkTime)
			b.partitions[row.ChunkTime] = p
		}
		p.append(row)
	}
}

// SnapshotChunks returns every partition's rows as an independent copy,
// ordered by ChunkTime ascending, for a query or a persist pass to iterate
// without holding TableBuffer's lock. The returned ColumnarPartitions are
// read-only views: mutating their Rows slice does not affect the buffer.
func (b *TableBuffer) SnapshotChunks() []*ColumnarPartition {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*ColumnarPartition, 0, len(b.partitions))
	for _, p := range b.partitions {
		cp := &ColumnarPartition{ChunkTime: p.ChunkTime, MinTime: p.MinTime, MaxTime: p.MaxTime}
		cp.Rows = append(cp.Rows, p.Rows...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkTime < out[j].ChunkTime })
	return out
}

// Drain removes and returns every partition with ChunkTime < olderThanKey,
// in ascending ChunkTime order — the set a snapshot persists to parquet and
// evicts from memory (spec.md §4.4/§4.5). Partitions with ChunkTime >=
// olderThanKey are left untouched.
func (b *TableBuffer) Drain(olderThanKey int64) []*ColumnarPartition {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*ColumnarPartition
	for key, p := range b.partitions {
		if key < olderThanKey {
			out = append(out, p)
			delete(b.partitions, key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkTime < out[j].ChunkTime })
	return out
}

// Len reports the number of distinct chunk_time partitions currently held.
func (b *TableBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.partitions)
}

// RowCount sums the row count across every partition.
func (b *TableBuffer) RowCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, p := range b.partitions {
		n += len(p.Rows)
	}
	return n
}
