package query

import (
	"container/heap"

	"github.com/kartikbazzad/gen1db/internal/types"
)

// RowStream is a lazy iterator over one Chunk's rows, used so MergeChunks
// doesn't need every chunk fully materialized in memory at once (the
// teacher's merge.go RowStream abstraction, unchanged in shape).
type RowStream interface {
	// Next returns the next row and true, or the zero Row and false when
	// exhausted.
	Next() (types.Row, bool)
}

// sliceStream adapts an already-decoded []types.Row (the only source this
// spec needs today — both buffer partitions and decoded parquet files are
// fully materialized) to RowStream.
type sliceStream struct {
	rows []types.Row
	pos  int
}

func NewSliceStream(rows []types.Row) RowStream {
	return &sliceStream{rows: rows}
}

func (s *sliceStream) Next() (types.Row, bool) {
	if s.pos >= len(s.rows) {
		return types.Row{}, false
	}
	row := s.rows[s.pos]
	s.pos++
	return row, true
}

// MergeChunks orders chunks by chunk_order (Less) and streams each chunk's
// rows in turn, bounded by limit (0 = unbounded). Because chunk_order is
// coarser than a row-level sort, this is
// "merge chunks in chunk_order, then emit every row of each chunk in turn" —
// not a full row-level k-way merge — which matches spec.md §4.3's model of
// chunks as the unit of ordering, with any finer row-level ORDER BY applied
// by the caller afterward via OrderSpec.
func MergeChunks(chunks []Chunk, filter *Filter, projection *Projection, limit int) []types.Row {
	ordered := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if filter.Matches(c) {
			ordered = append(ordered, c)
		}
	}
	h := &chunkHeap{chunks: ordered}
	heap.Init(h)

	var out []types.Row
	for h.Len() > 0 {
		c := heap.Pop(h).(Chunk)
		stream := NewSliceStream(c.Rows)
		for {
			row, ok := stream.Next()
			if !ok {
				break
			}
			out = append(out, projection.Apply(row))
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// chunkHeap orders Chunks by chunk_order so MergeChunks always drains the
// earliest chunk first without a full upfront sort (useful once Chunk
// sources become true streams rather than materialized slices).
type chunkHeap struct {
	chunks []Chunk
}

func (h *chunkHeap) Len() int            { return len(h.chunks) }
func (h *chunkHeap) Less(i, j int) bool  { return Less(h.chunks[i], h.chunks[j]) }
func (h *chunkHeap) Swap(i, j int)       { h.chunks[i], h.chunks[j] = h.chunks[j], h.chunks[i] }
func (h *chunkHeap) Push(x interface{}) { h.chunks = append(h.chunks, x.(Chunk)) }
func (h *chunkHeap) Pop() interface{} {
	n := len(h.chunks)
	c := h.chunks[n-1]
	h.chunks = h.chunks[:n-1]
	return c
}

// SortRows sorts rows in place per spec with a stable insertion sort (callers
// only ever request a single-column order today).
func SortRows(rows []types.Row, order *OrderSpec) {
	if order == nil {
		return
	}
	less := func(i, j int) bool {
		var a, b types.FieldValue
		var at, bt int64
		if order.ByTimestamp {
			at, bt = rows[i].Timestamp, rows[j].Timestamp
		} else {
			a = rows[i].Values[order.Column]
			b = rows[j].Values[order.Column]
			at, bt = scalarAsInt64(a), scalarAsInt64(b)
		}
		if order.Asc {
			return at < bt
		}
		return at > bt
	}
	insertionSort(rows, less)
}

func scalarAsInt64(v types.FieldValue) int64 {
	switch v.Type {
	case types.ColumnTypeInt64, types.ColumnTypeTime:
		return v.Int64
	case types.ColumnTypeUint64:
		return int64(v.Uint64)
	case types.ColumnTypeFloat64:
		return int64(v.Float64)
	default:
		return 0
	}
}

// insertionSort is a stable O(n^2) sort adequate for one table buffer's
// worth of rows between snapshots; a full query engine would push ordering
// down to the columnar/parquet layer instead.
func insertionSort(rows []types.Row, less func(i, j int) bool) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}
