// Package query provides the read-side chunk model QueryableBuffer returns
// from get_table_chunks (spec.md §4.3), and a chunk-order merge over it: a total
// ordering over in-memory and persisted chunks where, at equal chunk_time,
// in-memory chunks always sort before persisted ones (the persisted copy of
// a bucket is always older information than what's still buffered).
//
// Grounded on the teacher's internal/query/types.go + merge.go.
package query

import (
	"github.com/kartikbazzad/gen1db/internal/types"
)

// Source distinguishes where a Chunk's rows live, used only to break
// chunk_time ties in Order.
type Source int

const (
	SourceBuffer Source = iota // in-memory TableBuffer partition — sorts first
	SourcePersisted
)

// Chunk is one unit of query input: either a live ColumnarPartition's rows
// or a persisted parquet file's rows, already decoded.
type Chunk struct {
	Source    Source
	ChunkTime int64
	MinTime   int64
	MaxTime   int64
	Rows      []types.Row
}

// Order returns the total order key for c: chunk_time first, Source second
// (buffer before persisted), satisfying spec.md §4.3's chunk_order
// invariant.
func Order(c Chunk) (int64, Source) {
	return c.ChunkTime, c.Source
}

// Less reports whether a sorts before b under chunk_order.
func Less(a, b Chunk) bool {
	at, asrc := Order(a)
	bt, bsrc := Order(b)
	if at != bt {
		return at < bt
	}
	return asrc < bsrc
}

// Filter narrows a Chunk set by time range; rows within a kept chunk are not
// filtered.
type Filter struct {
	MinTime *int64
	MaxTime *int64
}

// Matches reports whether chunk overlaps the filter's time range.
func (f *Filter) Matches(c Chunk) bool {
	if f == nil {
		return true
	}
	if f.MinTime != nil && c.MaxTime < *f.MinTime {
		return false
	}
	if f.MaxTime != nil && c.MinTime > *f.MaxTime {
		return false
	}
	return true
}

// Projection selects a subset of columns from each row; nil means "all
// columns".
type Projection struct {
	Columns []types.ColumnId
}

// Apply returns row restricted to p's columns, or row unchanged if p is nil.
func (p *Projection) Apply(row types.Row) types.Row {
	if p == nil || p.Columns == nil {
		return row
	}
	out := types.Row{Table: row.Table, Timestamp: row.Timestamp, ChunkTime: row.ChunkTime}
	out.Values = make(map[types.ColumnId]types.FieldValue, len(p.Columns))
	for _, id := range p.Columns {
		if v, ok := row.Values[id]; ok {
			out.Values[id] = v
		}
	}
	return out
}

// OrderSpec selects a single-column sort applied within a chunk's rows,
// distinct from the cross-chunk chunk_order total ordering above — this one
// orders the ROWS a caller ultimately sees, e.g. "order by time".
type OrderSpec struct {
	Column types.ColumnId
	Asc    bool
	// ByTimestamp orders by types.Row.Timestamp instead of a Values column
	// (the common case: every query orders by time unless told otherwise).
	ByTimestamp bool
}
