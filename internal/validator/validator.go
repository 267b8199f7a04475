// Package validator implements WriteValidator (spec.md §4.1): it takes raw
// line-protocol text plus the current Catalog and produces, without ever
// mutating the catalog itself, a CatalogBatch candidate and a per-table
// RowBatch of typed rows ready for the WAL and TableBuffer.
//
// Grounded on the teacher's internal/docdb/validation.go — a read-then-diff
// pass against a versioned schema map that returns both the accepted
// documents and a candidate set of schema ops, never applying either.
package validator

import (
	"fmt"
	"time"

	"github.com/kartikbazzad/gen1db/internal/catalog"
	"github.com/kartikbazzad/gen1db/internal/errors"
	"github.com/kartikbazzad/gen1db/internal/lineprotocol"
	"github.com/kartikbazzad/gen1db/internal/types"
)

// LineError reports one rejected input line, either a parse failure or a
// catalog-conflict failure (e.g. a field reusing a tag's name at a different
// type), keyed by its 0-based line index for accept_partial reporting.
type LineError struct {
	LineIndex int
	Reason    string
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.LineIndex, e.Reason)
}

// Counts summarizes one Validate call for metrics/logging.
type Counts struct {
	LinesParsed   int
	LinesAccepted int
	LinesRejected int
	RowsByTable   map[types.TableId]int
}

// Result is everything Validate produces. CatalogUpdates is nil when no new
// database/table/column/was introduced; it must be applied (via
// Catalog.Apply) by the same caller that appends Rows to the WAL, in the
// same WAL record, so a crash between the two never happens (spec.md §4.1
// invariant: "catalog batch and row batch are always durable together").
type Result struct {
	CatalogUpdates *catalog.CatalogBatch
	Rows           types.RowBatch
	Errors         []LineError
	Counts         Counts
}

// Validate parses lpText against db (by name) and the catalog's current
// schema. ingestTime is the default timestamp (ns) for lines that omit one;
// gen1Duration is the bucket width every row's ChunkTime is floored to
// (spec.md §4.1: "chunk_time = floor(timestamp/gen1_duration)"). When
// acceptPartial is false, any line error aborts the whole call (no rows, no
// catalog updates); when true, valid lines are still accepted and errors are
// reported alongside them, matching spec.md §4.1's accept_partial flag.
func Validate(
	cat *catalog.Catalog,
	dbName string,
	lpText string,
	ingestTime int64,
	gen1Duration time.Duration,
	precision lineprotocol.Precision,
	acceptPartial bool,
) (*Result, error) {
	lines, parseErrs := lineprotocol.Parse(lpText, ingestTime, precision)

	res := &Result{
		Rows:   types.RowBatch{Rows: make(map[types.TableId][]types.Row)},
		Counts: Counts{RowsByTable: make(map[types.TableId]int)},
	}
	for _, pe := range parseErrs {
		res.Errors = append(res.Errors, LineError{LineIndex: pe.LineIndex, Reason: pe.Reason})
	}
	res.Counts.LinesParsed = len(lines) + len(parseErrs)

	if len(parseErrs) > 0 && !acceptPartial {
		return res, errors.New(errors.KindParseError, fmt.Sprintf("%d of %d lines failed to parse", len(parseErrs), res.Counts.LinesParsed))
	}

	db, dbExists := cat.DatabaseByName(dbName)
	var dbID types.DbId
	var batch *catalog.CatalogBatch
	if dbExists {
		dbID = db.ID
	} else {
		dbID = types.DbId(cat.DbAlloc.Peek())
		batch = &catalog.CatalogBatch{Db: dbID, DbName: dbName}
		batch.Ops = append(batch.Ops, catalog.CatalogOp{Kind: catalog.OpCreateDatabase, DbName: dbName})
	}

	// tableState tracks, for tables touched in this call only, the columns
	// known so far (existing catalog columns plus any pending new ones),
	// so repeated lines for the same new measurement don't request the
	// same column twice within one Validate call.
	type tableState struct {
		id            types.TableId
		isNew         bool
		columnsByName map[string]catalog.ColumnDef
		pendingCols   []catalog.ColumnDef
		opIndex       int // index into batch.Ops of this table's create/add-columns op, -1 if none yet
	}
	tables := make(map[string]*tableState)

	ensureBatch := func() *catalog.CatalogBatch {
		if batch == nil {
			batch = &catalog.CatalogBatch{Db: dbID, DbName: dbName}
		}
		return batch
	}

	// nextTableID/nextColumnID are local watermarks seeded from the
	// allocators' current Peek() and advanced as new tables/columns are
	// assigned within this single Validate call. TableId and ColumnId are
	// process-wide monotonic (spec.md §3), so two distinct new tables (or
	// two distinct new columns across different tables) in the same batch
	// of lines must never both be handed the same allocator value.
	nextTableID := types.TableId(cat.TableAlloc.Peek())
	nextColumnID := types.ColumnId(cat.ColumnAlloc.Peek())

	// lineIdx numbers each parsed line the way lineprotocol numbers its
	// ParseErrors, skipping the indices taken by lines that failed to parse.
	failedIdx := make(map[int]bool, len(parseErrs))
	for _, pe := range parseErrs {
		failedIdx[pe.LineIndex] = true
	}
	lineIdx := -1
	for _, line := range lines {
		lineIdx++
		for failedIdx[lineIdx] {
			lineIdx++
		}
		ts, ok := tables[line.Measurement]
		if !ok {
			ts = &tableState{opIndex: -1, columnsByName: make(map[string]catalog.ColumnDef)}
			if dbExists {
				if tid, exists := db.TableByName(line.Measurement); exists {
					t := db.Tables[tid]
					ts.id = tid
					for _, c := range t.Columns {
						ts.columnsByName[c.Name] = c
					}
				} else {
					ts.isNew = true
				}
			} else {
				ts.isNew = true
			}
			tables[line.Measurement] = ts
		}

		row := types.Row{Timestamp: line.Timestamp, ChunkTime: types.ChunkTimeFor(line.Timestamp, gen1Duration)}
		row.Values = make(map[types.ColumnId]types.FieldValue, len(line.Tags)+len(line.Fields))

		rejected := false
		assign := func(name string, colType types.ColumnType, fv types.FieldValue) {
			existing, known := ts.columnsByName[name]
			if known {
				if existing.Type != colType {
					res.Errors = append(res.Errors, LineError{lineIdx, fmt.Sprintf("column %q: expected %s, got %s", name, existing.Type, colType)})
					rejected = true
					return
				}
				row.Values[existing.ID] = fv
				return
			}
			col := catalog.ColumnDef{ID: nextColumnID, Name: name, Type: colType}
			nextColumnID++
			ts.columnsByName[name] = col
			ts.pendingCols = append(ts.pendingCols, col)
			row.Values[col.ID] = fv
		}

		for _, tag := range line.Tags {
			assign(tag.Key, types.ColumnTypeTag, types.FieldValue{Type: types.ColumnTypeTag, String: tag.Value})
		}
		for _, f := range line.Fields {
			var colType types.ColumnType
			var fv types.FieldValue
			switch f.Value.Kind {
			case lineprotocol.FieldInt:
				colType, fv = types.ColumnTypeInt64, types.FieldValue{Type: types.ColumnTypeInt64, Int64: f.Value.Int}
			case lineprotocol.FieldUint:
				colType, fv = types.ColumnTypeUint64, types.FieldValue{Type: types.ColumnTypeUint64, Uint64: f.Value.Uint}
			case lineprotocol.FieldFloat:
				colType, fv = types.ColumnTypeFloat64, types.FieldValue{Type: types.ColumnTypeFloat64, Float64: f.Value.Float}
			case lineprotocol.FieldString:
				colType, fv = types.ColumnTypeString, types.FieldValue{Type: types.ColumnTypeString, String: f.Value.String}
			case lineprotocol.FieldBool:
				colType, fv = types.ColumnTypeBool, types.FieldValue{Type: types.ColumnTypeBool, Bool: f.Value.Bool}
			}
			assign(f.Key, colType, fv)
		}

		if rejected {
			res.Counts.LinesRejected++
			if !acceptPartial {
				return res, errors.New(errors.KindColumnTypeMismatch, "column type conflict, aborting (accept_partial=false)")
			}
			continue
		}

		if ts.isNew && ts.opIndex < 0 {
			ts.id = nextTableID
			nextTableID++
			b := ensureBatch()
			ts.opIndex = len(b.Ops)
			b.Ops = append(b.Ops, catalog.CatalogOp{Kind: catalog.OpCreateTable, TableName: line.Measurement, Table: ts.id})
		}
		row.Table = ts.id
		res.Rows.Rows[ts.id] = append(res.Rows.Rows[ts.id], row)
		res.Counts.LinesAccepted++
		res.Counts.RowsByTable[ts.id]++
	}

	for _, ts := range tables {
		if len(ts.pendingCols) == 0 {
			continue
		}
		b := ensureBatch()
		if ts.isNew {
			b.Ops[ts.opIndex].Columns = append(b.Ops[ts.opIndex].Columns, ts.pendingCols...)
		} else {
			b.Ops = append(b.Ops, catalog.CatalogOp{Kind: catalog.OpAddColumns, Table: ts.id, Columns: ts.pendingCols})
		}
	}

	res.Rows.Db = dbID
	res.CatalogUpdates = batch
	return res, nil
}
