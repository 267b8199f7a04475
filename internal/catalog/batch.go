package catalog

import (
	"github.com/kartikbazzad/gen1db/internal/errors"
	"github.com/kartikbazzad/gen1db/internal/types"
)

// OpKind identifies a CatalogOp's variant for JSON (de)serialization.
type OpKind string

const (
	OpCreateDatabase   OpKind = "create_database"
	OpCreateTable      OpKind = "create_table"
	OpAddColumns       OpKind = "add_columns"
	OpCreateLastCache  OpKind = "create_last_cache"
	OpDeleteLastCache  OpKind = "delete_last_cache"
)

// CatalogOp is one structural mutation. Exactly one of the op-specific
// fields is populated, selected by Kind — the same "kind + flat fields"
// shape the WAL's own binary records use, chosen so a CatalogOp round-trips
// through JSON (for the catalog file) and through the WAL's binary framing
// (via the generic payload encoding in internal/wal) without a second type.
type CatalogOp struct {
	Kind OpKind `json:"kind"`

	// OpCreateDatabase
	DbName string `json:"db_name,omitempty"`

	// OpCreateTable / OpAddColumns: Table/TableName identify the table;
	// Columns carries the new columns to append (for OpCreateTable, these
	// are the table's entire initial schema).
	TableName string      `json:"table_name,omitempty"`
	Table     types.TableId `json:"table,omitempty"`
	Columns   []ColumnDef `json:"columns,omitempty"`

	// OpCreateLastCache / OpDeleteLastCache
	LastCache *LastCacheDefinition `json:"last_cache,omitempty"`
	CacheName string               `json:"cache_name,omitempty"`
}

// CatalogBatch is a candidate set of ops scoped to one database, exactly as
// produced by WriteValidator.Validate and committed verbatim by
// QueryableBuffer.Notify. Db/DbName are always both populated once the
// originating database itself exists or is being created by Ops[0].
type CatalogBatch struct {
	Db     types.DbId `json:"db"`
	DbName string     `json:"db_name"`
	Ops    []CatalogOp `json:"ops"`
}

// IsEmpty reports whether the batch has no ops to apply — a validator that
// found no new columns/tables/databases returns an empty batch rather than
// nil so callers don't need a nil check as well as a length check.
func (b *CatalogBatch) IsEmpty() bool {
	return b == nil || len(b.Ops) == 0
}

// Apply commits every op in b in order, assigning IDs exactly as chosen by
// the op (the WAL already serialized the IDs the originating validator
// picked, so replay and live ingest both take this path — spec.md §4.1's
// "single code path applies catalog changes"). Apply returns whether the
// catalog's Sequence number changed, which the Persister uses to decide
// whether a new catalog file is worth writing (spec.md §4.5, §8 invariant 5).
func (c *Catalog) Apply(b *CatalogBatch) (changed bool, err error) {
	if b.IsEmpty() {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	db, ok := c.databases[b.Db]
	for _, op := range b.Ops {
		switch op.Kind {
		case OpCreateDatabase:
			if ok {
				continue // already applied (idempotent replay)
			}
			db = newDatabase(b.Db, b.DbName)
			c.databases[b.Db] = db
			c.databasesByName[b.DbName] = b.Db
			c.DbAlloc.SetNext(uint64(b.Db) + 1)
			c.Sequence++
			ok = true

		case OpCreateTable:
			if db == nil {
				return changed, errors.New(errors.KindCatalogUpdateError, "create_table before create_database")
			}
			if _, exists := db.Tables[op.Table]; exists {
				continue
			}
			t := newTable(op.Table, op.TableName)
			for _, col := range op.Columns {
				t.addColumn(col)
				c.ColumnAlloc.SetNext(uint64(col.ID) + 1)
			}
			db.addTable(t)
			c.TableAlloc.SetNext(uint64(op.Table) + 1)
			c.Sequence++

		case OpAddColumns:
			if db == nil {
				return changed, errors.New(errors.KindCatalogUpdateError, "add_columns before create_database")
			}
			t, exists := db.Tables[op.Table]
			if !exists {
				return changed, errors.New(errors.KindCatalogUpdateError, "add_columns on unknown table")
			}
			added := false
			for _, col := range op.Columns {
				if _, has := t.ColumnByName(col.Name); has {
					continue
				}
				t.addColumn(col)
				c.ColumnAlloc.SetNext(uint64(col.ID) + 1)
				added = true
			}
			if !added {
				continue // every column already existed: a pure no-op replay
			}
			c.Sequence++

		case OpCreateLastCache:
			if db == nil {
				return changed, errors.New(errors.KindCatalogUpdateError, "create_last_cache before create_database")
			}
			t, exists := db.Tables[op.Table]
			if !exists {
				return changed, errors.New(errors.KindCatalogUpdateError, "create_last_cache on unknown table")
			}
			if _, exists := t.LastCaches[op.LastCache.Name]; exists {
				continue
			}
			t.LastCaches[op.LastCache.Name] = op.LastCache
			c.Sequence++

		case OpDeleteLastCache:
			if db == nil {
				continue
			}
			t, exists := db.Tables[op.Table]
			if !exists {
				continue
			}
			if _, exists := t.LastCaches[op.CacheName]; !exists {
				continue
			}
			delete(t.LastCaches, op.CacheName)
			c.Sequence++

		default:
			return changed, errors.New(errors.KindCatalogUpdateError, "unknown catalog op kind: "+string(op.Kind))
		}
		changed = true
	}
	return changed, nil
}
