package catalog

import (
	"encoding/json"
	"testing"

	"github.com/kartikbazzad/gen1db/internal/types"
)

func TestApplyCreateDatabaseThenTableThenColumns(t *testing.T) {
	c := New()
	batch := &CatalogBatch{
		Db:     0,
		DbName: "mydb",
		Ops: []CatalogOp{
			{Kind: OpCreateDatabase, DbName: "mydb"},
			{Kind: OpCreateTable, TableName: "cpu", Table: 0, Columns: []ColumnDef{
				{ID: 0, Name: "host", Type: types.ColumnTypeTag},
			}},
			{Kind: OpAddColumns, Table: 0, Columns: []ColumnDef{
				{ID: 1, Name: "usage", Type: types.ColumnTypeFloat64},
			}},
		},
	}

	changed, err := c.Apply(batch)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !changed {
		t.Fatalf("expected changed=true")
	}
	if c.Sequence != 3 {
		t.Fatalf("expected sequence 3 after 3 structural ops, got %d", c.Sequence)
	}

	table := c.Table(0, 0)
	if table == nil {
		t.Fatalf("expected table to exist")
	}
	if len(table.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(table.Columns))
	}
	if id, ok := table.ColumnByName("usage"); !ok || id != 1 {
		t.Fatalf("expected usage column id 1, got %d ok=%v", id, ok)
	}
}

func TestApplyIsIdempotentOnReplay(t *testing.T) {
	c := New()
	batch := &CatalogBatch{Db: 0, DbName: "mydb", Ops: []CatalogOp{{Kind: OpCreateDatabase, DbName: "mydb"}}}
	if _, err := c.Apply(batch); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	seqAfterFirst := c.Sequence

	changed, err := c.Apply(batch)
	if err != nil {
		t.Fatalf("replay apply: %v", err)
	}
	if changed {
		t.Fatalf("expected a replayed create_database to be a no-op")
	}
	if c.Sequence != seqAfterFirst {
		t.Fatalf("expected sequence unchanged on replay, got %d want %d", c.Sequence, seqAfterFirst)
	}
}

func TestApplyEmptyBatchIsNoOp(t *testing.T) {
	c := New()
	changed, err := c.Apply(&CatalogBatch{})
	if err != nil || changed {
		t.Fatalf("expected no-op for an empty batch, got changed=%v err=%v", changed, err)
	}
	var nilBatch *CatalogBatch
	changed, err = c.Apply(nilBatch)
	if err != nil || changed {
		t.Fatalf("expected a nil batch to be a no-op, got changed=%v err=%v", changed, err)
	}
}

func TestApplyAddColumnsOnUnknownTableErrors(t *testing.T) {
	c := New()
	batch := &CatalogBatch{Db: 0, DbName: "mydb", Ops: []CatalogOp{
		{Kind: OpCreateDatabase, DbName: "mydb"},
		{Kind: OpAddColumns, Table: 99, Columns: []ColumnDef{{ID: 0, Name: "x", Type: types.ColumnTypeFloat64}}},
	}}
	if _, err := c.Apply(batch); err == nil {
		t.Fatalf("expected an error adding columns to a table that doesn't exist")
	}
}

func TestApplyCreateTableBeforeCreateDatabaseErrors(t *testing.T) {
	c := New()
	batch := &CatalogBatch{Db: 5, Ops: []CatalogOp{
		{Kind: OpCreateTable, TableName: "cpu", Table: 0},
	}}
	if _, err := c.Apply(batch); err == nil {
		t.Fatalf("expected an error creating a table before the database exists")
	}
}

func TestApplyAddColumnsSkipsExistingNamesKeepsNewOnes(t *testing.T) {
	c := New()
	batch := &CatalogBatch{Db: 0, DbName: "mydb", Ops: []CatalogOp{
		{Kind: OpCreateDatabase, DbName: "mydb"},
		{Kind: OpCreateTable, TableName: "cpu", Table: 0, Columns: []ColumnDef{{ID: 0, Name: "usage", Type: types.ColumnTypeFloat64}}},
	}}
	if _, err := c.Apply(batch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	seq := c.Sequence
	addBatch := &CatalogBatch{Db: 0, Ops: []CatalogOp{
		{Kind: OpAddColumns, Table: 0, Columns: []ColumnDef{
			{ID: 0, Name: "usage", Type: types.ColumnTypeFloat64}, // already exists, skipped
			{ID: 1, Name: "idle", Type: types.ColumnTypeFloat64}, // new
		}},
	}}
	changed, err := c.Apply(addBatch)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !changed || c.Sequence != seq+1 {
		t.Fatalf("expected exactly one sequence bump for the one genuinely new column, got changed=%v seq=%d", changed, c.Sequence)
	}
	table := c.Table(0, 0)
	if len(table.Columns) != 2 {
		t.Fatalf("expected 2 total columns, got %d", len(table.Columns))
	}
}

func TestApplyAddColumnsAllDuplicateIsNoOp(t *testing.T) {
	c := New()
	batch := &CatalogBatch{Db: 0, DbName: "mydb", Ops: []CatalogOp{
		{Kind: OpCreateDatabase, DbName: "mydb"},
		{Kind: OpCreateTable, TableName: "cpu", Table: 0, Columns: []ColumnDef{{ID: 0, Name: "usage", Type: types.ColumnTypeFloat64}}},
	}}
	if _, err := c.Apply(batch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	seq := c.Sequence
	dupBatch := &CatalogBatch{Db: 0, Ops: []CatalogOp{
		{Kind: OpAddColumns, Table: 0, Columns: []ColumnDef{
			{ID: 0, Name: "usage", Type: types.ColumnTypeFloat64}, // already exists
		}},
	}}
	changed, err := c.Apply(dupBatch)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if changed {
		t.Fatalf("expected changed=false for an all-duplicate add_columns replay")
	}
	if c.Sequence != seq {
		t.Fatalf("expected sequence unchanged, got %d want %d", c.Sequence, seq)
	}
}

func TestApplyCreateAndDeleteLastCache(t *testing.T) {
	c := New()
	setup := &CatalogBatch{Db: 0, DbName: "mydb", Ops: []CatalogOp{
		{Kind: OpCreateDatabase, DbName: "mydb"},
		{Kind: OpCreateTable, TableName: "cpu", Table: 0, Columns: []ColumnDef{{ID: 0, Name: "host", Type: types.ColumnTypeTag}}},
	}}
	if _, err := c.Apply(setup); err != nil {
		t.Fatalf("seed: %v", err)
	}

	def := &LastCacheDefinition{Name: "by_host", KeyColumns: []types.ColumnId{0}, Count: 1}
	createBatch := &CatalogBatch{Db: 0, Ops: []CatalogOp{{Kind: OpCreateLastCache, Table: 0, LastCache: def}}}
	if _, err := c.Apply(createBatch); err != nil {
		t.Fatalf("create last cache: %v", err)
	}
	table := c.Table(0, 0)
	if _, ok := table.LastCaches["by_host"]; !ok {
		t.Fatalf("expected last cache to be registered")
	}

	deleteBatch := &CatalogBatch{Db: 0, Ops: []CatalogOp{{Kind: OpDeleteLastCache, Table: 0, CacheName: "by_host"}}}
	if _, err := c.Apply(deleteBatch); err != nil {
		t.Fatalf("delete last cache: %v", err)
	}
	if _, ok := table.LastCaches["by_host"]; ok {
		t.Fatalf("expected last cache to be removed")
	}
}

func TestSnapshotStateAndRestoreAllocatorsNeverRewind(t *testing.T) {
	c := New()
	batch := &CatalogBatch{Db: 0, DbName: "mydb", Ops: []CatalogOp{
		{Kind: OpCreateDatabase, DbName: "mydb"},
		{Kind: OpCreateTable, TableName: "cpu", Table: 0, Columns: []ColumnDef{{ID: 0, Name: "host", Type: types.ColumnTypeTag}}},
	}}
	if _, err := c.Apply(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	snap := c.SnapshotState()
	if snap.NextDbId != 1 || snap.NextTableId != 1 || snap.NextColumnId != 1 {
		t.Fatalf("unexpected watermark snapshot: %+v", snap)
	}

	// Advance the column allocator further (simulating writes after the
	// snapshot point), then restore from the older snapshot: the watermark
	// must not rewind.
	c.ColumnAlloc.SetNext(10)
	c.RestoreAllocators(snap)
	if c.ColumnAlloc.Peek() != 10 {
		t.Fatalf("expected RestoreAllocators not to rewind past a higher watermark, got %d", c.ColumnAlloc.Peek())
	}
}

func TestCatalogJSONRoundTrip(t *testing.T) {
	c := New()
	batch := &CatalogBatch{Db: 0, DbName: "mydb", Ops: []CatalogOp{
		{Kind: OpCreateDatabase, DbName: "mydb"},
		{Kind: OpCreateTable, TableName: "cpu", Table: 0, Columns: []ColumnDef{
			{ID: 0, Name: "host", Type: types.ColumnTypeTag},
			{ID: 1, Name: "usage", Type: types.ColumnTypeFloat64},
		}},
	}}
	if _, err := c.Apply(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	c2 := New()
	if err := json.Unmarshal(data, c2); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if c2.Sequence != c.Sequence {
		t.Fatalf("sequence mismatch after round trip: got %d want %d", c2.Sequence, c.Sequence)
	}
	db, ok := c2.DatabaseByName("mydb")
	if !ok {
		t.Fatalf("expected database to survive round trip")
	}
	tableID, ok := db.TableByName("cpu")
	if !ok {
		t.Fatalf("expected table to survive round trip")
	}
	table := c2.Table(db.ID, tableID)
	if id, ok := table.ColumnByName("usage"); !ok || id != 1 {
		t.Fatalf("expected rebuilt column index to resolve usage -> 1, got %d ok=%v", id, ok)
	}
}

func TestDbIdByNameAndListDatabases(t *testing.T) {
	c := New()
	if _, ok := c.DbIdByName("mydb"); ok {
		t.Fatalf("expected no database before any apply")
	}
	batch := &CatalogBatch{Db: 0, DbName: "mydb", Ops: []CatalogOp{{Kind: OpCreateDatabase, DbName: "mydb"}}}
	if _, err := c.Apply(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}
	id, ok := c.DbIdByName("mydb")
	if !ok || id != 0 {
		t.Fatalf("expected db id 0, got %d ok=%v", id, ok)
	}
	if len(c.ListDatabases()) != 1 {
		t.Fatalf("expected exactly 1 database listed")
	}
}
