package queryablebuffer

import (
	"context"
	"testing"
	"time"

	"github.com/thanos-io/objstore"

	"github.com/kartikbazzad/gen1db/internal/catalog"
	"github.com/kartikbazzad/gen1db/internal/lastcache"
	objectstorepkg "github.com/kartikbazzad/gen1db/internal/objectstore"
	"github.com/kartikbazzad/gen1db/internal/persistedfiles"
	"github.com/kartikbazzad/gen1db/internal/persister"
	"github.com/kartikbazzad/gen1db/internal/query"
	"github.com/kartikbazzad/gen1db/internal/types"
	"github.com/kartikbazzad/gen1db/internal/wal"
)

func newTestQB(t *testing.T) (*QueryableBuffer, *catalog.Catalog, *objectstorepkg.Store) {
	t.Helper()
	cat := catalog.New()
	batch := &catalog.CatalogBatch{
		Db:     1,
		DbName: "mydb",
		Ops: []catalog.CatalogOp{
			{Kind: catalog.OpCreateDatabase, DbName: "mydb"},
			{Kind: catalog.OpCreateTable, TableName: "cpu", Table: 1, Columns: []catalog.ColumnDef{
				{ID: 1, Name: "usage", Type: types.ColumnTypeFloat64},
			}},
		},
	}
	if _, err := cat.Apply(batch); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	store := objectstorepkg.New(objstore.NewInMemBucket())
	p := persister.New(store, "host1", nil, nil)
	lc := lastcache.NewStore(0, 1, nil)

	qb, err := New(cat, p, lc, 2, time.Hour, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(qb.Close)
	return qb, cat, store
}

func TestNotifyAppliesCatalogAndRows(t *testing.T) {
	qb, _, _ := newTestQB(t)

	rec := &wal.Record{
		Kind: wal.OpWrite,
		Rows: &types.RowBatch{
			Db: 1,
			Rows: map[types.TableId][]types.Row{
				1: {{Table: 1, Timestamp: 5, ChunkTime: 0, Values: map[types.ColumnId]types.FieldValue{
					1: {Type: types.ColumnTypeFloat64, Float64: 1.5},
				}}},
			},
		},
	}
	if err := qb.Notify("path", []*wal.Record{rec}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	chunks := qb.GetTableChunks(1, 1)
	if len(chunks) != 1 || len(chunks[0].Rows) != 1 {
		t.Fatalf("expected 1 chunk with 1 row, got %+v", chunks)
	}
	if chunks[0].Source != query.SourceBuffer {
		t.Fatalf("expected a buffer-sourced chunk, got %v", chunks[0].Source)
	}
}

func TestSnapshotDrainsOlderPartitionsAndKeepsNewest(t *testing.T) {
	qb, _, _ := newTestQB(t)

	// qb's gen1Duration is 1 hour (see newTestQB); "current" lands in the
	// wall-clock bucket Snapshot will compute its now_bucket from, and
	// "old" is one full bucket behind it, so it is always < now_bucket.
	gen1Duration := time.Hour
	currentBucket := types.ChunkTimeFor(time.Now().UnixNano(), gen1Duration)
	oldBucket := currentBucket - int64(gen1Duration)

	rec := &wal.Record{
		Kind: wal.OpWrite,
		Rows: &types.RowBatch{
			Db: 1,
			Rows: map[types.TableId][]types.Row{
				1: {
					{Table: 1, Timestamp: oldBucket + 5, ChunkTime: oldBucket, Values: map[types.ColumnId]types.FieldValue{1: {Type: types.ColumnTypeFloat64, Float64: 1}}},
					{Table: 1, Timestamp: currentBucket + 5, ChunkTime: currentBucket, Values: map[types.ColumnId]types.FieldValue{1: {Type: types.ColumnTypeFloat64, Float64: 2}}},
				},
			},
		},
	}
	if err := qb.Notify("path", []*wal.Record{rec}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if err := qb.Snapshot(context.Background(), 0); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	chunks := qb.GetTableChunks(1, 1)
	var buffered, persisted int
	for _, c := range chunks {
		if c.Source == query.SourceBuffer {
			buffered++
		} else {
			persisted++
		}
	}
	if buffered != 1 {
		t.Fatalf("expected the newest bucket to remain buffered, got %d buffer chunks", buffered)
	}
	if persisted != 1 {
		t.Fatalf("expected the older bucket to be persisted, got %d persisted chunks", persisted)
	}
	if qb.PersistedFiles().Count() != 1 {
		t.Fatalf("expected 1 persisted file registered, got %d", qb.PersistedFiles().Count())
	}
}

func TestNotifyAndSnapshotRecordsWalBoundaryAndTrimsWal(t *testing.T) {
	qb, _, store := newTestQB(t)
	ctx := context.Background()

	// Seed WAL files 0-3: files 0-2 are superseded by the snapshot triggered
	// by file 2, file 3 is a later file that must survive the trim.
	for seq := uint64(0); seq <= 3; seq++ {
		if err := store.PutBytes(ctx, objectstorepkg.WALPath("host1", seq), []byte("x")); err != nil {
			t.Fatalf("put wal %d: %v", seq, err)
		}
	}

	walPath := objectstorepkg.WALPath("host1", 2)
	rec := &wal.Record{Kind: wal.OpWrite, Rows: &types.RowBatch{Db: 1, Rows: map[types.TableId][]types.Row{}}}
	if err := qb.NotifyAndSnapshot(walPath, []*wal.Record{rec}); err != nil {
		t.Fatalf("notify and snapshot: %v", err)
	}

	var m persister.Manifest
	if err := store.GetJSON(ctx, objectstorepkg.SnapshotPath("host1", 1), &m); err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if m.WalFileSequenceNumber != 2 {
		t.Fatalf("manifest WalFileSequenceNumber = %d, want 2", m.WalFileSequenceNumber)
	}

	for seq, wantExists := range map[uint64]bool{0: false, 1: false, 2: false, 3: true} {
		exists, err := store.Exists(ctx, objectstorepkg.WALPath("host1", seq))
		if err != nil {
			t.Fatalf("exists %d: %v", seq, err)
		}
		if exists != wantExists {
			t.Fatalf("wal file %d: exists = %v, want %v", seq, exists, wantExists)
		}
	}
}

func TestSeedFromSnapshotRestoresState(t *testing.T) {
	qb, _, _ := newTestQB(t)
	m := &persister.Manifest{
		Sequence: 7,
		Catalog:  catalog.Snapshot{Sequence: 3},
		Files: map[types.DbId]map[types.TableId][]persistedfiles.File{
			1: {1: {{ID: 9, ChunkTime: 0}}},
		},
	}
	qb.SeedFromSnapshot(m)

	if qb.PersistedFiles().Count() != 1 {
		t.Fatalf("expected SeedFromSnapshot to restore 1 persisted file, got %d", qb.PersistedFiles().Count())
	}
	chunks := qb.GetTableChunks(1, 1)
	if len(chunks) != 1 || chunks[0].Source != query.SourcePersisted {
		t.Fatalf("expected 1 persisted chunk after seeding, got %+v", chunks)
	}
}
