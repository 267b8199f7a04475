// Package writebuffer ties Catalog, WriteValidator, the WAL, QueryableBuffer,
// Persister, and the last-cache store into the single entry point spec.md
// names WriteBufferImpl: WriteLp for ingest, GetTableChunks for queries, and
// the last-cache admin operations.
//
// Grounded on the teacher's cmd/docdb/main.go startup sequence (load
// catalog → load recent checkpoints → replay WAL → start background
// flusher → serve) and internal/docdb/core.go's top-level Engine struct
// that wires every subsystem together behind one façade.
package writebuffer

import (
	"context"
	"fmt"
	"time"

	"github.com/kartikbazzad/gen1db/internal/catalog"
	"github.com/kartikbazzad/gen1db/internal/config"
	"github.com/kartikbazzad/gen1db/internal/errors"
	"github.com/kartikbazzad/gen1db/internal/lastcache"
	"github.com/kartikbazzad/gen1db/internal/lineprotocol"
	"github.com/kartikbazzad/gen1db/internal/logger"
	"github.com/kartikbazzad/gen1db/internal/metrics"
	"github.com/kartikbazzad/gen1db/internal/objectstore"
	"github.com/kartikbazzad/gen1db/internal/persister"
	"github.com/kartikbazzad/gen1db/internal/query"
	"github.com/kartikbazzad/gen1db/internal/queryablebuffer"
	"github.com/kartikbazzad/gen1db/internal/types"
	"github.com/kartikbazzad/gen1db/internal/validator"
	"github.com/kartikbazzad/gen1db/internal/wal"

	"github.com/thanos-io/objstore"
)

// WriteBuffer is the core's single entry point, wrapping every subsystem
// described in spec.md §4.
type WriteBuffer struct {
	cfg     *config.Config
	cat     *catalog.Catalog
	store   *objectstore.Store
	persist *persister.Persister
	qb      *queryablebuffer.QueryableBuffer
	lc      *lastcache.Store
	walw    *wal.Writer
	metrics *metrics.Metrics
	logger  *logger.Logger

	readOnly bool
}

// Open runs the full startup sequence (spec.md §5): load the catalog, load
// the most recent snapshot manifests, seed ID allocators and
// PersistedFiles, replay every WAL file sealed since the last snapshot, and
// finally start the live flush loop.
func Open(ctx context.Context, cfg *config.Config, bucket objstore.Bucket, m *metrics.Metrics, log *logger.Logger) (*WriteBuffer, error) {
	store := objectstore.New(bucket)
	p := persister.New(store, cfg.HostID, m, log)

	cat, err := p.LoadOrCreateCatalog(ctx)
	if err != nil {
		return nil, err
	}

	lc := lastcache.NewStore(int64(cfg.LastCacheDefaultTTL/time.Second), cfg.LastCacheDefaultCount, m)
	for _, db := range cat.ListDatabases() {
		for _, t := range db.Tables {
			for _, def := range t.LastCaches {
				if err := lc.CreateCache(db.ID, t.ID, def); err != nil {
					return nil, errors.Wrap(errors.KindCatalogUpdateError, "restore last cache", err)
				}
			}
		}
	}

	qb, err := queryablebuffer.New(cat, p, lc, 8, cfg.WAL.Gen1Duration, m, log)
	if err != nil {
		return nil, err
	}

	manifests, err := p.LoadSnapshots(ctx, cfg.SnapshotsToLoadOnStart)
	if err != nil {
		return nil, err
	}
	var sinceSeq uint64
	if len(manifests) > 0 {
		latest := manifests[0]
		cat.RestoreAllocators(latest.Catalog)
		qb.SeedFromSnapshot(latest)
		sinceSeq = latest.WalFileSequenceNumber
	}

	nextFileSeq, err := wal.Replay(ctx, store, cfg.HostID, qb, sinceSeq)
	if err != nil {
		return nil, err
	}

	if err := p.DeleteWALFilesUpTo(ctx, sinceSeq); err != nil && log != nil {
		log.Warn("startup wal trim up to sequence %d failed: %v", sinceSeq, err)
	}

	// WAL files are numbered from 1 on a fresh host and always past the
	// snapshot boundary, so a WalFileSequenceNumber of 0 only ever means no
	// snapshot has completed and a new file never reuses a superseded number.
	if nextFileSeq <= sinceSeq {
		nextFileSeq = sinceSeq + 1
	}

	walw := wal.New(store, cfg.HostID, cfg.WAL, qb, m, log, nextFileSeq)
	walw.Start()

	if log != nil {
		log.Info("writebuffer opened for host %s (catalog sequence %d)", cfg.HostID, cat.SnapshotState().Sequence)
	}

	return &WriteBuffer{
		cfg:     cfg,
		cat:     cat,
		store:   store,
		persist: p,
		qb:      qb,
		lc:      lc,
		walw:    walw,
		metrics: m,
		logger:  log,
	}, nil
}

// Close stops the WAL flush loop (sealing any buffered records) and
// releases the snapshot goroutine pool.
func (wb *WriteBuffer) Close(ctx context.Context) error {
	if err := wb.walw.Stop(ctx); err != nil {
		return err
	}
	wb.qb.Close()
	return nil
}

// SetReadOnly toggles the read-only flag; WriteLp rejects every call while
// set, per spec.md §7's NoWriteInReadOnly.
func (wb *WriteBuffer) SetReadOnly(ro bool) { wb.readOnly = ro }

// WriteLp validates and durably ingests lpText for database dbName,
// returning the validator's counts/errors. ingestTime is nanoseconds since
// epoch; acceptPartial controls whether a partially-bad batch is still
// partially accepted (spec.md §4.1).
func (wb *WriteBuffer) WriteLp(ctx context.Context, dbName, lpText string, ingestTime int64, precision lineprotocol.Precision, acceptPartial bool) (*validator.Result, error) {
	if wb.readOnly {
		wb.metrics.ObserveWrite(dbName, "rejected_read_only")
		return nil, errors.ErrNoWriteInReadOnly
	}

	res, err := validator.Validate(wb.cat, dbName, lpText, ingestTime, wb.cfg.WAL.Gen1Duration, precision, acceptPartial)
	if err != nil {
		wb.metrics.ObserveWrite(dbName, "rejected")
		kind := "unknown"
		if e, ok := err.(*errors.Error); ok {
			kind = e.Kind.String()
		}
		for range res.Errors {
			wb.metrics.ObserveRejectedLine(kind)
		}
		return res, err
	}

	if res.CatalogUpdates.IsEmpty() && len(res.Rows.Rows) == 0 {
		return res, nil
	}

	rec := &wal.Record{
		Kind:           wal.OpWrite,
		CatalogUpdates: res.CatalogUpdates,
		Rows:           &res.Rows,
	}
	if err := wb.walw.Write(ctx, rec); err != nil {
		wb.metrics.ObserveWrite(dbName, "wal_failed")
		return res, err
	}

	wb.metrics.ObserveWrite(dbName, "accepted")
	return res, nil
}

// GetTableChunks returns every chunk relevant to (dbName, tableName),
// resolving names against the catalog first.
func (wb *WriteBuffer) GetTableChunks(dbName, tableName string) ([]query.Chunk, error) {
	db, ok := wb.cat.DatabaseByName(dbName)
	if !ok {
		return nil, errors.ErrDbDoesNotExist
	}
	tableID, ok := db.TableByName(tableName)
	if !ok {
		return nil, errors.ErrTableDoesNotExist
	}
	return wb.qb.GetTableChunks(db.ID, tableID), nil
}

// CreateLastCache durably records a new last-cache definition (as a
// CatalogBatch through the WAL, same as any other catalog mutation) and
// activates it in the running lastcache.Store.
func (wb *WriteBuffer) CreateLastCache(ctx context.Context, dbName, tableName string, def *catalog.LastCacheDefinition) error {
	db, ok := wb.cat.DatabaseByName(dbName)
	if !ok {
		return errors.ErrDbDoesNotExist
	}
	tableID, ok := db.TableByName(tableName)
	if !ok {
		return errors.ErrTableDoesNotExist
	}

	batch := &catalog.CatalogBatch{
		Db:     db.ID,
		DbName: dbName,
		Ops:    []catalog.CatalogOp{{Kind: catalog.OpCreateLastCache, Table: tableID, LastCache: def}},
	}
	rec := &wal.Record{Kind: wal.OpWrite, CatalogUpdates: batch}
	if err := wb.walw.Write(ctx, rec); err != nil {
		return err
	}
	return wb.lc.CreateCache(db.ID, tableID, def)
}

// DeleteLastCache durably records the deletion and removes it from the
// running store. Per spec.md §4.6, a WAL-log failure here is tolerated: the
// cache is still removed from the live store, and replay will reconcile the
// catalog on the next restart since delete_last_cache is itself tolerant of
// a missing target.
func (wb *WriteBuffer) DeleteLastCache(ctx context.Context, dbName, tableName, cacheName string) error {
	db, ok := wb.cat.DatabaseByName(dbName)
	if !ok {
		return errors.ErrDbDoesNotExist
	}
	tableID, ok := db.TableByName(tableName)
	if !ok {
		return errors.ErrTableDoesNotExist
	}

	batch := &catalog.CatalogBatch{
		Db:     db.ID,
		DbName: dbName,
		Ops:    []catalog.CatalogOp{{Kind: catalog.OpDeleteLastCache, Table: tableID, CacheName: cacheName}},
	}
	rec := &wal.Record{Kind: wal.OpDeleteLastCache, CatalogUpdates: batch}
	err := wb.walw.Write(ctx, rec)
	wb.lc.DeleteCache(db.ID, tableID, cacheName)
	if err != nil && wb.logger != nil {
		wb.logger.Warn("delete_last_cache wal write failed for %s/%s/%s, cache removed locally: %v", dbName, tableName, cacheName, err)
	}
	return nil
}

// GetLastCacheRecordBatch resolves names against the catalog and returns the
// cached rows for keyValues.
func (wb *WriteBuffer) GetLastCacheRecordBatch(dbName, tableName, cacheName string, keyValues []types.FieldValue) ([]types.Row, error) {
	db, ok := wb.cat.DatabaseByName(dbName)
	if !ok {
		return nil, errors.ErrDbDoesNotExist
	}
	tableID, ok := db.TableByName(tableName)
	if !ok {
		return nil, errors.ErrTableDoesNotExist
	}
	return wb.lc.GetCacheRecordBatches(db.ID, tableID, cacheName, keyValues), nil
}

// Catalog exposes the underlying catalog read surface for admin tooling.
func (wb *WriteBuffer) Catalog() *catalog.Catalog { return wb.cat }

// Status renders a one-line human-readable summary for the admin REPL.
func (wb *WriteBuffer) Status() string {
	return fmt.Sprintf("host=%s databases=%d persisted_files=%d read_only=%v",
		wb.cfg.HostID, len(wb.cat.ListDatabases()), wb.qb.PersistedFiles().Count(), wb.readOnly)
}
