// Package persister is the durability boundary between in-memory state and
// object storage (spec.md §4.5): it loads the catalog and the most recent
// snapshot manifests on startup, and persists parquet files, snapshot
// manifests, and catalog files as QueryableBuffer drains partitions.
//
// Grounded on the teacher's internal/docdb/compaction.go (the component that
// walks dirty in-memory segments and durably persists them) and
// cmd/docdb/main.go's startup sequence (load catalog, load recent
// checkpoints, replay WAL, start serving) — adapted from a single relational
// store to this spec's catalog + snapshot-manifest + parquet-file trio.
package persister

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kartikbazzad/gen1db/internal/catalog"
	"github.com/kartikbazzad/gen1db/internal/errors"
	"github.com/kartikbazzad/gen1db/internal/logger"
	"github.com/kartikbazzad/gen1db/internal/metrics"
	"github.com/kartikbazzad/gen1db/internal/objectstore"
	"github.com/kartikbazzad/gen1db/internal/persistedfiles"
	"github.com/kartikbazzad/gen1db/internal/tablebuffer"
	"github.com/kartikbazzad/gen1db/internal/types"
	"github.com/kartikbazzad/gen1db/internal/wal"
)

// Manifest is the JSON document written to /{host}/snapshots/{sequence}.json
// (spec.md §6): the catalog allocator watermarks at snapshot time plus every
// parquet file known to exist, so a restart can rebuild PersistedFiles
// without listing the whole bucket. WalFileSequenceNumber is the sequence of
// the WAL file that triggered this snapshot — every file at or below it is
// fully reflected here and in the catalog file, so a restart only needs to
// replay files after it (spec.md §3, §4.2).
type Manifest struct {
	Sequence              uint64                                                 `json:"sequence"`
	WalFileSequenceNumber uint64                                                 `json:"wal_file_sequence_number"`
	Catalog               catalog.Snapshot                                       `json:"catalog"`
	Files                 map[types.DbId]map[types.TableId][]persistedfiles.File `json:"files"`
}

// Persister owns every read/write against object storage for catalog,
// snapshot, and parquet artifacts.
type Persister struct {
	store   *objectstore.Store
	host    string
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func New(store *objectstore.Store, host string, m *metrics.Metrics, log *logger.Logger) *Persister {
	return &Persister{store: store, host: host, metrics: m, logger: log}
}

// LoadOrCreateCatalog downloads the highest-sequence catalog file for this
// host, or returns a fresh empty Catalog if none exists yet (first boot).
func (p *Persister) LoadOrCreateCatalog(ctx context.Context) (*catalog.Catalog, error) {
	keys, err := p.store.ListSorted(ctx, objectstore.CatalogDir(p.host))
	if err != nil {
		return nil, errors.Wrap(errors.KindWalError, "list catalog files", err)
	}
	if len(keys) == 0 {
		return catalog.New(), nil
	}

	latest := keys[len(keys)-1]
	cat := catalog.New()
	if err := p.store.GetJSON(ctx, latest, cat); err != nil {
		return nil, errors.Wrap(errors.KindWalError, "load catalog "+latest, errors.ErrCatalogLoad)
	}
	return cat, nil
}

// LoadSnapshots downloads up to n of the most recent snapshot manifests, in
// descending sequence order, concurrently (spec.md §5's
// SnapshotsToLoadOnStart, mirroring influxdb3's N_SNAPSHOTS_TO_LOAD_ON_START
// search), returning the list sorted newest-first.
func (p *Persister) LoadSnapshots(ctx context.Context, n int) ([]*Manifest, error) {
	keys, err := p.store.ListSorted(ctx, objectstore.SnapshotDir(p.host))
	if err != nil {
		return nil, errors.Wrap(errors.KindWalError, "list snapshots", err)
	}
	if len(keys) > n {
		keys = keys[len(keys)-n:]
	}

	manifests := make([]*Manifest, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			var m Manifest
			if err := p.store.GetJSON(gctx, key, &m); err != nil {
				return errors.Wrap(errors.KindWalError, "load snapshot "+key, errors.ErrSnapshotLoad)
			}
			manifests[i] = &m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// keys is ascending (ListSorted order); reverse so index 0 is newest.
	out := make([]*Manifest, len(manifests))
	for i, m := range manifests {
		out[len(manifests)-1-i] = m
	}
	return out, nil
}

// PersistParquet writes partition as a parquet file for (db, table) using
// cols as the schema, uploads it, and returns the registered File entry.
func (p *Persister) PersistParquet(ctx context.Context, db types.DbId, table types.TableId, fileID types.ParquetFileId, cols []catalog.ColumnDef, partition *tablebuffer.ColumnarPartition) (persistedfiles.File, error) {
	data, err := encodeParquet(cols, partition)
	if err != nil {
		return persistedfiles.File{}, errors.Wrap(errors.KindWalError, "encode parquet", err)
	}

	path := objectstore.ParquetPath(p.host, db, table, partition.ChunkTime, fileID)
	if err := p.store.PutBytes(ctx, path, data); err != nil {
		return persistedfiles.File{}, errors.Wrap(errors.KindWalError, "upload "+path, errors.ErrPersistFailed)
	}

	if p.metrics != nil {
		p.metrics.PersistedFilesTotal.Inc()
	}

	return persistedfiles.File{
		ID:        fileID,
		Path:      path,
		SizeBytes: uint64(len(data)),
		RowCount:  uint64(len(partition.Rows)),
		ChunkTime: partition.ChunkTime,
		MinTime:   partition.MinTime,
		MaxTime:   partition.MaxTime,
	}, nil
}

// PersistSnapshot uploads manifest at the next snapshot sequence.
func (p *Persister) PersistSnapshot(ctx context.Context, manifest *Manifest) error {
	start := time.Now()
	path := objectstore.SnapshotPath(p.host, manifest.Sequence)
	if err := p.store.PutJSON(ctx, path, manifest); err != nil {
		return errors.Wrap(errors.KindWalError, "upload snapshot "+path, errors.ErrPersistFailed)
	}
	if p.metrics != nil {
		p.metrics.SnapshotsTotal.Inc()
		p.metrics.SnapshotSeconds.Observe(time.Since(start).Seconds())
	}
	if p.logger != nil {
		p.logger.Info("persisted snapshot %s", path)
	}
	return nil
}

// PersistCatalog writes cat's current state as a new catalog file only if
// cat.Sequence differs from lastWrittenSequence, matching spec.md §4.5's
// catalog-file economy invariant: a catalog file is only worth writing when
// something about the schema actually changed. It returns the sequence that
// was written (or lastWrittenSequence unchanged, if nothing was written).
func (p *Persister) PersistCatalog(ctx context.Context, cat *catalog.Catalog, lastWrittenSequence uint64) (uint64, error) {
	state := cat.SnapshotState()
	if state.Sequence == lastWrittenSequence {
		return lastWrittenSequence, nil
	}

	path := objectstore.CatalogPath(p.host, state.Sequence)
	if err := p.store.PutJSON(ctx, path, cat); err != nil {
		return lastWrittenSequence, errors.Wrap(errors.KindWalError, "upload catalog "+path, errors.ErrPersistFailed)
	}
	if p.metrics != nil {
		p.metrics.CatalogFilesTotal.Inc()
	}
	if p.logger != nil {
		p.logger.Info("persisted catalog %s (sequence %d)", path, state.Sequence)
	}
	return state.Sequence, nil
}

// DeleteWALFilesUpTo removes every sealed WAL file for this host whose
// sequence number is <= seq — the boundary a completed snapshot recorded as
// its WalFileSequenceNumber (spec.md §3's WAL file lifecycle invariant,
// §4.3 step 7: "tell the WAL to delete WAL files at or below the superseded
// sequence number"). seq == 0 is a no-op: it only ever means no snapshot has
// completed yet, so nothing is superseded.
func (p *Persister) DeleteWALFilesUpTo(ctx context.Context, seq uint64) error {
	if seq == 0 {
		return nil
	}
	keys, err := p.store.ListSorted(ctx, objectstore.WALDir(p.host))
	if err != nil {
		return errors.Wrap(errors.KindWalError, "list wal files for trim", err)
	}
	for _, key := range keys {
		fileSeq, ok := wal.SequenceFromPath(key)
		if !ok || fileSeq > seq {
			continue
		}
		if err := p.store.Delete(ctx, key); err != nil {
			return errors.Wrap(errors.KindWalError, "delete superseded wal file "+key, err)
		}
	}
	return nil
}

// String renders a Manifest key for logging.
func (m *Manifest) String() string {
	return fmt.Sprintf("snapshot(sequence=%d)", m.Sequence)
}
