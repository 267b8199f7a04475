// Package lastcache implements the derived "last N values per key" cache
// described in spec.md §4.6: one cache per (DbId, TableId, cache name),
// keyed by the cache's configured key-column values, holding the most
// recent `count` rows per key with an independent TTL.
//
// Grounded on the teacher's internal/docdb/healing.go use of an LRU for
// recently-touched document tracking, generalized here to
// hashicorp/golang-lru/v2's expirable.LRU so per-entry TTL comes for free,
// matching spec.md §4.6's "entries expire independently of capacity"
// requirement. The LRU itself is unbounded in size; the per-key row count is
// capped by the cache's own entry type.
package lastcache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kartikbazzad/gen1db/internal/catalog"
	"github.com/kartikbazzad/gen1db/internal/errors"
	"github.com/kartikbazzad/gen1db/internal/metrics"
	"github.com/kartikbazzad/gen1db/internal/types"
)

// entry is one key's retained ring of the most recent `count` rows, newest
// first.
type entry struct {
	mu   sync.Mutex
	rows []types.Row
	cap  int
}

func (e *entry) push(row types.Row) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = append([]types.Row{row}, e.rows...)
	if len(e.rows) > e.cap {
		e.rows = e.rows[:e.cap]
	}
}

func (e *entry) snapshot() []types.Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Row, len(e.rows))
	copy(out, e.rows)
	return out
}

// Cache is one named last-cache attached to a table.
type Cache struct {
	def  *catalog.LastCacheDefinition
	lru  *expirable.LRU[string, *entry]
}

// defaultTTL is used only when both the cache definition and the store's
// configured default leave TTL unset (0) — a safety net against an
// effectively-immortal cache entry.
const defaultTTL = 4 * time.Hour

func newCache(def *catalog.LastCacheDefinition, ttlSeconds int64) *Cache {
	ttl := defaultTTL
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &Cache{
		def: def,
		lru: expirable.NewLRU[string, *entry](0, nil, ttl), // 0 = unbounded size, TTL-bounded only
	}
}

// WriteRows indexes every row in rows that belongs to this cache's table by
// its key-column values, pushing onto each key's ring buffer.
func (c *Cache) WriteRows(rows []types.Row) {
	for _, row := range rows {
		key, ok := keyFor(c.def.KeyColumns, row)
		if !ok {
			continue // row doesn't carry every key column; not indexable
		}
		e, ok := c.lru.Get(key)
		if !ok {
			e = &entry{cap: c.def.Count}
			c.lru.Add(key, e)
		}
		e.push(projectValueColumns(c.def, row))
	}
}

// GetRecordBatch returns the cached rows for the exact key values supplied
// in keyValues (same order as c.def.KeyColumns), newest first, or nil if the
// key is absent/expired.
func (c *Cache) GetRecordBatch(keyValues []types.FieldValue) []types.Row {
	key := keyString(keyValues)
	e, ok := c.lru.Get(key)
	if !ok {
		return nil
	}
	return e.snapshot()
}

func projectValueColumns(def *catalog.LastCacheDefinition, row types.Row) types.Row {
	if def.ValueColumns == nil {
		return row // nil means "all non-key columns", so keep the row as-is
	}
	projected := types.Row{Table: row.Table, Timestamp: row.Timestamp, ChunkTime: row.ChunkTime}
	projected.Values = make(map[types.ColumnId]types.FieldValue, len(def.ValueColumns))
	for _, id := range def.ValueColumns {
		if v, ok := row.Values[id]; ok {
			projected.Values[id] = v
		}
	}
	return projected
}

func keyFor(keyColumns []types.ColumnId, row types.Row) (string, bool) {
	values := make([]types.FieldValue, len(keyColumns))
	for i, id := range keyColumns {
		v, ok := row.Values[id]
		if !ok {
			return "", false
		}
		values[i] = v
	}
	return keyString(values), true
}

func keyString(values []types.FieldValue) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d:%v", v.Type, fieldScalar(v))
	}
	return strings.Join(parts, "\x1f")
}

func fieldScalar(v types.FieldValue) interface{} {
	switch v.Type {
	case types.ColumnTypeInt64, types.ColumnTypeTime:
		return v.Int64
	case types.ColumnTypeUint64:
		return v.Uint64
	case types.ColumnTypeFloat64:
		return v.Float64
	case types.ColumnTypeBool:
		return v.Bool
	default:
		return v.String
	}
}

// Store owns every Cache for every (DbId, TableId), matching the catalog's
// LastCaches map one-for-one.
type Store struct {
	mu      sync.RWMutex
	caches  map[storeKey]*Cache
	metrics *metrics.Metrics

	defaultTTLSeconds int64
	defaultCount      int
}

type storeKey struct {
	Db    types.DbId
	Table types.TableId
	Name  string
}

func NewStore(defaultTTLSeconds int64, defaultCount int, m *metrics.Metrics) *Store {
	return &Store{
		caches:            make(map[storeKey]*Cache),
		metrics:           m,
		defaultTTLSeconds: defaultTTLSeconds,
		defaultCount:      defaultCount,
	}
}

// CreateCache registers a new cache. Per spec.md §4.6, creating a cache that
// already exists with an identical definition is a no-op (idempotent
// replay); creating one with a conflicting definition is an error.
func (s *Store) CreateCache(db types.DbId, table types.TableId, def *catalog.LastCacheDefinition) error {
	if def.Count <= 0 {
		def.Count = s.defaultCount
	}
	if def.TTLSeconds <= 0 {
		def.TTLSeconds = s.defaultTTLSeconds
	}
	k := storeKey{db, table, def.Name}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.caches[k]; ok {
		if sameDefinition(existing.def, def) {
			return nil
		}
		return errors.ErrCacheExists
	}
	s.caches[k] = newCache(def, def.TTLSeconds)
	return nil
}

// DeleteCache removes a cache; deleting an absent cache is a no-op, matching
// the catalog's own tolerant delete_last_cache replay semantics.
func (s *Store) DeleteCache(db types.DbId, table types.TableId, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.caches, storeKey{db, table, name})
}

// WriteRows fans rows out to every cache registered for (db, table).
func (s *Store) WriteRows(db types.DbId, table types.TableId, rows []types.Row) {
	s.mu.RLock()
	var targets []*Cache
	for k, c := range s.caches {
		if k.Db == db && k.Table == table {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()
	for _, c := range targets {
		c.WriteRows(rows)
	}
}

// GetCacheRecordBatches returns the cached rows for (db, table, cacheName)
// matching keyValues, recording a hit/miss metric.
func (s *Store) GetCacheRecordBatches(db types.DbId, table types.TableId, cacheName string, keyValues []types.FieldValue) []types.Row {
	s.mu.RLock()
	c, ok := s.caches[storeKey{db, table, cacheName}]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	rows := c.GetRecordBatch(keyValues)
	if s.metrics != nil {
		if rows == nil {
			s.metrics.LastCacheMisses.Inc()
		} else {
			s.metrics.LastCacheHits.Inc()
		}
	}
	return rows
}

// ListCaches returns every (table, name) pair currently registered, sorted,
// for admin/status display.
func (s *Store) ListCaches() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.caches))
	for k := range s.caches {
		out = append(out, fmt.Sprintf("db=%d table=%d name=%s", k.Db, k.Table, k.Name))
	}
	sort.Strings(out)
	return out
}

func sameDefinition(a, b *catalog.LastCacheDefinition) bool {
	if a.Count != b.Count || a.TTLSeconds != b.TTLSeconds || len(a.KeyColumns) != len(b.KeyColumns) {
		return false
	}
	for i := range a.KeyColumns {
		if a.KeyColumns[i] != b.KeyColumns[i] {
			return false
		}
	}
	return true
}
