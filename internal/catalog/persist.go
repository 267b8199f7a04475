package catalog

import (
	"encoding/json"

	"github.com/kartikbazzad/gen1db/internal/types"
)

// wireCatalog is the JSON-on-disk shape of a catalog file
// (/{host}/catalog/{sequence}.json per spec.md §6). It exists because
// Catalog itself holds unexported name indexes that must be rebuilt after
// unmarshal rather than round-tripped. encoding/json marshals integer-kinded
// map keys (types.DbId is a uint32) as decimal strings automatically.
type wireCatalog struct {
	Sequence  uint64                       `json:"sequence"`
	Databases map[types.DbId]*Database `json:"databases"`
}

func (c *Catalog) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w := wireCatalog{Sequence: c.Sequence, Databases: c.databases}
	return json.Marshal(w)
}

func (c *Catalog) UnmarshalJSON(data []byte) error {
	var w wireCatalog
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sequence = w.Sequence
	if w.Databases == nil {
		w.Databases = make(map[types.DbId]*Database)
	}
	c.databases = w.Databases
	c.databasesByName = make(map[string]types.DbId, len(w.Databases))
	for dbID, db := range c.databases {
		db.ID = dbID
		if db.Tables == nil {
			db.Tables = make(map[types.TableId]*Table)
		}
		db.tablesByName = make(map[string]types.TableId, len(db.Tables))
		for tid, t := range db.Tables {
			t.ID = tid
			t.rebuildIndex()
			if t.LastCaches == nil {
				t.LastCaches = make(map[string]*LastCacheDefinition)
			}
			db.tablesByName[t.Name] = tid
		}
		c.databasesByName[db.Name] = dbID
	}
	return nil
}
