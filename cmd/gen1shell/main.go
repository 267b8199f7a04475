// Command gen1shell is an interactive admin REPL for a gen1db node, driven
// by dot-commands exactly like the teacher's cmd/docdbsh — adapted from a
// Unix-socket client into an in-process shell around writebuffer.WriteBuffer,
// since spec.md §1 names no wire protocol for administration.
//
// Grounded on the teacher's cmd/docdbsh/main.go (prompt loop, ".command"
// dispatch, graceful Ctrl-C) and cmd/docdbsh/parser (dot-command splitting),
// re-expressed with github.com/peterh/liner for line editing/history and
// github.com/dustin/go-humanize for byte-count formatting in .lastcache.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/peterh/liner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/thanos-io/objstore/providers/filesystem"

	"github.com/kartikbazzad/gen1db/internal/catalog"
	"github.com/kartikbazzad/gen1db/internal/config"
	"github.com/kartikbazzad/gen1db/internal/lineprotocol"
	"github.com/kartikbazzad/gen1db/internal/logger"
	"github.com/kartikbazzad/gen1db/internal/metrics"
	"github.com/kartikbazzad/gen1db/internal/query"
	"github.com/kartikbazzad/gen1db/internal/types"
	"github.com/kartikbazzad/gen1db/internal/writebuffer"
)

const historyFile = ".gen1shell_history"

func main() {
	dataDir := flag.String("data-dir", "./data", "Directory for object-store-backed data (filesystem provider)")
	hostID := flag.String("host-id", "", "Node identifier; must match the node whose data directory this is")
	flag.Parse()

	cfg := config.DefaultConfig()
	cfg.DataDir = *dataDir
	cfg.HostID = *hostID
	if cfg.HostID == "" {
		cfg.HostID = uuid.NewString()
	}

	bucket, err := filesystem.NewBucket(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open data directory %s: %v\n", cfg.DataDir, err)
		os.Exit(1)
	}

	m := metrics.New(prometheus.NewRegistry())
	log := logger.Default()

	ctx := context.Background()
	wb, err := writebuffer.Open(ctx, cfg, bucket, m, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open node: %v\n", err)
		os.Exit(1)
	}
	defer wb.Close(ctx)

	fmt.Printf("gen1db shell\n")
	fmt.Printf("data directory: %s\n", cfg.DataDir)
	fmt.Printf("Type '.help' for commands, '.exit' to quit.\n\n")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	currentDB := ""

	for {
		input, err := line.Prompt(promptFor(currentDB))
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Println()
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
			continue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if !strings.HasPrefix(input, ".") {
			fmt.Println("commands must start with '.' (try .help)")
			continue
		}

		fields := strings.Fields(input)
		name, args := fields[0], fields[1:]

		switch name {
		case ".exit", ".quit":
			return
		case ".help":
			printHelp()
		case ".status":
			fmt.Println(wb.Status())
		case ".use":
			if len(args) < 1 {
				fmt.Println("usage: .use <database>")
				continue
			}
			currentDB = args[0]
			fmt.Printf("using database %q\n", currentDB)
		case ".write":
			handleWrite(ctx, wb, currentDB, args)
		case ".tables":
			handleTables(wb, currentDB)
		case ".query":
			handleQuery(wb, currentDB, args)
		case ".createcache":
			handleCreateCache(ctx, wb, currentDB, args)
		case ".dropcache":
			handleDropCache(ctx, wb, currentDB, args)
		case ".lastcache":
			handleLastCache(wb, currentDB, args)
		default:
			fmt.Printf("unknown command %q (try .help)\n", name)
		}
		fmt.Println()
	}
}

func promptFor(db string) string {
	if db == "" {
		return "gen1db> "
	}
	return fmt.Sprintf("gen1db(%s)> ", db)
}

func printHelp() {
	fmt.Println(`commands:
  .use <database>                                switch the active database for subsequent commands
  .write <line-protocol...>                      ingest one or more line-protocol lines into the active database
  .tables                                        list tables in the active database
  .query <table>                                 dump every buffered+persisted chunk's row/time range for a table
  .createcache <table> <cache> <key_col>[,...]   create a last-value cache on key_col(s)
  .dropcache <table> <cache>                     delete a last-value cache
  .lastcache <table> <cache> <key_val>[,...]     read the last-value cache for the given key
  .status                                        print node status
  .exit                                          quit`)
}

func handleWrite(ctx context.Context, wb *writebuffer.WriteBuffer, db string, args []string) {
	if db == "" {
		fmt.Println("no database selected; run .use <database> first")
		return
	}
	if len(args) == 0 {
		fmt.Println("usage: .write <line-protocol...>")
		return
	}
	lp := strings.Join(args, " ")
	res, err := wb.WriteLp(ctx, db, lp, time.Now().UnixNano(), lineprotocol.Nanosecond, true)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return
	}
	fmt.Printf("accepted %d/%d lines across %d table(s)\n", res.Counts.LinesAccepted, res.Counts.LinesParsed, len(res.Counts.RowsByTable))
	for _, e := range res.Errors {
		fmt.Printf("  line %d rejected: %s\n", e.LineIndex, e.Reason)
	}
}

func handleTables(wb *writebuffer.WriteBuffer, db string) {
	if db == "" {
		fmt.Println("no database selected; run .use <database> first")
		return
	}
	cat := wb.Catalog()
	d, ok := cat.DatabaseByName(db)
	if !ok {
		fmt.Printf("no such database %q\n", db)
		return
	}
	for _, t := range d.Tables {
		fmt.Printf("  %-20s columns=%d caches=%d\n", t.Name, len(t.Columns), len(t.LastCaches))
	}
}

func handleQuery(wb *writebuffer.WriteBuffer, db string, args []string) {
	if db == "" {
		fmt.Println("no database selected; run .use <database> first")
		return
	}
	if len(args) < 1 {
		fmt.Println("usage: .query <table>")
		return
	}
	chunks, err := wb.GetTableChunks(db, args[0])
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return
	}
	for _, c := range chunks {
		src := "buffer"
		if c.Source == query.SourcePersisted {
			src = "persisted"
		}
		fmt.Printf("  chunk_time=%d source=%-9s rows=%d min=%d max=%d\n",
			c.ChunkTime, src, len(c.Rows), c.MinTime, c.MaxTime)
	}
}

func handleCreateCache(ctx context.Context, wb *writebuffer.WriteBuffer, db string, args []string) {
	if db == "" {
		fmt.Println("no database selected; run .use <database> first")
		return
	}
	if len(args) < 3 {
		fmt.Println("usage: .createcache <table> <cache> <key_col>[,<key_col>...]")
		return
	}
	table, cacheName, keyColsArg := args[0], args[1], args[2]

	cat := wb.Catalog()
	d, ok := cat.DatabaseByName(db)
	if !ok {
		fmt.Printf("no such database %q\n", db)
		return
	}
	tableID, ok := d.TableByName(table)
	if !ok {
		fmt.Printf("no such table %q\n", table)
		return
	}
	t := cat.Table(d.ID, tableID)

	var keyCols []types.ColumnId
	for _, name := range strings.Split(keyColsArg, ",") {
		id, ok := t.ColumnByName(name)
		if !ok {
			fmt.Printf("no such column %q\n", name)
			return
		}
		keyCols = append(keyCols, id)
	}

	def := &catalog.LastCacheDefinition{
		Name:       cacheName,
		KeyColumns: keyCols,
		Count:      1,
	}
	if err := wb.CreateLastCache(ctx, db, table, def); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return
	}
	fmt.Printf("created cache %q on %s.%s\n", cacheName, db, table)
}

func handleDropCache(ctx context.Context, wb *writebuffer.WriteBuffer, db string, args []string) {
	if db == "" {
		fmt.Println("no database selected; run .use <database> first")
		return
	}
	if len(args) < 2 {
		fmt.Println("usage: .dropcache <table> <cache>")
		return
	}
	if err := wb.DeleteLastCache(ctx, db, args[0], args[1]); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return
	}
	fmt.Printf("dropped cache %q from %s.%s\n", args[1], db, args[0])
}

func handleLastCache(wb *writebuffer.WriteBuffer, db string, args []string) {
	if db == "" {
		fmt.Println("no database selected; run .use <database> first")
		return
	}
	if len(args) < 3 {
		fmt.Println("usage: .lastcache <table> <cache> <key_val>[,<key_val>...]")
		return
	}
	table, cacheName, keysArg := args[0], args[1], args[2]

	var keys []types.FieldValue
	for _, s := range strings.Split(keysArg, ",") {
		keys = append(keys, parseScalar(s))
	}

	rows, err := wb.GetLastCacheRecordBatch(db, table, cacheName, keys)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		return
	}
	for _, r := range rows {
		fmt.Printf("  t=%d values=%d\n", r.Timestamp, len(r.Values))
	}
	fmt.Printf("(%s)\n", humanize.Bytes(uint64(len(rows)*64)))
}

func parseScalar(s string) types.FieldValue {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return types.FieldValue{Type: types.ColumnTypeInt64, Int64: i}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return types.FieldValue{Type: types.ColumnTypeFloat64, Float64: f}
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return types.FieldValue{Type: types.ColumnTypeBool, Bool: b}
	}
	return types.FieldValue{Type: types.ColumnTypeString, String: s}
}
