package objectstore

import (
	"context"
	"testing"

	"github.com/thanos-io/objstore"
)

type sample struct {
	A int    `json:"a"`
	B string `json:"b"`
}

func TestPutJSONGetJSONRoundTrip(t *testing.T) {
	s := New(objstore.NewInMemBucket())
	ctx := context.Background()

	in := sample{A: 1, B: "hello"}
	if err := s.PutJSON(ctx, "k.json", in); err != nil {
		t.Fatalf("put: %v", err)
	}

	var out sample
	if err := s.GetJSON(ctx, "k.json", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestPutBytesGetBytesRoundTrip(t *testing.T) {
	s := New(objstore.NewInMemBucket())
	ctx := context.Background()

	data := []byte{1, 2, 3, 4}
	if err := s.PutBytes(ctx, "blob", data); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.GetBytes(ctx, "blob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != len(data) {
		t.Fatalf("got %v, want %v", got, data)
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("got %v, want %v", got, data)
		}
	}
}

func TestExistsAndDelete(t *testing.T) {
	s := New(objstore.NewInMemBucket())
	ctx := context.Background()

	exists, err := s.Exists(ctx, "missing")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("expected missing key to not exist")
	}

	if err := s.PutBytes(ctx, "present", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	exists, err = s.Exists(ctx, "present")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatalf("expected present key to exist")
	}

	if err := s.Delete(ctx, "present"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	exists, err = s.Exists(ctx, "present")
	if err != nil {
		t.Fatalf("exists after delete: %v", err)
	}
	if exists {
		t.Fatalf("expected deleted key to no longer exist")
	}
}

func TestListSortedReturnsAllKeysUnderDir(t *testing.T) {
	s := New(objstore.NewInMemBucket())
	ctx := context.Background()

	for _, k := range []string{"host1/wal/00000000000000000000.wal", "host1/wal/00000000000000000001.wal", "host1/catalog/00000000000000000000.json"} {
		if err := s.PutBytes(ctx, k, []byte("x")); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	keys, err := s.ListSorted(ctx, WALDir("host1"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 wal keys, got %v", keys)
	}
}

func TestPathHelpersProduceZeroPaddedDeterministicPaths(t *testing.T) {
	if got, want := CatalogPath("host1", 3), "host1/catalog/00000000000000000003.json"; got != want {
		t.Errorf("CatalogPath = %q, want %q", got, want)
	}
	if got, want := WALPath("host1", 3), "host1/wal/00000000000000000003.wal"; got != want {
		t.Errorf("WALPath = %q, want %q", got, want)
	}
	if got, want := SnapshotPath("host1", 3), "host1/snapshots/00000000000000000003.json"; got != want {
		t.Errorf("SnapshotPath = %q, want %q", got, want)
	}
	if got, want := ParquetPath("host1", 1, 2, 60, 9), "host1/db/1/tbl/2/60/9.parquet"; got != want {
		t.Errorf("ParquetPath = %q, want %q", got, want)
	}
	if got, want := TrimDir("host1/wal/"), "host1/wal"; got != want {
		t.Errorf("TrimDir = %q, want %q", got, want)
	}
}
