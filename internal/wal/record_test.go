package wal

import (
	"testing"

	"github.com/kartikbazzad/gen1db/internal/catalog"
	"github.com/kartikbazzad/gen1db/internal/types"
)

func sampleRecord(seq uint64) *Record {
	return &Record{
		Sequence: seq,
		Kind:     OpWrite,
		CatalogUpdates: &catalog.CatalogBatch{
			Db:     1,
			DbName: "mydb",
			Ops:    []catalog.CatalogOp{{Kind: catalog.OpCreateDatabase, DbName: "mydb"}},
		},
		Rows: &types.RowBatch{
			Db: 1,
			Rows: map[types.TableId][]types.Row{
				1: {{Table: 1, Timestamp: 100, Values: map[types.ColumnId]types.FieldValue{
					1: {Type: types.ColumnTypeFloat64, Float64: 1.5},
				}}},
			},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := sampleRecord(42)
	buf, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, n, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d bytes, want %d", n, len(buf))
	}
	if decoded.Sequence != 42 || decoded.Kind != OpWrite {
		t.Fatalf("decoded record mismatch: %+v", decoded)
	}
	if decoded.CatalogUpdates == nil || decoded.CatalogUpdates.DbName != "mydb" {
		t.Fatalf("catalog updates not preserved: %+v", decoded.CatalogUpdates)
	}
	if decoded.Rows == nil || len(decoded.Rows.Rows[1]) != 1 {
		t.Fatalf("rows not preserved: %+v", decoded.Rows)
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	rec := sampleRecord(1)
	buf, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	buf[len(buf)/2] ^= 0xFF // flip a bit inside the payload

	if _, _, err := Decode(buf); err == nil {
		t.Fatalf("expected a crc mismatch error for corrupted payload")
	}
}

func TestDecodeDetectsTruncation(t *testing.T) {
	rec := sampleRecord(1)
	buf, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, _, err := Decode(buf[:len(buf)-2]); err == nil {
		t.Fatalf("expected a truncation error")
	}
}

func TestDecodeAllWalksMultipleRecords(t *testing.T) {
	var all []byte
	for i := uint64(0); i < 3; i++ {
		buf, err := Encode(sampleRecord(i))
		if err != nil {
			t.Fatalf("encode %d: %v", i, err)
		}
		all = append(all, buf...)
	}

	records, err := DecodeAll(all)
	if err != nil {
		t.Fatalf("decodeAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, r := range records {
		if r.Sequence != uint64(i) {
			t.Errorf("record %d has sequence %d", i, r.Sequence)
		}
	}
}
