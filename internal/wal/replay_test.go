package wal

import (
	"context"
	"testing"

	"github.com/thanos-io/objstore"

	"github.com/kartikbazzad/gen1db/internal/objectstore"
)

func TestReplayAppliesFilesInSequenceOrderAndReturnsNextSeq(t *testing.T) {
	bucket := objstore.NewInMemBucket()
	store := objectstore.New(bucket)
	ctx := context.Background()

	for i := uint64(0); i < 3; i++ {
		buf, err := Encode(sampleRecord(i))
		if err != nil {
			t.Fatalf("encode %d: %v", i, err)
		}
		if err := store.PutBytes(ctx, objectstore.WALPath("host1", i), buf); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}

	n := &recordingNotifier{}
	nextSeq, err := Replay(ctx, store, "host1", n, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if nextSeq != 3 {
		t.Fatalf("nextSeq = %d, want 3", nextSeq)
	}
	if len(n.notified) != 3 {
		t.Fatalf("expected 3 files notified, got %d", len(n.notified))
	}
	for i, recs := range n.notified {
		if recs[0].Sequence != uint64(i) {
			t.Errorf("file %d: first record sequence = %d, want %d", i, recs[0].Sequence, i)
		}
	}
}

func TestReplaySkipsFilesAtOrBelowSinceSeq(t *testing.T) {
	bucket := objstore.NewInMemBucket()
	store := objectstore.New(bucket)
	ctx := context.Background()

	for i := uint64(0); i < 3; i++ {
		buf, err := Encode(sampleRecord(i))
		if err != nil {
			t.Fatalf("encode %d: %v", i, err)
		}
		if err := store.PutBytes(ctx, objectstore.WALPath("host1", i), buf); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}

	n := &recordingNotifier{}
	nextSeq, err := Replay(ctx, store, "host1", n, 1)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if nextSeq != 3 {
		t.Fatalf("nextSeq = %d, want 3 (file numbering must stay contiguous across skipped files)", nextSeq)
	}
	if len(n.notified) != 1 {
		t.Fatalf("expected only the file with sequence > 1 to be notified, got %d", len(n.notified))
	}
	if n.notified[0][0].Sequence != 2 {
		t.Fatalf("expected the notified file's record sequence to be 2, got %d", n.notified[0][0].Sequence)
	}
}

func TestReplayWithNoFilesReturnsZero(t *testing.T) {
	bucket := objstore.NewInMemBucket()
	store := objectstore.New(bucket)
	n := &recordingNotifier{}

	nextSeq, err := Replay(context.Background(), store, "host1", n, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if nextSeq != 0 {
		t.Fatalf("nextSeq = %d, want 0", nextSeq)
	}
	if len(n.notified) != 0 {
		t.Fatalf("expected no notifications, got %d", len(n.notified))
	}
}

func TestSequenceFromPathParsesZeroPaddedName(t *testing.T) {
	seq, ok := SequenceFromPath("host1/wal/00000000000000000042.wal")
	if !ok || seq != 42 {
		t.Fatalf("SequenceFromPath = %d, %v, want 42, true", seq, ok)
	}

	if _, ok := SequenceFromPath("host1/wal/not-a-number.wal"); ok {
		t.Fatalf("expected ok=false for a non-numeric filename")
	}
}
