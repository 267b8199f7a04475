// Package wal implements the durable write-ahead log described in spec.md
// §4.2: a sequence of framed binary records, sealed into immutable files in
// object storage on a group-commit schedule, and replayed on startup from
// the last snapshot's WAL boundary onward.
//
// Framing is grounded on the teacher's internal/wal/format.go (length-prefix
// + trailing CRC32 over an opaque payload); the payload itself carries a
// JSON-encoded Record rather than the teacher's raw document bytes,
// because this spec's unit of durability is a (CatalogBatch, RowBatch) pair
// rather than a single document mutation.
package wal

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"

	"github.com/kartikbazzad/gen1db/internal/catalog"
	"github.com/kartikbazzad/gen1db/internal/errors"
	"github.com/kartikbazzad/gen1db/internal/types"
)

var byteOrder = binary.LittleEndian

const (
	recordLenSize = 4
	crcSize       = 4
	recordOverhead = recordLenSize + crcSize
)

// OpKind distinguishes what a WalRecord carries.
type OpKind byte

const (
	OpWrite   OpKind = 1 // CatalogUpdates and Rows may each be nil (e.g. create_last_cache has no Rows)
	OpDeleteLastCache OpKind = 2 // CatalogUpdates carries exactly one delete_last_cache op
)

// Record is one durable unit: the catalog batch (if any) and row batch a
// single WriteValidator.Validate call produced, always persisted together
// per spec.md §4.1's write-before-apply invariant.
type Record struct {
	Sequence       uint64                `json:"sequence"`
	Kind           OpKind                `json:"kind"`
	CatalogUpdates *catalog.CatalogBatch `json:"catalog_updates,omitempty"`
	Rows           *types.RowBatch       `json:"rows,omitempty"`
}

// Encode frames r as [len uint32][payload][crc32 uint32], matching the
// teacher's length-prefix-plus-trailing-checksum layout.
func Encode(r *Record) ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	total := recordOverhead + len(payload)
	buf := make([]byte, total)
	byteOrder.PutUint32(buf[0:], uint32(len(payload)))
	copy(buf[recordLenSize:], payload)
	crc := crc32.ChecksumIEEE(buf[:recordLenSize+len(payload)])
	byteOrder.PutUint32(buf[recordLenSize+len(payload):], crc)
	return buf, nil
}

// Decode reads one framed record starting at the beginning of data and
// returns it along with the number of bytes consumed, so callers can walk a
// sealed WAL file record by record.
func Decode(data []byte) (*Record, int, error) {
	if len(data) < recordLenSize {
		return nil, 0, errors.Wrap(errors.KindWalError, "truncated record header", errors.ErrCorruptRecord)
	}
	payloadLen := int(byteOrder.Uint32(data[0:]))
	total := recordOverhead + payloadLen
	if len(data) < total {
		return nil, 0, errors.Wrap(errors.KindWalError, "truncated record body", errors.ErrCorruptRecord)
	}

	payload := data[recordLenSize : recordLenSize+payloadLen]
	storedCRC := byteOrder.Uint32(data[recordLenSize+payloadLen : total])
	computedCRC := crc32.ChecksumIEEE(data[:recordLenSize+payloadLen])
	if storedCRC != computedCRC {
		return nil, 0, errors.Wrap(errors.KindWalError, "crc mismatch", errors.ErrCorruptRecord)
	}

	var r Record
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, 0, errors.Wrap(errors.KindWalError, "bad record payload", err)
	}
	return &r, total, nil
}

// DecodeAll walks every framed record in a sealed WAL file's bytes.
func DecodeAll(data []byte) ([]*Record, error) {
	var out []*Record
	for len(data) > 0 {
		r, n, err := Decode(data)
		if err != nil {
			return out, err
		}
		out = append(out, r)
		data = data[n:]
	}
	return out, nil
}
