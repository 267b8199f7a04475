package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/thanos-io/objstore"
)

// Store is a small convenience wrapper over objstore.Bucket that adds the
// JSON marshal/unmarshal-on-the-wire helpers every manifest/catalog writer
// in this codebase needs (catalog files and snapshot manifests are both
// JSON per spec.md §6).
type Store struct {
	Bucket objstore.Bucket
}

func New(bucket objstore.Bucket) *Store {
	return &Store{Bucket: bucket}
}

// PutJSON marshals v and uploads it at key.
func (s *Store) PutJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Bucket.Upload(ctx, key, bytes.NewReader(data))
}

// GetJSON downloads key and unmarshals it into v.
func (s *Store) GetJSON(ctx context.Context, key string, v interface{}) error {
	r, err := s.Bucket.Get(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// PutBytes uploads raw bytes at key (used for WAL files and parquet blobs).
func (s *Store) PutBytes(ctx context.Context, key string, data []byte) error {
	return s.Bucket.Upload(ctx, key, bytes.NewReader(data))
}

// GetBytes downloads the raw bytes stored at key.
func (s *Store) GetBytes(ctx context.Context, key string) ([]byte, error) {
	r, err := s.Bucket.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// ListSorted returns every object key under dir, in the order objstore's
// Iter reports them (lexical, which is also numeric order given the
// zero-padded sequence numbers used in every path helper above).
func (s *Store) ListSorted(ctx context.Context, dir string) ([]string, error) {
	var keys []string
	err := s.Bucket.Iter(ctx, dir, func(name string) error {
		keys = append(keys, name)
		return nil
	})
	return keys, err
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	return s.Bucket.Exists(ctx, key)
}

// Delete removes key. Deleting a key that does not exist is not an error
// for any objstore provider used here.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.Bucket.Delete(ctx, key)
}
