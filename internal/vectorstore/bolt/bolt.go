package bolt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"echochat/internal/domain"
	"echochat/internal/vectorstore/memory"
)

var bucketVectors = []byte("vectors")

// Store is a vector index persisted through bbolt. Queries are served
// from an in-memory snapshot; Replace rewrites the on-disk bucket in a
// single transaction and then publishes the new snapshot, so a failed
// write leaves both disk and memory on the previous contents.
type Store struct {
	db  *bbolt.DB
	mem *memory.Store
}

// Open opens (or creates) the index database at path and loads all
// persisted vectors into memory.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	s := &Store{db: db, mem: memory.New()}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) load() error {
	var items []domain.IndexedVector
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketVectors)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var item domain.IndexedVector
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("index record %q: %w: %v", k, domain.ErrCorruptState, err)
			}
			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return err
	}
	return s.mem.Replace(items)
}

// Replace swaps the entire index contents, on disk and in memory.
func (s *Store) Replace(items []domain.IndexedVector) error {
	// validate before touching disk so a shape error preserves both states
	dim := 0
	for _, item := range items {
		if dim == 0 {
			dim = len(item.Embedding)
		}
		if len(item.Embedding) != dim {
			return &domain.ShapeError{Want: dim, Got: len(item.Embedding)}
		}
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketVectors); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(bucketVectors)
		if err != nil {
			return err
		}
		for _, item := range items {
			data, err := json.Marshal(item)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(item.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	return s.mem.Replace(items)
}

// Query delegates to the in-memory snapshot.
func (s *Store) Query(vector []float64, topK int, minSimilarity float64) ([]domain.SearchResult, error) {
	return s.mem.Query(vector, topK, minSimilarity)
}

// Count returns the number of stored vectors.
func (s *Store) Count() int {
	return s.mem.Count()
}
