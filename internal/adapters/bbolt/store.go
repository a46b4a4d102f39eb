// Package bbolt implements the ports.ProgressStore interface using bbolt
// (embedded B+ tree). The "library" bucket holds the source catalog and
// the "progress" bucket holds one last-position record per source, both
// JSON-serialized. Writes are transactional — a crash mid-write cannot
// corrupt previously committed data.
package bbolt

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dmarsh/rsvp/internal/ports"
	bolt "go.etcd.io/bbolt"
)

// Bucket keys
var (
	bucketLibrary  = []byte("library")
	bucketProgress = []byte("progress")
)

// Store implements ports.ProgressStore backed by bbolt.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveProgress persists a progress record, overwriting any prior record
// for the same source. Last write wins.
func (s *Store) SaveProgress(rec ports.ProgressRecord) error {
	if rec.SourceID == "" {
		return fmt.Errorf("empty source id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketProgress)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.SourceID), data)
	})
}

// LoadProgress retrieves the progress record for a source.
// Returns nil, nil if no record exists (source never read).
func (s *Store) LoadProgress(sourceID string) (*ports.ProgressRecord, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProgress)
		if b == nil {
			return nil
		}
		// Copy bytes out of the transaction (bbolt slices are only valid within tx)
		if v := b.Get([]byte(sourceID)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var rec ports.ProgressRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	return &rec, nil
}

// DeleteProgress removes the progress record for a source.
// Idempotent: deleting a nonexistent record is not an error.
func (s *Store) DeleteProgress(sourceID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProgress)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(sourceID))
	})
}

// SaveSource persists a catalog record keyed by its ID.
func (s *Store) SaveSource(rec ports.SourceRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("empty record id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal source: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketLibrary)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), data)
	})
}

// FindSourceByPath looks a catalog record up by document path.
// Returns nil, nil if the path was never registered.
func (s *Store) FindSourceByPath(path string) (*ports.SourceRecord, error) {
	recs, err := s.ListSources()
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].Path == path {
			return &recs[i], nil
		}
	}
	return nil, nil
}

// ListSources returns all catalog records, ordered by AddedAt.
func (s *Store) ListSources() ([]ports.SourceRecord, error) {
	var recs []ports.SourceRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLibrary)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var rec ports.SourceRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal source: %w", err)
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].AddedAt < recs[j].AddedAt })
	return recs, nil
}

// DeleteSource removes a catalog record and its progress record.
// Idempotent.
func (s *Store) DeleteSource(sourceID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucketLibrary); b != nil {
			if err := b.Delete([]byte(sourceID)); err != nil {
				return err
			}
		}
		if b := tx.Bucket(bucketProgress); b != nil {
			return b.Delete([]byte(sourceID))
		}
		return nil
	})
}
