package buffer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const defaultBucket = "profile_writes"

// Store persists pending profile writes in a bbolt file. Items are ordered by priority, then age.
// A newer write for the same user and entity replaces the older one since replays are upserts.
type Store struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

// Open creates the file and bucket when missing.
func Open(path string, bucket string) (*Store, error) {
	if path == "" {
		return nil, errors.New("buffer: path is required")
	}
	if bucket == "" {
		bucket = defaultBucket
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("buffer: open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, bucket: []byte(bucket), now: time.Now}, nil
}

// Enqueue stores item, superseding any pending write to the same target.
func (s *Store) Enqueue(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	item.normalize(s.now())
	item.bucketKey = buildKey(item)

	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		stale := matchingKeys(b, item.sameTarget)
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return b.Put(item.bucketKey, payload)
	})
}

// GetBatch returns up to limit items in replay order without removing them.
func (s *Store) GetBatch(limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			item.bucketKey = append([]byte(nil), k...)
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Pending lists the buffered writes of one user.
func (s *Store) Pending(userID string) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				return nil
			}
			if item.UserID == userID {
				item.bucketKey = append([]byte(nil), k...)
				items = append(items, item)
			}
			return nil
		})
	})
	return items, err
}

// Remove deletes item, by key when known and by id otherwise.
func (s *Store) Remove(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if len(item.bucketKey) == 0 {
		return s.deleteWhere(func(it Item) bool { return item.ID != "" && it.ID == item.ID })
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete(item.bucketKey)
	})
}

// Requeue moves item to the back of its priority lane.
func (s *Store) Requeue(item Item) error {
	if err := s.Remove(item); err != nil {
		return err
	}
	item.bucketKey = nil
	item.Timestamp = s.now()
	return s.Enqueue(item)
}

func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup drops items buffered before olderThan and returns how many were dropped.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var dropped int
	err := s.deleteWhereCounting(func(it Item) bool { return it.Timestamp.Before(olderThan) }, &dropped)
	return dropped, err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Stats exposes bbolt statistics for the health endpoint.
func (s *Store) Stats() bolt.Stats {
	if s == nil || s.db == nil {
		return bolt.Stats{}
	}
	return s.db.Stats()
}

func (s *Store) deleteWhere(match func(Item) bool) error {
	var n int
	return s.deleteWhereCounting(match, &n)
}

func (s *Store) deleteWhereCounting(match func(Item) bool, n *int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, k := range matchingKeys(b, match) {
			if err := b.Delete(k); err != nil {
				return err
			}
			*n++
		}
		return nil
	})
}

// matchingKeys collects keys first; deleting through a live cursor skips entries.
func matchingKeys(b *bolt.Bucket, match func(Item) bool) [][]byte {
	var keys [][]byte
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var item Item
		if err := json.Unmarshal(v, &item); err != nil {
			continue
		}
		if match(item) {
			keys = append(keys, append([]byte(nil), k...))
		}
	}
	return keys
}

func buildKey(item Item) []byte {
	return []byte(fmt.Sprintf("%d_%020d_%s", item.Priority, item.Timestamp.UnixNano(), item.ID))
}
