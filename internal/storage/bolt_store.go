// Package storage keeps a history of finished runs in a bbolt file.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	BucketRuns  = "runs"
	BucketIndex = "run_ids"
)

var ErrNotFound = errors.New("run not found")

// Store keys runs by timestamp so a cursor walks them in time order. The
// index bucket maps a run ID to its key.
type Store struct {
	db       *bbolt.DB
	filePath string
	maxItems int
}

// DefaultPath is $HOME/.ollamabench/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ollamabench", "history.db"), nil
}

// NewStore opens (or creates) the history file at path; "" means DefaultPath.
func NewStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{BucketRuns, BucketIndex} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, filePath: path, maxItems: MaxItems}, nil
}

func (s *Store) Path() string {
	return s.filePath
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func runKey(item HistoryItem) []byte {
	k := make([]byte, 8, 8+len(item.ID))
	binary.BigEndian.PutUint64(k, uint64(item.Timestamp.UnixNano()))
	return append(k, item.ID...)
}

// Save stores item, replacing any earlier entry with the same ID, and
// prunes the oldest runs beyond the store's limit.
func (s *Store) Save(item HistoryItem) error {
	if item.ID == "" {
		return errors.New("history item has no ID")
	}
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(BucketRuns))
		idx := tx.Bucket([]byte(BucketIndex))

		if old := idx.Get([]byte(item.ID)); old != nil {
			if err := runs.Delete(old); err != nil {
				return err
			}
		}
		key := runKey(item)
		if err := runs.Put(key, data); err != nil {
			return err
		}
		if err := idx.Put([]byte(item.ID), key); err != nil {
			return err
		}
		return prune(runs, idx, s.maxItems)
	})
}

func prune(runs, idx *bbolt.Bucket, keep int) error {
	if keep <= 0 {
		return nil
	}
	n := 0
	c := runs.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	extra := n - keep
	if extra <= 0 {
		return nil
	}

	var stale [][]byte
	for k, v := c.First(); k != nil && len(stale) < extra; k, v = c.Next() {
		var item HistoryItem
		if err := json.Unmarshal(v, &item); err == nil {
			if err := idx.Delete([]byte(item.ID)); err != nil {
				return err
			}
		}
		stale = append(stale, append([]byte(nil), k...))
	}
	for _, k := range stale {
		if err := runs.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// List returns all runs, newest first. Entries that fail to decode are
// skipped.
func (s *Store) List() ([]HistoryItem, error) {
	var items []HistoryItem

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var item HistoryItem
			if err := json.Unmarshal(v, &item); err == nil {
				items = append(items, item)
			}
		}
		return nil
	})
	return items, err
}

func (s *Store) Get(id string) (*HistoryItem, error) {
	var item HistoryItem
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(BucketIndex)).Get([]byte(id))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		v := tx.Bucket([]byte(BucketRuns)).Get(key)
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(v, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}
