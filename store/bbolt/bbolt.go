package bbolt

import (
	"bytes"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/babylonchain/btc-bridge/store"
)

// BboltStore implements the Store interface directly on bbolt, keeping
// every owner in its own bucket.
type BboltStore struct {
	db *bolt.DB
}

var _ store.Store = (*BboltStore)(nil)

// PutBytes stores the given value for the given key.
// A nil value deletes the key.
func (s *BboltStore) PutBytes(owner, k, v []byte) error {
	if err := checkKeys(owner, k); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(owner)
		if err != nil {
			return err
		}
		if v == nil {
			return b.Delete(k)
		}
		return b.Put(k, v)
	})
}

// GetBytes retrieves the stored value for the given key, nil if absent.
func (s *BboltStore) GetBytes(owner, k []byte) ([]byte, error) {
	if err := checkKeys(owner, k); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(owner)
		if b == nil {
			return nil
		}
		if v := b.Get(k); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

func (s *BboltStore) List(owner, keyPrefix []byte) ([]*store.KVPair, error) {
	var kvList []*store.KVPair

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(owner)
		if b == nil {
			return nil
		}
		cursor := b.Cursor()

		for key, v := cursor.Seek(keyPrefix); key != nil && bytes.HasPrefix(key, keyPrefix); key, v = cursor.Next() {
			if v == nil {
				continue
			}
			kvList = append(kvList, &store.KVPair{
				Key:   append([]byte{}, key...),
				Value: append([]byte{}, v...),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return kvList, nil
}

// Close waits for open transactions and releases the database file.
func (s *BboltStore) Close() error {
	return s.db.Close()
}

type Options struct {
	// Path of the database file, "bbolt.db" when empty.
	Path string
	// Timeout waiting for the file lock. Zero waits forever.
	Timeout time.Duration
}

var DefaultOptions = Options{
	Path:    "bbolt.db",
	Timeout: 60 * time.Second,
}

// NewBboltStore opens the database at options.Path. bbolt holds an
// exclusive lock on the file until Close.
func NewBboltStore(options Options) (*BboltStore, error) {
	if options.Path == "" {
		options.Path = DefaultOptions.Path
	}

	db, err := bolt.Open(options.Path, 0600, &bolt.Options{Timeout: options.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt store %s: %w", options.Path, err)
	}

	return &BboltStore{db: db}, nil
}

func checkKeys(owner, k []byte) error {
	if len(owner) == 0 || len(k) == 0 {
		return store.ErrEmptyKey
	}
	return nil
}
