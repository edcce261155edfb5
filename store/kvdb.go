package store

import (
	"bytes"

	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/lightningnetwork/lnd/kvdb"
)

// KvdbStore keeps every owner in its own top level bucket of a kvdb
// backend.
type KvdbStore struct {
	db kvdb.Backend
}

var _ Store = (*KvdbStore)(nil)

func NewKvdbStore(db kvdb.Backend) *KvdbStore {
	return &KvdbStore{db: db}
}

func (s *KvdbStore) GetBytes(owner, key []byte) ([]byte, error) {
	if err := checkKeys(owner, key); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(owner)
		if bucket == nil {
			// nothing was ever written for this owner
			return nil
		}
		if v := bucket.Get(key); v != nil {
			value = make([]byte, len(v))
			copy(value, v)
		}
		return nil
	}, func() {
		value = nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

func (s *KvdbStore) PutBytes(owner, key, value []byte) error {
	if err := checkKeys(owner, key); err != nil {
		return err
	}

	return kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		bucket, err := tx.CreateTopLevelBucket(owner)
		if err != nil {
			return err
		}
		if value == nil {
			return bucket.Delete(key)
		}
		return bucket.Put(key, value)
	})
}

func (s *KvdbStore) List(owner, keyPrefix []byte) ([]*KVPair, error) {
	var kvList []*KVPair
	err := s.db.View(func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(owner)
		if bucket == nil {
			return nil
		}
		return listBucket(bucket, keyPrefix, &kvList)
	}, func() {
		kvList = nil
	})
	if err != nil {
		return nil, err
	}

	return kvList, nil
}

func listBucket(bucket walletdb.ReadBucket, keyPrefix []byte, kvList *[]*KVPair) error {
	return bucket.ForEach(func(k, v []byte) error {
		if v == nil || !bytes.HasPrefix(k, keyPrefix) {
			// nested bucket or outside of the range
			return nil
		}
		*kvList = append(*kvList, &KVPair{
			Key:   append([]byte{}, k...),
			Value: append([]byte{}, v...),
		})
		return nil
	})
}

func (s *KvdbStore) Close() error {
	return s.db.Close()
}

func checkKeys(owner, key []byte) error {
	if len(owner) == 0 || len(key) == 0 {
		return ErrEmptyKey
	}
	return nil
}
