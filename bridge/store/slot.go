package store

import (
	"github.com/babylonchain/btc-bridge/store"
)

// slot is a lazily loaded value of the bridge state, written back on Save.
type slot[T any] struct {
	key    []byte
	value  T
	loaded bool
	dirty  bool

	decode func([]byte) (T, error)
	// encode returns nil to remove the key.
	encode func(T) ([]byte, error)
}

func newSlot[T any](key string, decode func([]byte) (T, error), encode func(T) ([]byte, error)) *slot[T] {
	return &slot[T]{key: []byte(key), decode: decode, encode: encode}
}

func (s *slot[T]) get(accessor store.Accessor, owner []byte) (T, error) {
	if s.loaded {
		return s.value, nil
	}
	data, err := accessor.GetBytes(owner, s.key)
	if err != nil {
		var zero T
		return zero, err
	}
	if data != nil {
		v, err := s.decode(data)
		if err != nil {
			var zero T
			return zero, err
		}
		s.value = v
	}
	s.loaded = true
	return s.value, nil
}

func (s *slot[T]) set(v T) {
	s.value = v
	s.loaded = true
	s.dirty = true
}

func (s *slot[T]) save(accessor store.Accessor, owner []byte) error {
	if !s.dirty {
		return nil
	}
	data, err := s.encode(s.value)
	if err != nil {
		return err
	}
	if err := accessor.PutBytes(owner, s.key, data); err != nil {
		return err
	}
	s.dirty = false
	return nil
}
