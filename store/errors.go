package store

import "errors"

var (
	// ErrCorruptedBridgeDb the on-disk layout is not the expected one
	ErrCorruptedBridgeDb = errors.New("bridge db is corrupted")

	// ErrEmptyKey keys and owners must not be empty
	ErrEmptyKey = errors.New("the key should not be empty")
)
