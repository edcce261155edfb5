package store

import "errors"

var (
	// ErrCorruptedBridgeState a stored value cannot be decoded
	ErrCorruptedBridgeState = errors.New("bridge state is corrupted")

	// ErrInvalidHeight heights stored by the bridge are never negative
	ErrInvalidHeight = errors.New("negative confirmation height")
)
