package peg

import "errors"

var (
	ErrInvalidPeginPayload     = errors.New("invalid peg-in instructions payload")
	ErrUnsupportedPeginVersion = errors.New("unsupported peg-in protocol version")
	ErrNoPeginDestination      = errors.New("peg-in destination cannot be derived")
)
