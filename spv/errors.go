package spv

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownParent      = errors.New("the parent of the header is not in the store")
	ErrInvalidProofOfWork = errors.New("the header does not satisfy its proof of work")
	ErrMalformedProof     = errors.New("the partial merkle tree is malformed")
)

// BlockStoreError reports a store whose content is inconsistent or
// incomplete: a missing ancestor, an unexpected height or a record that
// cannot be encoded.
type BlockStoreError struct {
	Msg string
	Err error
}

func (e *BlockStoreError) Error() string {
	if e.Err == nil {
		return "block store: " + e.Msg
	}
	return fmt.Sprintf("block store: %s: %v", e.Msg, e.Err)
}

func (e *BlockStoreError) Unwrap() error {
	return e.Err
}

func storeErr(format string, args ...any) error {
	return &BlockStoreError{Msg: fmt.Sprintf(format, args...)}
}
