package types

import (
	"errors"
	"fmt"
)

var (
	ErrFederationNotFound    = errors.New("the federation is not found")
	ErrBlockNotFound         = errors.New("the block is not found")
	ErrHeightTooHigh         = errors.New("the chain has not reached the given height yet")
	ErrInvalidMerkleProof    = errors.New("the merkle proof is invalid")
	ErrNotEnoughConfirmation = errors.New("the transaction does not have enough confirmations")
	ErrTxAlreadyProcessed    = errors.New("the transaction has been processed before")
)

// ConsensusViolation is the panic value raised when an invariant that every
// node must uphold is broken. It must never be recovered and ignored: it
// signals either a bug or an attempted consensus split.
type ConsensusViolation struct {
	Reason string
}

func (v *ConsensusViolation) Error() string {
	return "consensus invariant violated: " + v.Reason
}

// PanicConsensusViolation aborts execution with a *ConsensusViolation.
func PanicConsensusViolation(format string, args ...any) {
	panic(&ConsensusViolation{Reason: fmt.Sprintf(format, args...)})
}
