package federation

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFormatVersion = errors.New("unknown federation format version")
	ErrMemberAlreadyPending = errors.New("member is already part of the pending federation")
)

// CreationReason tags why a federation could not be built.
type CreationReason int

const (
	NoMembers CreationReason = iota
	DuplicatedMember
	InvalidRedeemScript
	NotEnoughMembers
)

func (r CreationReason) String() string {
	switch r {
	case NoMembers:
		return "NO_MEMBERS"
	case DuplicatedMember:
		return "DUPLICATED_MEMBER"
	case InvalidRedeemScript:
		return "INVALID_REDEEM_SCRIPT"
	case NotEnoughMembers:
		return "NOT_ENOUGH_MEMBERS"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(r))
	}
}

// CreationError aborts the construction of a federation.
type CreationError struct {
	Reason CreationReason
	Err    error
}

func (e *CreationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("federation creation failed (%s)", e.Reason)
	}
	return fmt.Sprintf("federation creation failed (%s): %v", e.Reason, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}
