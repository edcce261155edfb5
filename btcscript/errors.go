package btcscript

import (
	"errors"
	"fmt"
)

var (
	ErrNotMultiSigScript = errors.New("script is not a standard multisig redeem script")
	ErrEmptyKeySet       = errors.New("public key set is empty")
	ErrNoRedeemScript    = errors.New("input does not carry a redeem script")
)

// CreationReason tags the rule a redeem script failed to satisfy.
type CreationReason int

const (
	InvalidCsvValue CreationReason = iota
	InvalidInternalRedeemScripts
	InvalidThreshold
	MaxScriptSizeExceeded
)

func (r CreationReason) String() string {
	switch r {
	case InvalidCsvValue:
		return "INVALID_CSV_VALUE"
	case InvalidInternalRedeemScripts:
		return "INVALID_INTERNAL_REDEEM_SCRIPTS"
	case InvalidThreshold:
		return "INVALID_THRESHOLD"
	case MaxScriptSizeExceeded:
		return "MAX_SCRIPT_SIZE_EXCEEDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(r))
	}
}

// RedeemScriptCreationError is returned when a redeem script cannot be
// built from the given arguments.
type RedeemScriptCreationError struct {
	Reason CreationReason
	Msg    string
}

func (e *RedeemScriptCreationError) Error() string {
	return fmt.Sprintf("redeem script creation failed (%s): %s", e.Reason, e.Msg)
}

func creationErr(reason CreationReason, format string, args ...any) error {
	return &RedeemScriptCreationError{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// CreationErrorReason extracts the reason of a RedeemScriptCreationError.
func CreationErrorReason(err error) (CreationReason, bool) {
	var cErr *RedeemScriptCreationError
	if errors.As(err, &cErr) {
		return cErr.Reason, true
	}
	return 0, false
}
