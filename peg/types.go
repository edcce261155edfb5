package peg

import "fmt"

// TxType is the role of a Bitcoin transaction relative to the federations.
type TxType int

const (
	TxUnknown TxType = iota
	TxPegin
	TxPegoutOrMigration
)

func (t TxType) String() string {
	switch t {
	case TxPegin:
		return "PEGIN"
	case TxPegoutOrMigration:
		return "PEGOUT_OR_MIGRATION"
	default:
		return "UNKNOWN"
	}
}

// ProcessAction is what the bridge may do with a peg-in.
type ProcessAction int

const (
	CannotBeProcessed ProcessAction = iota
	CanBeRegistered
	CanBeRefunded
)

func (a ProcessAction) String() string {
	switch a {
	case CanBeRegistered:
		return "CAN_BE_REGISTERED"
	case CanBeRefunded:
		return "CAN_BE_REFUNDED"
	default:
		return "CANNOT_BE_PROCESSED"
	}
}

// RejectedReason explains why a peg-in is not registered.
type RejectedReason int

const (
	NotRejected RejectedReason = iota
	InvalidAmount
	LegacyPeginMultisigSender
	LegacyPeginUndeterminedSender
	PeginV1InvalidPayload
)

func (r RejectedReason) String() string {
	switch r {
	case NotRejected:
		return "NONE"
	case InvalidAmount:
		return "INVALID_AMOUNT"
	case LegacyPeginMultisigSender:
		return "LEGACY_PEGIN_MULTISIG_SENDER"
	case LegacyPeginUndeterminedSender:
		return "LEGACY_PEGIN_UNDETERMINED_SENDER"
	case PeginV1InvalidPayload:
		return "PEGIN_V1_INVALID_PAYLOAD"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(r))
	}
}

// EvaluationResult is the outcome of evaluating a peg-in.
type EvaluationResult struct {
	Action ProcessAction
	Reason RejectedReason
}

func (r EvaluationResult) String() string {
	if r.Reason == NotRejected {
		return r.Action.String()
	}
	return fmt.Sprintf("%s(%s)", r.Action, r.Reason)
}

// SenderType is the kind of script that funded the first input of a
// peg-in.
type SenderType int

const (
	SenderUnknown SenderType = iota
	SenderP2PKH
	SenderP2SHP2WPKH
	SenderP2SHMultisig
	SenderP2SHP2WSHMultisig
)

func (s SenderType) String() string {
	switch s {
	case SenderP2PKH:
		return "P2PKH"
	case SenderP2SHP2WPKH:
		return "P2SHP2WPKH"
	case SenderP2SHMultisig:
		return "P2SHMULTISIG"
	case SenderP2SHP2WSHMultisig:
		return "P2SHP2WSHMULTISIG"
	default:
		return "UNKNOWN"
	}
}

// IsMultisig reports whether the sender is a script hash of a multisig,
// whose ledger counterpart cannot be derived.
func (s SenderType) IsMultisig() bool {
	return s == SenderP2SHMultisig || s == SenderP2SHP2WSHMultisig
}
