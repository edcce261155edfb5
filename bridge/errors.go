package bridge

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace of the errors returned to the dispatch layer.
const Codespace = "bridge"

// Federation voting errors. Each migration state rejects a new vote with
// its own code.
var (
	ErrPendingFederationExists      = errorsmod.Register(Codespace, 1100, "a pending federation already exists")
	ErrFederationAwaitingActivation = errorsmod.Register(Codespace, 1101, "the new federation is not active yet")
	ErrFederationRetiring           = errorsmod.Register(Codespace, 1102, "the previous federation is still retiring")
	ErrFederationMigrating          = errorsmod.Register(Codespace, 1103, "funds are being migrated to the new federation")
	ErrNoPendingFederation          = errorsmod.Register(Codespace, 1104, "there is no pending federation")
	ErrFederatorAlreadyPresent      = errorsmod.Register(Codespace, 1105, "the federator is already part of the pending federation")
	ErrPendingFederationIncomplete  = errorsmod.Register(Codespace, 1106, "the pending federation does not have enough members")
	ErrPendingFederationMismatch    = errorsmod.Register(Codespace, 1107, "the pending federation hash does not match")
	ErrInvalidFederation            = errorsmod.Register(Codespace, 1108, "the pending federation cannot be built")
	ErrFederatorIndexOutOfRange     = errorsmod.Register(Codespace, 1109, "federator index out of range")
)

// Release request errors.
var (
	ErrInvalidDestination  = errorsmod.Register(Codespace, 1200, "invalid release destination address")
	ErrAmountBelowMinimum  = errorsmod.Register(Codespace, 1201, "release amount is below the minimum pegout value")
	ErrFeeAboveValue       = errorsmod.Register(Codespace, 1202, "the estimated pegout fee exceeds the release amount")
	ErrPegoutNotFound      = errorsmod.Register(Codespace, 1203, "no release transaction is waiting for signatures under this hash")
	ErrNotFederator        = errorsmod.Register(Codespace, 1204, "the key does not belong to the federation spending the release")
	ErrInvalidSignatures   = errorsmod.Register(Codespace, 1205, "the release signatures are invalid")
	ErrInvalidFeePerKb     = errorsmod.Register(Codespace, 1206, "the fee per kilobyte is out of range")
	ErrHeaderDepthTooLarge = errorsmod.Register(Codespace, 1207, "the depth exceeds the best chain height")
)

// ErrMissingGenesisFederation the network constants carry no genesis keys
var ErrMissingGenesisFederation = errors.New("genesis federation keys are not configured")
