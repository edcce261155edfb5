package peg

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/babylonchain/btc-bridge/types"
)

// EvaluatePegin decides whether a peg-in can be registered, refunded or
// neither. It is only defined once FlagPeginEvaluation is active; earlier
// callers break consensus and the call panics.
//
// The parsed peg-in information is returned alongside the result whenever
// the instructions were read, so callers can credit or refund.
func EvaluatePegin(
	tx *wire.MsgTx,
	feds Federations,
	minValue btcutil.Amount,
	params *chaincfg.Params,
	act types.Activations,
) (EvaluationResult, *PeginInformation) {
	if !act.IsActive(types.FlagPeginEvaluation) {
		types.PanicConsensusViolation("peg-in evaluation called before %s is active", types.FlagPeginEvaluation)
	}

	live := feds.Live()
	if SpendsFederations(tx, live) {
		return EvaluationResult{Action: CanBeRegistered}, nil
	}

	if !MeetsMinimum(OutputsToFederations(tx, live), minValue, act) {
		return EvaluationResult{Action: CannotBeProcessed, Reason: InvalidAmount}, nil
	}

	info, err := ParsePeginInformation(tx, params)
	if err != nil {
		if !errors.Is(err, ErrInvalidPeginPayload) {
			types.PanicConsensusViolation("unexpected peg-in parsing failure: %v", err)
		}
		if info.BtcRefundAddress != nil {
			return EvaluationResult{Action: CanBeRefunded, Reason: PeginV1InvalidPayload}, info
		}
		return EvaluationResult{Action: CannotBeProcessed, Reason: PeginV1InvalidPayload}, info
	}

	return evaluateProtocol(info), info
}

func evaluateProtocol(info *PeginInformation) EvaluationResult {
	switch info.ProtocolVersion {
	case LegacyProtocolVersion:
		return evaluateLegacySender(info.SenderType())
	case V1ProtocolVersion:
		return EvaluationResult{Action: CanBeRegistered}
	default:
		types.PanicConsensusViolation("unexpected peg-in protocol version %d", info.ProtocolVersion)
		return EvaluationResult{}
	}
}

func evaluateLegacySender(senderType SenderType) EvaluationResult {
	switch senderType {
	case SenderP2PKH, SenderP2SHP2WPKH:
		return EvaluationResult{Action: CanBeRegistered}
	case SenderP2SHMultisig, SenderP2SHP2WSHMultisig:
		return EvaluationResult{Action: CanBeRefunded, Reason: LegacyPeginMultisigSender}
	default:
		return EvaluationResult{Action: CannotBeProcessed, Reason: LegacyPeginUndeterminedSender}
	}
}

// EvaluateLegacyPegin applies the peg-in rules in force before
// FlagPeginEvaluation: only single-key senders are credited, multisig
// senders are refunded and anything else is ignored.
func EvaluateLegacyPegin(
	tx *wire.MsgTx,
	feds Federations,
	minValue btcutil.Amount,
	params *chaincfg.Params,
	act types.Activations,
) (EvaluationResult, *PeginInformation) {
	if !MeetsMinimum(OutputsToFederations(tx, feds.Live()), minValue, act) {
		return EvaluationResult{Action: CannotBeProcessed, Reason: InvalidAmount}, nil
	}

	info, err := ParsePeginInformation(tx, params)
	if err != nil {
		if info.BtcRefundAddress != nil {
			return EvaluationResult{Action: CanBeRefunded, Reason: PeginV1InvalidPayload}, info
		}
		return EvaluationResult{Action: CannotBeProcessed, Reason: PeginV1InvalidPayload}, info
	}
	if info.ProtocolVersion == LegacyProtocolVersion {
		return evaluateLegacySender(info.SenderType()), info
	}
	return EvaluationResult{Action: CanBeRegistered}, info
}
