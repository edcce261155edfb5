package bridge

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"

	bridgestore "github.com/babylonchain/btc-bridge/bridge/store"
	"github.com/babylonchain/btc-bridge/btcscript"
	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/peg"
	"github.com/babylonchain/btc-bridge/release"
	"github.com/babylonchain/btc-bridge/spv"
	"github.com/babylonchain/btc-bridge/types"
)

// RegisterBtcTransaction processes a Bitcoin transaction involving the
// federation. The transaction must be included, as proven by proof, in the
// main chain block at height with enough confirmations. rskTxHash is the
// ledger transaction carrying the registration.
func (s *Support) RegisterBtcTransaction(
	rskTxHash chainhash.Hash,
	tx *wire.MsgTx,
	height int32,
	proof *spv.PartialMerkleTree,
) error {
	txHash := tx.TxHash()
	logger := s.logger.With(zap.String("btc_tx", txHash.String()), zap.Int32("btc_height", height))

	_, processed, err := s.provider.ProcessedBtcTxHeight(txHash)
	if err != nil {
		return err
	}
	if processed {
		return fmt.Errorf("%w: %s", types.ErrTxAlreadyProcessed, txHash)
	}

	if err := s.verifyInclusion(txHash, height, proof); err != nil {
		return err
	}

	feds, err := s.federations()
	if err != nil {
		return err
	}

	txType := s.classifier.Classify(tx, feds, s.act)
	logger.Debug("classified Bitcoin transaction", zap.Stringer("type", txType))
	switch txType {
	case peg.TxPegin:
		err = s.processPegin(rskTxHash, tx, height, feds, logger)
	case peg.TxPegoutOrMigration:
		err = s.processPegoutOrMigration(tx, height, feds, logger)
	default:
		logger.Info("ignoring a transaction unrelated to the federation")
		return nil
	}
	if err != nil {
		return err
	}

	return s.provider.SetProcessedBtcTx(txHash, s.block.Height)
}

// verifyInclusion checks the depth of the block at height and that proof
// commits txHash to its merkle root.
func (s *Support) verifyInclusion(txHash chainhash.Hash, height int32, proof *spv.PartialMerkleTree) error {
	head, err := s.blockStore.ChainHead()
	if err != nil {
		return err
	}
	if height < 0 || height > head.Height {
		return fmt.Errorf("%w: block %d, chain head at %d", types.ErrHeightTooHigh, height, head.Height)
	}

	confirmations := uint32(head.Height-height) + 1
	if confirmations < s.constants.Btc2RskMinimumAcceptableConfirmations {
		return fmt.Errorf("%w: %d of %d", types.ErrNotEnoughConfirmation,
			confirmations, s.constants.Btc2RskMinimumAcceptableConfirmations)
	}

	block, err := s.blockStore.StoredBlockAtMainChainHeight(height)
	if err != nil {
		return err
	}
	return spv.VerifyInclusion(proof, &block.Header, txHash)
}

func (s *Support) processPegin(
	rskTxHash chainhash.Hash,
	tx *wire.MsgTx,
	height int32,
	feds peg.Federations,
	logger *zap.Logger,
) error {
	minValue := s.constants.MinimumPeginValue(s.act)
	params := s.constants.BtcParams

	var (
		result peg.EvaluationResult
		info   *peg.PeginInformation
	)
	if s.act.IsActive(types.FlagPeginEvaluation) {
		result, info = peg.EvaluatePegin(tx, feds, minValue, params, s.act)
	} else {
		result, info = peg.EvaluateLegacyPegin(tx, feds, minValue, params, s.act)
	}
	logger.Info("evaluated peg-in", zap.Stringer("result", result))

	switch result.Action {
	case peg.CanBeRegistered:
		return s.registerPegin(tx, height, feds, info, logger)
	case peg.CanBeRefunded:
		return s.refundPegin(rskTxHash, tx, height, feds, info, logger)
	default:
		s.metrics.RecordPeginRejected(result.Reason.String())
		return nil
	}
}

func (s *Support) registerPegin(
	tx *wire.MsgTx,
	height int32,
	feds peg.Federations,
	info *peg.PeginInformation,
	logger *zap.Logger,
) error {
	if info == nil || info.RskDestination == nil {
		types.PanicConsensusViolation("peg-in %s accepted without a ledger destination", tx.TxHash())
	}

	outputs := peg.OutputsToFederations(tx, feds.Live())
	var amount btcutil.Amount
	for _, out := range outputs {
		amount += out.Value
	}

	if err := s.ledger.CreditPegin(tx.TxHash(), *info.RskDestination, amount); err != nil {
		return fmt.Errorf("failed to credit peg-in %s: %w", tx.TxHash(), err)
	}
	if err := s.saveFederationOutputs(tx, height, outputs); err != nil {
		return err
	}

	s.metrics.RecordPeginRegistered()
	logger.Info("registered peg-in",
		zap.String("destination", info.RskDestination.Hex()),
		zap.Int64("amount", int64(amount)))
	return nil
}

// refundPegin sends the value locked in each federation back to the
// sender, one sweep per federation holding outputs of tx.
func (s *Support) refundPegin(
	rskTxHash chainhash.Hash,
	tx *wire.MsgTx,
	height int32,
	feds peg.Federations,
	info *peg.PeginInformation,
	logger *zap.Logger,
) error {
	if info == nil || info.BtcRefundAddress == nil {
		types.PanicConsensusViolation("peg-in %s refunded without a refund address", tx.TxHash())
	}
	refundScript, err := txscript.PayToAddrScript(info.BtcRefundAddress)
	if err != nil {
		return fmt.Errorf("invalid refund address %s: %w", info.BtcRefundAddress, err)
	}

	feePerKb, err := s.provider.FeePerKb()
	if err != nil {
		return err
	}

	outputs := peg.OutputsToFederations(tx, feds.Live())
	for _, fed := range feds.Live() {
		utxos := utxosPaying(tx, height, outputs, fed)
		if len(utxos) == 0 {
			continue
		}

		result := release.NewBuilder(fed, nil, feePerKb, s.logger).BuildSweep(utxos, refundScript)
		if result.Code != release.Success {
			logger.Warn("could not build the peg-in refund",
				zap.String("refund_address", info.BtcRefundAddress.String()),
				zap.Stringer("code", result.Code))
			continue
		}
		if err := s.addPegoutWaitingForConfirmations(rskTxHash, result); err != nil {
			return err
		}
		logger.Info("refunding peg-in",
			zap.String("refund_address", info.BtcRefundAddress.String()),
			zap.String("refund_tx", result.Tx.TxHash().String()))
	}

	s.metrics.RecordPeginRefunded()
	return nil
}

func (s *Support) processPegoutOrMigration(
	tx *wire.MsgTx,
	height int32,
	feds peg.Federations,
	logger *zap.Logger,
) error {
	if s.act.IsActive(types.FlagPegoutTxHashIndex) {
		created, err := s.provider.HasPegoutTxHash(UnsignedTxHash(tx, feds.Live()))
		if err != nil {
			return err
		}
		if !created {
			logger.Warn("registering a federation spend the bridge did not create")
		}
	}

	outputs := peg.OutputsToFederations(tx, feds.Live())
	if err := s.saveFederationOutputs(tx, height, outputs); err != nil {
		return err
	}
	logger.Info("registered pegout or migration", zap.Int("federation_outputs", len(outputs)))
	return nil
}

// saveFederationOutputs records outputs of tx as spendable UTXOs of the
// federations they pay.
func (s *Support) saveFederationOutputs(tx *wire.MsgTx, height int32, outputs []peg.FederationOutput) error {
	for _, out := range outputs {
		utxos, set, err := s.utxosOf(out.Federation)
		if err != nil {
			return err
		}
		set(append(utxos, utxoFromOutput(tx, height, out)))
	}
	return nil
}

func utxosPaying(tx *wire.MsgTx, height int32, outputs []peg.FederationOutput, fed federation.Federation) []*types.UTXO {
	var utxos []*types.UTXO
	for _, out := range outputs {
		if bytes.Equal(out.Federation.P2SHScript(), fed.P2SHScript()) {
			utxos = append(utxos, utxoFromOutput(tx, height, out))
		}
	}
	return utxos
}

func utxoFromOutput(tx *wire.MsgTx, height int32, out peg.FederationOutput) *types.UTXO {
	return &types.UTXO{
		TxHash:             tx.TxHash(),
		OutputIndex:        out.Index,
		Value:              out.Value,
		ConfirmationHeight: height,
		Script:             tx.TxOut[out.Index].PkScript,
	}
}

// UnsignedTxHash is the hash of tx with the signatures of every input
// spending one of feds removed. It matches the hash of the release
// transaction as built, before signing.
func UnsignedTxHash(tx *wire.MsgTx, feds []federation.Federation) chainhash.Hash {
	unsigned := tx.Copy()
	for _, txIn := range unsigned.TxIn {
		redeemScript, err := btcscript.ExtractRedeemScript(txIn)
		if err != nil {
			continue
		}
		for _, fed := range feds {
			if bytes.Equal(redeemScript, fed.RedeemScript()) {
				if err := fed.SpendTemplate().SetUnsigned(txIn); err != nil {
					types.PanicConsensusViolation("cannot clear the signatures of a federation input: %v", err)
				}
				break
			}
		}
	}
	return unsigned.TxHash()
}

func (s *Support) addPegoutWaitingForConfirmations(rskTxHash chainhash.Hash, result *release.BuildResult) error {
	values := make([]btcutil.Amount, len(result.SelectedUTXOs))
	for i, u := range result.SelectedUTXOs {
		values[i] = u.Value
	}
	entry := &bridgestore.PegoutEntry{
		Tx:             result.Tx,
		RskBlockNumber: s.block.Height,
		RskTxHash:      rskTxHash,
		InputValues:    values,
	}

	added, err := s.provider.AddPegoutWaitingForConfirmations(entry)
	if err != nil {
		return err
	}
	if !added {
		s.logger.Warn("release transaction is already waiting for confirmations",
			zap.String("btc_tx", result.Tx.TxHash().String()))
		return nil
	}
	return s.provider.SetPegoutTxHash(result.Tx.TxHash())
}
