package bridge

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	bridgestore "github.com/babylonchain/btc-bridge/bridge/store"
	"github.com/babylonchain/btc-bridge/btcscript"
	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/release"
	"github.com/babylonchain/btc-bridge/types"
)

// UpdateCollections is the per-block tick: it migrates the funds of a
// retiring federation, turns queued requests into release transactions and
// hands one confirmed release to the signers. rskTxHash is the ledger
// transaction running the tick.
func (s *Support) UpdateCollections(rskTxHash chainhash.Hash) error {
	if err := s.processFundsMigration(rskTxHash); err != nil {
		return err
	}
	if err := s.processReleaseRequests(rskTxHash); err != nil {
		return err
	}
	return s.processConfirmations()
}

func (s *Support) processReleaseRequests(rskTxHash chainhash.Hash) error {
	if !s.act.IsActive(types.FlagBatchedPegouts) {
		return s.processReleasesIndividually()
	}

	next, err := s.provider.NextPegoutHeight()
	if err != nil {
		return err
	}
	if s.block.Height < next {
		return nil
	}

	if err := s.processReleasesInBatch(rskTxHash); err != nil {
		return err
	}
	s.provider.SetNextPegoutHeight(s.block.Height + s.constants.NumberOfBlocksBetweenPegouts)
	return nil
}

// processReleasesIndividually builds one transaction per request. Requests
// that cannot be paid yet stay queued.
func (s *Support) processReleasesIndividually() error {
	queue, err := s.provider.ReleaseRequestQueue()
	if err != nil {
		return err
	}

	var pending []*release.Request
	for _, req := range queue {
		paid, err := s.buildPegout([]*release.Request{req}, req.RskTxHash)
		if err != nil {
			return err
		}
		if !paid {
			pending = append(pending, req)
		}
	}
	s.provider.SetReleaseRequestQueue(pending)
	return nil
}

// processReleasesInBatch pays the whole queue in one transaction, halving
// the batch while it exceeds the maximum transaction size.
func (s *Support) processReleasesInBatch(rskTxHash chainhash.Hash) error {
	queue, err := s.provider.ReleaseRequestQueue()
	if err != nil {
		return err
	}
	if len(queue) == 0 {
		return nil
	}

	pending, err := s.buildBatch(queue, rskTxHash)
	if err != nil {
		return err
	}
	s.provider.SetReleaseRequestQueue(pending)
	return nil
}

// buildBatch returns the requests left unpaid.
func (s *Support) buildBatch(requests []*release.Request, rskTxHash chainhash.Hash) ([]*release.Request, error) {
	result, err := s.tryPegout(requests)
	if err != nil {
		return nil, err
	}

	switch {
	case result.Code == release.Success:
		return nil, s.commitPegout(result, rskTxHash, len(requests))
	case result.Code == release.ExceedMaxTransactionSize && len(requests) > 1:
		half := len(requests) / 2
		s.logger.Info("splitting an oversized pegout batch", zap.Int("requests", len(requests)))
		first, err := s.buildBatch(requests[:half], rskTxHash)
		if err != nil {
			return nil, err
		}
		second, err := s.buildBatch(requests[half:], rskTxHash)
		if err != nil {
			return nil, err
		}
		return append(first, second...), nil
	default:
		return requests, nil
	}
}

func (s *Support) buildPegout(requests []*release.Request, rskTxHash chainhash.Hash) (bool, error) {
	result, err := s.tryPegout(requests)
	if err != nil {
		return false, err
	}
	if result.Code != release.Success {
		return false, nil
	}
	return true, s.commitPegout(result, rskTxHash, len(requests))
}

func (s *Support) tryPegout(requests []*release.Request) (*release.BuildResult, error) {
	active, err := s.ActiveFederation()
	if err != nil {
		return nil, err
	}
	utxos, err := s.ActiveFederationUTXOs()
	if err != nil {
		return nil, err
	}
	feePerKb, err := s.provider.FeePerKb()
	if err != nil {
		return nil, err
	}

	result := release.NewBuilder(active, utxos, feePerKb, s.logger).BuildBatchedPegouts(requests)
	s.metrics.RecordPegoutBuild(result.Code.String())
	if result.Code != release.Success {
		s.logger.Warn("could not build a pegout transaction",
			zap.Int("requests", len(requests)), zap.Stringer("code", result.Code))
	}
	return result, nil
}

func (s *Support) commitPegout(result *release.BuildResult, rskTxHash chainhash.Hash, numRequests int) error {
	active, err := s.ActiveFederation()
	if err != nil {
		return err
	}
	if err := s.removeUTXOs(active, result.SelectedUTXOs); err != nil {
		return err
	}
	if err := s.addPegoutWaitingForConfirmations(rskTxHash, result); err != nil {
		return err
	}
	s.logger.Info("created pegout transaction",
		zap.String("btc_tx", result.Tx.TxHash().String()),
		zap.Int("requests", numRequests),
		zap.Int64("fee", int64(result.Fee)))
	return nil
}

// processFundsMigration sweeps one chunk of the retiring federation's
// UTXOs per block while migrating. Past the migration end the retiring
// federation is dropped once it holds nothing.
func (s *Support) processFundsMigration(rskTxHash chainhash.Hash) error {
	retiring, err := s.RetiringFederation()
	if err != nil || retiring == nil {
		return err
	}
	active, err := s.ActiveFederation()
	if err != nil {
		return err
	}
	utxos, err := s.provider.OldFederationUTXOs()
	if err != nil {
		return err
	}

	inAge := s.isMigrationAge(active)
	pastAge := s.isPastMigrationAge(active)
	if !inAge && !pastAge {
		return nil
	}

	if len(utxos) > 0 && (pastAge || types.TotalValue(utxos) > s.constants.MinimumPegoutValue(s.act)) {
		swept, err := s.sweep(retiring, active, utxos, rskTxHash)
		if err != nil {
			return err
		}
		if !swept && pastAge {
			s.logger.Warn("dropping retiring federation funds that cannot be migrated",
				zap.Int("utxos", len(utxos)),
				zap.Int64("value", int64(types.TotalValue(utxos))))
			s.provider.SetOldFederationUTXOs(nil)
		}
	}

	if !pastAge {
		return nil
	}
	remaining, err := s.provider.OldFederationUTXOs()
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		s.retire(retiring)
	}
	return nil
}

// sweep migrates the next chunk of utxos to the active federation.
func (s *Support) sweep(retiring, active federation.Federation, utxos []*types.UTXO, rskTxHash chainhash.Hash) (bool, error) {
	chunk := utxos
	limit := s.constants.MaxInputsPerPegoutTransaction
	if s.act.IsActive(types.FlagMigrationInputLimit) && len(chunk) > limit {
		chunk = chunk[:limit]
	}

	feePerKb, err := s.provider.FeePerKb()
	if err != nil {
		return false, err
	}
	result := release.NewBuilder(retiring, utxos, feePerKb, s.logger).BuildSweep(chunk, active.P2SHScript())
	if result.Code != release.Success {
		s.logger.Warn("could not build a migration transaction",
			zap.Int("inputs", len(chunk)), zap.Stringer("code", result.Code))
		return false, nil
	}

	if err := s.removeUTXOs(retiring, result.SelectedUTXOs); err != nil {
		return false, err
	}
	if err := s.addPegoutWaitingForConfirmations(rskTxHash, result); err != nil {
		return false, err
	}
	s.metrics.RecordMigrationSweep()
	s.logger.Info("created migration transaction",
		zap.String("btc_tx", result.Tx.TxHash().String()),
		zap.Int("inputs", len(chunk)),
		zap.Int("remaining", len(utxos)-len(chunk)))
	return true, nil
}

// retire forgets the migrated federation, remembering its output script
// to recognize late spends.
func (s *Support) retire(retiring federation.Federation) {
	s.logger.Info("retiring federation", zap.String("address", retiring.Address().String()))
	if s.act.IsActive(types.FlagRetiredFedP2SHScript) {
		s.provider.SetLastRetiredFederationP2SHScript(retiring.P2SHScript())
	}
	s.provider.SetOldFederation(nil)
	s.provider.SetOldFederationUTXOs(nil)
}

// hasEnoughConfirmations is false for entries created above the current
// block, which a replayed or out of order tick can see.
func (s *Support) hasEnoughConfirmations(entry *bridgestore.PegoutEntry) bool {
	if s.block.Height < entry.RskBlockNumber {
		return false
	}
	return s.block.Height-entry.RskBlockNumber >= s.constants.Rsk2BtcMinimumAcceptableConfirmations
}

// processConfirmations moves the first release with enough ledger
// confirmations to the signers.
func (s *Support) processConfirmations() error {
	waiting, err := s.provider.PegoutsWaitingForConfirmations()
	if err != nil {
		return err
	}

	for i, entry := range waiting {
		if !s.hasEnoughConfirmations(entry) {
			continue
		}

		if s.act.IsActive(types.FlagPegoutSigHashIndex) {
			sigHash, err := btcscript.FirstInputSigHash(entry.Tx)
			if err != nil {
				types.PanicConsensusViolation("release %s has no first input sig-hash: %v", entry.Tx.TxHash(), err)
			}
			if err := s.provider.SetPegoutSigHash(sigHash); err != nil {
				return err
			}
		}

		signatures, err := s.provider.PegoutsWaitingForSignatures()
		if err != nil {
			return err
		}
		s.provider.SetPegoutsWaitingForSignatures(append(signatures, entry))

		rest := make([]*bridgestore.PegoutEntry, 0, len(waiting)-1)
		rest = append(rest, waiting[:i]...)
		rest = append(rest, waiting[i+1:]...)
		s.provider.SetPegoutsWaitingForConfirmations(rest)

		s.logger.Info("release confirmed, waiting for signatures",
			zap.String("btc_tx", entry.Tx.TxHash().String()),
			zap.String("rsk_tx", entry.RskTxHash.String()))
		return nil
	}
	return nil
}
