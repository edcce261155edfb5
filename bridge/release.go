package bridge

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/babylonchain/btc-bridge/btcscript"
	"github.com/babylonchain/btc-bridge/release"
	"github.com/babylonchain/btc-bridge/types"
)

// ReleaseBtc queues a request to pay amount to destination on Bitcoin.
// rskTxHash is the ledger transaction that burnt the pegged value.
func (s *Support) ReleaseBtc(rskTxHash chainhash.Hash, destination string, amount btcutil.Amount) error {
	addr, err := btcscript.DecodeAddress(destination, s.constants.BtcParams)
	if err != nil {
		return ErrInvalidDestination.Wrapf("%s: %v", destination, err)
	}

	minimum := s.constants.MinimumPegoutValue(s.act)
	if amount < minimum {
		return ErrAmountBelowMinimum.Wrapf("%s < %s", amount, minimum)
	}

	queue, err := s.provider.ReleaseRequestQueue()
	if err != nil {
		return err
	}
	request := &release.Request{Destination: addr, Amount: amount, RskTxHash: rskTxHash}

	if s.act.IsActive(types.FlagBatchedPegouts) {
		fee, err := s.estimateFee(append(queue[:len(queue):len(queue)], request))
		if err != nil {
			return err
		}
		// each request pays an even share of the batch fee
		share := fee / btcutil.Amount(len(queue)+1)
		if share >= amount {
			return ErrFeeAboveValue.Wrapf("fee share %s, amount %s", share, amount)
		}
	}

	s.provider.SetReleaseRequestQueue(append(queue, request))
	s.metrics.RecordReleaseRequest()
	s.logger.Info("queued release request",
		zap.String("rsk_tx", rskTxHash.String()),
		zap.String("destination", addr.String()),
		zap.Int64("amount", int64(amount)))
	return nil
}

// EstimatedFeesForNextPegout projects the fee of the next batched pegout
// paying the queued requests.
func (s *Support) EstimatedFeesForNextPegout() (btcutil.Amount, error) {
	queue, err := s.provider.ReleaseRequestQueue()
	if err != nil {
		return 0, err
	}
	return s.estimateFee(queue)
}

func (s *Support) estimateFee(requests []*release.Request) (btcutil.Amount, error) {
	active, err := s.ActiveFederation()
	if err != nil {
		return 0, err
	}
	utxos, err := s.ActiveFederationUTXOs()
	if err != nil {
		return 0, err
	}
	feePerKb, err := s.provider.FeePerKb()
	if err != nil {
		return 0, err
	}
	return release.EstimateNextPegoutFee(active, utxos, requests, feePerKb, s.act, s.logger), nil
}
