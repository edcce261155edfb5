package release

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
	"go.uber.org/zap"

	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/types"
)

// linearModelInputs is the number of federation inputs the linear fee
// model assumes a pegout spends.
const linearModelInputs = 2

// EstimateNextPegoutFee projects the fee of the next batched pegout paying
// requests. Before FlagPegoutFeeEstimationBuilder, and while no UTXOs are
// known, a linear model over the number of requests is used; afterwards the
// real builder runs over utxos.
func EstimateNextPegoutFee(
	fed federation.Federation,
	utxos []*types.UTXO,
	requests []*Request,
	feePerKb chainfee.SatPerKVByte,
	act types.Activations,
	logger *zap.Logger,
) btcutil.Amount {
	if len(requests) == 0 {
		return 0
	}

	if act.IsActive(types.FlagPegoutFeeEstimationBuilder) && len(utxos) > 0 {
		result := NewBuilder(fed, utxos, feePerKb, logger).BuildBatchedPegouts(requests)
		if result.Code == Success {
			return result.Fee
		}
		logger.Debug("falling back to the linear pegout fee model",
			zap.Stringer("code", result.Code), zap.Int("requests", len(requests)))
	}

	return LinearPegoutFee(fed, len(requests), feePerKb)
}

// LinearPegoutFee prices a transaction with two federation inputs and one
// output per request plus change, all sized as P2SH outputs.
func LinearPegoutFee(fed federation.Federation, numRequests int, feePerKb chainfee.SatPerKVByte) btcutil.Amount {
	if numRequests <= 0 {
		return 0
	}

	tx := wire.NewMsgTx(TxVersion(fed))
	tmpl := fed.SpendTemplate()
	for i := 0; i < linearModelInputs; i++ {
		txIn := wire.NewTxIn(&wire.OutPoint{Index: uint32(i)}, nil, nil)
		if err := tmpl.SetDummySigned(txIn); err != nil {
			// the federation's own template always fits its threshold
			types.PanicConsensusViolation("cannot lay out a federation input: %v", err)
		}
		tx.AddTxIn(txIn)
	}
	pkScript := fed.P2SHScript()
	for i := 0; i <= numRequests; i++ {
		tx.AddTxOut(wire.NewTxOut(0, pkScript))
	}

	return feePerKb.FeeForVSize(mempool.GetTxVirtualSize(btcutil.NewTx(tx)))
}
