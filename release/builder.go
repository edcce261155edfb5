package release

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
	"go.uber.org/zap"

	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/types"
)

const (
	// maxBuildIterations bounds the fee feedback loop.
	maxBuildIterations = 10

	segwitTxVersion = 2
	legacyTxVersion = 1
)

// Builder assembles release transactions spending the UTXOs of one
// federation. Coin selection is deterministic: larger outputs first, ties
// broken by outpoint.
type Builder struct {
	fed      federation.Federation
	utxos    []*types.UTXO
	feePerKb chainfee.SatPerKVByte
	logger   *zap.Logger
}

func NewBuilder(
	fed federation.Federation,
	utxos []*types.UTXO,
	feePerKb chainfee.SatPerKVByte,
	logger *zap.Logger,
) *Builder {
	sorted := make([]*types.UTXO, len(utxos))
	copy(sorted, utxos)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		if c := bytes.Compare(sorted[i].TxHash[:], sorted[j].TxHash[:]); c != 0 {
			return c < 0
		}
		return sorted[i].OutputIndex < sorted[j].OutputIndex
	})

	return &Builder{
		fed:      fed,
		utxos:    sorted,
		feePerKb: feePerKb,
		logger:   logger,
	}
}

// IsDust reports whether an output of value paying pkScript would be
// rejected by relaying nodes.
func IsDust(value btcutil.Amount, pkScript []byte) bool {
	return mempool.IsDust(wire.NewTxOut(int64(value), pkScript), mempool.DefaultMinRelayTxFee)
}

// TxVersion is the version of transactions spending fed. Segwit
// federations use version 2 so the CSV branch stays spendable.
func TxVersion(fed federation.Federation) int32 {
	if fed.FormatVersion() == federation.P2shP2wshErpFormat {
		return segwitTxVersion
	}
	return legacyTxVersion
}

// BuildBatchedPegouts pays every request in one transaction with a change
// output back to the federation. Fees are paid by the recipients, split
// evenly with the remainder charged to the first one.
func (b *Builder) BuildBatchedPegouts(requests []*Request) *BuildResult {
	if len(requests) == 0 {
		types.PanicConsensusViolation("batched pegouts requested with no pegout requests")
	}

	outputs := make([]*wire.TxOut, len(requests))
	var total btcutil.Amount
	for i, req := range requests {
		pkScript, err := txscript.PayToAddrScript(req.Destination)
		if err != nil {
			// destinations are validated when requests are queued
			types.PanicConsensusViolation("queued pegout request to %s has no output script: %v", req.Destination, err)
		}
		if IsDust(req.Amount, pkScript) {
			return failure(DustySendRequested)
		}
		outputs[i] = wire.NewTxOut(int64(req.Amount), pkScript)
		total += req.Amount
	}

	selected, change, code := b.selectCoins(total)
	if code != Success {
		return failure(code)
	}

	return b.build(selected, outputs, change)
}

// BuildSweep moves the value of utxos to pkScript in a single output,
// paying the fee from it. Migrations and peg-in refunds are sweeps.
func (b *Builder) BuildSweep(utxos []*types.UTXO, pkScript []byte) *BuildResult {
	total := types.TotalValue(utxos)
	if total == 0 {
		return failure(InsufficientMoney)
	}
	out := wire.NewTxOut(int64(total), pkScript)
	return b.build(utxos, []*wire.TxOut{out}, -1)
}

// selectCoins picks UTXOs covering target with a change that is not dust.
func (b *Builder) selectCoins(target btcutil.Amount) ([]*types.UTXO, btcutil.Amount, ResponseCode) {
	if types.TotalValue(b.utxos) < target {
		return nil, 0, InsufficientMoney
	}

	changeScript := b.fed.P2SHScript()
	var (
		selected []*types.UTXO
		value    btcutil.Amount
	)
	for _, u := range b.utxos {
		selected = append(selected, u)
		value += u.Value
		if value >= target && !IsDust(value-target, changeScript) {
			return selected, value - target, Success
		}
	}

	// enough to pay the requests, but the change would be dust
	return nil, 0, DustySendRequested
}

// build runs the fee feedback loop. A negative change means there is no
// change output and the fee is taken from the outputs alone.
func (b *Builder) build(selected []*types.UTXO, outputs []*wire.TxOut, change btcutil.Amount) *BuildResult {
	var fee btcutil.Amount
	for i := 0; i < maxBuildIterations; i++ {
		tx, code := b.assemble(selected, outputs, change, fee)
		if code != Success {
			return failure(code)
		}

		signed, err := b.dummySigned(tx)
		if err != nil {
			b.logger.Error("failed to estimate the size of a release transaction", zap.Error(err))
			return failure(CouldNotAdjustDownwards)
		}
		stx := btcutil.NewTx(signed)
		if blockchain.GetTransactionWeight(stx) > types.MaxStandardTxWeight {
			return failure(ExceedMaxTransactionSize)
		}

		required := b.feePerKb.FeeForVSize(mempool.GetTxVirtualSize(stx))
		if required == fee {
			return &BuildResult{
				Code:          Success,
				Tx:            tx,
				SelectedUTXOs: selected,
				Fee:           fee,
			}
		}
		fee = required
	}

	b.logger.Warn("release transaction fee did not converge",
		zap.Int("inputs", len(selected)), zap.Int("outputs", len(outputs)))
	return failure(CouldNotAdjustDownwards)
}

// assemble builds the unsigned transaction charging fee to the outputs.
func (b *Builder) assemble(
	selected []*types.UTXO,
	outputs []*wire.TxOut,
	change btcutil.Amount,
	fee btcutil.Amount,
) (*wire.MsgTx, ResponseCode) {
	tx := wire.NewMsgTx(TxVersion(b.fed))
	tmpl := b.fed.SpendTemplate()
	for _, u := range selected {
		op := u.OutPoint()
		txIn := wire.NewTxIn(&op, nil, nil)
		if err := tmpl.SetUnsigned(txIn); err != nil {
			b.logger.Error("failed to lay out a federation input", zap.Error(err))
			return nil, CouldNotAdjustDownwards
		}
		tx.AddTxIn(txIn)
	}

	n := btcutil.Amount(len(outputs))
	share, remainder := fee/n, fee%n
	for i, out := range outputs {
		value := btcutil.Amount(out.Value) - share
		if i == 0 {
			value -= remainder
		}
		if value <= 0 || IsDust(value, out.PkScript) {
			return nil, CouldNotAdjustDownwards
		}
		tx.AddTxOut(wire.NewTxOut(int64(value), out.PkScript))
	}

	if change >= 0 {
		tx.AddTxOut(wire.NewTxOut(int64(change), b.fed.P2SHScript()))
	}
	return tx, Success
}

func (b *Builder) dummySigned(tx *wire.MsgTx) (*wire.MsgTx, error) {
	signed := tx.Copy()
	tmpl := b.fed.SpendTemplate()
	for _, txIn := range signed.TxIn {
		if err := tmpl.SetDummySigned(txIn); err != nil {
			return nil, err
		}
	}
	return signed, nil
}
