package release

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/babylonchain/btc-bridge/types"
)

// ResponseCode is the outcome of building a release transaction.
type ResponseCode int

const (
	Success ResponseCode = iota
	InsufficientMoney
	DustySendRequested
	CouldNotAdjustDownwards
	ExceedMaxTransactionSize
)

func (c ResponseCode) String() string {
	switch c {
	case Success:
		return "SUCCESS"
	case InsufficientMoney:
		return "INSUFFICIENT_MONEY"
	case DustySendRequested:
		return "DUSTY_SEND_REQUESTED"
	case CouldNotAdjustDownwards:
		return "COULD_NOT_ADJUST_DOWNWARDS"
	case ExceedMaxTransactionSize:
		return "EXCEED_MAX_TRANSACTION_SIZE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(c))
	}
}

// Request asks for amount to be released to destination. RskTxHash is the
// ledger transaction that created the request.
type Request struct {
	Destination btcutil.Address
	Amount      btcutil.Amount
	RskTxHash   chainhash.Hash
}

// BuildResult holds the unsigned transaction when Code is Success.
type BuildResult struct {
	Code ResponseCode
	Tx   *wire.MsgTx
	// SelectedUTXOs are the federation outputs the transaction spends, in
	// input order.
	SelectedUTXOs []*types.UTXO
	Fee           btcutil.Amount
}

func (r *BuildResult) String() string {
	if r.Code != Success {
		return r.Code.String()
	}
	return fmt.Sprintf("%s(tx=%s, inputs=%d, fee=%s)", r.Code, r.Tx.TxHash(), len(r.SelectedUTXOs), r.Fee)
}

func failure(code ResponseCode) *BuildResult {
	return &BuildResult{Code: code}
}
