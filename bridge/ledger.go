package bridge

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
)

// LedgerTransfer is the ledger side of the peg. The bridge calls it when
// pegged value crosses the boundary; implementations live in the block
// execution pipeline.
type LedgerTransfer interface {
	// CreditPegin mints amount to destination for the peg-in btcTxHash.
	CreditPegin(btcTxHash chainhash.Hash, destination common.Address, amount btcutil.Amount) error
	// ReleaseSigned publishes a fully signed release transaction so that
	// relayers broadcast it to the Bitcoin network.
	ReleaseSigned(rskTxHash chainhash.Hash, tx *wire.MsgTx) error
}
