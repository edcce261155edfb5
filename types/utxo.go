package types

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// UTXO is an unspent output owned by a federation.
type UTXO struct {
	TxHash             chainhash.Hash
	OutputIndex        uint32
	Value              btcutil.Amount
	ConfirmationHeight int32
	IsCoinbase         bool
	// Script is the scriptPubKey locking the output.
	Script []byte
}

func (u *UTXO) OutPoint() wire.OutPoint {
	return wire.OutPoint{Hash: u.TxHash, Index: u.OutputIndex}
}

func (u *UTXO) Equal(other *UTXO) bool {
	return u.TxHash == other.TxHash &&
		u.OutputIndex == other.OutputIndex &&
		u.Value == other.Value &&
		u.ConfirmationHeight == other.ConfirmationHeight &&
		u.IsCoinbase == other.IsCoinbase &&
		bytes.Equal(u.Script, other.Script)
}

func (u *UTXO) String() string {
	return fmt.Sprintf("%s:%d (%s)", u.TxHash, u.OutputIndex, u.Value)
}

// TotalValue sums the value of the given UTXOs.
func TotalValue(utxos []*UTXO) btcutil.Amount {
	var total btcutil.Amount
	for _, u := range utxos {
		total += u.Value
	}
	return total
}
