package peg

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/babylonchain/btc-bridge/btcscript"
)

// LockSender is the owner of the funds spent by a peg-in, derived from its
// first input.
type LockSender struct {
	Type       SenderType
	BtcAddress btcutil.Address
	// RskAddress is derived from the spending public key. It is nil for
	// multisig senders.
	RskAddress *common.Address
}

// DetectLockSender recognizes the four supported spending patterns of the
// first input. It returns nil when the sender cannot be determined.
func DetectLockSender(tx *wire.MsgTx, params *chaincfg.Params) *LockSender {
	if len(tx.TxIn) == 0 {
		return nil
	}
	txIn := tx.TxIn[0]

	pushes, err := txscript.PushedData(txIn.SignatureScript)
	if err != nil || !txscript.IsPushOnlyScript(txIn.SignatureScript) {
		return nil
	}

	if len(txIn.Witness) == 0 {
		switch {
		case len(pushes) == 2 && btcscript.IsPublicKey(pushes[1]):
			return pubKeySender(SenderP2PKH, pushes[1], func(pk []byte) (btcutil.Address, error) {
				return btcutil.NewAddressPubKeyHash(btcutil.Hash160(pk), params)
			})
		case len(pushes) >= 3 && isMultisig(pushes[len(pushes)-1]):
			addr, err := btcscript.P2SHAddress(pushes[len(pushes)-1], params)
			if err != nil {
				return nil
			}
			return &LockSender{Type: SenderP2SHMultisig, BtcAddress: addr}
		}
		return nil
	}

	if len(pushes) != 1 {
		return nil
	}
	program := pushes[0]
	switch {
	case len(program) == 22 && program[0] == txscript.OP_0 && program[1] == txscript.OP_DATA_20 &&
		len(txIn.Witness) == 2 && btcscript.IsPublicKey(txIn.Witness[1]):
		return pubKeySender(SenderP2SHP2WPKH, txIn.Witness[1], func([]byte) (btcutil.Address, error) {
			return btcscript.P2SHAddress(program, params)
		})
	case len(program) == 34 && program[0] == txscript.OP_0 && program[1] == txscript.OP_DATA_32:
		witnessScript := txIn.Witness[len(txIn.Witness)-1]
		if !isMultisig(witnessScript) {
			return nil
		}
		addr, err := btcscript.P2SHP2WSHAddress(witnessScript, params)
		if err != nil {
			return nil
		}
		return &LockSender{Type: SenderP2SHP2WSHMultisig, BtcAddress: addr}
	}
	return nil
}

func pubKeySender(
	senderType SenderType,
	pubKey []byte,
	address func([]byte) (btcutil.Address, error),
) *LockSender {
	pk, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return nil
	}
	addr, err := address(pubKey)
	if err != nil {
		return nil
	}
	rsk := crypto.PubkeyToAddress(*pk.ToECDSA())
	return &LockSender{Type: senderType, BtcAddress: addr, RskAddress: &rsk}
}

func isMultisig(script []byte) bool {
	_, err := btcscript.ParseMultiSigRedeemScript(script)
	return err == nil
}
