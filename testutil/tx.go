package testutil

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/btcscript"
	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/release"
	"github.com/babylonchain/btc-bridge/types"
)

func GenRandomOutPoint(r *rand.Rand) *wire.OutPoint {
	prev := GenRandomHash(r)
	return wire.NewOutPoint(&prev, r.Uint32()%10)
}

// GenRandomSignature returns bytes shaped like a DER signature. Nothing in
// the bridge verifies Bitcoin input signatures.
func GenRandomSignature(r *rand.Rand) []byte {
	sig := GenRandomByteArray(r, 71)
	sig[0] = 0x30
	sig[len(sig)-1] = byte(txscript.SigHashAll)
	return sig
}

// SpendP2PKH returns an input spending a P2PKH output of key.
func SpendP2PKH(r *rand.Rand, t testing.TB, key *btcec.PublicKey) *wire.TxIn {
	sigScript, err := txscript.NewScriptBuilder().
		AddData(GenRandomSignature(r)).
		AddData(key.SerializeCompressed()).
		Script()
	require.NoError(t, err)
	return wire.NewTxIn(GenRandomOutPoint(r), sigScript, nil)
}

// SpendP2SHP2WPKH returns an input spending a nested segwit output of key.
func SpendP2SHP2WPKH(r *rand.Rand, t testing.TB, key *btcec.PublicKey) *wire.TxIn {
	program, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(btcutil.Hash160(key.SerializeCompressed())).
		Script()
	require.NoError(t, err)
	sigScript, err := txscript.NewScriptBuilder().AddData(program).Script()
	require.NoError(t, err)
	witness := wire.TxWitness{GenRandomSignature(r), key.SerializeCompressed()}
	return wire.NewTxIn(GenRandomOutPoint(r), sigScript, witness)
}

// SpendMultisig returns an input spending a P2SH, or P2SH-P2WSH when segwit
// is set, multisig of keys.
func SpendMultisig(r *rand.Rand, t testing.TB, keys []*btcec.PublicKey, segwit bool) *wire.TxIn {
	threshold := btcscript.MajorityThreshold(len(keys))
	redeemScript, err := btcscript.CreateMultiSigRedeemScript(threshold, keys)
	require.NoError(t, err)

	tmpl := &btcscript.SpendTemplate{RedeemScript: redeemScript, Threshold: threshold, Segwit: segwit}
	txIn := wire.NewTxIn(GenRandomOutPoint(r), nil, nil)
	sigs := make([][]byte, threshold)
	for i := range sigs {
		sigs[i] = GenRandomSignature(r)
	}
	require.NoError(t, tmpl.SetSignatures(txIn, sigs))
	return txIn
}

// SpendFederation returns an input spending an output of fed with
// placeholder signatures.
func SpendFederation(r *rand.Rand, t testing.TB, fed federation.Federation) *wire.TxIn {
	txIn := wire.NewTxIn(GenRandomOutPoint(r), nil, nil)
	require.NoError(t, fed.SpendTemplate().SetDummySigned(txIn))
	return txIn
}

// SpendUnknown returns an input whose scriptSig matches no known sender.
func SpendUnknown(r *rand.Rand) *wire.TxIn {
	return wire.NewTxIn(GenRandomOutPoint(r), []byte{txscript.OP_TRUE}, nil)
}

func NewTx(inputs []*wire.TxIn, outputs ...*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	for _, in := range inputs {
		tx.AddTxIn(in)
	}
	for _, out := range outputs {
		tx.AddTxOut(out)
	}
	return tx
}

// PayTo returns an output paying value to fed.
func PayTo(fed federation.Federation, value btcutil.Amount) *wire.TxOut {
	return wire.NewTxOut(int64(value), fed.P2SHScript())
}

// GenFederationUTXOs returns n outputs of value paying fed.
func GenFederationUTXOs(r *rand.Rand, fed federation.Federation, n int, value btcutil.Amount) []*types.UTXO {
	utxos := make([]*types.UTXO, n)
	for i := range utxos {
		utxos[i] = &types.UTXO{
			TxHash:             GenRandomHash(r),
			OutputIndex:        r.Uint32() % 5,
			Value:              value,
			ConfirmationHeight: int32(r.Intn(1000)),
			Script:             fed.P2SHScript(),
		}
	}
	return utxos
}

// GenPegoutRequests returns n requests of amount to random addresses.
func GenPegoutRequests(r *rand.Rand, t testing.TB, n int, amount btcutil.Amount, params *chaincfg.Params) []*release.Request {
	requests := make([]*release.Request, n)
	for i := range requests {
		requests[i] = &release.Request{
			Destination: GenRandomP2PKHAddress(r, t, params),
			Amount:      amount,
			RskTxHash:   GenRandomHash(r),
		}
	}
	return requests
}
