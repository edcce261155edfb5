package btcscript_test

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/btcscript"
	"github.com/babylonchain/btc-bridge/testutil"
)

func genSpendTx(r *rand.Rand, t *testing.T, tmpl *btcscript.SpendTemplate, numInputs int) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	for i := 0; i < numInputs; i++ {
		hash := testutil.GenRandomHash(r)
		txIn := wire.NewTxIn(wire.NewOutPoint(&hash, uint32(i)), nil, nil)
		require.NoError(t, tmpl.SetUnsigned(txIn))
		tx.AddTxIn(txIn)
	}
	tx.AddTxOut(wire.NewTxOut(10_000, []byte{txscript.OP_TRUE}))
	return tx
}

func TestSpendTemplateLegacy(t *testing.T) {
	r := rand.New(rand.NewSource(23))
	redeem, err := btcscript.CreateMultiSigRedeemScript(3, testutil.GenRandomBtcPubKeys(r, t, 5))
	require.NoError(t, err)
	tmpl := &btcscript.SpendTemplate{RedeemScript: redeem, Threshold: 3}

	tx := genSpendTx(r, t, tmpl, 2)
	extracted, err := btcscript.ExtractRedeemScript(tx.TxIn[0])
	require.NoError(t, err)
	require.Equal(t, redeem, extracted)

	sigs, err := tmpl.Signatures(tx.TxIn[0])
	require.NoError(t, err)
	require.Empty(t, sigs)

	sigHash, err := btcscript.FirstInputSigHash(tx)
	require.NoError(t, err)

	added := [][]byte{testutil.GenRandomByteArray(r, 71), testutil.GenRandomByteArray(r, 72)}
	require.NoError(t, tmpl.SetSignatures(tx.TxIn[0], added))
	sigs, err = tmpl.Signatures(tx.TxIn[0])
	require.NoError(t, err)
	require.Equal(t, added, sigs)

	// signatures do not change the digest identifying the transaction
	afterSigning, err := btcscript.FirstInputSigHash(tx)
	require.NoError(t, err)
	require.Equal(t, sigHash, afterSigning)

	require.Error(t, tmpl.SetSignatures(tx.TxIn[0], make([][]byte, 4)))
}

func TestSpendTemplateSegwitErp(t *testing.T) {
	r := rand.New(rand.NewSource(29))
	witnessScript, err := btcscript.NewP2shErpBuilder().CreateRedeemScript(
		testutil.GenRandomBtcPubKeys(r, t, 7), 4,
		testutil.GenRandomBtcPubKeys(r, t, 3), 2,
		52_560,
	)
	require.NoError(t, err)
	tmpl := &btcscript.SpendTemplate{RedeemScript: witnessScript, Threshold: 4, Erp: true, Segwit: true}

	tx := genSpendTx(r, t, tmpl, 1)
	txIn := tx.TxIn[0]
	// empty dummy, 4 signature slots, branch selector, witness script
	require.Len(t, txIn.Witness, 7)

	program, err := txscript.NewScriptBuilder().AddData(btcscript.P2WSHProgram(witnessScript)).Script()
	require.NoError(t, err)
	require.Equal(t, program, txIn.SignatureScript)

	extracted, err := btcscript.ExtractRedeemScript(txIn)
	require.NoError(t, err)
	require.Equal(t, witnessScript, extracted)

	unsignedWeight := tx.SerializeSize()
	require.NoError(t, tmpl.SetDummySigned(txIn))
	sigs, err := tmpl.Signatures(txIn)
	require.NoError(t, err)
	require.Len(t, sigs, 4)
	require.Greater(t, tx.SerializeSize(), unsignedWeight)
}

func TestExtractRedeemScriptMissing(t *testing.T) {
	txIn := wire.NewTxIn(&wire.OutPoint{}, []byte{txscript.OP_0}, nil)
	_, err := btcscript.ExtractRedeemScript(txIn)
	require.ErrorIs(t, err, btcscript.ErrNoRedeemScript)

	_, err = btcscript.FirstInputSigHash(wire.NewMsgTx(wire.TxVersion))
	require.Error(t, err)
}

func TestFederationAddresses(t *testing.T) {
	r := rand.New(rand.NewSource(31))
	redeem, err := btcscript.CreateMultiSigRedeemScript(2, testutil.GenRandomBtcPubKeys(r, t, 3))
	require.NoError(t, err)

	params := &chaincfg.RegressionNetParams
	p2sh, err := btcscript.P2SHOutputScript(redeem, params)
	require.NoError(t, err)
	require.Equal(t, txscript.ScriptHashTy, txscript.GetScriptClass(p2sh))

	addr, err := btcscript.P2SHAddress(redeem, params)
	require.NoError(t, err)
	decoded, err := btcscript.DecodeAddress(addr.EncodeAddress(), params)
	require.NoError(t, err)
	require.Equal(t, addr.EncodeAddress(), decoded.EncodeAddress())

	nested, err := btcscript.P2SHP2WSHAddress(redeem, params)
	require.NoError(t, err)
	require.NotEqual(t, addr.EncodeAddress(), nested.EncodeAddress())

	_, err = btcscript.DecodeAddress(addr.EncodeAddress(), &chaincfg.MainNetParams)
	require.Error(t, err)
}

func TestCheckRedeemScriptSize(t *testing.T) {
	require.NoError(t, btcscript.CheckRedeemScriptSize(make([]byte, 520), false))
	err := btcscript.CheckRedeemScriptSize(make([]byte, 521), false)
	reason, ok := btcscript.CreationErrorReason(err)
	require.True(t, ok)
	require.Equal(t, btcscript.MaxScriptSizeExceeded, reason)

	require.NoError(t, btcscript.CheckRedeemScriptSize(make([]byte, 521), true))
	require.Error(t, btcscript.CheckRedeemScriptSize(make([]byte, 3601), true))
}
