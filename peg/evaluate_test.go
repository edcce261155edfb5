package peg_test

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/peg"
	"github.com/babylonchain/btc-bridge/testutil"
	"github.com/babylonchain/btc-bridge/types"
)

type evaluationFixture struct {
	constants *types.BridgeConstants
	act       types.Activations
	fed       federation.Federation
	minValue  btcutil.Amount
}

func newEvaluationFixture(r *rand.Rand, t *testing.T) *evaluationFixture {
	constants := types.RegTestConstants()
	act := types.AllActiveFromGenesis().ForBlock(1)
	return &evaluationFixture{
		constants: constants,
		act:       act,
		fed:       testutil.GenFederation(r, t, federation.P2shErpFormat, 5, constants),
		minValue:  constants.MinimumPeginValue(act),
	}
}

func (f *evaluationFixture) evaluate(tx *wire.MsgTx) (peg.EvaluationResult, *peg.PeginInformation) {
	return peg.EvaluatePegin(tx, peg.Federations{Active: f.fed}, f.minValue, f.constants.BtcParams, f.act)
}

func TestEvaluatePeginBeforeActivationPanics(t *testing.T) {
	r := rand.New(rand.NewSource(20))
	f := newEvaluationFixture(r, t)
	tx := testutil.NewTx([]*wire.TxIn{testutil.SpendUnknown(r)}, testutil.PayTo(f.fed, f.minValue))

	act := types.AllActiveExcept(types.FlagPeginEvaluation).ForBlock(1)
	require.Panics(t, func() {
		peg.EvaluatePegin(tx, peg.Federations{Active: f.fed}, f.minValue, f.constants.BtcParams, act)
	})
}

func TestEvaluatePeginLegacySenders(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	f := newEvaluationFixture(r, t)
	key := testutil.GenRandomBtcPubKeys(r, t, 1)[0]
	multisigKeys := testutil.GenRandomBtcPubKeys(r, t, 3)

	testCases := []struct {
		name           string
		input          *wire.TxIn
		expected       peg.EvaluationResult
		senderType     peg.SenderType
		hasDestination bool
	}{
		{"p2pkh", testutil.SpendP2PKH(r, t, key),
			peg.EvaluationResult{Action: peg.CanBeRegistered}, peg.SenderP2PKH, true},
		{"p2sh-p2wpkh", testutil.SpendP2SHP2WPKH(r, t, key),
			peg.EvaluationResult{Action: peg.CanBeRegistered}, peg.SenderP2SHP2WPKH, true},
		{"p2sh multisig", testutil.SpendMultisig(r, t, multisigKeys, false),
			peg.EvaluationResult{Action: peg.CanBeRefunded, Reason: peg.LegacyPeginMultisigSender}, peg.SenderP2SHMultisig, false},
		{"p2sh-p2wsh multisig", testutil.SpendMultisig(r, t, multisigKeys, true),
			peg.EvaluationResult{Action: peg.CanBeRefunded, Reason: peg.LegacyPeginMultisigSender}, peg.SenderP2SHP2WSHMultisig, false},
		{"unknown", testutil.SpendUnknown(r),
			peg.EvaluationResult{Action: peg.CannotBeProcessed, Reason: peg.LegacyPeginUndeterminedSender}, peg.SenderUnknown, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tx := testutil.NewTx([]*wire.TxIn{tc.input}, testutil.PayTo(f.fed, f.minValue))
			result, info := f.evaluate(tx)
			require.Equal(t, tc.expected, result)
			require.NotNil(t, info)
			require.Equal(t, peg.LegacyProtocolVersion, info.ProtocolVersion)
			require.Equal(t, tc.senderType, info.SenderType())
			if tc.hasDestination {
				require.NotNil(t, info.RskDestination)
				require.Equal(t, crypto.PubkeyToAddress(*key.ToECDSA()), *info.RskDestination)
			} else {
				require.Nil(t, info.RskDestination)
			}
		})
	}
}

func TestEvaluatePeginV1(t *testing.T) {
	r := rand.New(rand.NewSource(22))
	f := newEvaluationFixture(r, t)
	params := f.constants.BtcParams
	key := testutil.GenRandomBtcPubKeys(r, t, 1)[0]
	destination := testutil.GenRandomRskAddress(r)
	refund := testutil.GenRandomP2PKHAddress(r, t, params)

	t.Run("valid with refund address", func(t *testing.T) {
		script, err := peg.BuildPeginInstructionsScript(destination, refund)
		require.NoError(t, err)
		tx := testutil.NewTx([]*wire.TxIn{testutil.SpendMultisig(r, t, testutil.GenRandomBtcPubKeys(r, t, 3), false)},
			testutil.PayTo(f.fed, f.minValue), wire.NewTxOut(0, script))

		result, info := f.evaluate(tx)
		require.Equal(t, peg.EvaluationResult{Action: peg.CanBeRegistered}, result)
		require.Equal(t, peg.V1ProtocolVersion, info.ProtocolVersion)
		require.Equal(t, destination, *info.RskDestination)
		require.Equal(t, refund.EncodeAddress(), info.BtcRefundAddress.EncodeAddress())
	})

	t.Run("valid without refund address", func(t *testing.T) {
		script, err := peg.BuildPeginInstructionsScript(destination, nil)
		require.NoError(t, err)
		input := testutil.SpendP2PKH(r, t, key)
		tx := testutil.NewTx([]*wire.TxIn{input}, wire.NewTxOut(0, script), testutil.PayTo(f.fed, f.minValue))

		result, info := f.evaluate(tx)
		require.Equal(t, peg.EvaluationResult{Action: peg.CanBeRegistered}, result)
		require.Equal(t, destination, *info.RskDestination)
		sender := peg.DetectLockSender(tx, params)
		require.Equal(t, sender.BtcAddress.EncodeAddress(), info.BtcRefundAddress.EncodeAddress())
	})

	invalidPayloads := map[string][]byte{
		"truncated":       append(append([]byte{}, peg.PeginInstructionsPrefix...), 1, 2, 3),
		"unknown version": append(append([]byte{}, peg.PeginInstructionsPrefix...), append([]byte{2}, destination.Bytes()...)...),
		"no version":      peg.PeginInstructionsPrefix,
	}
	for name, payload := range invalidPayloads {
		t.Run(name, func(t *testing.T) {
			script, err := txscript.NullDataScript(payload)
			require.NoError(t, err)

			refundable := testutil.NewTx([]*wire.TxIn{testutil.SpendP2PKH(r, t, key)},
				testutil.PayTo(f.fed, f.minValue), wire.NewTxOut(0, script))
			result, _ := f.evaluate(refundable)
			require.Equal(t, peg.EvaluationResult{Action: peg.CanBeRefunded, Reason: peg.PeginV1InvalidPayload}, result)

			unrefundable := testutil.NewTx([]*wire.TxIn{testutil.SpendUnknown(r)},
				testutil.PayTo(f.fed, f.minValue), wire.NewTxOut(0, script))
			result, _ = f.evaluate(unrefundable)
			require.Equal(t, peg.EvaluationResult{Action: peg.CannotBeProcessed, Reason: peg.PeginV1InvalidPayload}, result)
		})
	}

	t.Run("two instruction outputs", func(t *testing.T) {
		script, err := peg.BuildPeginInstructionsScript(destination, nil)
		require.NoError(t, err)
		tx := testutil.NewTx([]*wire.TxIn{testutil.SpendP2PKH(r, t, key)},
			wire.NewTxOut(0, script), testutil.PayTo(f.fed, f.minValue), wire.NewTxOut(0, script))

		_, err = peg.ParsePeginInformation(tx, params)
		require.ErrorIs(t, err, peg.ErrInvalidPeginPayload)
		result, _ := f.evaluate(tx)
		require.Equal(t, peg.EvaluationResult{Action: peg.CanBeRefunded, Reason: peg.PeginV1InvalidPayload}, result)
	})
}

// FuzzEvaluatePeginBelowMinimum checks that amounts below the minimum are
// rejected whoever the sender is
func FuzzEvaluatePeginBelowMinimum(f *testing.F) {
	testutil.AddRandomSeedsToFuzzer(f, 10)
	f.Fuzz(func(t *testing.T, seed int64) {
		r := rand.New(rand.NewSource(seed))
		fx := newEvaluationFixture(r, t)
		key := testutil.GenRandomBtcPubKeys(r, t, 1)[0]

		inputs := []*wire.TxIn{
			testutil.SpendP2PKH(r, t, key),
			testutil.SpendP2SHP2WPKH(r, t, key),
			testutil.SpendMultisig(r, t, testutil.GenRandomBtcPubKeys(r, t, 3), r.Intn(2) == 0),
			testutil.SpendUnknown(r),
		}
		value := btcutil.Amount(r.Int63n(int64(fx.minValue)))
		tx := testutil.NewTx([]*wire.TxIn{inputs[r.Intn(len(inputs))]}, testutil.PayTo(fx.fed, value))

		result, info := fx.evaluate(tx)
		require.Equal(t, peg.EvaluationResult{Action: peg.CannotBeProcessed, Reason: peg.InvalidAmount}, result)
		require.Nil(t, info)
	})
}

func TestEvaluatePeginPerOutputMinimum(t *testing.T) {
	r := rand.New(rand.NewSource(23))
	f := newEvaluationFixture(r, t)
	key := testutil.GenRandomBtcPubKeys(r, t, 1)[0]

	// the sum reaches the minimum, the first output alone does not
	tx := testutil.NewTx([]*wire.TxIn{testutil.SpendP2PKH(r, t, key)},
		testutil.PayTo(f.fed, f.minValue/2), testutil.PayTo(f.fed, f.minValue))

	result, _ := f.evaluate(tx)
	require.Equal(t, peg.EvaluationResult{Action: peg.CannotBeProcessed, Reason: peg.InvalidAmount}, result)

	summed := types.AllActiveExcept(types.FlagPeginPerOutputMinimum).ForBlock(1)
	result, _ = peg.EvaluatePegin(tx, peg.Federations{Active: f.fed}, f.minValue, f.constants.BtcParams, summed)
	require.Equal(t, peg.EvaluationResult{Action: peg.CanBeRegistered}, result)
}

func TestEvaluatePeginFederationSpend(t *testing.T) {
	r := rand.New(rand.NewSource(24))
	f := newEvaluationFixture(r, t)

	// spends of federation funds are accepted whatever they carry
	tx := testutil.NewTx([]*wire.TxIn{testutil.SpendFederation(r, t, f.fed)}, testutil.PayTo(f.fed, 1))
	result, info := f.evaluate(tx)
	require.Equal(t, peg.EvaluationResult{Action: peg.CanBeRegistered}, result)
	require.Nil(t, info)
}

func TestEvaluateLegacyPegin(t *testing.T) {
	r := rand.New(rand.NewSource(25))
	f := newEvaluationFixture(r, t)
	act := types.AllActiveExcept(types.FlagPeginEvaluation).ForBlock(1)
	feds := peg.Federations{Active: f.fed}

	tx := testutil.NewTx([]*wire.TxIn{testutil.SpendP2PKH(r, t, testutil.GenRandomBtcPubKeys(r, t, 1)[0])},
		testutil.PayTo(f.fed, f.minValue))
	result, info := peg.EvaluateLegacyPegin(tx, feds, f.minValue, f.constants.BtcParams, act)
	require.Equal(t, peg.EvaluationResult{Action: peg.CanBeRegistered}, result)
	require.Equal(t, peg.SenderP2PKH, info.SenderType())

	tx = testutil.NewTx([]*wire.TxIn{testutil.SpendMultisig(r, t, testutil.GenRandomBtcPubKeys(r, t, 2), false)},
		testutil.PayTo(f.fed, f.minValue))
	result, _ = peg.EvaluateLegacyPegin(tx, feds, f.minValue, f.constants.BtcParams, act)
	require.Equal(t, peg.EvaluationResult{Action: peg.CanBeRefunded, Reason: peg.LegacyPeginMultisigSender}, result)
}
