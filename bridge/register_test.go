package bridge_test

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/btcscript"
	"github.com/babylonchain/btc-bridge/peg"
	"github.com/babylonchain/btc-bridge/testutil"
	"github.com/babylonchain/btc-bridge/types"
)

const rskHeight = 100

func TestRegisterLegacyPegin(t *testing.T) {
	r := rand.New(rand.NewSource(10))
	h := newHarness(t, r, types.AllActiveFromGenesis())
	_, senderKey := testutil.GenRandomBtcKeyPair(r, t)
	fed := h.activeFederation(rskHeight)

	tx := testutil.NewTx([]*wire.TxIn{testutil.SpendP2PKH(r, t, senderKey)}, testutil.PayTo(fed, 1_500_000))
	inc := h.include(tx)
	require.NoError(t, h.register(rskHeight, inc))

	c, ok := h.ledger.credits[tx.TxHash()]
	require.True(t, ok)
	require.Equal(t, crypto.PubkeyToAddress(*senderKey.ToECDSA()), c.destination)
	require.Equal(t, btcutil.Amount(1_500_000), c.amount)

	s := h.support(rskHeight + 1)
	utxos, err := s.ActiveFederationUTXOs()
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	require.Equal(t, tx.TxHash(), utxos[0].TxHash)
	require.Equal(t, btcutil.Amount(1_500_000), utxos[0].Value)
	require.Equal(t, inc.height, utxos[0].ConfirmationHeight)

	processedAt, ok, err := s.ProcessedBtcTxHeight(tx.TxHash())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(rskHeight), processedAt)

	// a transaction is registered at most once
	err = h.register(rskHeight+1, inc)
	require.ErrorIs(t, err, types.ErrTxAlreadyProcessed)
	require.Len(t, h.ledger.credits, 1)
}

func TestRegisterV1Pegin(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	h := newHarness(t, r, types.AllActiveFromGenesis())
	fed := h.activeFederation(rskHeight)
	destination := testutil.GenRandomRskAddress(r)

	instructions, err := peg.BuildPeginInstructionsScript(destination, nil)
	require.NoError(t, err)
	tx := testutil.NewTx([]*wire.TxIn{testutil.SpendUnknown(r)},
		testutil.PayTo(fed, 700_000),
		wire.NewTxOut(0, instructions),
	)
	require.NoError(t, h.register(rskHeight, h.include(tx)))

	c, ok := h.ledger.credits[tx.TxHash()]
	require.True(t, ok)
	require.Equal(t, destination, c.destination)
	require.Equal(t, btcutil.Amount(700_000), c.amount)
}

func TestRegisterMultisigPeginIsRefunded(t *testing.T) {
	r := rand.New(rand.NewSource(12))
	h := newHarness(t, r, types.AllActiveFromGenesis())
	fed := h.activeFederation(rskHeight)
	senderKeys := testutil.GenRandomBtcPubKeys(r, t, 3)

	senderInput := testutil.SpendMultisig(r, t, senderKeys, false)
	tx := testutil.NewTx([]*wire.TxIn{senderInput}, testutil.PayTo(fed, 2_000_000))
	require.NoError(t, h.register(rskHeight, h.include(tx)))
	require.Empty(t, h.ledger.credits)

	s := h.support(rskHeight + 1)
	entries, err := s.PegoutsWaitingForConfirmations()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	refund := entries[0].Tx
	require.Len(t, refund.TxIn, 1)
	require.Equal(t, tx.TxHash(), refund.TxIn[0].PreviousOutPoint.Hash)
	require.Len(t, refund.TxOut, 1)
	require.Less(t, refund.TxOut[0].Value, int64(2_000_000))

	redeemScript, err := btcscript.ExtractRedeemScript(senderInput)
	require.NoError(t, err)
	senderAddr, err := btcscript.P2SHAddress(redeemScript, h.constants.BtcParams)
	require.NoError(t, err)
	expected, err := txscript.PayToAddrScript(senderAddr)
	require.NoError(t, err)
	require.Equal(t, expected, refund.TxOut[0].PkScript)

	// refunded value never becomes a federation UTXO
	utxos, err := s.ActiveFederationUTXOs()
	require.NoError(t, err)
	require.Empty(t, utxos)

	_, ok, err := s.ProcessedBtcTxHeight(tx.TxHash())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRegisterPegoutRecordsChange(t *testing.T) {
	r := rand.New(rand.NewSource(13))
	h := newHarness(t, r, types.AllActiveFromGenesis())
	fed := h.activeFederation(rskHeight)

	tx := testutil.NewTx([]*wire.TxIn{testutil.SpendFederation(r, t, fed)},
		wire.NewTxOut(400_000, testutil.PayToAddrScript(t, testutil.GenRandomP2PKHAddress(r, t, h.constants.BtcParams))),
		testutil.PayTo(fed, 300_000),
	)
	require.NoError(t, h.register(rskHeight, h.include(tx)))
	require.Empty(t, h.ledger.credits)

	utxos, err := h.support(rskHeight).ActiveFederationUTXOs()
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	require.Equal(t, uint32(1), utxos[0].OutputIndex)
	require.Equal(t, btcutil.Amount(300_000), utxos[0].Value)
}

func TestRegisterIgnoresUnrelatedTransactions(t *testing.T) {
	r := rand.New(rand.NewSource(14))
	h := newHarness(t, r, types.AllActiveFromGenesis())
	_, senderKey := testutil.GenRandomBtcKeyPair(r, t)
	fed := h.activeFederation(rskHeight)

	for name, out := range map[string]*wire.TxOut{
		"unrelated output": wire.NewTxOut(5_000_000,
			testutil.PayToAddrScript(t, testutil.GenRandomP2PKHAddress(r, t, h.constants.BtcParams))),
		"below the peg-in minimum": testutil.PayTo(fed, h.constants.MinimumPeginTxValue-1),
	} {
		t.Run(name, func(t *testing.T) {
			tx := testutil.NewTx([]*wire.TxIn{testutil.SpendP2PKH(r, t, senderKey)}, out)
			require.NoError(t, h.register(rskHeight, h.include(tx)))

			_, ok, err := h.support(rskHeight).ProcessedBtcTxHeight(tx.TxHash())
			require.NoError(t, err)
			require.False(t, ok)
			require.Empty(t, h.ledger.credits)
		})
	}
}

func TestRegisterRequiresSpvProof(t *testing.T) {
	r := rand.New(rand.NewSource(15))
	h := newHarness(t, r, types.AllActiveFromGenesis())
	_, senderKey := testutil.GenRandomBtcKeyPair(r, t)
	fed := h.activeFederation(rskHeight)
	newPegin := func() *wire.MsgTx {
		return testutil.NewTx([]*wire.TxIn{testutil.SpendP2PKH(r, t, senderKey)}, testutil.PayTo(fed, 1_000_000))
	}

	t.Run("not enough confirmations", func(t *testing.T) {
		tx := newPegin()
		block, height := h.mine([]*wire.MsgTx{tx}, 1)
		s := h.support(rskHeight)
		err := s.RegisterBtcTransaction(testutil.GenRandomHash(r), tx, height, testutil.MerkleProof(t, block, tx.TxHash()))
		require.ErrorIs(t, err, types.ErrNotEnoughConfirmation)
	})

	t.Run("block above the chain head", func(t *testing.T) {
		tx := newPegin()
		inc := h.include(tx)
		s := h.support(rskHeight)
		err := s.RegisterBtcTransaction(testutil.GenRandomHash(r), tx, inc.height+100, inc.proof)
		require.ErrorIs(t, err, types.ErrHeightTooHigh)
	})

	t.Run("proof of another transaction", func(t *testing.T) {
		proven, other := newPegin(), newPegin()
		block, height := h.mine([]*wire.MsgTx{proven, other}, int(h.constants.Btc2RskMinimumAcceptableConfirmations))
		s := h.support(rskHeight)
		err := s.RegisterBtcTransaction(testutil.GenRandomHash(r), other, height, testutil.MerkleProof(t, block, proven.TxHash()))
		require.ErrorIs(t, err, types.ErrInvalidMerkleProof)
	})

	require.Empty(t, h.ledger.credits)
}
