package bridge_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/peg"
	"github.com/babylonchain/btc-bridge/testutil"
	"github.com/babylonchain/btc-bridge/testutil/mocks"
	"github.com/babylonchain/btc-bridge/types"
)

func TestFailedCreditLeavesPeginUnprocessed(t *testing.T) {
	r := rand.New(rand.NewSource(60))
	h := newHarness(t, r, types.AllActiveFromGenesis())
	fed := h.activeFederation(rskHeight)
	destination := testutil.GenRandomRskAddress(r)

	instructions, err := peg.BuildPeginInstructionsScript(destination, nil)
	require.NoError(t, err)
	tx := testutil.NewTx([]*wire.TxIn{testutil.SpendUnknown(r)},
		testutil.PayTo(fed, 900_000),
		wire.NewTxOut(0, instructions),
	)
	inc := h.include(tx)

	ctl := gomock.NewController(t)
	ledger := mocks.NewMockLedgerTransfer(ctl)
	h.transfer = ledger
	gomock.InOrder(
		ledger.EXPECT().CreditPegin(tx.TxHash(), destination, btcutil.Amount(900_000)).
			Return(errors.New("ledger unavailable")),
		ledger.EXPECT().CreditPegin(tx.TxHash(), destination, btcutil.Amount(900_000)).
			Return(nil),
	)

	require.Error(t, h.register(rskHeight, inc))
	s := h.support(rskHeight)
	_, processed, err := s.ProcessedBtcTxHeight(tx.TxHash())
	require.NoError(t, err)
	require.False(t, processed)
	utxos, err := s.ActiveFederationUTXOs()
	require.NoError(t, err)
	require.Empty(t, utxos)

	// the next attempt goes through
	require.NoError(t, h.register(rskHeight+1, inc))
	utxos, err = h.support(rskHeight + 1).ActiveFederationUTXOs()
	require.NoError(t, err)
	require.Len(t, utxos, 1)
}

func TestRefundDoesNotTouchTheLedger(t *testing.T) {
	r := rand.New(rand.NewSource(61))
	h := newHarness(t, r, types.AllActiveFromGenesis())
	fed := h.activeFederation(rskHeight)

	// no call is expected
	h.transfer = mocks.NewMockLedgerTransfer(gomock.NewController(t))

	keys := testutil.GenRandomBtcPubKeys(r, t, 3)
	tx := testutil.NewTx([]*wire.TxIn{testutil.SpendMultisig(r, t, keys, false)}, testutil.PayTo(fed, 800_000))
	require.NoError(t, h.register(rskHeight, h.include(tx)))

	waiting, err := h.support(rskHeight).PegoutsWaitingForConfirmations()
	require.NoError(t, err)
	require.Len(t, waiting, 1)
}

func TestPeginWithMockedLedger(t *testing.T) {
	r := rand.New(rand.NewSource(62))
	h := newHarness(t, r, types.AllActiveFromGenesis())
	h.transfer = testutil.PrepareMockedLedger(t)
	_, senderKey := testutil.GenRandomBtcKeyPair(r, t)
	fed := h.activeFederation(rskHeight)

	tx := testutil.NewTx([]*wire.TxIn{testutil.SpendP2PKH(r, t, senderKey)}, testutil.PayTo(fed, 600_000))
	require.NoError(t, h.register(rskHeight, h.include(tx)))

	utxos, err := h.support(rskHeight).ActiveFederationUTXOs()
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	require.Equal(t, btcutil.Amount(600_000), utxos[0].Value)
}
