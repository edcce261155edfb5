package bridge_test

import (
	"math/rand"
	"testing"

	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/bridge"
	"github.com/babylonchain/btc-bridge/testutil"
	"github.com/babylonchain/btc-bridge/types"
)

func TestSpvQueries(t *testing.T) {
	r := rand.New(rand.NewSource(50))
	h := newHarness(t, r, types.AllActiveFromGenesis())
	params := h.constants.BtcParams

	headers := testutil.MineChain(t, &params.GenesisBlock.Header, 5, params)
	s := h.support(rskHeight)
	added, err := s.ReceiveHeaders(headers)
	require.NoError(t, err)
	require.Equal(t, 5, added)

	best, err := s.BtcBestChainHeight()
	require.NoError(t, err)
	require.Equal(t, int32(5), best)

	hash, err := s.BtcBlockHashAtDepth(0)
	require.NoError(t, err)
	require.Equal(t, headers[4].BlockHash(), hash)
	hash, err = s.BtcBlockHashAtDepth(5)
	require.NoError(t, err)
	require.Equal(t, *params.GenesisHash, hash)
	_, err = s.BtcBlockHashAtDepth(6)
	require.ErrorIs(t, err, bridge.ErrHeaderDepthTooLarge)

	header, err := s.BtcBlockHeaderByHeight(2)
	require.NoError(t, err)
	require.Equal(t, headers[1].BlockHash(), header.BlockHash())

	header, err = s.BtcBlockHeaderByHash(headers[3].BlockHash())
	require.NoError(t, err)
	require.Equal(t, headers[3].BlockHash(), header.BlockHash())
	_, err = s.BtcBlockHeaderByHash(testutil.GenRandomHash(r))
	require.ErrorIs(t, err, types.ErrBlockNotFound)
	_, err = s.BtcBlockHeaderByHeight(6)
	require.ErrorIs(t, err, types.ErrHeightTooHigh)

	// headers are stored as they are received
	best, err = h.support(rskHeight + 1).BtcBestChainHeight()
	require.NoError(t, err)
	require.Equal(t, int32(5), best)
}

func TestFeePerKb(t *testing.T) {
	r := rand.New(rand.NewSource(51))
	h := newHarness(t, r, types.AllActiveFromGenesis())

	fee, err := h.support(rskHeight).FeePerKb()
	require.NoError(t, err)
	require.Equal(t, h.constants.GenesisFeePerKb, fee)

	h.run(rskHeight, func(s *bridge.Support) {
		require.ErrorIs(t, s.SetFeePerKb(0), bridge.ErrInvalidFeePerKb)
		require.ErrorIs(t, s.SetFeePerKb(h.constants.MaxFeePerKb+1), bridge.ErrInvalidFeePerKb)
		require.NoError(t, s.SetFeePerKb(chainfee.SatPerKVByte(20_000)))
	})

	fee, err = h.support(rskHeight + 1).FeePerKb()
	require.NoError(t, err)
	require.Equal(t, chainfee.SatPerKVByte(20_000), fee)
}

func TestQueueSizes(t *testing.T) {
	r := rand.New(rand.NewSource(52))
	h := newHarness(t, r, types.AllActiveFromGenesis())
	h.seedGenesisUTXOs(3, 2_000_000)

	h.run(rskHeight, func(s *bridge.Support) {
		require.NoError(t, s.ReleaseBtc(testutil.GenRandomHash(r), h.randomDestination(), 400_000))
		require.NoError(t, s.ReleaseBtc(testutil.GenRandomHash(r), h.randomDestination(), 400_000))
	})
	sizes, err := h.support(rskHeight).QueueSizes()
	require.NoError(t, err)
	require.Equal(t, bridge.QueueSizes{ReleaseRequests: 2}, sizes)

	h.tick(rskHeight)
	sizes, err = h.support(rskHeight).QueueSizes()
	require.NoError(t, err)
	require.Equal(t, bridge.QueueSizes{WaitingConfirmations: 1}, sizes)

	next, err := h.support(rskHeight).NextPegoutCreationHeight()
	require.NoError(t, err)
	require.Equal(t, rskHeight+h.constants.NumberOfBlocksBetweenPegouts, next)
}
