package release_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/release"
	"github.com/babylonchain/btc-bridge/testutil"
	"github.com/babylonchain/btc-bridge/types"
)

func TestEstimateNextPegoutFee(t *testing.T) {
	r := rand.New(rand.NewSource(40))
	constants := types.RegTestConstants()
	fed := testutil.GenFederation(r, t, federation.P2shErpFormat, 5, constants)
	feePerKb := constants.GenesisFeePerKb
	utxos := testutil.GenFederationUTXOs(r, fed, 10, 1_000_000)
	requests := testutil.GenPegoutRequests(r, t, 4, 300_000, constants.BtcParams)
	logger := zap.NewNop()

	linear := release.LinearPegoutFee(fed, len(requests), feePerKb)
	require.Positive(t, linear)
	require.Less(t, linear, release.LinearPegoutFee(fed, len(requests)+1, feePerKb))
	require.Zero(t, release.LinearPegoutFee(fed, 0, feePerKb))

	withBuilder := types.AllActiveFromGenesis().ForBlock(1)
	withoutBuilder := types.AllActiveExcept(types.FlagPegoutFeeEstimationBuilder).ForBlock(1)

	require.Zero(t, release.EstimateNextPegoutFee(fed, utxos, nil, feePerKb, withBuilder, logger))
	require.Equal(t, linear, release.EstimateNextPegoutFee(fed, utxos, requests, feePerKb, withoutBuilder, logger))
	require.Equal(t, linear, release.EstimateNextPegoutFee(fed, nil, requests, feePerKb, withBuilder, logger))

	built := release.NewBuilder(fed, utxos, feePerKb, logger).BuildBatchedPegouts(requests)
	require.Equal(t, release.Success, built.Code)
	require.Equal(t, built.Fee, release.EstimateNextPegoutFee(fed, utxos, requests, feePerKb, withBuilder, logger))

	// not enough funds for the builder
	poor := testutil.GenFederationUTXOs(r, fed, 1, 500_000)
	require.Equal(t, linear, release.EstimateNextPegoutFee(fed, poor, requests, feePerKb, withBuilder, logger))
}
