package spv_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/babylonchain/btc-bridge/spv"
	"github.com/babylonchain/btc-bridge/store"
	"github.com/babylonchain/btc-bridge/testutil"
	"github.com/babylonchain/btc-bridge/types"
)

var (
	testOwner  = []byte("bridge")
	testParams = &chaincfg.RegressionNetParams
)

func newCounters() spv.CacheCounters {
	return spv.CacheCounters{
		Hits:   prometheus.NewCounter(prometheus.CounterOpts{Name: "hits"}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{Name: "misses"}),
	}
}

func newBlockStore(t *testing.T, s store.Accessor, retention int32, counters spv.CacheCounters) *spv.BlockStore {
	factory, err := spv.NewFactory(spv.FactoryConfig{
		Params:         testParams,
		CacheSize:      100,
		CacheRetention: retention,
		Counters:       counters,
	}, zap.NewNop())
	require.NoError(t, err)

	bs, err := factory.NewBlockStore(s, testOwner, types.AllActiveFromGenesis().ForBlock(1))
	require.NoError(t, err)
	return bs
}

func TestBlockStoreInitializesWithGenesis(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	bs := newBlockStore(t, testutil.CreateStore(r, t), 10, spv.CacheCounters{})

	head, err := bs.ChainHead()
	require.NoError(t, err)
	require.Equal(t, *testParams.GenesisHash, head.Hash())
	require.Equal(t, int32(0), head.Height)
}

func TestBlockStoreMainChainQueries(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	s := testutil.CreateStore(r, t)
	bs := newBlockStore(t, s, 100, spv.CacheCounters{})

	headers := testutil.MineChain(t, &testParams.GenesisBlock.Header, 10, testParams)
	added, err := bs.ReceiveHeaders(headers)
	require.NoError(t, err)
	require.Equal(t, 10, added)

	head, err := bs.ChainHead()
	require.NoError(t, err)
	require.Equal(t, int32(10), head.Height)
	require.Equal(t, headers[9].BlockHash(), head.Hash())

	b, err := bs.StoredBlockAtMainChainHeight(3)
	require.NoError(t, err)
	require.Equal(t, headers[2].BlockHash(), b.Hash())

	b, err = bs.StoredBlockAtMainChainDepth(0)
	require.NoError(t, err)
	require.Equal(t, head.Hash(), b.Hash())

	b, err = bs.StoredBlockAtMainChainDepth(10)
	require.NoError(t, err)
	require.Equal(t, *testParams.GenesisHash, b.Hash())

	_, err = bs.StoredBlockAtMainChainHeight(11)
	require.ErrorIs(t, err, types.ErrHeightTooHigh)

	// known headers are not stored twice
	added, err = bs.ReceiveHeaders(headers[:3])
	require.NoError(t, err)
	require.Zero(t, added)

	// a fresh store over the same storage sees the same chain
	reopened := newBlockStore(t, s, 100, spv.CacheCounters{})
	head, err = reopened.ChainHead()
	require.NoError(t, err)
	require.Equal(t, headers[9].BlockHash(), head.Hash())
}

func TestBlockStoreReorganization(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	bs := newBlockStore(t, testutil.CreateStore(r, t), 100, spv.CacheCounters{})

	main := testutil.MineChain(t, &testParams.GenesisBlock.Header, 8, testParams)
	_, err := bs.ReceiveHeaders(main)
	require.NoError(t, err)

	// a competing branch forking after height 5 with more work
	fork := make([]*wire.BlockHeader, 5)
	prev := main[4]
	for i := range fork {
		var root [32]byte
		root[31] = 0xee
		root[0] = byte(i)
		fork[i] = testutil.MineHeader(t, prev, root, testParams)
		prev = fork[i]
	}

	res, err := bs.Connect(fork[0])
	require.NoError(t, err)
	require.Equal(t, spv.HeaderAdded, res)

	_, err = bs.ReceiveHeaders(fork[1:])
	require.NoError(t, err)

	head, err := bs.ChainHead()
	require.NoError(t, err)
	require.Equal(t, int32(10), head.Height)
	require.Equal(t, fork[4].BlockHash(), head.Hash())

	old, err := bs.Get(main[7].BlockHash())
	require.NoError(t, err)
	inMain, err := bs.IsInMainChain(old)
	require.NoError(t, err)
	require.False(t, inMain)

	b, err := bs.StoredBlockAtMainChainHeight(6)
	require.NoError(t, err)
	require.Equal(t, fork[0].BlockHash(), b.Hash())

	// orphans are skipped
	orphan := testutil.MineHeader(t, &wire.BlockHeader{Timestamp: main[0].Timestamp}, [32]byte{1}, testParams)
	res, err = bs.Connect(orphan)
	require.NoError(t, err)
	require.Equal(t, spv.HeaderOrphan, res)
}

func TestBlockStoreRejectsInvalidProofOfWork(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	bs := newBlockStore(t, testutil.CreateStore(r, t), 100, spv.CacheCounters{})

	header := testutil.MineHeader(t, &testParams.GenesisBlock.Header, [32]byte{2}, testParams)
	// a target far below what the nonce was ground for
	header.Bits = 0x1d00ffff
	_, err := bs.Connect(header)
	require.ErrorIs(t, err, spv.ErrInvalidProofOfWork)
}

func TestBlockStoreMissingAncestor(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	bs := newBlockStore(t, testutil.CreateStore(r, t), 100, spv.CacheCounters{})

	headers := testutil.MineChain(t, &testParams.GenesisBlock.Header, 3, testParams)
	genesis, err := bs.ChainHead()
	require.NoError(t, err)

	// store the tip without its parent
	b1 := genesis.Build(headers[0])
	b2 := b1.Build(headers[1])
	b3 := b2.Build(headers[2])
	require.NoError(t, bs.Put(b3))
	require.NoError(t, bs.SetChainHead(b3))

	_, err = bs.StoredBlockAtMainChainHeight(0)
	var storeErr *spv.BlockStoreError
	require.True(t, errors.As(err, &storeErr))
}

func TestBlockStoreCache(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	s := testutil.CreateStore(r, t)
	counters := newCounters()
	bs := newBlockStore(t, s, 2, counters)

	headers := testutil.MineChain(t, &testParams.GenesisBlock.Header, 6, testParams)
	_, err := bs.ReceiveHeaders(headers)
	require.NoError(t, err)

	// recent blocks are served from the cache
	hits := promtestutil.ToFloat64(counters.Hits)
	_, err = bs.Get(headers[5].BlockHash())
	require.NoError(t, err)
	require.Equal(t, hits+1, promtestutil.ToFloat64(counters.Hits))

	// a block stored deeper than the retention window is not cached
	head, err := bs.ChainHead()
	require.NoError(t, err)
	deepHeader := testutil.MineHeader(t, headers[0], [32]byte{9}, testParams)
	parent, err := bs.StoredBlockAtMainChainHeight(1)
	require.NoError(t, err)
	deep := parent.Build(deepHeader)
	require.Less(t, deep.Height, head.Height-2)
	require.NoError(t, bs.Put(deep))

	misses := promtestutil.ToFloat64(counters.Misses)
	for i := 0; i < 2; i++ {
		got, err := bs.Get(deep.Hash())
		require.NoError(t, err)
		require.Equal(t, deep.Hash(), got.Hash())
	}
	require.Equal(t, misses+2, promtestutil.ToFloat64(counters.Misses))
}

func TestBlockStoreCacheIsScopedToTheOwner(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	s := testutil.CreateStore(r, t)
	factory, err := spv.NewFactory(spv.FactoryConfig{
		Params:         testParams,
		CacheSize:      100,
		CacheRetention: 100,
	}, zap.NewNop())
	require.NoError(t, err)

	act := types.AllActiveFromGenesis().ForBlock(1)
	first, err := factory.NewBlockStore(s, []byte("first"), act)
	require.NoError(t, err)
	second, err := factory.NewBlockStore(s, []byte("second"), act)
	require.NoError(t, err)

	headers := testutil.MineChain(t, &testParams.GenesisBlock.Header, 3, testParams)
	_, err = first.ReceiveHeaders(headers)
	require.NoError(t, err)

	got, err := first.Get(headers[2].BlockHash())
	require.NoError(t, err)
	require.NotNil(t, got)

	// cached under the first owner only
	got, err = second.Get(headers[2].BlockHash())
	require.NoError(t, err)
	require.Nil(t, got)

	head, err := second.ChainHead()
	require.NoError(t, err)
	require.Equal(t, int32(0), head.Height)
}
