package bridge_test

import (
	"crypto/sha256"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/babylonchain/btc-bridge/bridge"
	bridgestore "github.com/babylonchain/btc-bridge/bridge/store"
	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/metrics"
	"github.com/babylonchain/btc-bridge/spv"
	"github.com/babylonchain/btc-bridge/store"
	"github.com/babylonchain/btc-bridge/testutil"
	"github.com/babylonchain/btc-bridge/types"
)

var (
	bridgeOwner = []byte("bridge")
	spvOwner    = []byte("bridge-spv")
)

type credit struct {
	destination common.Address
	amount      btcutil.Amount
}

// fakeLedger records what the bridge hands to the ledger
type fakeLedger struct {
	credits  map[chainhash.Hash]credit
	released map[chainhash.Hash]*wire.MsgTx
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		credits:  make(map[chainhash.Hash]credit),
		released: make(map[chainhash.Hash]*wire.MsgTx),
	}
}

func (l *fakeLedger) CreditPegin(btcTxHash chainhash.Hash, destination common.Address, amount btcutil.Amount) error {
	l.credits[btcTxHash] = credit{destination: destination, amount: amount}
	return nil
}

func (l *fakeLedger) ReleaseSigned(rskTxHash chainhash.Hash, tx *wire.MsgTx) error {
	l.released[rskTxHash] = tx
	return nil
}

// harness runs the bridge block by block over one store and SPV chain
type harness struct {
	t         *testing.T
	r         *rand.Rand
	store     store.Store
	factory   *spv.Factory
	constants *types.BridgeConstants
	actCfg    *types.ActivationConfig
	ledger    *fakeLedger
	metrics   *metrics.BridgeMetrics

	// transfer is the ledger handed to the bridge, ledger by default
	transfer bridge.LedgerTransfer

	tip       *wire.BlockHeader
	tipHeight int32
}

func newHarness(t *testing.T, r *rand.Rand, actCfg *types.ActivationConfig) *harness {
	constants := types.RegTestConstants()
	factory, err := spv.NewFactory(spv.FactoryConfig{
		Params:         constants.BtcParams,
		CacheSize:      1000,
		CacheRetention: 1000,
	}, zap.NewNop())
	require.NoError(t, err)

	ledger := newFakeLedger()
	return &harness{
		t:         t,
		r:         r,
		store:     testutil.CreateStore(r, t),
		factory:   factory,
		constants: constants,
		actCfg:    actCfg,
		ledger:    ledger,
		transfer:  ledger,
		metrics:   metrics.NewBridgeMetrics(prometheus.NewRegistry()),
		tip:       &constants.BtcParams.GenesisBlock.Header,
	}
}

func (h *harness) provider(height uint64) *bridgestore.Provider {
	return bridgestore.NewProvider(h.store, bridgeOwner, h.constants, h.actCfg.ForBlock(height), zap.NewNop())
}

func (h *harness) support(height uint64) *bridge.Support {
	act := h.actCfg.ForBlock(height)
	bs, err := h.factory.NewBlockStore(h.store, spvOwner, act)
	require.NoError(h.t, err)
	block := bridge.Block{Height: height, Time: time.Unix(1_700_000_000+int64(height)*30, 0)}
	return bridge.NewSupport(block, h.provider(height), bs, h.transfer, h.metrics, zap.NewNop())
}

// run executes fn in a fresh support at height and saves its state
func (h *harness) run(height uint64, fn func(s *bridge.Support)) {
	s := h.support(height)
	fn(s)
	require.NoError(h.t, s.Save())
}

// mine adds a block holding txs plus confirmations-1 empty blocks to the
// SPV chain and returns the block and its height.
func (h *harness) mine(txs []*wire.MsgTx, confirmations int) (*wire.MsgBlock, int32) {
	params := h.constants.BtcParams
	block := testutil.MineBlock(h.t, h.tip, txs, params)
	headers := []*wire.BlockHeader{&block.Header}
	headers = append(headers, testutil.MineChain(h.t, &block.Header, confirmations-1, params)...)

	bs, err := h.factory.NewBlockStore(h.store, spvOwner, h.actCfg.ForBlock(1))
	require.NoError(h.t, err)
	added, err := bs.ReceiveHeaders(headers)
	require.NoError(h.t, err)
	require.Equal(h.t, len(headers), added)

	height := h.tipHeight + 1
	h.tip = headers[len(headers)-1]
	h.tipHeight += int32(len(headers))
	return block, height
}

// inclusion is a Bitcoin transaction mined with enough confirmations
type inclusion struct {
	tx     *wire.MsgTx
	height int32
	proof  *spv.PartialMerkleTree
}

func (h *harness) include(tx *wire.MsgTx) inclusion {
	block, height := h.mine([]*wire.MsgTx{tx}, int(h.constants.Btc2RskMinimumAcceptableConfirmations))
	return inclusion{tx: tx, height: height, proof: testutil.MerkleProof(h.t, block, tx.TxHash())}
}

// register registers an included transaction at the given ledger height
func (h *harness) register(height uint64, inc inclusion) error {
	s := h.support(height)
	if err := s.RegisterBtcTransaction(testutil.GenRandomHash(h.r), inc.tx, inc.height, inc.proof); err != nil {
		return err
	}
	return s.Save()
}

func (h *harness) activeFederation(height uint64) federation.Federation {
	fed, err := h.support(height).ActiveFederation()
	require.NoError(h.t, err)
	return fed
}

// seedGenesisUTXOs stores n outputs of value paying the genesis federation
func (h *harness) seedGenesisUTXOs(n int, value btcutil.Amount) []*types.UTXO {
	utxos := testutil.GenFederationUTXOs(h.r, h.activeFederation(1), n, value)
	p := h.provider(1)
	p.SetNewFederationUTXOs(utxos)
	require.NoError(h.t, p.Save())
	return utxos
}

// genesisFederatorKeys derives the private keys of the regtest genesis
// federation.
func genesisFederatorKeys(n int) []*btcec.PrivateKey {
	keys := make([]*btcec.PrivateKey, n)
	for i := range keys {
		seed := sha256.Sum256([]byte(fmt.Sprintf("federator%d", i)))
		keys[i], _ = btcec.PrivKeyFromBytes(seed[:])
	}
	return keys
}
