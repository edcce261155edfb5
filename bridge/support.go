package bridge

import (
	"time"

	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"

	bridgestore "github.com/babylonchain/btc-bridge/bridge/store"
	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/metrics"
	"github.com/babylonchain/btc-bridge/peg"
	"github.com/babylonchain/btc-bridge/spv"
	"github.com/babylonchain/btc-bridge/types"
)

// Block identifies the ledger block the bridge executes in.
type Block struct {
	Height uint64
	Time   time.Time
}

// Support runs the bridge operations of one ledger block. It owns the
// buffered state of that block and must be discarded after Save.
type Support struct {
	block      Block
	constants  *types.BridgeConstants
	act        types.Activations
	provider   *bridgestore.Provider
	blockStore *spv.BlockStore
	classifier *peg.Classifier
	ledger     LedgerTransfer
	metrics    *metrics.BridgeMetrics
	logger     *zap.Logger

	genesis federation.Federation
}

func NewSupport(
	block Block,
	provider *bridgestore.Provider,
	blockStore *spv.BlockStore,
	ledger LedgerTransfer,
	m *metrics.BridgeMetrics,
	logger *zap.Logger,
) *Support {
	constants := provider.Constants()
	return &Support{
		block:      block,
		constants:  constants,
		act:        provider.Activations(),
		provider:   provider,
		blockStore: blockStore,
		classifier: peg.NewClassifier(constants),
		ledger:     ledger,
		metrics:    m,
		logger:     logger.With(zap.Uint64("rsk_height", block.Height)),
	}
}

func (s *Support) Activations() types.Activations {
	return s.act
}

// ReceiveHeaders extends the SPV chain with the given headers.
func (s *Support) ReceiveHeaders(headers []*wire.BlockHeader) (int, error) {
	added, err := s.blockStore.ReceiveHeaders(headers)
	if err != nil {
		return added, err
	}
	head, err := s.blockStore.ChainHead()
	if err != nil {
		return added, err
	}
	s.metrics.SetSpvBestHeight(head.Height)
	return added, nil
}

// Save flushes the state changes of the block.
func (s *Support) Save() error {
	if err := s.provider.Save(); err != nil {
		return err
	}

	sizes, err := s.QueueSizes()
	if err != nil {
		return err
	}
	s.metrics.SetQueueSizes(sizes.ReleaseRequests, sizes.WaitingConfirmations, sizes.WaitingSignatures)
	return nil
}
