package store

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/babylonchain/btc-bridge/types"
)

func newProcessedTxIndex(act types.Activations) *index[uint64] {
	withHeight := act.IsActive(types.FlagProcessedTxHashIndex)
	return &index[uint64]{
		name:    processedTxIndexName,
		enabled: true,
		pending: make(map[chainhash.Hash]uint64),
		decode:  decodeUint64,
		encode: func(height uint64) ([]byte, error) {
			if !withHeight {
				height = 0
			}
			return encodeUint64(height)
		},
	}
}

// ProcessedBtcTxHeight returns the ledger height at which tx was
// registered. Entries written before FlagProcessedTxHashIndex report height
// zero.
func (p *Provider) ProcessedBtcTxHeight(txHash chainhash.Hash) (uint64, bool, error) {
	return p.processedTxs.lookup(p.accessor, p.owner, txHash)
}

// SetProcessedBtcTx marks txHash as registered at height.
func (p *Provider) SetProcessedBtcTx(txHash chainhash.Hash, height uint64) error {
	_, ok, err := p.ProcessedBtcTxHeight(txHash)
	if err != nil {
		return err
	}
	if ok {
		return types.ErrTxAlreadyProcessed
	}
	p.processedTxs.add(txHash, height)
	return nil
}
