package bridge

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
	"go.uber.org/zap"

	bridgestore "github.com/babylonchain/btc-bridge/bridge/store"
	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/types"
)

// QueueSizes are the lengths of the release pipeline stages.
type QueueSizes struct {
	ReleaseRequests      int `json:"release_requests"`
	WaitingConfirmations int `json:"waiting_confirmations"`
	WaitingSignatures    int `json:"waiting_signatures"`
}

func (s *Support) QueueSizes() (QueueSizes, error) {
	queue, err := s.provider.ReleaseRequestQueue()
	if err != nil {
		return QueueSizes{}, err
	}
	confirmations, err := s.provider.PegoutsWaitingForConfirmations()
	if err != nil {
		return QueueSizes{}, err
	}
	signatures, err := s.provider.PegoutsWaitingForSignatures()
	if err != nil {
		return QueueSizes{}, err
	}
	return QueueSizes{
		ReleaseRequests:      len(queue),
		WaitingConfirmations: len(confirmations),
		WaitingSignatures:    len(signatures),
	}, nil
}

// PegoutsWaitingForConfirmations are the releases built but not yet
// confirmed on the ledger.
func (s *Support) PegoutsWaitingForConfirmations() ([]*bridgestore.PegoutEntry, error) {
	return s.provider.PegoutsWaitingForConfirmations()
}

// PegoutsWaitingForSignatures are the releases handed to the signers.
func (s *Support) PegoutsWaitingForSignatures() ([]*bridgestore.PegoutEntry, error) {
	return s.provider.PegoutsWaitingForSignatures()
}

// PendingFederation is the federation being voted, or nil.
func (s *Support) PendingFederation() (*federation.PendingFederation, error) {
	return s.provider.PendingFederation()
}

// FederatorPublicKey returns the BTC key of the active federation member
// at index, in redeem script order.
func (s *Support) FederatorPublicKey(index int) (*btcec.PublicKey, error) {
	active, err := s.ActiveFederation()
	if err != nil {
		return nil, err
	}
	keys := active.BtcPublicKeys()
	if index < 0 || index >= len(keys) {
		return nil, ErrFederatorIndexOutOfRange.Wrapf("%d of %d", index, len(keys))
	}
	return keys[index], nil
}

// ActiveFederationActivationHeight is the ledger height at which the
// active federation took over.
func (s *Support) ActiveFederationActivationHeight() (uint64, error) {
	active, err := s.ActiveFederation()
	if err != nil {
		return 0, err
	}
	return s.activationHeight(active), nil
}

func (s *Support) LastRetiredFederationP2SHScript() ([]byte, error) {
	return s.provider.LastRetiredFederationP2SHScript()
}

func (s *Support) NextPegoutCreationHeight() (uint64, error) {
	return s.provider.NextPegoutHeight()
}

// ProcessedBtcTxHeight returns the ledger height at which a Bitcoin
// transaction was registered.
func (s *Support) ProcessedBtcTxHeight(txHash chainhash.Hash) (uint64, bool, error) {
	return s.provider.ProcessedBtcTxHeight(txHash)
}

// HasPegoutSigHash reports whether a release with this first input
// sig-hash was already handed to the signers.
func (s *Support) HasPegoutSigHash(sigHash chainhash.Hash) (bool, error) {
	return s.provider.HasPegoutSigHash(sigHash)
}

func (s *Support) FeePerKb() (chainfee.SatPerKVByte, error) {
	return s.provider.FeePerKb()
}

// SetFeePerKb changes the fee rate of the transactions the bridge builds.
func (s *Support) SetFeePerKb(fee chainfee.SatPerKVByte) error {
	if fee <= 0 || fee > s.constants.MaxFeePerKb {
		return ErrInvalidFeePerKb.Wrapf("%d sat/kvB, maximum %d", fee, s.constants.MaxFeePerKb)
	}
	s.provider.SetFeePerKb(fee)
	s.logger.Info("fee per kb changed", zap.Int64("sat_per_kvb", int64(fee)))
	return nil
}

// BtcBestChainHeight is the height of the SPV chain head.
func (s *Support) BtcBestChainHeight() (int32, error) {
	head, err := s.blockStore.ChainHead()
	if err != nil {
		return 0, err
	}
	return head.Height, nil
}

// BtcBlockHashAtDepth returns the hash of the main chain block depth
// blocks below the chain head.
func (s *Support) BtcBlockHashAtDepth(depth int32) (chainhash.Hash, error) {
	head, err := s.blockStore.ChainHead()
	if err != nil {
		return chainhash.Hash{}, err
	}
	if depth < 0 || depth > head.Height {
		return chainhash.Hash{}, ErrHeaderDepthTooLarge.Wrapf("depth %d, chain head at %d", depth, head.Height)
	}
	b, err := s.blockStore.StoredBlockAtMainChainDepth(depth)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return b.Hash(), nil
}

// BtcBlockHeaderByHash returns a stored header, on the main chain or not.
func (s *Support) BtcBlockHeaderByHash(hash chainhash.Hash) (*wire.BlockHeader, error) {
	b, err := s.blockStore.Get(hash)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, types.ErrBlockNotFound
	}
	header := b.Header
	return &header, nil
}

// BtcBlockHeaderByHeight returns the main chain header at height.
func (s *Support) BtcBlockHeaderByHeight(height int32) (*wire.BlockHeader, error) {
	b, err := s.blockStore.StoredBlockAtMainChainHeight(height)
	if err != nil {
		return nil, err
	}
	header := b.Header
	return &header, nil
}
