package spv

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"
)

// ConnectResult tells what happened to a header handed to Connect.
type ConnectResult int

const (
	HeaderAdded ConnectResult = iota
	// HeaderMovedChainHead is a header that became the new best tip,
	// possibly reorganizing the main chain.
	HeaderMovedChainHead
	HeaderAlreadyKnown
	HeaderOrphan
)

func (r ConnectResult) String() string {
	switch r {
	case HeaderAdded:
		return "added"
	case HeaderMovedChainHead:
		return "new-chain-head"
	case HeaderAlreadyKnown:
		return "already-known"
	case HeaderOrphan:
		return "orphan"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// Connect stores a header on top of its known parent after checking its
// proof of work, and moves the chain head when the header ends the chain
// with the most work. Difficulty retargeting is not verified.
func (s *BlockStore) Connect(header *wire.BlockHeader) (ConnectResult, error) {
	hash := header.BlockHash()
	existing, err := s.Get(hash)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return HeaderAlreadyKnown, nil
	}

	if err := CheckProofOfWork(header, s.Params().PowLimit); err != nil {
		return 0, err
	}

	parent, err := s.Get(header.PrevBlock)
	if err != nil {
		return 0, err
	}
	if parent == nil {
		return HeaderOrphan, nil
	}

	b := parent.Build(header)
	if err := s.Put(b); err != nil {
		return 0, err
	}

	head, err := s.ChainHead()
	if err != nil {
		return 0, err
	}
	if head != nil && !b.MoreWorkThan(head) {
		return HeaderAdded, nil
	}
	if err := s.SetChainHead(b); err != nil {
		return 0, err
	}
	if head != nil && head.Hash() != header.PrevBlock {
		s.factory.logger.Info("SPV chain reorganized",
			zap.String("old_head", head.Hash().String()),
			zap.String("new_head", hash.String()),
			zap.Int32("height", b.Height))
	}
	return HeaderMovedChainHead, nil
}

// ReceiveHeaders connects headers in order and returns how many were
// stored. Orphans and known headers are skipped; a header failing its
// proof of work aborts the batch.
func (s *BlockStore) ReceiveHeaders(headers []*wire.BlockHeader) (int, error) {
	added := 0
	for _, h := range headers {
		res, err := s.Connect(h)
		if err != nil {
			return added, fmt.Errorf("header %s: %w", h.BlockHash(), err)
		}
		switch res {
		case HeaderAdded, HeaderMovedChainHead:
			added++
		case HeaderOrphan:
			s.factory.logger.Debug("ignoring header with unknown parent",
				zap.String("hash", h.BlockHash().String()),
				zap.String("parent", h.PrevBlock.String()))
		}
	}
	return added, nil
}

// CheckProofOfWork checks that the header's target is positive and below
// powLimit, and that its hash meets the target.
func CheckProofOfWork(header *wire.BlockHeader, powLimit *big.Int) error {
	block := btcutil.NewBlock(&wire.MsgBlock{Header: *header})
	if err := blockchain.CheckProofOfWork(block, powLimit); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProofOfWork, err)
	}
	return nil
}
