package bridge

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/babylonchain/btc-bridge/federation"
)

// CreateFederation opens the vote of a new federation. Only one federation
// change can be in flight, so the vote is rejected with a distinct error
// in each stage of a change.
func (s *Support) CreateFederation() error {
	pending, err := s.provider.PendingFederation()
	if err != nil {
		return err
	}
	if pending != nil {
		return ErrPendingFederationExists
	}

	state, err := s.FederationState()
	if err != nil {
		return err
	}
	switch state {
	case StatePendingActivation:
		return ErrFederationAwaitingActivation
	case StateActiveWithRetiring:
		return ErrFederationRetiring
	case StateMigrating:
		return ErrFederationMigrating
	}

	s.provider.SetPendingFederation(federation.NewPendingFederation(nil))
	s.logger.Info("federation vote opened")
	return nil
}

// AddFederatorPublicKeys adds a member to the pending federation.
func (s *Support) AddFederatorPublicKeys(btcKey, rskKey, mstKey *btcec.PublicKey) error {
	pending, err := s.provider.PendingFederation()
	if err != nil {
		return err
	}
	if pending == nil {
		return ErrNoPendingFederation
	}

	updated, err := pending.AddMember(federation.NewMember(btcKey, rskKey, mstKey))
	if errors.Is(err, federation.ErrMemberAlreadyPending) {
		return ErrFederatorAlreadyPresent
	}
	if err != nil {
		return err
	}
	s.provider.SetPendingFederation(updated)
	return nil
}

// CommitFederation turns the pending federation into the new federation.
// hash must match the pending federation so that voters agree on what
// they commit. The current federation becomes the old one, keeping its
// UTXOs until they are migrated.
func (s *Support) CommitFederation(hash chainhash.Hash) (federation.Federation, error) {
	pending, err := s.provider.PendingFederation()
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, ErrNoPendingFederation
	}
	if !pending.IsComplete() {
		return nil, ErrPendingFederationIncomplete.Wrapf("%d members", pending.Size())
	}
	if pending.Hash() != hash {
		return nil, ErrPendingFederationMismatch.Wrapf("expected %s", pending.Hash())
	}

	committed, err := pending.Build(s.block.Time, s.block.Height, s.constants, s.act)
	if err != nil {
		return nil, ErrInvalidFederation.Wrap(err.Error())
	}

	current, err := s.newFederation()
	if err != nil {
		return nil, err
	}
	currentUTXOs, err := s.provider.NewFederationUTXOs()
	if err != nil {
		return nil, err
	}

	s.provider.SetOldFederation(current)
	s.provider.SetOldFederationUTXOs(currentUTXOs)
	s.provider.SetNewFederation(committed)
	s.provider.SetNewFederationUTXOs(nil)
	s.provider.SetPendingFederation(nil)

	s.logger.Info("committed new federation",
		zap.String("address", committed.Address().String()),
		zap.Stringer("format", committed.FormatVersion()),
		zap.Int("members", committed.Size()),
		zap.Uint64("activation_height", s.activationHeight(committed)))
	return committed, nil
}

// RollbackFederation discards the pending federation.
func (s *Support) RollbackFederation() error {
	pending, err := s.provider.PendingFederation()
	if err != nil {
		return err
	}
	if pending == nil {
		return ErrNoPendingFederation
	}
	s.provider.SetPendingFederation(nil)
	s.logger.Info("federation vote rolled back")
	return nil
}
