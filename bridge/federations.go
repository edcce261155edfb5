package bridge

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/peg"
	"github.com/babylonchain/btc-bridge/types"
)

// FederationState is the stage of the federation change cycle.
type FederationState int

const (
	// StateActive has a single federation in charge of the funds.
	StateActive FederationState = iota
	// StatePendingActivation has a committed federation that is not old
	// enough to take over.
	StatePendingActivation
	// StateActiveWithRetiring has the new federation in charge while the
	// previous one still holds funds.
	StateActiveWithRetiring
	// StateMigrating sweeps the funds of the retiring federation to the
	// active one.
	StateMigrating
)

func (s FederationState) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StatePendingActivation:
		return "PENDING_ACTIVATION"
	case StateActiveWithRetiring:
		return "ACTIVE_WITH_RETIRING"
	case StateMigrating:
		return "MIGRATING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// genesisFederation is the standard multisig federation of the network's
// genesis keys, in charge until the first committed federation.
func (s *Support) genesisFederation() (federation.Federation, error) {
	if s.genesis != nil {
		return s.genesis, nil
	}
	if len(s.constants.GenesisFederationPublicKeys) == 0 {
		return nil, ErrMissingGenesisFederation
	}

	fed, err := federation.FromFormat(federation.StandardMultisigFormat, federation.Args{
		Members:             federation.MembersFromBtcKeys(s.constants.GenesisFederationPublicKeys),
		CreationTime:        time.Unix(s.constants.GenesisFederationCreationTime, 0),
		CreationBlockNumber: 1,
		Params:              s.constants.BtcParams,
	}, s.constants, s.act)
	if err != nil {
		return nil, fmt.Errorf("failed to build the genesis federation: %w", err)
	}
	s.genesis = fed
	return fed, nil
}

// newFederation is the latest committed federation, or the genesis one.
func (s *Support) newFederation() (federation.Federation, error) {
	fed, err := s.provider.NewFederation()
	if err != nil {
		return nil, err
	}
	if fed == nil {
		return s.genesisFederation()
	}
	return fed, nil
}

func (s *Support) activationHeight(fed federation.Federation) uint64 {
	return fed.CreationBlockNumber() + s.constants.FederationActivationAge
}

func (s *Support) isActive(fed federation.Federation) bool {
	return s.block.Height >= s.activationHeight(fed)
}

// ActiveFederation is the federation receiving peg-ins and paying
// releases at the current height.
func (s *Support) ActiveFederation() (federation.Federation, error) {
	newFed, err := s.newFederation()
	if err != nil {
		return nil, err
	}
	oldFed, err := s.provider.OldFederation()
	if err != nil {
		return nil, err
	}
	if oldFed == nil || s.isActive(newFed) {
		return newFed, nil
	}
	return oldFed, nil
}

// RetiringFederation is the previous federation once the new one is
// active and until its funds are migrated. It is nil otherwise.
func (s *Support) RetiringFederation() (federation.Federation, error) {
	oldFed, err := s.provider.OldFederation()
	if err != nil || oldFed == nil {
		return nil, err
	}
	newFed, err := s.newFederation()
	if err != nil {
		return nil, err
	}
	if !s.isActive(newFed) {
		return nil, nil
	}
	return oldFed, nil
}

// FederationState tells where the federation change cycle stands.
func (s *Support) FederationState() (FederationState, error) {
	oldFed, err := s.provider.OldFederation()
	if err != nil {
		return 0, err
	}
	if oldFed == nil {
		return StateActive, nil
	}
	newFed, err := s.newFederation()
	if err != nil {
		return 0, err
	}
	switch {
	case !s.isActive(newFed):
		return StatePendingActivation, nil
	case s.isMigrationAge(newFed) || s.isPastMigrationAge(newFed):
		return StateMigrating, nil
	default:
		return StateActiveWithRetiring, nil
	}
}

// isMigrationAge reports whether the funds of the retiring federation are
// swept at the current height.
func (s *Support) isMigrationAge(active federation.Federation) bool {
	activation := s.activationHeight(active)
	return s.block.Height > activation+s.constants.FundsMigrationAgeSinceActivationBegin &&
		s.block.Height < activation+s.constants.FundsMigrationAgeSinceActivationEnd
}

func (s *Support) isPastMigrationAge(active federation.Federation) bool {
	return s.block.Height >= s.activationHeight(active)+s.constants.FundsMigrationAgeSinceActivationEnd
}

// federations returns the live federations as seen by the classifier.
func (s *Support) federations() (peg.Federations, error) {
	active, err := s.ActiveFederation()
	if err != nil {
		return peg.Federations{}, err
	}
	retiring, err := s.RetiringFederation()
	if err != nil {
		return peg.Federations{}, err
	}
	lastRetired, err := s.provider.LastRetiredFederationP2SHScript()
	if err != nil {
		return peg.Federations{}, err
	}
	return peg.Federations{Active: active, Retiring: retiring, LastRetiredP2SHScript: lastRetired}, nil
}

// utxosOf returns the UTXO list kept for fed, which must be the stored new
// or old federation, together with its setter.
func (s *Support) utxosOf(fed federation.Federation) ([]*types.UTXO, func([]*types.UTXO), error) {
	newFed, err := s.newFederation()
	if err != nil {
		return nil, nil, err
	}
	if fed.Equal(newFed) {
		utxos, err := s.provider.NewFederationUTXOs()
		return utxos, s.provider.SetNewFederationUTXOs, err
	}
	oldFed, err := s.provider.OldFederation()
	if err != nil {
		return nil, nil, err
	}
	if oldFed != nil && fed.Equal(oldFed) {
		utxos, err := s.provider.OldFederationUTXOs()
		return utxos, s.provider.SetOldFederationUTXOs, err
	}
	types.PanicConsensusViolation("federation %s holds no UTXO list", fed.Address())
	return nil, nil, nil
}

// ActiveFederationUTXOs are the known unspent outputs of the active
// federation.
func (s *Support) ActiveFederationUTXOs() ([]*types.UTXO, error) {
	active, err := s.ActiveFederation()
	if err != nil {
		return nil, err
	}
	utxos, _, err := s.utxosOf(active)
	return utxos, err
}

// RetiringFederationUTXOs are the outputs still to be migrated.
func (s *Support) RetiringFederationUTXOs() ([]*types.UTXO, error) {
	retiring, err := s.RetiringFederation()
	if err != nil || retiring == nil {
		return nil, err
	}
	utxos, _, err := s.utxosOf(retiring)
	return utxos, err
}

// removeUTXOs drops the spent outputs from the list kept for fed.
func (s *Support) removeUTXOs(fed federation.Federation, spent []*types.UTXO) error {
	utxos, set, err := s.utxosOf(fed)
	if err != nil {
		return err
	}
	set(withoutUTXOs(utxos, spent))
	return nil
}

func withoutUTXOs(utxos, spent []*types.UTXO) []*types.UTXO {
	drop := make(map[wire.OutPoint]struct{}, len(spent))
	for _, u := range spent {
		drop[u.OutPoint()] = struct{}{}
	}
	kept := make([]*types.UTXO, 0, len(utxos))
	for _, u := range utxos {
		if _, ok := drop[u.OutPoint()]; !ok {
			kept = append(kept, u)
		}
	}
	return kept
}
