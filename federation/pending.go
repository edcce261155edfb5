package federation

import (
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/babylonchain/btc-bridge/btcscript"
	"github.com/babylonchain/btc-bridge/types"
)

// MinPendingMembers is the smallest member set a pending federation can be
// committed with.
const MinPendingMembers = 2

// PendingFederation collects members while a new federation is voted.
// It has no creation data until it is committed.
type PendingFederation struct {
	members []*Member
}

func NewPendingFederation(members []*Member) *PendingFederation {
	m := make([]*Member, len(members))
	copy(m, members)
	return &PendingFederation{members: m}
}

// AddMember returns a new pending federation that includes m.
func (p *PendingFederation) AddMember(m *Member) (*PendingFederation, error) {
	for _, existing := range p.members {
		if existing.BtcPublicKey.IsEqual(m.BtcPublicKey) ||
			existing.RskPublicKey.IsEqual(m.RskPublicKey) ||
			existing.MstPublicKey.IsEqual(m.MstPublicKey) {
			return nil, ErrMemberAlreadyPending
		}
	}
	members := make([]*Member, len(p.members), len(p.members)+1)
	copy(members, p.members)
	return &PendingFederation{members: append(members, m)}, nil
}

func (p *PendingFederation) Members() []*Member {
	m := make([]*Member, len(p.members))
	copy(m, p.members)
	return m
}

func (p *PendingFederation) Size() int {
	return len(p.members)
}

// BtcPublicKeys returns the members' keys in insertion order.
func (p *PendingFederation) BtcPublicKeys() []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, len(p.members))
	for i, m := range p.members {
		keys[i] = m.BtcPublicKey
	}
	return keys
}

func (p *PendingFederation) IsComplete() bool {
	return len(p.members) >= MinPendingMembers
}

// Hash is the double SHA-256 of the sorted compressed BTC keys. Voters
// reference the pending federation by this hash when committing it.
func (p *PendingFederation) Hash() chainhash.Hash {
	sorted := btcscript.SortPublicKeys(p.BtcPublicKeys())
	buf := make([]byte, 0, len(sorted)*btcec.PubKeyBytesLenCompressed)
	for _, k := range sorted {
		buf = append(buf, k.SerializeCompressed()...)
	}
	return chainhash.DoubleHashH(buf)
}

// Build commits the pending federation into a federation of the family in
// force under act.
func (p *PendingFederation) Build(
	creationTime time.Time,
	creationBlockNumber uint64,
	constants *types.BridgeConstants,
	act types.Activations,
) (Federation, error) {
	if !p.IsComplete() {
		return nil, &CreationError{Reason: NotEnoughMembers}
	}
	return Build(Args{
		Members:             p.members,
		CreationTime:        creationTime,
		CreationBlockNumber: creationBlockNumber,
		Params:              constants.BtcParams,
	}, constants, act)
}
