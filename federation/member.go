package federation

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Member is a federator, identified by the key it signs Bitcoin
// transactions with, its ledger key and its merged mining key.
type Member struct {
	BtcPublicKey *btcec.PublicKey
	RskPublicKey *btcec.PublicKey
	MstPublicKey *btcec.PublicKey
}

func NewMember(btcKey, rskKey, mstKey *btcec.PublicKey) *Member {
	return &Member{BtcPublicKey: btcKey, RskPublicKey: rskKey, MstPublicKey: mstKey}
}

// NewMemberFromBtcKey returns a member using one key for all three roles,
// as federations created before per-role keys existed do.
func NewMemberFromBtcKey(key *btcec.PublicKey) *Member {
	return NewMember(key, key, key)
}

// MembersFromBtcKeys maps each key to a single-key member.
func MembersFromBtcKeys(keys []*btcec.PublicKey) []*Member {
	members := make([]*Member, len(keys))
	for i, k := range keys {
		members[i] = NewMemberFromBtcKey(k)
	}
	return members
}

// RskAddress is the ledger account controlled by the member.
func (m *Member) RskAddress() common.Address {
	return crypto.PubkeyToAddress(*m.RskPublicKey.ToECDSA())
}

func (m *Member) Equal(other *Member) bool {
	if other == nil {
		return false
	}
	return m.BtcPublicKey.IsEqual(other.BtcPublicKey) &&
		m.RskPublicKey.IsEqual(other.RskPublicKey) &&
		m.MstPublicKey.IsEqual(other.MstPublicKey)
}

func (m *Member) String() string {
	return fmt.Sprintf("member{btc: %x, rsk: %s}", m.BtcPublicKey.SerializeCompressed(), m.RskAddress().Hex())
}

func compareMembers(a, b *Member) int {
	return bytes.Compare(a.BtcPublicKey.SerializeCompressed(), b.BtcPublicKey.SerializeCompressed())
}
