package federation

import (
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"

	"github.com/babylonchain/btc-bridge/btcscript"
)

// FormatVersion tags the redeem script family of a federation in storage.
type FormatVersion uint32

const (
	StandardMultisigFormat FormatVersion = 1000
	NonStandardErpFormat   FormatVersion = 2000
	P2shErpFormat          FormatVersion = 3000
	P2shP2wshErpFormat     FormatVersion = 4000
)

func (v FormatVersion) String() string {
	switch v {
	case StandardMultisigFormat:
		return "standard-multisig"
	case NonStandardErpFormat:
		return "non-standard-erp"
	case P2shErpFormat:
		return "p2sh-erp"
	case P2shP2wshErpFormat:
		return "p2sh-p2wsh-erp"
	default:
		return "unknown"
	}
}

// Federation is the multisig custodian of the pegged funds.
type Federation interface {
	FormatVersion() FormatVersion

	Members() []*Member
	BtcPublicKeys() []*btcec.PublicKey
	Size() int
	NumberOfSignaturesRequired() int

	CreationTime() time.Time
	CreationBlockNumber() uint64
	Params() *chaincfg.Params

	// RedeemScript is the script revealed when spending federation funds:
	// the P2SH redeem script or, for segwit federations, the witness script.
	RedeemScript() []byte
	// P2SHScript is the scriptPubKey of outputs paying the federation.
	P2SHScript() []byte
	Address() btcutil.Address
	SpendTemplate() *btcscript.SpendTemplate

	// BtcPublicKeyIndex is the position of key in the sorted member list.
	BtcPublicKeyIndex(key *btcec.PublicKey) (int, bool)
	HasBtcPublicKey(key *btcec.PublicKey) bool
	HasMemberWithRskAddress(addr common.Address) bool
	IsMember(m *Member) bool

	Equal(other Federation) bool
}

// Args are the values every federation is built from.
type Args struct {
	Members             []*Member
	CreationTime        time.Time
	CreationBlockNumber uint64
	Params              *chaincfg.Params
}

// base holds the member set and the derived scripts shared by every
// federation variant.
type base struct {
	members             []*Member
	creationTime        time.Time
	creationBlockNumber uint64
	params              *chaincfg.Params

	redeemScript []byte
	p2shScript   []byte
	address      btcutil.Address
}

func newBase(args Args) (base, error) {
	if len(args.Members) == 0 {
		return base{}, &CreationError{Reason: NoMembers}
	}

	members := make([]*Member, len(args.Members))
	copy(members, args.Members)
	sort.SliceStable(members, func(i, j int) bool {
		return compareMembers(members[i], members[j]) < 0
	})
	for i := 1; i < len(members); i++ {
		if compareMembers(members[i-1], members[i]) == 0 {
			return base{}, &CreationError{Reason: DuplicatedMember}
		}
	}

	return base{
		members:             members,
		creationTime:        args.CreationTime.UTC().Truncate(time.Millisecond),
		creationBlockNumber: args.CreationBlockNumber,
		params:              args.Params,
	}, nil
}

// setScripts derives the output script and address. witness selects the
// P2SH-P2WSH wrapping of redeemScript.
func (b *base) setScripts(redeemScript []byte, witness bool) error {
	if err := btcscript.CheckRedeemScriptSize(redeemScript, witness); err != nil {
		return &CreationError{Reason: InvalidRedeemScript, Err: err}
	}

	var (
		p2sh []byte
		addr *btcutil.AddressScriptHash
		err  error
	)
	if witness {
		p2sh, err = btcscript.P2SHP2WSHOutputScript(redeemScript, b.params)
		if err == nil {
			addr, err = btcscript.P2SHP2WSHAddress(redeemScript, b.params)
		}
	} else {
		p2sh, err = btcscript.P2SHOutputScript(redeemScript, b.params)
		if err == nil {
			addr, err = btcscript.P2SHAddress(redeemScript, b.params)
		}
	}
	if err != nil {
		return &CreationError{Reason: InvalidRedeemScript, Err: err}
	}

	b.redeemScript = redeemScript
	b.p2shScript = p2sh
	b.address = addr
	return nil
}

func (b *base) Members() []*Member {
	members := make([]*Member, len(b.members))
	copy(members, b.members)
	return members
}

func (b *base) BtcPublicKeys() []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, len(b.members))
	for i, m := range b.members {
		keys[i] = m.BtcPublicKey
	}
	return keys
}

func (b *base) Size() int {
	return len(b.members)
}

func (b *base) NumberOfSignaturesRequired() int {
	return btcscript.MajorityThreshold(len(b.members))
}

func (b *base) CreationTime() time.Time {
	return b.creationTime
}

func (b *base) CreationBlockNumber() uint64 {
	return b.creationBlockNumber
}

func (b *base) Params() *chaincfg.Params {
	return b.params
}

func (b *base) RedeemScript() []byte {
	return cloneBytes(b.redeemScript)
}

func (b *base) P2SHScript() []byte {
	return cloneBytes(b.p2shScript)
}

func (b *base) Address() btcutil.Address {
	return b.address
}

func (b *base) BtcPublicKeyIndex(key *btcec.PublicKey) (int, bool) {
	for i, m := range b.members {
		if m.BtcPublicKey.IsEqual(key) {
			return i, true
		}
	}
	return 0, false
}

func (b *base) HasBtcPublicKey(key *btcec.PublicKey) bool {
	_, ok := b.BtcPublicKeyIndex(key)
	return ok
}

func (b *base) HasMemberWithRskAddress(addr common.Address) bool {
	for _, m := range b.members {
		if m.RskAddress() == addr {
			return true
		}
	}
	return false
}

func (b *base) IsMember(member *Member) bool {
	for _, m := range b.members {
		if m.Equal(member) {
			return true
		}
	}
	return false
}

func (b *base) equalBase(other *base) bool {
	if len(b.members) != len(other.members) {
		return false
	}
	for i := range b.members {
		if !b.members[i].Equal(other.members[i]) {
			return false
		}
	}
	return b.creationTime.Equal(other.creationTime) &&
		b.creationBlockNumber == other.creationBlockNumber &&
		b.params.Net == other.params.Net
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func equalKeys(a, b []*btcec.PublicKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].IsEqual(b[i]) {
			return false
		}
	}
	return true
}
