package testutil

import (
	"encoding/hex"
	"math/rand"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/types"
)

func GenRandomByteArray(r *rand.Rand, length uint64) []byte {
	newHeaderBytes := make([]byte, length)
	r.Read(newHeaderBytes)
	return newHeaderBytes
}

func GenRandomHexStr(r *rand.Rand, length uint64) string {
	randBytes := GenRandomByteArray(r, length)
	return hex.EncodeToString(randBytes)
}

func AddRandomSeedsToFuzzer(f *testing.F, num uint) {
	// Seed based on the current time
	r := rand.New(rand.NewSource(time.Now().Unix()))
	var idx uint
	for idx = 0; idx < num; idx++ {
		f.Add(r.Int63())
	}
}

func GenRandomHash(r *rand.Rand) chainhash.Hash {
	var h chainhash.Hash
	r.Read(h[:])
	return h
}

func GenRandomBtcKeyPair(r *rand.Rand, t testing.TB) (*btcec.PrivateKey, *btcec.PublicKey) {
	for {
		// reject the rare out of range scalars
		var raw [32]byte
		r.Read(raw[:])
		var scalar btcec.ModNScalar
		if overflow := scalar.SetBytes(&raw); overflow != 0 || scalar.IsZero() {
			continue
		}
		sk, pk := btcec.PrivKeyFromBytes(raw[:])
		require.NotNil(t, pk)
		return sk, pk
	}
}

func GenRandomBtcPubKeys(r *rand.Rand, t testing.TB, n int) []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, n)
	for i := range keys {
		_, keys[i] = GenRandomBtcKeyPair(r, t)
	}
	return keys
}

func GenRandomMembers(r *rand.Rand, t testing.TB, n int) []*federation.Member {
	members := make([]*federation.Member, n)
	for i := range members {
		keys := GenRandomBtcPubKeys(r, t, 3)
		members[i] = federation.NewMember(keys[0], keys[1], keys[2])
	}
	return members
}

// GenFederation builds a federation of n random members in the given
// format, taking the emergency keys and delay from constants.
func GenFederation(
	r *rand.Rand,
	t testing.TB,
	format federation.FormatVersion,
	n int,
	constants *types.BridgeConstants,
) federation.Federation {
	fed, err := federation.FromFormat(format, federation.Args{
		Members:             GenRandomMembers(r, t, n),
		CreationTime:        time.UnixMilli(int64(r.Uint32())),
		CreationBlockNumber: uint64(r.Intn(1000)),
		Params:              constants.BtcParams,
	}, constants, types.AllActiveFromGenesis().ForBlock(0))
	require.NoError(t, err)
	return fed
}

func GenRandomRskAddress(r *rand.Rand) common.Address {
	return common.BytesToAddress(GenRandomByteArray(r, common.AddressLength))
}

func GenRandomP2PKHAddress(r *rand.Rand, t testing.TB, params *chaincfg.Params) *btcutil.AddressPubKeyHash {
	addr, err := btcutil.NewAddressPubKeyHash(GenRandomByteArray(r, 20), params)
	require.NoError(t, err)
	return addr
}

func PayToAddrScript(t testing.TB, addr btcutil.Address) []byte {
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return script
}

// GenFundingTx returns a transaction with one random input paying value
// to each of the given output scripts.
func GenFundingTx(r *rand.Rand, values []btcutil.Amount, pkScripts [][]byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	prev := GenRandomHash(r)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, r.Uint32()%10), GenRandomByteArray(r, 10), nil))
	for i, v := range values {
		tx.AddTxOut(wire.NewTxOut(int64(v), pkScripts[i]))
	}
	return tx
}
