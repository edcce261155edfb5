package testutil

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bloom"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/spv"
)

// MineHeader grinds the nonce of a header extending prev until it meets
// the network's minimum difficulty. Only practical on regtest.
func MineHeader(t testing.TB, prev *wire.BlockHeader, merkleRoot chainhash.Hash, params *chaincfg.Params) *wire.BlockHeader {
	header := &wire.BlockHeader{
		Version:    4,
		PrevBlock:  prev.BlockHash(),
		MerkleRoot: merkleRoot,
		Timestamp:  prev.Timestamp.Add(10 * time.Minute),
		Bits:       params.PowLimitBits,
	}
	target := blockchain.CompactToBig(header.Bits)
	for nonce := uint32(0); nonce < 1<<20; nonce++ {
		header.Nonce = nonce
		hash := header.BlockHash()
		if blockchain.HashToBig(&hash).Cmp(target) <= 0 {
			return header
		}
	}
	require.FailNow(t, "could not mine header")
	return nil
}

// MineChain mines n empty headers on top of parent.
func MineChain(t testing.TB, parent *wire.BlockHeader, n int, params *chaincfg.Params) []*wire.BlockHeader {
	headers := make([]*wire.BlockHeader, n)
	prev := parent
	for i := range headers {
		var root chainhash.Hash
		root[0] = byte(i)
		root[1] = byte(i >> 8)
		headers[i] = MineHeader(t, prev, root, params)
		prev = headers[i]
	}
	return headers
}

// MineBlock mines a block holding txs, preceded by a dummy coinbase, on
// top of parent.
func MineBlock(t testing.TB, parent *wire.BlockHeader, txs []*wire.MsgTx, params *chaincfg.Params) *wire.MsgBlock {
	coinbase := wire.NewMsgTx(wire.TxVersion)
	coinbase.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex),
		parent.PrevBlock[:8], nil))
	coinbase.AddTxOut(wire.NewTxOut(50_0000_0000, []byte{0x51}))

	all := append([]*wire.MsgTx{coinbase}, txs...)
	utxs := make([]*btcutil.Tx, len(all))
	for i, tx := range all {
		utxs[i] = btcutil.NewTx(tx)
	}
	store := blockchain.BuildMerkleTreeStore(utxs, false)
	root := store[len(store)-1]

	block := &wire.MsgBlock{Header: *MineHeader(t, parent, *root, params)}
	for _, tx := range all {
		require.NoError(t, block.AddTransaction(tx))
	}
	return block
}

// MerkleProof returns the partial merkle tree of block matching txHash.
func MerkleProof(t testing.TB, block *wire.MsgBlock, txHash chainhash.Hash) *spv.PartialMerkleTree {
	filter := bloom.NewFilter(1, 0, 0.000001, wire.BloomUpdateNone)
	filter.AddHash(&txHash)
	mb, matched := bloom.NewMerkleBlock(btcutil.NewBlock(block), filter)
	require.NotEmpty(t, matched)
	return spv.PartialMerkleTreeFromMerkleBlock(mb)
}
