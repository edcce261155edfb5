package spv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/babylonchain/btc-bridge/types"
)

const (
	// maxTransactionsPerBlock bounds the transaction count a partial merkle
	// tree may claim: the block weight limit over the weight of the
	// smallest transaction.
	maxTransactionsPerBlock = blockchain.MaxBlockWeight / (4 * 60)
	maxFlagBytes            = maxTransactionsPerBlock/8 + 1
)

// PartialMerkleTree is the BIP37 proof that some transactions belong to a
// block, as carried in a merkleblock message without its header.
type PartialMerkleTree struct {
	Transactions uint32
	Hashes       []chainhash.Hash
	Flags        []byte
}

func PartialMerkleTreeFromMerkleBlock(mb *wire.MsgMerkleBlock) *PartialMerkleTree {
	hashes := make([]chainhash.Hash, len(mb.Hashes))
	for i, h := range mb.Hashes {
		hashes[i] = *h
	}
	return &PartialMerkleTree{
		Transactions: mb.Transactions,
		Hashes:       hashes,
		Flags:        append([]byte{}, mb.Flags...),
	}
}

// ParsePartialMerkleTree decodes the transaction count, hashes and flag
// bytes of a serialized tree.
func ParsePartialMerkleTree(data []byte) (*PartialMerkleTree, error) {
	r := bytes.NewReader(data)
	t := &PartialMerkleTree{}

	var count [4]byte
	if _, err := io.ReadFull(r, count[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	t.Transactions = binary.LittleEndian.Uint32(count[:])

	numHashes, err := wire.ReadVarInt(r, wire.ProtocolVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	if numHashes > uint64(t.Transactions) || numHashes > uint64(r.Len()/chainhash.HashSize) {
		return nil, fmt.Errorf("%w: %d hashes for %d transactions", ErrMalformedProof, numHashes, t.Transactions)
	}
	t.Hashes = make([]chainhash.Hash, numHashes)
	for i := range t.Hashes {
		if _, err := io.ReadFull(r, t.Hashes[i][:]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
		}
	}

	t.Flags, err = wire.ReadVarBytes(r, wire.ProtocolVersion, maxFlagBytes, "merkle flags")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedProof, r.Len())
	}

	return t, nil
}

func (t *PartialMerkleTree) Serialize() []byte {
	var buf bytes.Buffer
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], t.Transactions)
	buf.Write(count[:])
	// writes to a bytes.Buffer cannot fail
	_ = wire.WriteVarInt(&buf, wire.ProtocolVersion, uint64(len(t.Hashes)))
	for i := range t.Hashes {
		buf.Write(t.Hashes[i][:])
	}
	_ = wire.WriteVarBytes(&buf, wire.ProtocolVersion, t.Flags)
	return buf.Bytes()
}

// ExtractMatches recomputes the merkle root and returns it with the hashes
// of the matched transactions.
func (t *PartialMerkleTree) ExtractMatches() (chainhash.Hash, []chainhash.Hash, error) {
	if t.Transactions == 0 || t.Transactions > maxTransactionsPerBlock {
		return chainhash.Hash{}, nil, fmt.Errorf("%w: invalid transaction count %d", ErrMalformedProof, t.Transactions)
	}
	if len(t.Hashes) > int(t.Transactions) || len(t.Flags)*8 < len(t.Hashes) {
		return chainhash.Hash{}, nil, fmt.Errorf("%w: inconsistent sizes", ErrMalformedProof)
	}

	height := uint32(0)
	for t.width(height) > 1 {
		height++
	}

	x := &extraction{tree: t}
	root, err := x.traverse(height, 0)
	if err != nil {
		return chainhash.Hash{}, nil, err
	}
	if (x.bitsUsed+7)/8 != len(t.Flags) {
		return chainhash.Hash{}, nil, fmt.Errorf("%w: unused flag bytes", ErrMalformedProof)
	}
	if x.hashesUsed != len(t.Hashes) {
		return chainhash.Hash{}, nil, fmt.Errorf("%w: unused hashes", ErrMalformedProof)
	}

	return root, x.matches, nil
}

func (t *PartialMerkleTree) width(height uint32) uint32 {
	return (t.Transactions + (1 << height) - 1) >> height
}

type extraction struct {
	tree       *PartialMerkleTree
	bitsUsed   int
	hashesUsed int
	matches    []chainhash.Hash
}

func (x *extraction) traverse(height, pos uint32) (chainhash.Hash, error) {
	if x.bitsUsed >= len(x.tree.Flags)*8 {
		return chainhash.Hash{}, fmt.Errorf("%w: ran out of flag bits", ErrMalformedProof)
	}
	parentOfMatch := x.tree.Flags[x.bitsUsed/8]&(1<<(x.bitsUsed%8)) != 0
	x.bitsUsed++

	if height == 0 || !parentOfMatch {
		if x.hashesUsed >= len(x.tree.Hashes) {
			return chainhash.Hash{}, fmt.Errorf("%w: ran out of hashes", ErrMalformedProof)
		}
		h := x.tree.Hashes[x.hashesUsed]
		x.hashesUsed++
		if height == 0 && parentOfMatch {
			x.matches = append(x.matches, h)
		}
		return h, nil
	}

	left, err := x.traverse(height-1, pos*2)
	if err != nil {
		return chainhash.Hash{}, err
	}
	right := left
	if pos*2+1 < x.tree.width(height-1) {
		right, err = x.traverse(height-1, pos*2+1)
		if err != nil {
			return chainhash.Hash{}, err
		}
		// identical siblings allow forging a different transaction set
		// with the same root
		if right == left {
			return chainhash.Hash{}, fmt.Errorf("%w: duplicated sibling hashes", ErrMalformedProof)
		}
	}
	return blockchain.HashMerkleBranches(&left, &right), nil
}

// VerifyInclusion checks that the tree matches txHash and commits to the
// merkle root of header.
func VerifyInclusion(tree *PartialMerkleTree, header *wire.BlockHeader, txHash chainhash.Hash) error {
	root, matches, err := tree.ExtractMatches()
	if err != nil {
		return err
	}
	if root != header.MerkleRoot {
		return fmt.Errorf("%w: root %s does not match block %s", types.ErrInvalidMerkleProof, root, header.BlockHash())
	}
	for _, m := range matches {
		if m == txHash {
			return nil
		}
	}
	return fmt.Errorf("%w: transaction %s is not matched by the proof", types.ErrInvalidMerkleProof, txHash)
}
