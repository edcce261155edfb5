package spv

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// LegacyChainWorkBytes is the width of the chain work field of records
	// written before wide chain work.
	LegacyChainWorkBytes = 12
	// WideChainWorkBytes holds any 256-bit chain work.
	WideChainWorkBytes = 32

	heightBytes = 4

	// LegacyStoredBlockSize is the size of a record with 12-byte chain work.
	LegacyStoredBlockSize = LegacyChainWorkBytes + heightBytes + wire.MaxBlockHeaderPayload
	// WideStoredBlockSize is the size of a record with 32-byte chain work.
	WideStoredBlockSize = WideChainWorkBytes + heightBytes + wire.MaxBlockHeaderPayload
)

// StoredBlock is a header with its height and the cumulative work of the
// chain it ends.
type StoredBlock struct {
	Header    wire.BlockHeader
	ChainWork *big.Int
	Height    int32
}

func (b *StoredBlock) Hash() chainhash.Hash {
	return b.Header.BlockHash()
}

// Build returns the record of header extending b.
func (b *StoredBlock) Build(header *wire.BlockHeader) *StoredBlock {
	work := new(big.Int).Add(b.ChainWork, blockchain.CalcWork(header.Bits))
	return &StoredBlock{
		Header:    *header,
		ChainWork: work,
		Height:    b.Height + 1,
	}
}

// MoreWorkThan reports whether b ends a chain with more work than other.
func (b *StoredBlock) MoreWorkThan(other *StoredBlock) bool {
	return b.ChainWork.Cmp(other.ChainWork) > 0
}

// Serialize encodes chain work (big-endian, fixed width), height
// (big-endian) and the 80-byte header. wide selects the 32-byte chain
// work field over the legacy 12-byte one.
func (b *StoredBlock) Serialize(wide bool) ([]byte, error) {
	width := LegacyChainWorkBytes
	if wide {
		width = WideChainWorkBytes
	}

	if b.ChainWork.Sign() < 0 {
		return nil, storeErr("negative chain work %s", b.ChainWork)
	}
	work := b.ChainWork.Bytes()
	if len(work) > width {
		return nil, storeErr("chain work %s does not fit in %d bytes", b.ChainWork, width)
	}

	buf := bytes.NewBuffer(make([]byte, 0, width+heightBytes+wire.MaxBlockHeaderPayload))
	buf.Write(make([]byte, width-len(work)))
	buf.Write(work)

	var h [heightBytes]byte
	binary.BigEndian.PutUint32(h[:], uint32(b.Height))
	buf.Write(h[:])

	if err := b.Header.Serialize(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeserializeStoredBlock decodes a record of either width.
func DeserializeStoredBlock(data []byte) (*StoredBlock, error) {
	var width int
	switch len(data) {
	case LegacyStoredBlockSize:
		width = LegacyChainWorkBytes
	case WideStoredBlockSize:
		width = WideChainWorkBytes
	default:
		return nil, storeErr("unexpected stored block size %d", len(data))
	}

	b := &StoredBlock{
		ChainWork: new(big.Int).SetBytes(data[:width]),
		Height:    int32(binary.BigEndian.Uint32(data[width : width+heightBytes])),
	}
	if err := b.Header.Deserialize(bytes.NewReader(data[width+heightBytes:])); err != nil {
		return nil, &BlockStoreError{Msg: "cannot decode header", Err: err}
	}
	return b, nil
}

// GenesisStoredBlock is the record of a network's genesis header.
func GenesisStoredBlock(header *wire.BlockHeader) *StoredBlock {
	return &StoredBlock{
		Header:    *header,
		ChainWork: blockchain.CalcWork(header.Bits),
		Height:    0,
	}
}
