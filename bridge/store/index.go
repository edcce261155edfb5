package store

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/babylonchain/btc-bridge/store"
	"github.com/babylonchain/btc-bridge/types"
)

const (
	processedTxIndexName  = "btcTxHashAP"
	sigHashIndexName      = "pegoutTxSigHash"
	pegoutTxHashIndexName = "pegoutTxHash"
)

// marker is the value of set-like index entries.
var marker = []byte{1}

// index is a persisted set of hashes, optionally mapping each to a value.
// Entries are buffered until save.
type index[V any] struct {
	name    string
	enabled bool
	pending map[chainhash.Hash]V
	// order keeps saves deterministic
	order []chainhash.Hash

	decode func([]byte) (V, error)
	encode func(V) ([]byte, error)
}

func newMarkerIndex(name string, enabled bool) *index[struct{}] {
	return &index[struct{}]{
		name:    name,
		enabled: enabled,
		pending: make(map[chainhash.Hash]struct{}),
		decode:  func([]byte) (struct{}, error) { return struct{}{}, nil },
		encode:  func(struct{}) ([]byte, error) { return marker, nil },
	}
}

func indexKey(name string, hash chainhash.Hash) []byte {
	return []byte(fmt.Sprintf("%s-%s", name, hex.EncodeToString(hash[:])))
}

func (ix *index[V]) lookup(accessor store.Accessor, owner []byte, hash chainhash.Hash) (V, bool, error) {
	var zero V
	if !ix.enabled || hash == (chainhash.Hash{}) {
		return zero, false, nil
	}
	if v, ok := ix.pending[hash]; ok {
		return v, true, nil
	}
	data, err := accessor.GetBytes(owner, indexKey(ix.name, hash))
	if err != nil {
		return zero, false, err
	}
	if data == nil {
		return zero, false, nil
	}
	v, err := ix.decode(data)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (ix *index[V]) persisted(accessor store.Accessor, owner []byte, hash chainhash.Hash) (bool, error) {
	data, err := accessor.GetBytes(owner, indexKey(ix.name, hash))
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

func (ix *index[V]) add(hash chainhash.Hash, v V) {
	if _, ok := ix.pending[hash]; !ok {
		ix.order = append(ix.order, hash)
	}
	ix.pending[hash] = v
}

func (ix *index[V]) save(accessor store.Accessor, owner []byte) error {
	for _, hash := range ix.order {
		data, err := ix.encode(ix.pending[hash])
		if err != nil {
			return err
		}
		if err := accessor.PutBytes(owner, indexKey(ix.name, hash), data); err != nil {
			return err
		}
	}
	ix.pending = make(map[chainhash.Hash]V)
	ix.order = nil
	return nil
}

// HasPegoutSigHash reports whether a release transaction with this first
// input sig-hash was already handed to the signers. It never reads storage
// before FlagPegoutSigHashIndex.
func (p *Provider) HasPegoutSigHash(sigHash chainhash.Hash) (bool, error) {
	_, ok, err := p.sigHashes.lookup(p.accessor, p.owner, sigHash)
	return ok, err
}

// SetPegoutSigHash records sigHash. Recording a hash that is already
// persisted breaks the at-most-once release guarantee and panics.
func (p *Provider) SetPegoutSigHash(sigHash chainhash.Hash) error {
	return p.setMarker(p.sigHashes, sigHash)
}

// HasPegoutTxHash reports whether a release transaction with this hash was
// already created. It never reads storage before FlagPegoutTxHashIndex.
func (p *Provider) HasPegoutTxHash(txHash chainhash.Hash) (bool, error) {
	_, ok, err := p.pegoutTxs.lookup(p.accessor, p.owner, txHash)
	return ok, err
}

// SetPegoutTxHash records txHash, panicking when it is already persisted.
func (p *Provider) SetPegoutTxHash(txHash chainhash.Hash) error {
	return p.setMarker(p.pegoutTxs, txHash)
}

func (p *Provider) setMarker(ix *index[struct{}], hash chainhash.Hash) error {
	if !ix.enabled || hash == (chainhash.Hash{}) {
		return nil
	}
	if _, ok := ix.pending[hash]; ok {
		return nil
	}
	exists, err := ix.persisted(p.accessor, p.owner, hash)
	if err != nil {
		return err
	}
	if exists {
		types.PanicConsensusViolation("%s %s is already recorded", ix.name, hash)
	}
	ix.add(hash, struct{}{})
	return nil
}
