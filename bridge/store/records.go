package store

import (
	"bytes"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/babylonchain/btc-bridge/btcscript"
	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/release"
	"github.com/babylonchain/btc-bridge/types"
)

type memberRecord struct {
	BtcPublicKey []byte
	RskPublicKey []byte
	MstPublicKey []byte
}

type federationRecord struct {
	FormatVersion       uint32
	Members             []memberRecord
	CreationTimeMillis  uint64
	CreationBlockNumber uint64
}

type utxoRecord struct {
	TxHash             []byte
	OutputIndex        uint32
	Value              uint64
	ConfirmationHeight uint64
	IsCoinbase         bool
	Script             []byte
}

type requestRecord struct {
	Destination string
	Amount      uint64
	RskTxHash   []byte
}

type pegoutRecord struct {
	Tx             []byte
	RskBlockNumber uint64
	RskTxHash      []byte
	InputValues    []uint64 `rlp:"optional"`
}

// PegoutEntry is a release transaction waiting for confirmations or
// signatures. RskTxHash identifies the ledger event that created it.
type PegoutEntry struct {
	Tx             *wire.MsgTx
	RskBlockNumber uint64
	RskTxHash      chainhash.Hash
	// InputValues are the values of the outputs spent by Tx, in input
	// order. Segwit signatures commit to them.
	InputValues []btcutil.Amount
}

// Equal compares the serialized transactions, the creation heights and the
// creating ledger transactions.
func (e *PegoutEntry) Equal(other *PegoutEntry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.RskBlockNumber == other.RskBlockNumber &&
		e.RskTxHash == other.RskTxHash &&
		sameTx(e.Tx, other.Tx)
}

func sameTx(a, b *wire.MsgTx) bool {
	var bufA, bufB bytes.Buffer
	if err := a.Serialize(&bufA); err != nil {
		return false
	}
	if err := b.Serialize(&bufB); err != nil {
		return false
	}
	return bytes.Equal(bufA.Bytes(), bufB.Bytes())
}

func corrupted(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCorruptedBridgeState, what, err)
}

func encodeMembers(members []*federation.Member) []memberRecord {
	records := make([]memberRecord, len(members))
	for i, m := range members {
		records[i] = memberRecord{
			BtcPublicKey: m.BtcPublicKey.SerializeCompressed(),
			RskPublicKey: m.RskPublicKey.SerializeCompressed(),
			MstPublicKey: m.MstPublicKey.SerializeCompressed(),
		}
	}
	return records
}

func decodeMembers(records []memberRecord) ([]*federation.Member, error) {
	members := make([]*federation.Member, len(records))
	for i, rec := range records {
		keys := make([]*btcec.PublicKey, 3)
		for j, raw := range [][]byte{rec.BtcPublicKey, rec.RskPublicKey, rec.MstPublicKey} {
			k, err := btcec.ParsePubKey(raw)
			if err != nil {
				return nil, err
			}
			keys[j] = k
		}
		members[i] = federation.NewMember(keys[0], keys[1], keys[2])
	}
	return members, nil
}

func encodeFederation(fed federation.Federation) ([]byte, error) {
	if fed == nil {
		return nil, nil
	}
	return rlp.EncodeToBytes(&federationRecord{
		FormatVersion:       uint32(fed.FormatVersion()),
		Members:             encodeMembers(fed.Members()),
		CreationTimeMillis:  uint64(fed.CreationTime().UnixMilli()),
		CreationBlockNumber: fed.CreationBlockNumber(),
	})
}

// decodeFederation rebuilds a federation. ERP parameters are not stored;
// they come from the network constants.
func decodeFederation(data []byte, constants *types.BridgeConstants, act types.Activations) (federation.Federation, error) {
	var rec federationRecord
	if err := rlp.DecodeBytes(data, &rec); err != nil {
		return nil, corrupted("federation", err)
	}
	members, err := decodeMembers(rec.Members)
	if err != nil {
		return nil, corrupted("federation members", err)
	}
	fed, err := federation.FromFormat(federation.FormatVersion(rec.FormatVersion), federation.Args{
		Members:             members,
		CreationTime:        time.UnixMilli(int64(rec.CreationTimeMillis)),
		CreationBlockNumber: rec.CreationBlockNumber,
		Params:              constants.BtcParams,
	}, constants, act)
	if err != nil {
		return nil, corrupted("federation", err)
	}
	return fed, nil
}

func encodePendingFederation(p *federation.PendingFederation) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return rlp.EncodeToBytes(encodeMembers(p.Members()))
}

func decodePendingFederation(data []byte) (*federation.PendingFederation, error) {
	var records []memberRecord
	if err := rlp.DecodeBytes(data, &records); err != nil {
		return nil, corrupted("pending federation", err)
	}
	members, err := decodeMembers(records)
	if err != nil {
		return nil, corrupted("pending federation members", err)
	}
	return federation.NewPendingFederation(members), nil
}

func encodeUTXOs(utxos []*types.UTXO) ([]byte, error) {
	records := make([]utxoRecord, len(utxos))
	for i, u := range utxos {
		if u.ConfirmationHeight < 0 {
			return nil, fmt.Errorf("%w: utxo %s", ErrInvalidHeight, u)
		}
		records[i] = utxoRecord{
			TxHash:             u.TxHash[:],
			OutputIndex:        u.OutputIndex,
			Value:              uint64(u.Value),
			ConfirmationHeight: uint64(u.ConfirmationHeight),
			IsCoinbase:         u.IsCoinbase,
			Script:             u.Script,
		}
	}
	return rlp.EncodeToBytes(records)
}

func decodeUTXOs(data []byte) ([]*types.UTXO, error) {
	var records []utxoRecord
	if err := rlp.DecodeBytes(data, &records); err != nil {
		return nil, corrupted("utxos", err)
	}
	utxos := make([]*types.UTXO, len(records))
	for i, rec := range records {
		hash, err := chainhash.NewHash(rec.TxHash)
		if err != nil {
			return nil, corrupted("utxo hash", err)
		}
		utxos[i] = &types.UTXO{
			TxHash:             *hash,
			OutputIndex:        rec.OutputIndex,
			Value:              btcutil.Amount(rec.Value),
			ConfirmationHeight: int32(rec.ConfirmationHeight),
			IsCoinbase:         rec.IsCoinbase,
			Script:             rec.Script,
		}
	}
	return utxos, nil
}

func encodeRequests(requests []*release.Request) ([]byte, error) {
	records := make([]requestRecord, len(requests))
	for i, req := range requests {
		records[i] = requestRecord{
			Destination: req.Destination.EncodeAddress(),
			Amount:      uint64(req.Amount),
			RskTxHash:   req.RskTxHash[:],
		}
	}
	return rlp.EncodeToBytes(records)
}

func decodeRequests(data []byte, params *chaincfg.Params) ([]*release.Request, error) {
	var records []requestRecord
	if err := rlp.DecodeBytes(data, &records); err != nil {
		return nil, corrupted("release requests", err)
	}
	requests := make([]*release.Request, len(records))
	for i, rec := range records {
		addr, err := btcscript.DecodeAddress(rec.Destination, params)
		if err != nil {
			return nil, corrupted("release request destination", err)
		}
		hash, err := chainhash.NewHash(rec.RskTxHash)
		if err != nil {
			return nil, corrupted("release request hash", err)
		}
		requests[i] = &release.Request{
			Destination: addr,
			Amount:      btcutil.Amount(rec.Amount),
			RskTxHash:   *hash,
		}
	}
	return requests, nil
}

func encodePegouts(entries []*PegoutEntry) ([]byte, error) {
	records := make([]pegoutRecord, len(entries))
	for i, e := range entries {
		var buf bytes.Buffer
		if err := e.Tx.Serialize(&buf); err != nil {
			return nil, err
		}
		values := make([]uint64, len(e.InputValues))
		for j, v := range e.InputValues {
			values[j] = uint64(v)
		}
		records[i] = pegoutRecord{
			Tx:             buf.Bytes(),
			RskBlockNumber: e.RskBlockNumber,
			RskTxHash:      e.RskTxHash[:],
			InputValues:    values,
		}
	}
	return rlp.EncodeToBytes(records)
}

func decodePegouts(data []byte) ([]*PegoutEntry, error) {
	var records []pegoutRecord
	if err := rlp.DecodeBytes(data, &records); err != nil {
		return nil, corrupted("pegouts", err)
	}
	entries := make([]*PegoutEntry, len(records))
	for i, rec := range records {
		tx := wire.NewMsgTx(wire.TxVersion)
		if err := tx.Deserialize(bytes.NewReader(rec.Tx)); err != nil {
			return nil, corrupted("pegout transaction", err)
		}
		hash, err := chainhash.NewHash(rec.RskTxHash)
		if err != nil {
			return nil, corrupted("pegout hash", err)
		}
		var values []btcutil.Amount
		if len(rec.InputValues) > 0 {
			values = make([]btcutil.Amount, len(rec.InputValues))
			for j, v := range rec.InputValues {
				values[j] = btcutil.Amount(v)
			}
		}
		entries[i] = &PegoutEntry{
			Tx:             tx,
			RskBlockNumber: rec.RskBlockNumber,
			RskTxHash:      *hash,
			InputValues:    values,
		}
	}
	return entries, nil
}

func encodeUint64(v uint64) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

func decodeUint64(data []byte) (uint64, error) {
	var v uint64
	if err := rlp.DecodeBytes(data, &v); err != nil {
		return 0, corrupted("integer", err)
	}
	return v, nil
}
