package store

import (
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
	"go.uber.org/zap"

	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/release"
	"github.com/babylonchain/btc-bridge/store"
	"github.com/babylonchain/btc-bridge/types"
)

const (
	newFederationKey                  = "newFederation"
	oldFederationKey                  = "oldFederation"
	pendingFederationKey              = "pendingFederation"
	newFederationUTXOsKey             = "newFederationBtcUTXOs"
	oldFederationUTXOsKey             = "oldFederationBtcUTXOs"
	releaseRequestQueueKey            = "releaseRequestQueue"
	pegoutsWaitingForConfirmationsKey = "pegoutsWaitingForConfirmations"
	pegoutsWaitingForSignaturesKey    = "pegoutsWaitingForSignatures"
	lastRetiredFederationP2SHKey      = "lastRetiredFederationP2SHScript"
	nextPegoutHeightKey               = "nextPegoutHeight"
	feePerKbKey                       = "feePerKb"
)

// Provider is the buffered view of the bridge state for one execution
// context. Reads go through to the accessor once; writes stay in memory
// until Save.
//
// A provider must not be shared by concurrent contexts, and its Save must
// complete before another provider is opened over the same accessor.
type Provider struct {
	accessor  store.Accessor
	owner     []byte
	constants *types.BridgeConstants
	act       types.Activations
	logger    *zap.Logger

	newFederation                  *slot[federation.Federation]
	oldFederation                  *slot[federation.Federation]
	pendingFederation              *slot[*federation.PendingFederation]
	newFederationUTXOs             *slot[[]*types.UTXO]
	oldFederationUTXOs             *slot[[]*types.UTXO]
	releaseRequestQueue            *slot[[]*release.Request]
	pegoutsWaitingForConfirmations *slot[[]*PegoutEntry]
	pegoutsWaitingForSignatures    *slot[[]*PegoutEntry]
	lastRetiredFederationP2SH      *slot[[]byte]
	nextPegoutHeight               *slot[uint64]
	feePerKb                       *slot[uint64]

	processedTxs *index[uint64]
	sigHashes    *index[struct{}]
	pegoutTxs    *index[struct{}]
}

func NewProvider(
	accessor store.Accessor,
	owner []byte,
	constants *types.BridgeConstants,
	act types.Activations,
	logger *zap.Logger,
) *Provider {
	decodeFed := func(data []byte) (federation.Federation, error) {
		return decodeFederation(data, constants, act)
	}
	decodeQueue := func(data []byte) ([]*release.Request, error) {
		return decodeRequests(data, constants.BtcParams)
	}
	identity := func(b []byte) ([]byte, error) { return b, nil }

	return &Provider{
		accessor:  accessor,
		owner:     owner,
		constants: constants,
		act:       act,
		logger:    logger,

		newFederation:                  newSlot(newFederationKey, decodeFed, encodeFederation),
		oldFederation:                  newSlot(oldFederationKey, decodeFed, encodeFederation),
		pendingFederation:              newSlot(pendingFederationKey, decodePendingFederation, encodePendingFederation),
		newFederationUTXOs:             newSlot(newFederationUTXOsKey, decodeUTXOs, encodeUTXOs),
		oldFederationUTXOs:             newSlot(oldFederationUTXOsKey, decodeUTXOs, encodeUTXOs),
		releaseRequestQueue:            newSlot(releaseRequestQueueKey, decodeQueue, encodeRequests),
		pegoutsWaitingForConfirmations: newSlot(pegoutsWaitingForConfirmationsKey, decodePegouts, encodePegouts),
		pegoutsWaitingForSignatures:    newSlot(pegoutsWaitingForSignaturesKey, decodePegouts, encodePegouts),
		lastRetiredFederationP2SH:      newSlot(lastRetiredFederationP2SHKey, identity, identity),
		nextPegoutHeight:               newSlot(nextPegoutHeightKey, decodeUint64, encodeUint64),
		feePerKb:                       newSlot(feePerKbKey, decodeUint64, encodeUint64),

		processedTxs: newProcessedTxIndex(act),
		sigHashes:    newMarkerIndex(sigHashIndexName, act.IsActive(types.FlagPegoutSigHashIndex)),
		pegoutTxs:    newMarkerIndex(pegoutTxHashIndexName, act.IsActive(types.FlagPegoutTxHashIndex)),
	}
}

func (p *Provider) Activations() types.Activations {
	return p.act
}

func (p *Provider) Constants() *types.BridgeConstants {
	return p.constants
}

// NewFederation is the most recently committed federation, nil until one
// is stored.
func (p *Provider) NewFederation() (federation.Federation, error) {
	return p.newFederation.get(p.accessor, p.owner)
}

func (p *Provider) SetNewFederation(fed federation.Federation) {
	p.newFederation.set(fed)
}

// OldFederation is the federation the new one replaces, nil outside a
// migration.
func (p *Provider) OldFederation() (federation.Federation, error) {
	return p.oldFederation.get(p.accessor, p.owner)
}

// SetOldFederation stores fed; nil clears it.
func (p *Provider) SetOldFederation(fed federation.Federation) {
	p.oldFederation.set(fed)
}

func (p *Provider) PendingFederation() (*federation.PendingFederation, error) {
	return p.pendingFederation.get(p.accessor, p.owner)
}

func (p *Provider) SetPendingFederation(pending *federation.PendingFederation) {
	p.pendingFederation.set(pending)
}

// NewFederationUTXOs returns the UTXO list of the new federation. Callers
// replace the list with SetNewFederationUTXOs after mutating it.
func (p *Provider) NewFederationUTXOs() ([]*types.UTXO, error) {
	return p.newFederationUTXOs.get(p.accessor, p.owner)
}

func (p *Provider) SetNewFederationUTXOs(utxos []*types.UTXO) {
	p.newFederationUTXOs.set(utxos)
}

func (p *Provider) OldFederationUTXOs() ([]*types.UTXO, error) {
	return p.oldFederationUTXOs.get(p.accessor, p.owner)
}

func (p *Provider) SetOldFederationUTXOs(utxos []*types.UTXO) {
	p.oldFederationUTXOs.set(utxos)
}

func (p *Provider) ReleaseRequestQueue() ([]*release.Request, error) {
	return p.releaseRequestQueue.get(p.accessor, p.owner)
}

func (p *Provider) SetReleaseRequestQueue(requests []*release.Request) {
	p.releaseRequestQueue.set(requests)
}

func (p *Provider) PegoutsWaitingForConfirmations() ([]*PegoutEntry, error) {
	return p.pegoutsWaitingForConfirmations.get(p.accessor, p.owner)
}

func (p *Provider) SetPegoutsWaitingForConfirmations(entries []*PegoutEntry) {
	p.pegoutsWaitingForConfirmations.set(entries)
}

// AddPegoutWaitingForConfirmations appends entry unless the list already
// holds it. Before FlagBatchedPegouts the list is the legacy release set,
// where entries with the same transaction are duplicates whatever their
// height. It reports whether entry was added.
func (p *Provider) AddPegoutWaitingForConfirmations(entry *PegoutEntry) (bool, error) {
	entries, err := p.PegoutsWaitingForConfirmations()
	if err != nil {
		return false, err
	}

	legacy := !p.act.IsActive(types.FlagBatchedPegouts)
	for _, e := range entries {
		if e.Equal(entry) || (legacy && sameTx(e.Tx, entry.Tx)) {
			return false, nil
		}
	}

	p.SetPegoutsWaitingForConfirmations(append(entries[:len(entries):len(entries)], entry))
	return true, nil
}

func (p *Provider) PegoutsWaitingForSignatures() ([]*PegoutEntry, error) {
	return p.pegoutsWaitingForSignatures.get(p.accessor, p.owner)
}

func (p *Provider) SetPegoutsWaitingForSignatures(entries []*PegoutEntry) {
	p.pegoutsWaitingForSignatures.set(entries)
}

// LastRetiredFederationP2SHScript returns nil when no federation retired
// since the script started being recorded.
func (p *Provider) LastRetiredFederationP2SHScript() ([]byte, error) {
	return p.lastRetiredFederationP2SH.get(p.accessor, p.owner)
}

func (p *Provider) SetLastRetiredFederationP2SHScript(script []byte) {
	p.lastRetiredFederationP2SH.set(script)
}

// NextPegoutHeight is the ledger height of the next batched pegout, zero
// when never scheduled.
func (p *Provider) NextPegoutHeight() (uint64, error) {
	return p.nextPegoutHeight.get(p.accessor, p.owner)
}

func (p *Provider) SetNextPegoutHeight(height uint64) {
	p.nextPegoutHeight.set(height)
}

// FeePerKb returns the voted fee rate, or the network default when none was
// voted.
func (p *Provider) FeePerKb() (chainfee.SatPerKVByte, error) {
	v, err := p.feePerKb.get(p.accessor, p.owner)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return p.constants.GenesisFeePerKb, nil
	}
	return chainfee.SatPerKVByte(v), nil
}

func (p *Provider) SetFeePerKb(fee chainfee.SatPerKVByte) {
	p.feePerKb.set(uint64(fee))
}

// Save writes every modified value and index entry to the accessor.
func (p *Provider) Save() error {
	savers := []func(store.Accessor, []byte) error{
		p.newFederation.save,
		p.oldFederation.save,
		p.pendingFederation.save,
		p.newFederationUTXOs.save,
		p.oldFederationUTXOs.save,
		p.releaseRequestQueue.save,
		p.pegoutsWaitingForConfirmations.save,
		p.pegoutsWaitingForSignatures.save,
		p.lastRetiredFederationP2SH.save,
		p.nextPegoutHeight.save,
		p.feePerKb.save,
		p.processedTxs.save,
		p.sigHashes.save,
		p.pegoutTxs.save,
	}
	for _, save := range savers {
		if err := save(p.accessor, p.owner); err != nil {
			return err
		}
	}

	p.logger.Debug("saved the bridge state", zap.Uint64("height", p.act.Height()))
	return nil
}
