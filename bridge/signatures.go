package bridge

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"

	bridgestore "github.com/babylonchain/btc-bridge/bridge/store"
	"github.com/babylonchain/btc-bridge/btcscript"
	"github.com/babylonchain/btc-bridge/federation"
)

// AddSignature adds the signatures of one federator to the release created
// by rskTxHash, one DER signature per input in input order. The release is
// published once every input reaches its federation's threshold.
func (s *Support) AddSignature(key *btcec.PublicKey, sigs [][]byte, rskTxHash chainhash.Hash) error {
	entries, err := s.provider.PegoutsWaitingForSignatures()
	if err != nil {
		return err
	}
	feds, err := s.federations()
	if err != nil {
		return err
	}

	idx, fed := findSignableEntry(entries, rskTxHash, key, feds.Live())
	if idx < 0 {
		for _, e := range entries {
			if e.RskTxHash == rskTxHash {
				return ErrNotFederator.Wrapf("%x", key.SerializeCompressed())
			}
		}
		return ErrPegoutNotFound.Wrap(rskTxHash.String())
	}
	entry := entries[idx]
	logger := s.logger.With(
		zap.String("rsk_tx", rskTxHash.String()),
		zap.String("btc_tx", entry.Tx.TxHash().String()),
		zap.String("federator", fmt.Sprintf("%x", key.SerializeCompressed())))

	if len(sigs) != len(entry.Tx.TxIn) {
		return ErrInvalidSignatures.Wrapf("%d signatures for %d inputs", len(sigs), len(entry.Tx.TxIn))
	}

	tx := entry.Tx.Copy()
	tmpl := fed.SpendTemplate()
	prevOuts := spentOutputs(fed, entry)
	for i, txIn := range tx.TxIn {
		sigHash, err := tmpl.SigHash(tx, i, prevOuts)
		if err != nil {
			return err
		}
		sig, err := ecdsa.ParseDERSignature(sigs[i])
		if err != nil || !sig.Verify(sigHash[:], key) {
			return ErrInvalidSignatures.Wrapf("input %d", i)
		}

		signed, err := addInputSignature(fed, txIn, sigHash, key, sigs[i])
		if err != nil {
			return err
		}
		if !signed {
			logger.Debug("input already signed by the federator", zap.Int("input", i))
		}
	}

	complete, err := isFullySigned(fed, tx)
	if err != nil {
		return err
	}
	if !complete {
		entries[idx] = &bridgestore.PegoutEntry{
			Tx:             tx,
			RskBlockNumber: entry.RskBlockNumber,
			RskTxHash:      entry.RskTxHash,
			InputValues:    entry.InputValues,
		}
		s.provider.SetPegoutsWaitingForSignatures(entries)
		logger.Info("added release signatures")
		return nil
	}

	rest := make([]*bridgestore.PegoutEntry, 0, len(entries)-1)
	rest = append(rest, entries[:idx]...)
	rest = append(rest, entries[idx+1:]...)
	s.provider.SetPegoutsWaitingForSignatures(rest)

	if err := s.ledger.ReleaseSigned(rskTxHash, tx); err != nil {
		return fmt.Errorf("failed to publish release %s: %w", tx.TxHash(), err)
	}
	s.metrics.RecordPegoutSigned()
	logger.Info("release fully signed", zap.String("signed_tx", tx.TxHash().String()))
	return nil
}

// spentOutputs rebuilds the federation outputs spent by the release. It
// returns nil when the entry does not carry the input values.
func spentOutputs(fed federation.Federation, entry *bridgestore.PegoutEntry) []*wire.TxOut {
	if len(entry.InputValues) != len(entry.Tx.TxIn) {
		return nil
	}
	prevOuts := make([]*wire.TxOut, len(entry.InputValues))
	for i, v := range entry.InputValues {
		prevOuts[i] = wire.NewTxOut(int64(v), fed.P2SHScript())
	}
	return prevOuts
}

// findSignableEntry returns the first release created by rskTxHash that
// spends a federation key belongs to.
func findSignableEntry(
	entries []*bridgestore.PegoutEntry,
	rskTxHash chainhash.Hash,
	key *btcec.PublicKey,
	feds []federation.Federation,
) (int, federation.Federation) {
	for i, e := range entries {
		if e.RskTxHash != rskTxHash || len(e.Tx.TxIn) == 0 {
			continue
		}
		redeemScript, err := btcscript.ExtractRedeemScript(e.Tx.TxIn[0])
		if err != nil {
			continue
		}
		for _, fed := range feds {
			if bytes.Equal(redeemScript, fed.RedeemScript()) && fed.HasBtcPublicKey(key) {
				return i, fed
			}
		}
	}
	return -1, nil
}

// addInputSignature inserts sig at the position of key among the
// signatures already present on txIn. It reports false when key already
// signed the input or the threshold is met.
func addInputSignature(
	fed federation.Federation,
	txIn *wire.TxIn,
	sigHash chainhash.Hash,
	key *btcec.PublicKey,
	sig []byte,
) (bool, error) {
	tmpl := fed.SpendTemplate()
	existing, err := tmpl.Signatures(txIn)
	if err != nil {
		return false, err
	}
	if len(existing) >= tmpl.Threshold {
		return false, nil
	}

	keyIdx, ok := fed.BtcPublicKeyIndex(key)
	if !ok {
		return false, fmt.Errorf("key %x is not a federation member", key.SerializeCompressed())
	}

	type indexed struct {
		keyIdx int
		sig    []byte
	}
	all := make([]indexed, 0, len(existing)+1)
	for _, raw := range existing {
		signer, ok := signerIndex(fed, sigHash, raw)
		if !ok {
			return false, fmt.Errorf("input carries a signature of no federation member")
		}
		if signer == keyIdx {
			return false, nil
		}
		all = append(all, indexed{keyIdx: signer, sig: raw})
	}
	all = append(all, indexed{keyIdx: keyIdx, sig: append(append([]byte{}, sig...), byte(txscript.SigHashAll))})
	sort.Slice(all, func(i, j int) bool { return all[i].keyIdx < all[j].keyIdx })

	ordered := make([][]byte, len(all))
	for i, e := range all {
		ordered[i] = e.sig
	}
	return true, tmpl.SetSignatures(txIn, ordered)
}

// signerIndex finds the member whose key produced raw, a DER signature
// followed by its sighash type.
func signerIndex(fed federation.Federation, sigHash chainhash.Hash, raw []byte) (int, bool) {
	if len(raw) < 2 {
		return 0, false
	}
	sig, err := ecdsa.ParseDERSignature(raw[:len(raw)-1])
	if err != nil {
		return 0, false
	}
	for _, k := range fed.BtcPublicKeys() {
		if sig.Verify(sigHash[:], k) {
			return fed.BtcPublicKeyIndex(k)
		}
	}
	return 0, false
}

func isFullySigned(fed federation.Federation, tx *wire.MsgTx) (bool, error) {
	tmpl := fed.SpendTemplate()
	for _, txIn := range tx.TxIn {
		sigs, err := tmpl.Signatures(txIn)
		if err != nil {
			return false, err
		}
		if len(sigs) < tmpl.Threshold {
			return false, nil
		}
	}
	return true, nil
}
