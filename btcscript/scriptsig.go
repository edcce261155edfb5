package btcscript

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// DummySignatureSize is the size of a DER signature with its sighash byte
// used when estimating the size of a transaction before it is signed.
const DummySignatureSize = 73

// SpendTemplate describes how an input spending a federation output is laid
// out.
type SpendTemplate struct {
	// RedeemScript is the P2SH redeem script, or the witness script when
	// Segwit is set.
	RedeemScript []byte
	Threshold    int
	// Erp inputs carry an empty push selecting the OP_NOTIF (default) branch.
	Erp    bool
	Segwit bool
}

// SetUnsigned fills in an input with empty signature slots.
func (s *SpendTemplate) SetUnsigned(txIn *wire.TxIn) error {
	return s.SetSignatures(txIn, nil)
}

// SetDummySigned fills in an input with placeholder signatures of the
// maximum size, for fee estimation.
func (s *SpendTemplate) SetDummySigned(txIn *wire.TxIn) error {
	sigs := make([][]byte, s.Threshold)
	for i := range sigs {
		sigs[i] = make([]byte, DummySignatureSize)
	}
	return s.SetSignatures(txIn, sigs)
}

// SetSignatures rewrites an input with the given signatures, ordered as
// the keys in the redeem script, padding the remaining slots with empty
// pushes.
func (s *SpendTemplate) SetSignatures(txIn *wire.TxIn, sigs [][]byte) error {
	if len(sigs) > s.Threshold {
		return fmt.Errorf("%d signatures exceed the threshold of %d", len(sigs), s.Threshold)
	}

	items := make([][]byte, 0, s.Threshold+3)
	// OP_CHECKMULTISIG pops one extra element
	items = append(items, nil)
	items = append(items, sigs...)
	for i := len(sigs); i < s.Threshold; i++ {
		items = append(items, nil)
	}
	if s.Erp {
		items = append(items, nil)
	}
	items = append(items, s.RedeemScript)

	if s.Segwit {
		witness := make(wire.TxWitness, len(items))
		for i, item := range items {
			witness[i] = item
		}
		sigScript, err := txscript.NewScriptBuilder().AddData(P2WSHProgram(s.RedeemScript)).Script()
		if err != nil {
			return err
		}
		txIn.Witness = witness
		txIn.SignatureScript = sigScript
		return nil
	}

	b := txscript.NewScriptBuilder()
	for _, item := range items {
		if len(item) == 0 {
			b.AddOp(txscript.OP_0)
			continue
		}
		b.AddData(item)
	}
	sigScript, err := b.Script()
	if err != nil {
		return err
	}
	txIn.SignatureScript = sigScript
	txIn.Witness = nil
	return nil
}

// Signatures returns the non-empty signature slots of an input built with
// this template.
func (s *SpendTemplate) Signatures(txIn *wire.TxIn) ([][]byte, error) {
	var items [][]byte
	if s.Segwit {
		items = txIn.Witness
	} else {
		pushes, err := pushes(txIn.SignatureScript)
		if err != nil {
			return nil, err
		}
		items = pushes
	}

	expected := s.Threshold + 2
	if s.Erp {
		expected++
	}
	if len(items) != expected {
		return nil, fmt.Errorf("input has %d script items, expected %d", len(items), expected)
	}

	var sigs [][]byte
	for _, item := range items[1 : 1+s.Threshold] {
		if len(item) > 0 {
			sigs = append(sigs, item)
		}
	}
	return sigs, nil
}

// ExtractRedeemScript returns the script an input reveals: the last witness
// item of a segwit spend, or the last push of its scriptSig.
func ExtractRedeemScript(txIn *wire.TxIn) ([]byte, error) {
	if len(txIn.Witness) > 0 {
		last := txIn.Witness[len(txIn.Witness)-1]
		if len(last) == 0 {
			return nil, ErrNoRedeemScript
		}
		return last, nil
	}

	items, err := pushes(txIn.SignatureScript)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 || len(items[len(items)-1]) == 0 {
		return nil, ErrNoRedeemScript
	}
	return items[len(items)-1], nil
}

// FirstInputSigHash is the legacy SIGHASH_ALL digest of the first input,
// computed over the script that input reveals. It identifies a release
// transaction independently of its signatures.
func FirstInputSigHash(tx *wire.MsgTx) (chainhash.Hash, error) {
	if len(tx.TxIn) == 0 {
		return chainhash.Hash{}, fmt.Errorf("transaction %s has no inputs", tx.TxHash())
	}
	redeemScript, err := ExtractRedeemScript(tx.TxIn[0])
	if err != nil {
		return chainhash.Hash{}, err
	}
	return InputSigHash(tx, 0, redeemScript)
}

// InputSigHash is the legacy SIGHASH_ALL digest of input idx over script.
func InputSigHash(tx *wire.MsgTx, idx int, script []byte) (chainhash.Hash, error) {
	digest, err := txscript.CalcSignatureHash(script, txscript.SigHashAll, tx, idx)
	if err != nil {
		return chainhash.Hash{}, err
	}
	var h chainhash.Hash
	copy(h[:], digest)
	return h, nil
}

// WitnessInputSigHash is the BIP143 SIGHASH_ALL digest of input idx over
// witnessScript. prevOuts are the outputs spent by tx, in input order.
func WitnessInputSigHash(tx *wire.MsgTx, idx int, witnessScript []byte, prevOuts []*wire.TxOut) (chainhash.Hash, error) {
	if len(prevOuts) != len(tx.TxIn) {
		return chainhash.Hash{}, fmt.Errorf("%d spent outputs for %d inputs", len(prevOuts), len(tx.TxIn))
	}
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, txIn := range tx.TxIn {
		fetcher.AddPrevOut(txIn.PreviousOutPoint, prevOuts[i])
	}

	digest, err := txscript.CalcWitnessSigHash(witnessScript, txscript.NewTxSigHashes(tx, fetcher),
		txscript.SigHashAll, tx, idx, prevOuts[idx].Value)
	if err != nil {
		return chainhash.Hash{}, err
	}
	var h chainhash.Hash
	copy(h[:], digest)
	return h, nil
}

// SigHash is the digest members sign for input idx: BIP143 for segwit
// spends, legacy otherwise. prevOuts are only read for segwit spends.
func (s *SpendTemplate) SigHash(tx *wire.MsgTx, idx int, prevOuts []*wire.TxOut) (chainhash.Hash, error) {
	if s.Segwit {
		return WitnessInputSigHash(tx, idx, s.RedeemScript, prevOuts)
	}
	return InputSigHash(tx, idx, s.RedeemScript)
}

// pushes returns the data pushed by a push-only script. Small integer and
// OP_0 pushes yield their minimal encodings.
func pushes(script []byte) ([][]byte, error) {
	var out [][]byte
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		op := tokenizer.Opcode()
		switch {
		case op == txscript.OP_0:
			out = append(out, nil)
		case op >= txscript.OP_1 && op <= txscript.OP_16:
			out = append(out, []byte{op - (txscript.OP_1 - 1)})
		case op == txscript.OP_1NEGATE:
			out = append(out, []byte{0x81})
		case op <= txscript.OP_PUSHDATA4:
			out = append(out, tokenizer.Data())
		default:
			return nil, fmt.Errorf("script is not push only: opcode 0x%02x", op)
		}
	}
	if err := tokenizer.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
