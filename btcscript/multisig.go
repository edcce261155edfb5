package btcscript

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
)

const (
	// MaxMultiSigKeys is the number of keys OP_CHECKMULTISIG accepts.
	MaxMultiSigKeys = txscript.MaxPubKeysPerMultiSig
	// MaxP2SHRedeemScriptSize bounds a redeem script spent through P2SH.
	MaxP2SHRedeemScriptSize = txscript.MaxScriptElementSize
	// MaxStandardWitnessScriptSize bounds a standard P2WSH witness script.
	MaxStandardWitnessScriptSize = 3600
)

// SortPublicKeys returns a copy of keys ordered by their compressed
// serialization.
func SortPublicKeys(keys []*btcec.PublicKey) []*btcec.PublicKey {
	sorted := make([]*btcec.PublicKey, len(keys))
	copy(sorted, keys)
	sort.SliceStable(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].SerializeCompressed(), sorted[j].SerializeCompressed()) < 0
	})
	return sorted
}

// MajorityThreshold is the number of signatures required by a federation
// of n members.
func MajorityThreshold(n int) int {
	return n/2 + 1
}

// CreateMultiSigRedeemScript builds OP_m <keys> OP_n OP_CHECKMULTISIG with
// the keys sorted by their compressed serialization.
func CreateMultiSigRedeemScript(threshold int, keys []*btcec.PublicKey) ([]byte, error) {
	if len(keys) == 0 {
		return nil, ErrEmptyKeySet
	}
	if len(keys) > MaxMultiSigKeys {
		return nil, creationErr(MaxScriptSizeExceeded,
			"%d keys exceed the multisig limit of %d", len(keys), MaxMultiSigKeys)
	}
	if threshold < 1 || threshold > len(keys) {
		return nil, creationErr(InvalidThreshold,
			"threshold %d out of range [1, %d]", threshold, len(keys))
	}

	b := txscript.NewScriptBuilder()
	b.AddInt64(int64(threshold))
	for _, k := range SortPublicKeys(keys) {
		b.AddData(k.SerializeCompressed())
	}
	b.AddInt64(int64(len(keys)))
	b.AddOp(txscript.OP_CHECKMULTISIG)

	return b.Script()
}

// MultiSig is the parsed form of a standard multisig redeem script.
type MultiSig struct {
	Threshold int
	Keys      [][]byte
}

// ParseMultiSigRedeemScript parses
// smallnum(threshold) data(key)* smallnum(count) OP_CHECKMULTISIG
// and checks that count matches the number of keys and that
// 1 <= threshold <= count.
func ParseMultiSigRedeemScript(script []byte) (*MultiSig, error) {
	ms, rest, err := parseMultiSigBody(script)
	if err != nil {
		return nil, err
	}
	if len(rest) != 1 || rest[0] != txscript.OP_CHECKMULTISIG {
		return nil, fmt.Errorf("%w: missing trailing OP_CHECKMULTISIG", ErrNotMultiSigScript)
	}
	return ms, nil
}

// parseMultiSigBody parses the threshold, keys and count of a multisig
// script and returns the unparsed tail starting right after the count.
func parseMultiSigBody(script []byte) (*MultiSig, []byte, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)

	if !tokenizer.Next() {
		return nil, nil, fmt.Errorf("%w: empty script", ErrNotMultiSigScript)
	}
	threshold, ok := tokenNumber(&tokenizer)
	if !ok {
		return nil, nil, fmt.Errorf("%w: threshold is not a number", ErrNotMultiSigScript)
	}

	var keys [][]byte
	var count int64
	for {
		if !tokenizer.Next() {
			return nil, nil, fmt.Errorf("%w: truncated script", ErrNotMultiSigScript)
		}
		if isPublicKeyPush(&tokenizer) {
			keys = append(keys, tokenizer.Data())
			continue
		}
		n, ok := tokenNumber(&tokenizer)
		if !ok {
			return nil, nil, fmt.Errorf("%w: unexpected opcode 0x%02x", ErrNotMultiSigScript,
				tokenizer.Opcode())
		}
		count = n
		break
	}
	if err := tokenizer.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNotMultiSigScript, err)
	}

	if count != int64(len(keys)) {
		return nil, nil, fmt.Errorf("%w: count %d does not match %d keys", ErrNotMultiSigScript, count, len(keys))
	}
	if threshold < 1 || threshold > count {
		return nil, nil, fmt.Errorf("%w: threshold %d out of range [1, %d]", ErrNotMultiSigScript, threshold, count)
	}

	rest := script[tokenizer.ByteIndex():]
	return &MultiSig{Threshold: int(threshold), Keys: keys}, rest, nil
}

// PubKeyBytesLenUncompressed is the length of an uncompressed SEC public
// key.
const PubKeyBytesLenUncompressed = 65

// IsPublicKey reports whether b has the length of a compressed or
// uncompressed public key.
func IsPublicKey(b []byte) bool {
	return len(b) == btcec.PubKeyBytesLenCompressed || len(b) == PubKeyBytesLenUncompressed
}

func isPublicKeyPush(t *txscript.ScriptTokenizer) bool {
	data := t.Data()
	return data != nil && IsPublicKey(data)
}

// tokenNumber decodes the current token as a script number pushed either by
// a small-integer opcode or by a minimal data push.
func tokenNumber(t *txscript.ScriptTokenizer) (int64, bool) {
	op := t.Opcode()
	switch {
	case op == txscript.OP_0:
		return 0, true
	case op >= txscript.OP_1 && op <= txscript.OP_16:
		return int64(op - (txscript.OP_1 - 1)), true
	case op >= txscript.OP_DATA_1 && op <= txscript.OP_DATA_4:
		return decodeScriptNum(t.Data())
	default:
		return 0, false
	}
}
