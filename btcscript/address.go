package btcscript

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// P2SHOutputScript returns OP_HASH160 <hash160(redeemScript)> OP_EQUAL.
func P2SHOutputScript(redeemScript []byte, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.NewAddressScriptHash(redeemScript, params)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// P2SHAddress derives the P2SH address of a redeem script.
func P2SHAddress(redeemScript []byte, params *chaincfg.Params) (*btcutil.AddressScriptHash, error) {
	return btcutil.NewAddressScriptHash(redeemScript, params)
}

// P2WSHProgram returns the version 0 witness program OP_0 <sha256(witnessScript)>
// that is used as the redeem script of a P2SH-P2WSH output.
func P2WSHProgram(witnessScript []byte) []byte {
	h := sha256.Sum256(witnessScript)
	program := make([]byte, 0, 2+len(h))
	program = append(program, txscript.OP_0, txscript.OP_DATA_32)
	return append(program, h[:]...)
}

// P2SHP2WSHOutputScript wraps a witness script into a P2SH output.
func P2SHP2WSHOutputScript(witnessScript []byte, params *chaincfg.Params) ([]byte, error) {
	return P2SHOutputScript(P2WSHProgram(witnessScript), params)
}

// P2SHP2WSHAddress derives the P2SH address of a nested P2WSH witness script.
func P2SHP2WSHAddress(witnessScript []byte, params *chaincfg.Params) (*btcutil.AddressScriptHash, error) {
	return P2SHAddress(P2WSHProgram(witnessScript), params)
}

// CheckRedeemScriptSize enforces the consensus limit for a script revealed
// in a P2SH scriptSig, or the standardness limit for a witness script.
func CheckRedeemScriptSize(script []byte, witness bool) error {
	limit := MaxP2SHRedeemScriptSize
	kind := "redeem"
	if witness {
		limit = MaxStandardWitnessScriptSize
		kind = "witness"
	}
	if len(script) > limit {
		return creationErr(MaxScriptSizeExceeded,
			"%s script of %d bytes exceeds the limit of %d", kind, len(script), limit)
	}
	return nil
}

// DecodeAddress parses addr and checks it belongs to params' network.
func DecodeAddress(addr string, params *chaincfg.Params) (btcutil.Address, error) {
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, err
	}
	if !decoded.IsForNet(params) {
		return nil, fmt.Errorf("address %s is not for network %s", addr, params.Name)
	}
	return decoded, nil
}
