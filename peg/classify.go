package peg

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/babylonchain/btc-bridge/btcscript"
	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/types"
)

// Federations are the federations whose funds the bridge controls at one
// ledger height.
type Federations struct {
	Active federation.Federation
	// Retiring is nil outside a migration.
	Retiring federation.Federation
	// LastRetiredP2SHScript is the output script of the most recently
	// retired federation, if any.
	LastRetiredP2SHScript []byte
}

// Live returns the active federation followed by the retiring one.
func (f Federations) Live() []federation.Federation {
	feds := []federation.Federation{f.Active}
	if f.Retiring != nil {
		feds = append(feds, f.Retiring)
	}
	return feds
}

// Classifier assigns a role to Bitcoin transactions.
type Classifier struct {
	constants *types.BridgeConstants
}

func NewClassifier(constants *types.BridgeConstants) *Classifier {
	return &Classifier{constants: constants}
}

// Classify returns PEGOUT_OR_MIGRATION for spends of federation funds,
// PEGIN for transactions paying enough to a live federation and UNKNOWN
// otherwise. Federation spends take precedence.
func (c *Classifier) Classify(tx *wire.MsgTx, feds Federations, act types.Activations) TxType {
	if c.IsFederationSpend(tx, feds, act) {
		return TxPegoutOrMigration
	}

	outputs := OutputsToFederations(tx, feds.Live())
	if len(outputs) > 0 && MeetsMinimum(outputs, c.constants.MinimumPeginValue(act), act) {
		return TxPegin
	}
	return TxUnknown
}

// IsFederationSpend reports whether any input of tx reveals the redeem
// script of a live federation or spends the last retired federation.
func (c *Classifier) IsFederationSpend(tx *wire.MsgTx, feds Federations, act types.Activations) bool {
	if SpendsFederations(tx, feds.Live()) {
		return true
	}

	for _, txIn := range tx.TxIn {
		if act.IsActive(types.FlagRetiredFedP2SHScript) {
			if len(feds.LastRetiredP2SHScript) == 0 {
				return false
			}
			script, ok := spentOutputScript(txIn, c.constants.BtcParams)
			if ok && bytes.Equal(script, feds.LastRetiredP2SHScript) {
				return true
			}
			continue
		}

		if c.constants.LegacyRetiredFederationAddress == "" {
			return false
		}
		addr, ok := spentAddress(txIn, c.constants.BtcParams)
		if ok && addr.EncodeAddress() == c.constants.LegacyRetiredFederationAddress {
			return true
		}
	}
	return false
}

// SpendsFederations reports whether any input of tx reveals the redeem
// script of one of feds.
func SpendsFederations(tx *wire.MsgTx, feds []federation.Federation) bool {
	for _, txIn := range tx.TxIn {
		script, err := btcscript.ExtractRedeemScript(txIn)
		if err != nil {
			continue
		}
		for _, fed := range feds {
			if bytes.Equal(script, fed.RedeemScript()) {
				return true
			}
		}
	}
	return false
}

// FederationOutput is an output of a transaction paying a federation.
type FederationOutput struct {
	Index      uint32
	Value      btcutil.Amount
	Federation federation.Federation
}

// OutputsToFederations returns the outputs of tx paying any of feds.
func OutputsToFederations(tx *wire.MsgTx, feds []federation.Federation) []FederationOutput {
	var outputs []FederationOutput
	for i, out := range tx.TxOut {
		for _, fed := range feds {
			if bytes.Equal(out.PkScript, fed.P2SHScript()) {
				outputs = append(outputs, FederationOutput{
					Index:      uint32(i),
					Value:      btcutil.Amount(out.Value),
					Federation: fed,
				})
				break
			}
		}
	}
	return outputs
}

// MeetsMinimum applies the peg-in minimum value rule. Before
// FlagPeginPerOutputMinimum the outputs are summed; afterwards each one
// must reach the minimum on its own.
func MeetsMinimum(outputs []FederationOutput, minimum btcutil.Amount, act types.Activations) bool {
	if !act.IsActive(types.FlagPeginPerOutputMinimum) {
		var total btcutil.Amount
		for _, o := range outputs {
			total += o.Value
		}
		return total >= minimum
	}

	if len(outputs) == 0 {
		return false
	}
	for _, o := range outputs {
		if o.Value < minimum {
			return false
		}
	}
	return true
}

// spentOutputScript rebuilds the script of the output an input spends from
// the script it reveals.
func spentOutputScript(txIn *wire.TxIn, params *chaincfg.Params) ([]byte, bool) {
	script, err := btcscript.ExtractRedeemScript(txIn)
	if err != nil {
		return nil, false
	}
	if len(txIn.Witness) > 0 {
		out, err := btcscript.P2SHP2WSHOutputScript(script, params)
		return out, err == nil
	}
	out, err := btcscript.P2SHOutputScript(script, params)
	return out, err == nil
}

func spentAddress(txIn *wire.TxIn, params *chaincfg.Params) (btcutil.Address, bool) {
	script, err := btcscript.ExtractRedeemScript(txIn)
	if err != nil {
		return nil, false
	}
	addr, err := btcscript.P2SHAddress(script, params)
	return addr, err == nil
}
