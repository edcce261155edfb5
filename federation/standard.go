package federation

import (
	"github.com/babylonchain/btc-bridge/btcscript"
)

// StandardMultisigFederation is spent with a plain m-of-n multisig script
// behind P2SH.
type StandardMultisigFederation struct {
	base
}

var _ Federation = (*StandardMultisigFederation)(nil)

func NewStandardMultisigFederation(args Args) (*StandardMultisigFederation, error) {
	b, err := newBase(args)
	if err != nil {
		return nil, err
	}

	redeemScript, err := btcscript.CreateMultiSigRedeemScript(b.NumberOfSignaturesRequired(), b.BtcPublicKeys())
	if err != nil {
		return nil, &CreationError{Reason: InvalidRedeemScript, Err: err}
	}
	if err := b.setScripts(redeemScript, false); err != nil {
		return nil, err
	}

	return &StandardMultisigFederation{base: b}, nil
}

func (f *StandardMultisigFederation) FormatVersion() FormatVersion {
	return StandardMultisigFormat
}

func (f *StandardMultisigFederation) SpendTemplate() *btcscript.SpendTemplate {
	return &btcscript.SpendTemplate{
		RedeemScript: f.RedeemScript(),
		Threshold:    f.NumberOfSignaturesRequired(),
	}
}

func (f *StandardMultisigFederation) Equal(other Federation) bool {
	o, ok := other.(*StandardMultisigFederation)
	if !ok {
		return false
	}
	return f.equalBase(&o.base)
}
