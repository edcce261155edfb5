package federation

import (
	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/babylonchain/btc-bridge/btcscript"
)

// ErpArgs extend Args with the emergency key set that may spend the funds
// once ActivationDelay blocks have passed since they were received.
type ErpArgs struct {
	Args
	ErpPublicKeys   []*btcec.PublicKey
	ActivationDelay int64
}

// ErpFederation is a federation whose redeem script has an emergency
// branch.
type ErpFederation struct {
	base

	format          FormatVersion
	variant         btcscript.ErpVariant
	erpPublicKeys   []*btcec.PublicKey
	activationDelay int64
	defaultScript   []byte
}

var _ Federation = (*ErpFederation)(nil)

// NewNonStandardErpFederation builds an ERP federation whose script is
// spent through P2SH with one OP_CHECKMULTISIG shared by both branches.
// The byte layout is chosen by builder, see
// btcscript.NonStandardErpBuilderFor.
func NewNonStandardErpFederation(args ErpArgs, builder btcscript.ErpRedeemScriptBuilder) (*ErpFederation, error) {
	return newErpFederation(args, NonStandardErpFormat, builder, false)
}

// NewP2shErpFederation builds an ERP federation spent through P2SH.
func NewP2shErpFederation(args ErpArgs) (*ErpFederation, error) {
	return newErpFederation(args, P2shErpFormat, btcscript.NewP2shErpBuilder(), false)
}

// NewP2shP2wshErpFederation builds an ERP federation spent through a P2WSH
// program nested in P2SH.
func NewP2shP2wshErpFederation(args ErpArgs) (*ErpFederation, error) {
	return newErpFederation(args, P2shP2wshErpFormat, btcscript.NewP2shErpBuilder(), true)
}

func newErpFederation(
	args ErpArgs,
	format FormatVersion,
	builder btcscript.ErpRedeemScriptBuilder,
	witness bool,
) (*ErpFederation, error) {
	b, err := newBase(args.Args)
	if err != nil {
		return nil, err
	}
	if len(args.ErpPublicKeys) == 0 {
		return nil, &CreationError{Reason: NoMembers, Err: btcscript.ErrEmptyKeySet}
	}

	erpKeys := btcscript.SortPublicKeys(args.ErpPublicKeys)
	defaultScript, err := btcscript.CreateMultiSigRedeemScript(b.NumberOfSignaturesRequired(), b.BtcPublicKeys())
	if err != nil {
		return nil, &CreationError{Reason: InvalidRedeemScript, Err: err}
	}

	redeemScript, err := builder.CreateRedeemScript(
		b.BtcPublicKeys(), b.NumberOfSignaturesRequired(),
		erpKeys, btcscript.MajorityThreshold(len(erpKeys)),
		args.ActivationDelay,
	)
	if err != nil {
		return nil, &CreationError{Reason: InvalidRedeemScript, Err: err}
	}
	if err := b.setScripts(redeemScript, witness); err != nil {
		return nil, err
	}

	return &ErpFederation{
		base:            b,
		format:          format,
		variant:         builder.Variant(),
		erpPublicKeys:   erpKeys,
		activationDelay: args.ActivationDelay,
		defaultScript:   defaultScript,
	}, nil
}

func (f *ErpFederation) FormatVersion() FormatVersion {
	return f.format
}

// Variant is the byte layout of the redeem script.
func (f *ErpFederation) Variant() btcscript.ErpVariant {
	return f.variant
}

func (f *ErpFederation) ErpPublicKeys() []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, len(f.erpPublicKeys))
	copy(keys, f.erpPublicKeys)
	return keys
}

func (f *ErpFederation) ActivationDelay() int64 {
	return f.activationDelay
}

// DefaultRedeemScript is the multisig script of the members alone.
func (f *ErpFederation) DefaultRedeemScript() []byte {
	return cloneBytes(f.defaultScript)
}

func (f *ErpFederation) SpendTemplate() *btcscript.SpendTemplate {
	return &btcscript.SpendTemplate{
		RedeemScript: f.RedeemScript(),
		Threshold:    f.NumberOfSignaturesRequired(),
		Erp:          true,
		Segwit:       f.format == P2shP2wshErpFormat,
	}
}

func (f *ErpFederation) Equal(other Federation) bool {
	o, ok := other.(*ErpFederation)
	if !ok {
		return false
	}
	return f.format == o.format &&
		f.equalBase(&o.base) &&
		equalKeys(f.erpPublicKeys, o.erpPublicKeys) &&
		f.activationDelay == o.activationDelay
}
