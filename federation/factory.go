package federation

import (
	"fmt"

	"github.com/babylonchain/btc-bridge/btcscript"
	"github.com/babylonchain/btc-bridge/types"
)

// Build creates a federation of the family in force under act.
func Build(args Args, constants *types.BridgeConstants, act types.Activations) (Federation, error) {
	switch {
	case act.IsActive(types.FlagSegwitFederation):
		return FromFormat(P2shP2wshErpFormat, args, constants, act)
	case act.IsActive(types.FlagP2shErpFederation):
		return FromFormat(P2shErpFormat, args, constants, act)
	case act.IsActive(types.FlagErpFederation):
		return FromFormat(NonStandardErpFormat, args, constants, act)
	default:
		return FromFormat(StandardMultisigFormat, args, constants, act)
	}
}

// FromFormat creates a federation of the given family. The emergency keys
// and delay of ERP families come from constants.
func FromFormat(
	version FormatVersion,
	args Args,
	constants *types.BridgeConstants,
	act types.Activations,
) (Federation, error) {
	erpArgs := ErpArgs{
		Args:            args,
		ErpPublicKeys:   constants.ErpFederationPublicKeys,
		ActivationDelay: constants.ErpFederationActivationDelay,
	}

	var (
		fed Federation
		err error
	)
	switch version {
	case StandardMultisigFormat:
		var f *StandardMultisigFederation
		if f, err = NewStandardMultisigFederation(args); err == nil {
			fed = f
		}
	case NonStandardErpFormat:
		builder := btcscript.NonStandardErpBuilderFor(constants.BtcParams, constants.LegacyErpRedeemScript, act)
		var f *ErpFederation
		if f, err = NewNonStandardErpFederation(erpArgs, builder); err == nil {
			fed = f
		}
	case P2shErpFormat:
		var f *ErpFederation
		if f, err = NewP2shErpFederation(erpArgs); err == nil {
			fed = f
		}
	case P2shP2wshErpFormat:
		var f *ErpFederation
		if f, err = NewP2shP2wshErpFederation(erpArgs); err == nil {
			fed = f
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormatVersion, version)
	}
	if err != nil {
		return nil, err
	}
	return fed, nil
}
