package btcscript

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/babylonchain/btc-bridge/types"
)

// ErpVariant identifies the byte layout of a two-branch redeem script.
type ErpVariant int

const (
	// ErpVariantLegacyHardcoded is the frozen script of the first testnet
	// ERP federation, returned verbatim regardless of keys.
	ErpVariantLegacyHardcoded ErpVariant = iota
	// ErpVariantUnsignedBECsv shares a trailing OP_CHECKMULTISIG between
	// the branches and pushes the CSV value as 2 unsigned big-endian bytes.
	ErpVariantUnsignedBECsv
	// ErpVariantStandard shares a trailing OP_CHECKMULTISIG and pushes the
	// CSV value as a minimal script number.
	ErpVariantStandard
	// ErpVariantP2sh embeds two complete multisig scripts.
	ErpVariantP2sh
)

func (v ErpVariant) String() string {
	switch v {
	case ErpVariantLegacyHardcoded:
		return "legacy-hardcoded"
	case ErpVariantUnsignedBECsv:
		return "unsigned-be-csv"
	case ErpVariantStandard:
		return "standard"
	case ErpVariantP2sh:
		return "p2sh"
	default:
		return fmt.Sprintf("unknown(%d)", int(v))
	}
}

// ErpRedeemScriptBuilder builds
// OP_NOTIF <default branch> OP_ELSE <csv> OP_CSV OP_DROP <emergency branch> OP_ENDIF
// in one of the known byte layouts.
type ErpRedeemScriptBuilder interface {
	Variant() ErpVariant
	CreateRedeemScript(
		defaultKeys []*btcec.PublicKey, defaultThreshold int,
		emergencyKeys []*btcec.PublicKey, emergencyThreshold int,
		csvValue int64,
	) ([]byte, error)
}

// NonStandardErpBuilderFor selects the layout of a non-standard ERP
// federation from the network and the active upgrades.
func NonStandardErpBuilderFor(params *chaincfg.Params, legacyScript []byte, act types.Activations) ErpRedeemScriptBuilder {
	if !act.IsActive(types.FlagErpScriptHardcodeRemoved) && params.Net == chaincfg.TestNet3Params.Net {
		return &hardcodedErpBuilder{script: legacyScript}
	}
	if !act.IsActive(types.FlagErpCsvCanonical) {
		return &nonStandardErpBuilder{variant: ErpVariantUnsignedBECsv}
	}
	return &nonStandardErpBuilder{variant: ErpVariantStandard}
}

// NewP2shErpBuilder returns the builder of P2SH-ERP (and P2SH-P2WSH-ERP
// witness) scripts.
func NewP2shErpBuilder() ErpRedeemScriptBuilder {
	return p2shErpBuilder{}
}

// ValidateErpScriptArgs checks that both internal scripts are well formed
// multisig scripts and that the CSV value is in (0, MaxCsvValue].
func ValidateErpScriptArgs(defaultRedeemScript, emergencyRedeemScript []byte, csvValue int64) error {
	if csvValue <= 0 || csvValue > types.MaxCsvValue {
		return creationErr(InvalidCsvValue,
			"provided csv value %d must be between 0 and %d", csvValue, types.MaxCsvValue)
	}
	if _, err := ParseMultiSigRedeemScript(defaultRedeemScript); err != nil {
		return creationErr(InvalidInternalRedeemScripts, "default redeem script: %v", err)
	}
	if _, err := ParseMultiSigRedeemScript(emergencyRedeemScript); err != nil {
		return creationErr(InvalidInternalRedeemScripts, "emergency redeem script: %v", err)
	}
	return nil
}

type hardcodedErpBuilder struct {
	script []byte
}

func (b *hardcodedErpBuilder) Variant() ErpVariant { return ErpVariantLegacyHardcoded }

func (b *hardcodedErpBuilder) CreateRedeemScript(
	_ []*btcec.PublicKey, _ int, _ []*btcec.PublicKey, _ int, _ int64,
) ([]byte, error) {
	if len(b.script) == 0 {
		return nil, creationErr(InvalidInternalRedeemScripts, "no frozen ERP redeem script configured for this network")
	}
	out := make([]byte, len(b.script))
	copy(out, b.script)
	return out, nil
}

type nonStandardErpBuilder struct {
	variant ErpVariant
}

func (b *nonStandardErpBuilder) Variant() ErpVariant { return b.variant }

func (b *nonStandardErpBuilder) CreateRedeemScript(
	defaultKeys []*btcec.PublicKey, defaultThreshold int,
	emergencyKeys []*btcec.PublicKey, emergencyThreshold int,
	csvValue int64,
) ([]byte, error) {
	defaultScript, emergencyScript, err := internalScripts(defaultKeys, defaultThreshold, emergencyKeys, emergencyThreshold, csvValue)
	if err != nil {
		return nil, err
	}

	var csv []byte
	if b.variant == ErpVariantUnsignedBECsv {
		csv = encodeUnsignedBE(uint64(csvValue), 2)
	} else {
		csv = encodeScriptNum(csvValue)
	}

	sb := txscript.NewScriptBuilder()
	sb.AddOp(txscript.OP_NOTIF)
	sb.AddOps(withoutCheckMultiSig(defaultScript))
	sb.AddOp(txscript.OP_ELSE)
	sb.AddData(csv)
	sb.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	sb.AddOp(txscript.OP_DROP)
	sb.AddOps(withoutCheckMultiSig(emergencyScript))
	sb.AddOp(txscript.OP_ENDIF)
	sb.AddOp(txscript.OP_CHECKMULTISIG)

	return sb.Script()
}

type p2shErpBuilder struct{}

func (p2shErpBuilder) Variant() ErpVariant { return ErpVariantP2sh }

func (p2shErpBuilder) CreateRedeemScript(
	defaultKeys []*btcec.PublicKey, defaultThreshold int,
	emergencyKeys []*btcec.PublicKey, emergencyThreshold int,
	csvValue int64,
) ([]byte, error) {
	defaultScript, emergencyScript, err := internalScripts(defaultKeys, defaultThreshold, emergencyKeys, emergencyThreshold, csvValue)
	if err != nil {
		return nil, err
	}

	sb := txscript.NewScriptBuilder()
	sb.AddOp(txscript.OP_NOTIF)
	sb.AddOps(defaultScript)
	sb.AddOp(txscript.OP_ELSE)
	sb.AddData(encodeScriptNum(csvValue))
	sb.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	sb.AddOp(txscript.OP_DROP)
	sb.AddOps(emergencyScript)
	sb.AddOp(txscript.OP_ENDIF)

	return sb.Script()
}

func internalScripts(
	defaultKeys []*btcec.PublicKey, defaultThreshold int,
	emergencyKeys []*btcec.PublicKey, emergencyThreshold int,
	csvValue int64,
) ([]byte, []byte, error) {
	defaultScript, err := CreateMultiSigRedeemScript(defaultThreshold, defaultKeys)
	if err != nil {
		return nil, nil, fmt.Errorf("default redeem script: %w", err)
	}
	emergencyScript, err := CreateMultiSigRedeemScript(emergencyThreshold, emergencyKeys)
	if err != nil {
		return nil, nil, fmt.Errorf("emergency redeem script: %w", err)
	}
	if err := ValidateErpScriptArgs(defaultScript, emergencyScript, csvValue); err != nil {
		return nil, nil, err
	}
	return defaultScript, emergencyScript, nil
}

func withoutCheckMultiSig(script []byte) []byte {
	return script[:len(script)-1]
}

// ErpScript is the parsed form of a two-branch redeem script.
type ErpScript struct {
	Default   *MultiSig
	Emergency *MultiSig
	CsvBytes  []byte
	// SharedCheckMultiSig is true for the non-standard layouts where one
	// OP_CHECKMULTISIG follows OP_ENDIF.
	SharedCheckMultiSig bool
}

// CsvValue decodes the CSV push as a minimal script number.
func (s *ErpScript) CsvValue() (int64, bool) {
	return decodeScriptNum(s.CsvBytes)
}

// ParseErpRedeemScript parses either ERP layout.
func ParseErpRedeemScript(script []byte) (*ErpScript, error) {
	if len(script) == 0 || script[0] != txscript.OP_NOTIF {
		return nil, fmt.Errorf("%w: missing OP_NOTIF", ErrNotMultiSigScript)
	}

	def, rest, err := parseMultiSigBody(script[1:])
	if err != nil {
		return nil, fmt.Errorf("default branch: %w", err)
	}

	shared := true
	if len(rest) > 0 && rest[0] == txscript.OP_CHECKMULTISIG {
		shared = false
		rest = rest[1:]
	}
	if len(rest) == 0 || rest[0] != txscript.OP_ELSE {
		return nil, fmt.Errorf("%w: missing OP_ELSE", ErrNotMultiSigScript)
	}
	rest = rest[1:]

	tokenizer := txscript.MakeScriptTokenizer(0, rest)
	if !tokenizer.Next() {
		return nil, fmt.Errorf("%w: missing csv value", ErrNotMultiSigScript)
	}
	var csv []byte
	op := tokenizer.Opcode()
	switch {
	case op >= txscript.OP_1 && op <= txscript.OP_16:
		csv = []byte{op - (txscript.OP_1 - 1)}
	case tokenizer.Data() != nil:
		csv = tokenizer.Data()
	default:
		return nil, fmt.Errorf("%w: csv value is not a push", ErrNotMultiSigScript)
	}
	rest = rest[tokenizer.ByteIndex():]
	if !bytes.HasPrefix(rest, []byte{txscript.OP_CHECKSEQUENCEVERIFY, txscript.OP_DROP}) {
		return nil, fmt.Errorf("%w: missing OP_CHECKSEQUENCEVERIFY OP_DROP", ErrNotMultiSigScript)
	}
	rest = rest[2:]

	emergency, rest, err := parseMultiSigBody(rest)
	if err != nil {
		return nil, fmt.Errorf("emergency branch: %w", err)
	}

	var tail []byte
	if shared {
		tail = []byte{txscript.OP_ENDIF, txscript.OP_CHECKMULTISIG}
	} else {
		tail = []byte{txscript.OP_CHECKMULTISIG, txscript.OP_ENDIF}
	}
	if !bytes.Equal(rest, tail) {
		return nil, fmt.Errorf("%w: unexpected script tail %x", ErrNotMultiSigScript, rest)
	}

	return &ErpScript{
		Default:             def,
		Emergency:           emergency,
		CsvBytes:            csv,
		SharedCheckMultiSig: shared,
	}, nil
}
