package peg

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
)

// PeginInstructionsPrefix tags OP_RETURN outputs carrying peg-in
// instructions.
var PeginInstructionsPrefix = []byte("RSKT")

const (
	LegacyProtocolVersion = 0
	V1ProtocolVersion     = 1

	refundAddressP2PKH = 1
	refundAddressP2SH  = 2

	v1PayloadSize           = 1 + common.AddressLength
	v1PayloadWithRefundSize = v1PayloadSize + 1 + 20
)

// PeginInformation is what a peg-in tells the bridge about who to credit
// and who to refund.
type PeginInformation struct {
	ProtocolVersion int
	// RskDestination is nil when it could not be derived.
	RskDestination *common.Address
	// BtcRefundAddress is nil when it could not be derived.
	BtcRefundAddress btcutil.Address
	Sender           *LockSender
}

func (p *PeginInformation) SenderType() SenderType {
	if p.Sender == nil {
		return SenderUnknown
	}
	return p.Sender.Type
}

// ParsePeginInformation reads the lock sender and the peg-in instructions
// of tx. A non nil information is returned even on error, holding whatever
// was derived before the failure so a refund can still be attempted.
func ParsePeginInformation(tx *wire.MsgTx, params *chaincfg.Params) (*PeginInformation, error) {
	info := &PeginInformation{}

	if sender := DetectLockSender(tx, params); sender != nil {
		info.Sender = sender
		info.BtcRefundAddress = sender.BtcAddress
		info.RskDestination = sender.RskAddress
	}

	payload, found, err := findInstructionsPayload(tx)
	if err != nil {
		return info, err
	}
	if !found {
		info.ProtocolVersion = LegacyProtocolVersion
		return info, nil
	}

	if len(payload) == 0 {
		return info, fmt.Errorf("%w: missing protocol version", ErrInvalidPeginPayload)
	}
	version := int(payload[0])
	if version != V1ProtocolVersion {
		return info, fmt.Errorf("%w: %w %d", ErrInvalidPeginPayload, ErrUnsupportedPeginVersion, version)
	}

	if err := info.parseV1(payload, params); err != nil {
		return info, err
	}
	return info, nil
}

func (p *PeginInformation) parseV1(payload []byte, params *chaincfg.Params) error {
	switch len(payload) {
	case v1PayloadSize, v1PayloadWithRefundSize:
	default:
		return fmt.Errorf("%w: unexpected v1 payload length %d", ErrInvalidPeginPayload, len(payload))
	}

	destination := common.BytesToAddress(payload[1:v1PayloadSize])

	var refund btcutil.Address
	if len(payload) == v1PayloadWithRefundSize {
		hash := payload[v1PayloadSize+1:]
		var err error
		switch payload[v1PayloadSize] {
		case refundAddressP2PKH:
			refund, err = btcutil.NewAddressPubKeyHash(hash, params)
		case refundAddressP2SH:
			refund, err = btcutil.NewAddressScriptHashFromHash(hash, params)
		default:
			return fmt.Errorf("%w: unknown refund address type %d", ErrInvalidPeginPayload, payload[v1PayloadSize])
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPeginPayload, err)
		}
	}

	p.ProtocolVersion = V1ProtocolVersion
	p.RskDestination = &destination
	if refund != nil {
		p.BtcRefundAddress = refund
	}
	return nil
}

// findInstructionsPayload returns the data following the prefix of the only
// OP_RETURN output carrying instructions.
func findInstructionsPayload(tx *wire.MsgTx) ([]byte, bool, error) {
	var (
		payload []byte
		found   bool
	)
	for _, out := range tx.TxOut {
		data, ok := opReturnData(out.PkScript)
		if !ok || !bytes.HasPrefix(data, PeginInstructionsPrefix) {
			continue
		}
		if found {
			return nil, false, fmt.Errorf("%w: more than one instructions output", ErrInvalidPeginPayload)
		}
		payload = data[len(PeginInstructionsPrefix):]
		found = true
	}
	return payload, found, nil
}

func opReturnData(pkScript []byte) ([]byte, bool) {
	if len(pkScript) == 0 || pkScript[0] != txscript.OP_RETURN {
		return nil, false
	}
	pushes, err := txscript.PushedData(pkScript[1:])
	if err != nil || len(pushes) != 1 {
		return nil, false
	}
	return pushes[0], true
}

// BuildPeginInstructionsScript returns an OP_RETURN output script carrying
// v1 instructions for destination, with an optional refund address.
func BuildPeginInstructionsScript(destination common.Address, refund btcutil.Address) ([]byte, error) {
	payload := make([]byte, 0, len(PeginInstructionsPrefix)+v1PayloadWithRefundSize)
	payload = append(payload, PeginInstructionsPrefix...)
	payload = append(payload, V1ProtocolVersion)
	payload = append(payload, destination.Bytes()...)

	switch a := refund.(type) {
	case nil:
	case *btcutil.AddressPubKeyHash:
		payload = append(payload, refundAddressP2PKH)
		payload = append(payload, a.ScriptAddress()...)
	case *btcutil.AddressScriptHash:
		payload = append(payload, refundAddressP2SH)
		payload = append(payload, a.ScriptAddress()...)
	default:
		return nil, fmt.Errorf("unsupported refund address type %T", refund)
	}

	return txscript.NullDataScript(payload)
}
