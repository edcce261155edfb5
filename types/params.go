package types

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
)

const (
	// MaxCsvValue is the largest relative lock-time accepted for the
	// emergency branch of a federation redeem script.
	MaxCsvValue = 65_535

	// MaxStandardTxWeight is the largest standard transaction weight.
	MaxStandardTxWeight = 400_000
)

// BridgeConstants holds the per-network parameters of the peg.
type BridgeConstants struct {
	BtcParams *chaincfg.Params

	// GenesisFederationPublicKeys seeds the first federation when storage
	// holds none.
	GenesisFederationPublicKeys   []*btcec.PublicKey
	GenesisFederationCreationTime int64

	// Bitcoin confirmations required before a peg transaction is accepted.
	Btc2RskMinimumAcceptableConfirmations uint32
	// Ledger confirmations required before a release is handed to signers.
	Rsk2BtcMinimumAcceptableConfirmations uint64

	LegacyMinimumPeginTxValue  btcutil.Amount
	MinimumPeginTxValue        btcutil.Amount
	LegacyMinimumPegoutTxValue btcutil.Amount
	MinimumPegoutTxValue       btcutil.Amount

	FederationActivationAge               uint64
	FundsMigrationAgeSinceActivationBegin uint64
	FundsMigrationAgeSinceActivationEnd   uint64

	ErpFederationPublicKeys      []*btcec.PublicKey
	ErpFederationActivationDelay int64
	// LegacyErpRedeemScript is the frozen redeem script used on networks
	// that created ERP federations before FlagErpScriptHardcodeRemoved.
	LegacyErpRedeemScript []byte

	// LegacyRetiredFederationAddress identifies spends of the federation
	// retired before FlagRetiredFedP2SHScript.
	LegacyRetiredFederationAddress string

	MaxInputsPerPegoutTransaction int
	NumberOfBlocksBetweenPegouts  uint64

	GenesisFeePerKb chainfee.SatPerKVByte
	MaxFeePerKb     chainfee.SatPerKVByte
}

// MinimumPeginValue returns the minimum value a peg-in must carry under
// the given activations.
func (c *BridgeConstants) MinimumPeginValue(act Activations) btcutil.Amount {
	if act.IsActive(FlagPeginMinimumV2) {
		return c.MinimumPeginTxValue
	}
	return c.LegacyMinimumPeginTxValue
}

// MinimumPegoutValue returns the minimum value of a release request.
func (c *BridgeConstants) MinimumPegoutValue(act Activations) btcutil.Amount {
	if act.IsActive(FlagBatchedPegouts) {
		return c.MinimumPegoutTxValue
	}
	return c.LegacyMinimumPegoutTxValue
}

func (c *BridgeConstants) IsTestnet() bool {
	return c.BtcParams.Net == chaincfg.TestNet3Params.Net
}

func (c *BridgeConstants) Validate() error {
	if c.BtcParams == nil {
		return fmt.Errorf("bitcoin network params not specified")
	}
	if len(c.GenesisFederationPublicKeys) == 0 {
		return fmt.Errorf("genesis federation public keys not specified")
	}
	if c.ErpFederationActivationDelay <= 0 || c.ErpFederationActivationDelay > MaxCsvValue {
		return fmt.Errorf("invalid ERP activation delay %d", c.ErpFederationActivationDelay)
	}
	if c.MaxInputsPerPegoutTransaction <= 0 {
		return fmt.Errorf("max inputs per pegout transaction must be positive")
	}
	if c.NumberOfBlocksBetweenPegouts == 0 {
		return fmt.Errorf("number of blocks between pegouts must be positive")
	}
	if c.LegacyRetiredFederationAddress != "" {
		addr, err := btcutil.DecodeAddress(c.LegacyRetiredFederationAddress, c.BtcParams)
		if err != nil {
			return fmt.Errorf("invalid retired federation address: %w", err)
		}
		if _, ok := addr.(*btcutil.AddressScriptHash); !ok || !addr.IsForNet(c.BtcParams) {
			return fmt.Errorf("retired federation address %s is not a P2SH address of %s",
				c.LegacyRetiredFederationAddress, c.BtcParams.Name)
		}
	}
	if c.FundsMigrationAgeSinceActivationEnd < c.FundsMigrationAgeSinceActivationBegin {
		return fmt.Errorf("funds migration end age %d precedes begin age %d",
			c.FundsMigrationAgeSinceActivationEnd, c.FundsMigrationAgeSinceActivationBegin)
	}
	return nil
}

// testNetRetiredFederationAddress is the testnet federation retired before
// its output script was recorded.
const testNetRetiredFederationAddress = "2N7ZgQyhFKm17RbaLqygYbS7KLrQfapyZzu"

// MainNetConstants returns the mainnet parameters for the given federation
// key sets.
func MainNetConstants(genesisKeys, erpKeys []*btcec.PublicKey) *BridgeConstants {
	return &BridgeConstants{
		BtcParams:                             &chaincfg.MainNetParams,
		GenesisFederationPublicKeys:           genesisKeys,
		GenesisFederationCreationTime:         1514948400,
		Btc2RskMinimumAcceptableConfirmations: 100,
		Rsk2BtcMinimumAcceptableConfirmations: 4000,
		LegacyMinimumPeginTxValue:             1_000_000,
		MinimumPeginTxValue:                   500_000,
		LegacyMinimumPegoutTxValue:            800_000,
		MinimumPegoutTxValue:                  400_000,
		FederationActivationAge:               40_320,
		FundsMigrationAgeSinceActivationBegin: 0,
		FundsMigrationAgeSinceActivationEnd:   172_800,
		ErpFederationPublicKeys:               erpKeys,
		ErpFederationActivationDelay:          52_560,
		MaxInputsPerPegoutTransaction:         50,
		NumberOfBlocksBetweenPegouts:          360,
		GenesisFeePerKb:                       chainfee.SatPerKVByte(50_000),
		MaxFeePerKb:                           chainfee.SatPerKVByte(5_000_000),
	}
}

// TestNetConstants returns the testnet parameters for the given federation
// key sets and frozen ERP redeem script.
func TestNetConstants(genesisKeys, erpKeys []*btcec.PublicKey, legacyErpRedeemScript []byte) *BridgeConstants {
	return &BridgeConstants{
		BtcParams:                             &chaincfg.TestNet3Params,
		GenesisFederationPublicKeys:           genesisKeys,
		GenesisFederationCreationTime:         1538967600,
		Btc2RskMinimumAcceptableConfirmations: 10,
		Rsk2BtcMinimumAcceptableConfirmations: 10,
		LegacyMinimumPeginTxValue:             1_000_000,
		MinimumPeginTxValue:                   500_000,
		LegacyMinimumPegoutTxValue:            800_000,
		MinimumPegoutTxValue:                  250_000,
		FederationActivationAge:               60,
		FundsMigrationAgeSinceActivationBegin: 60,
		FundsMigrationAgeSinceActivationEnd:   900,
		ErpFederationPublicKeys:               erpKeys,
		ErpFederationActivationDelay:          52_560,
		LegacyErpRedeemScript:                 legacyErpRedeemScript,
		LegacyRetiredFederationAddress:        testNetRetiredFederationAddress,
		MaxInputsPerPegoutTransaction:         50,
		NumberOfBlocksBetweenPegouts:          360,
		GenesisFeePerKb:                       chainfee.SatPerKVByte(10_000),
		MaxFeePerKb:                           chainfee.SatPerKVByte(5_000_000),
	}
}

// RegTestConstants returns regtest parameters. Federation keys are derived
// deterministically so every node agrees on the genesis federation.
func RegTestConstants() *BridgeConstants {
	return &BridgeConstants{
		BtcParams:                             &chaincfg.RegressionNetParams,
		GenesisFederationPublicKeys:           DeterministicPublicKeys("federator", 3),
		GenesisFederationCreationTime:         1451606400,
		Btc2RskMinimumAcceptableConfirmations: 3,
		Rsk2BtcMinimumAcceptableConfirmations: 3,
		LegacyMinimumPeginTxValue:             500_000,
		MinimumPeginTxValue:                   500_000,
		LegacyMinimumPegoutTxValue:            250_000,
		MinimumPegoutTxValue:                  250_000,
		FederationActivationAge:               10,
		FundsMigrationAgeSinceActivationBegin: 15,
		FundsMigrationAgeSinceActivationEnd:   150,
		ErpFederationPublicKeys:               DeterministicPublicKeys("erp", 3),
		ErpFederationActivationDelay:          500,
		MaxInputsPerPegoutTransaction:         10,
		NumberOfBlocksBetweenPegouts:          50,
		GenesisFeePerKb:                       chainfee.SatPerKVByte(10_000),
		MaxFeePerKb:                           chainfee.SatPerKVByte(5_000_000),
	}
}

// DeterministicPublicKeys derives n public keys from sha256(prefix || i).
func DeterministicPublicKeys(prefix string, n int) []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, 0, n)
	for i := 0; i < n; i++ {
		seed := sha256.Sum256([]byte(fmt.Sprintf("%s%d", prefix, i)))
		_, pk := btcec.PrivKeyFromBytes(seed[:])
		keys = append(keys, pk)
	}
	return keys
}
