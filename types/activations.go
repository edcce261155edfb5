package types

import (
	"fmt"
	"sort"
)

// UpgradeFlag names a protocol upgrade whose rules switch on at a given
// ledger block height.
type UpgradeFlag string

const (
	// FlagErpFederation enables federations with an emergency recovery branch.
	FlagErpFederation UpgradeFlag = "erp-federation"
	// FlagP2shErpFederation enables the P2SH-ERP redeem script layout.
	FlagP2shErpFederation UpgradeFlag = "p2sh-erp-federation"
	// FlagSegwitFederation enables P2SH-P2WSH-ERP federations.
	FlagSegwitFederation UpgradeFlag = "segwit-federation"
	// FlagErpScriptHardcodeRemoved stops using the frozen testnet ERP script.
	FlagErpScriptHardcodeRemoved UpgradeFlag = "erp-script-hardcode-removed"
	// FlagErpCsvCanonical switches ERP scripts to the canonical CSV encoding.
	FlagErpCsvCanonical UpgradeFlag = "erp-csv-canonical"
	// FlagPeginMinimumV2 lowers the minimum peg-in value.
	FlagPeginMinimumV2 UpgradeFlag = "pegin-minimum-v2"
	// FlagPeginPerOutputMinimum requires every federation output of a peg-in
	// to meet the minimum value.
	FlagPeginPerOutputMinimum UpgradeFlag = "pegin-per-output-minimum"
	// FlagRetiredFedP2SHScript identifies spends of the last retired
	// federation by its P2SH script instead of the legacy address.
	FlagRetiredFedP2SHScript UpgradeFlag = "retired-fed-p2sh-script"
	// FlagPeginEvaluation enables the refined peg-in evaluation.
	FlagPeginEvaluation UpgradeFlag = "pegin-evaluation"
	// FlagPegoutSigHashIndex enables the legacy pegout sig-hash index.
	FlagPegoutSigHashIndex UpgradeFlag = "pegout-sighash-index"
	// FlagPegoutTxHashIndex enables the pegout tx-hash index.
	FlagPegoutTxHashIndex UpgradeFlag = "pegout-txhash-index"
	// FlagWideChainWork stores SPV chain work in 32 bytes instead of 12.
	FlagWideChainWork UpgradeFlag = "wide-chain-work"
	// FlagBatchedPegouts batches release requests into one transaction.
	FlagBatchedPegouts UpgradeFlag = "batched-pegouts"
	// FlagPegoutFeeEstimationBuilder estimates the next pegout fee by running
	// the release builder over the known UTXOs.
	FlagPegoutFeeEstimationBuilder UpgradeFlag = "pegout-fee-estimation-builder"
	// FlagMigrationInputLimit bounds migration transactions by the maximum
	// number of inputs per pegout.
	FlagMigrationInputLimit UpgradeFlag = "migration-input-limit"
	// FlagProcessedTxHashIndex records the ledger height at which a Bitcoin
	// transaction was processed.
	FlagProcessedTxHashIndex UpgradeFlag = "processed-txhash-index"
)

// AllUpgradeFlags lists every known flag in activation order.
var AllUpgradeFlags = []UpgradeFlag{
	FlagProcessedTxHashIndex,
	FlagWideChainWork,
	FlagPeginMinimumV2,
	FlagRetiredFedP2SHScript,
	FlagErpFederation,
	FlagBatchedPegouts,
	FlagErpScriptHardcodeRemoved,
	FlagErpCsvCanonical,
	FlagPeginPerOutputMinimum,
	FlagMigrationInputLimit,
	FlagP2shErpFederation,
	FlagPegoutSigHashIndex,
	FlagPeginEvaluation,
	FlagPegoutTxHashIndex,
	FlagPegoutFeeEstimationBuilder,
	FlagSegwitFederation,
}

// ActivationConfig maps each upgrade flag to the height at which it
// activates. Flags missing from the map never activate.
type ActivationConfig struct {
	heights map[UpgradeFlag]uint64
}

func NewActivationConfig(heights map[UpgradeFlag]uint64) (*ActivationConfig, error) {
	known := make(map[UpgradeFlag]struct{}, len(AllUpgradeFlags))
	for _, f := range AllUpgradeFlags {
		known[f] = struct{}{}
	}

	cp := make(map[UpgradeFlag]uint64, len(heights))
	for f, h := range heights {
		if _, ok := known[f]; !ok {
			return nil, fmt.Errorf("unknown upgrade flag %q", f)
		}
		cp[f] = h
	}

	return &ActivationConfig{heights: cp}, nil
}

// AllActiveFromGenesis returns a config with every flag active from height 0.
func AllActiveFromGenesis() *ActivationConfig {
	heights := make(map[UpgradeFlag]uint64, len(AllUpgradeFlags))
	for _, f := range AllUpgradeFlags {
		heights[f] = 0
	}
	return &ActivationConfig{heights: heights}
}

// AllActiveExcept returns a config with every flag active from genesis except
// the given ones, which never activate.
func AllActiveExcept(excluded ...UpgradeFlag) *ActivationConfig {
	cfg := AllActiveFromGenesis()
	for _, f := range excluded {
		delete(cfg.heights, f)
	}
	return cfg
}

// ActivationHeight returns the height at which the flag activates.
func (c *ActivationConfig) ActivationHeight(flag UpgradeFlag) (uint64, bool) {
	h, ok := c.heights[flag]
	return h, ok
}

// ForBlock evaluates the config at the given ledger height.
func (c *ActivationConfig) ForBlock(height uint64) Activations {
	active := make(map[UpgradeFlag]struct{})
	for f, h := range c.heights {
		if height >= h {
			active[f] = struct{}{}
		}
	}
	return Activations{height: height, active: active}
}

// Activations is the immutable set of upgrade flags active at one ledger
// height. The zero value has no active flag.
type Activations struct {
	height uint64
	active map[UpgradeFlag]struct{}
}

// NewActivations builds an activation set holding exactly the given flags.
func NewActivations(height uint64, flags ...UpgradeFlag) Activations {
	active := make(map[UpgradeFlag]struct{}, len(flags))
	for _, f := range flags {
		active[f] = struct{}{}
	}
	return Activations{height: height, active: active}
}

func (a Activations) IsActive(flag UpgradeFlag) bool {
	_, ok := a.active[flag]
	return ok
}

func (a Activations) Height() uint64 {
	return a.height
}

// ActiveFlags returns the active flags sorted by name.
func (a Activations) ActiveFlags() []UpgradeFlag {
	flags := make([]UpgradeFlag, 0, len(a.active))
	for f := range a.active {
		flags = append(flags, f)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i] < flags[j] })
	return flags
}
