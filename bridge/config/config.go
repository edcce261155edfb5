package config

import (
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"

	"github.com/babylonchain/btc-bridge/metrics"
	"github.com/babylonchain/btc-bridge/types"
	"github.com/babylonchain/btc-bridge/util"
)

const (
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	defaultLogDirname        = "logs"
	defaultLogFilename       = "bridge.log"
	defaultDataDirname       = "data"
	defaultConfigFileName    = "bridge.conf"
	defaultBitcoinNetwork    = "regtest"
	defaultSpvCacheSize      = 5000
	defaultSpvCacheRetention = 4000
)

var (
	//   C:\Users\<username>\AppData\Local\ on Windows
	//   ~/.bridge on Linux
	//   ~/Library/Application Support/Bridge on MacOS
	DefaultBridgeDir = btcutil.AppDataDir("bridge", false)
)

// Config is the configuration of the bridge node tooling.
type Config struct {
	LogLevel  string `long:"loglevel" description:"Logging level for all subsystems" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"fatal"`
	LogFormat string `long:"logformat" description:"Format of the log lines" choice:"auto" choice:"console" choice:"json" choice:"logfmt"`

	BitcoinNetwork string `long:"bitcoinnetwork" description:"Bitcoin network the bridge runs against" choice:"mainnet" choice:"testnet" choice:"regtest"`
	// Federation keys are required on mainnet and testnet, regtest derives
	// them deterministically.
	GenesisFederationKeys []string `long:"genesisfederationkey" description:"Hex encoded compressed public key of a genesis federator; repeat for each member"`
	ErpFederationKeys     []string `long:"erpfederationkey" description:"Hex encoded compressed public key of an emergency key holder; repeat for each key"`
	LegacyErpRedeemScript string   `long:"legacyerpredeemscript" description:"Hex encoded redeem script of the frozen testnet ERP federation"`
	// RetiredFederationAddress overrides the address of the federation
	// retired before its output script was recorded.
	RetiredFederationAddress string `long:"retiredfederationaddress" description:"P2SH address of the federation retired before retired scripts were recorded; overrides the network default"`

	// ActivationHeights maps upgrade flags to their activation height. An
	// empty map activates every upgrade from genesis.
	ActivationHeights map[string]uint64 `long:"activationheight" description:"Ledger height at which an upgrade activates, as flag:height; repeat for each upgrade"`

	SpvCacheSize      int   `long:"spvcachesize" description:"Number of SPV headers kept in memory"`
	SpvCacheRetention int32 `long:"spvcacheretention" description:"Depth below the SPV chain head past which headers are no longer cached"`

	DatabaseConfig *DBConfig `group:"dbconfig" namespace:"dbconfig"`

	Metrics *metrics.Config `group:"metrics" namespace:"metrics"`
}

func DefaultConfigWithHome(homePath string) Config {
	dbCfg := DefaultDBConfigWithHomePath(homePath)
	cfg := Config{
		LogLevel:          defaultLogLevel,
		LogFormat:         defaultLogFormat,
		BitcoinNetwork:    defaultBitcoinNetwork,
		ActivationHeights: map[string]uint64{},
		SpvCacheSize:      defaultSpvCacheSize,
		SpvCacheRetention: defaultSpvCacheRetention,
		DatabaseConfig:    &dbCfg,
		Metrics:           metrics.DefaultBridgeConfig(),
	}

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	return cfg
}

func DefaultConfig() Config {
	return DefaultConfigWithHome(DefaultBridgeDir)
}

func ConfigFile(homePath string) string {
	return filepath.Join(homePath, defaultConfigFileName)
}

func LogDir(homePath string) string {
	return filepath.Join(homePath, defaultLogDirname)
}

func LogFile(homePath string) string {
	return filepath.Join(LogDir(homePath), defaultLogFilename)
}

func DataDir(homePath string) string {
	return filepath.Join(homePath, defaultDataDirname)
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Load configuration file overwriting defaults with any specified options
func LoadConfig(homePath string) (*Config, error) {
	// The home directory is required to have a configuration file with a specific name
	// under it.
	cfgFile := ConfigFile(homePath)
	if !util.FileExists(cfgFile) {
		return nil, fmt.Errorf("specified config file does "+
			"not exist in %s", cfgFile)
	}

	// If there are issues parsing the config file, return an error
	var cfg Config
	fileParser := flags.NewParser(&cfg, flags.Default)
	err := flags.NewIniParser(fileParser).ParseFile(cfgFile)
	if err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WriteConfig writes cfg, including defaults and comments, to the config
// file under homePath.
func WriteConfig(cfg *Config, homePath string) error {
	fileParser := flags.NewParser(cfg, flags.Default)
	return flags.NewIniParser(fileParser).WriteFile(ConfigFile(homePath), flags.IniIncludeComments|flags.IniIncludeDefaults)
}

// Validate check the given configuration to be sane. This makes sure no
// illegal values or combination of values are set.
func (cfg *Config) Validate() error {
	if cfg.DatabaseConfig == nil {
		return fmt.Errorf("empty database config")
	}
	if err := cfg.DatabaseConfig.Validate(); err != nil {
		return fmt.Errorf("invalid database config: %w", err)
	}
	if cfg.Metrics == nil {
		return fmt.Errorf("empty metrics config")
	}
	if err := cfg.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}
	if cfg.SpvCacheSize <= 0 {
		return fmt.Errorf("SPV cache size must be positive, got %d", cfg.SpvCacheSize)
	}
	if cfg.SpvCacheRetention < 0 {
		return fmt.Errorf("negative SPV cache retention %d", cfg.SpvCacheRetention)
	}

	if _, err := cfg.ActivationConfig(); err != nil {
		return err
	}
	constants, err := cfg.BridgeConstants()
	if err != nil {
		return err
	}
	return constants.Validate()
}

// BridgeConstants resolves the network constants of the configured Bitcoin
// network.
func (cfg *Config) BridgeConstants() (*types.BridgeConstants, error) {
	switch cfg.BitcoinNetwork {
	case "regtest":
		return types.RegTestConstants(), nil
	case "mainnet", "testnet":
	default:
		return nil, fmt.Errorf("unsupported bitcoin network %q", cfg.BitcoinNetwork)
	}

	genesisKeys, err := parsePublicKeys(cfg.GenesisFederationKeys)
	if err != nil {
		return nil, fmt.Errorf("invalid genesis federation key: %w", err)
	}
	erpKeys, err := parsePublicKeys(cfg.ErpFederationKeys)
	if err != nil {
		return nil, fmt.Errorf("invalid ERP federation key: %w", err)
	}

	var constants *types.BridgeConstants
	if cfg.BitcoinNetwork == "mainnet" {
		constants = types.MainNetConstants(genesisKeys, erpKeys)
	} else {
		legacyErp, err := hex.DecodeString(cfg.LegacyErpRedeemScript)
		if err != nil {
			return nil, fmt.Errorf("invalid legacy ERP redeem script: %w", err)
		}
		constants = types.TestNetConstants(genesisKeys, erpKeys, legacyErp)
	}
	if cfg.RetiredFederationAddress != "" {
		constants.LegacyRetiredFederationAddress = cfg.RetiredFederationAddress
	}
	return constants, nil
}

// ActivationConfig resolves the configured upgrade heights.
func (cfg *Config) ActivationConfig() (*types.ActivationConfig, error) {
	if len(cfg.ActivationHeights) == 0 {
		return types.AllActiveFromGenesis(), nil
	}
	heights := make(map[types.UpgradeFlag]uint64, len(cfg.ActivationHeights))
	for flag, height := range cfg.ActivationHeights {
		heights[types.UpgradeFlag(flag)] = height
	}
	return types.NewActivationConfig(heights)
}

func parsePublicKeys(encoded []string) ([]*btcec.PublicKey, error) {
	keys := make([]*btcec.PublicKey, 0, len(encoded))
	for _, s := range encoded {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, err
		}
		key, err := btcec.ParsePubKey(b)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
