package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
	"github.com/juju/fslock"
	"go.uber.org/zap"

	"github.com/babylonchain/btc-bridge/bridge"
	bridgecfg "github.com/babylonchain/btc-bridge/bridge/config"
	bridgestore "github.com/babylonchain/btc-bridge/bridge/store"
	"github.com/babylonchain/btc-bridge/log"
	"github.com/babylonchain/btc-bridge/metrics"
	"github.com/babylonchain/btc-bridge/spv"
	"github.com/babylonchain/btc-bridge/store"
	"github.com/babylonchain/btc-bridge/types"
)

const lockFileName = "bridge.lock"

// Variables used for waiting on the home directory lock
var (
	lockAttempts  = retry.Attempts(4)
	lockDelay     = retry.Delay(200 * time.Millisecond)
	lockDelayType = retry.DelayType(retry.FixedDelay)
	lockLastErr   = retry.LastErrorOnly(true)
)

var (
	bridgeOwner = []byte("bridge")
	spvOwner    = []byte("bridge-spv")

	errReadOnlyLedger = errors.New("the command line tool does not move ledger funds")
)

// readOnlyLedger refuses every ledger movement
type readOnlyLedger struct{}

func (readOnlyLedger) CreditPegin(chainhash.Hash, common.Address, btcutil.Amount) error {
	return errReadOnlyLedger
}

func (readOnlyLedger) ReleaseSigned(chainhash.Hash, *wire.MsgTx) error {
	return errReadOnlyLedger
}

// node is the bridge state of a home directory. Only one node may hold the
// directory at a time.
type node struct {
	cfg       *bridgecfg.Config
	constants *types.BridgeConstants
	actCfg    *types.ActivationConfig
	store     store.Store
	factory   *spv.Factory
	metrics   *metrics.BridgeMetrics
	logger    *zap.Logger
	lock      *fslock.Lock
}

func openNode(homePath string) (*node, error) {
	cfg, err := bridgecfg.LoadConfig(homePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config at %s: %w", homePath, err)
	}

	logger, err := log.NewRootLoggerWithFile(bridgecfg.LogFile(homePath), cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize the logger: %w", err)
	}

	constants, err := cfg.BridgeConstants()
	if err != nil {
		return nil, err
	}
	actCfg, err := cfg.ActivationConfig()
	if err != nil {
		return nil, err
	}

	lock := fslock.New(filepath.Join(bridgecfg.DataDir(homePath), lockFileName))
	err = retry.Do(lock.TryLock, lockAttempts, lockDelay, lockDelayType, lockLastErr,
		retry.RetryIf(func(err error) bool { return errors.Is(err, fslock.ErrLocked) }))
	if err != nil {
		if errors.Is(err, fslock.ErrLocked) {
			return nil, fmt.Errorf("the bridge home %s is used by another process", homePath)
		}
		return nil, fmt.Errorf("failed to lock the bridge home %s: %w", homePath, err)
	}

	s, err := cfg.DatabaseConfig.OpenStore()
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open the bridge database: %w", err)
	}

	m := metrics.DefaultBridgeMetrics()
	factory, err := spv.NewFactory(spv.FactoryConfig{
		Params:         constants.BtcParams,
		CacheSize:      cfg.SpvCacheSize,
		CacheRetention: cfg.SpvCacheRetention,
		Counters:       m.SpvCacheCounters(),
	}, logger)
	if err != nil {
		_ = s.Close()
		_ = lock.Unlock()
		return nil, err
	}

	return &node{
		cfg:       cfg,
		constants: constants,
		actCfg:    actCfg,
		store:     s,
		factory:   factory,
		metrics:   m,
		logger:    logger,
		lock:      lock,
	}, nil
}

// support opens the bridge as of the ledger block at height.
func (n *node) support(height uint64) (*bridge.Support, error) {
	act := n.actCfg.ForBlock(height)
	blockStore, err := n.factory.NewBlockStore(n.store, spvOwner, act)
	if err != nil {
		return nil, fmt.Errorf("failed to open the SPV block store: %w", err)
	}
	provider := bridgestore.NewProvider(n.store, bridgeOwner, n.constants, act, n.logger)
	block := bridge.Block{Height: height, Time: time.Now()}
	return bridge.NewSupport(block, provider, blockStore, readOnlyLedger{}, n.metrics, n.logger), nil
}

func (n *node) Close() error {
	err := n.store.Close()
	if unlockErr := n.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}
