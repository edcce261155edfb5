package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/lightningnetwork/lnd/kvdb"

	"github.com/babylonchain/btc-bridge/store"
	"github.com/babylonchain/btc-bridge/store/bbolt"
)

const (
	// KvdbBackend stores the bridge state in an lnd kvdb bolt database.
	KvdbBackend = "kvdb"
	// BboltBackend stores the bridge state in a raw bbolt database.
	BboltBackend = "bbolt"

	DefaultDBFileName = "bridge.db"
	defaultDBTimeout  = 60 * time.Second
)

// DBConfig is the database the bridge state and SPV headers are kept in.
type DBConfig struct {
	Backend string `long:"backend" description:"The database backend" choice:"kvdb" choice:"bbolt"`

	// DBPath is the directory path in which the database file should be
	// stored.
	DBPath string `long:"dbpath" description:"The directory path in which the database file should be stored."`

	// DBFileName is the name of the database file.
	DBFileName string `long:"dbfilename" description:"The name of the database file."`

	// NoFreelistSync, if true, prevents the database from syncing its
	// freelist to disk, resulting in improved performance at the expense of
	// increased startup time.
	NoFreelistSync bool `long:"nofreelistsync" description:"Prevents the database from syncing its freelist to disk, resulting in improved memory performance during operation with a slightly increased startup time."`

	// AutoCompact specifies if a Bolt based database backend should be
	// automatically compacted on startup (if the minimum age of the
	// database file is reached). This will require additional disk space
	// for the compacted copy of the database but will result in an overall
	// lower database size after the compaction.
	AutoCompact bool `long:"autocompact" description:"Specifies if a Bolt based database backend should be automatically compacted on startup (if the minimum age of the database file is reached). This will require additional disk space for the compacted copy of the database but will result in an overall lower database size after the compaction."`

	// AutoCompactMinAge specifies the minimum time that must have passed
	// since a bolt database file was last compacted for the compaction to
	// be considered again.
	AutoCompactMinAge time.Duration `long:"autocompactminage" description:"Specifies the minimum time that must have passed since a bolt database file was last compacted for the compaction to be considered again."`

	// DBTimeout specifies the timeout value to use when opening the wallet
	// database.
	DBTimeout time.Duration `long:"dbtimeout" description:"Specifies the timeout value to use when opening the wallet database."`
}

func DefaultDBConfigWithHomePath(homePath string) DBConfig {
	return DBConfig{
		Backend:           KvdbBackend,
		DBPath:            DataDir(homePath),
		DBFileName:        DefaultDBFileName,
		NoFreelistSync:    true,
		AutoCompact:       false,
		AutoCompactMinAge: kvdb.DefaultBoltAutoCompactMinAge,
		DBTimeout:         defaultDBTimeout,
	}
}

func (cfg *DBConfig) Validate() error {
	switch cfg.Backend {
	case KvdbBackend, BboltBackend:
	default:
		return fmt.Errorf("unsupported DB backend %q", cfg.Backend)
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("DB path should not be empty")
	}
	if cfg.DBFileName == "" {
		return fmt.Errorf("DB file name should not be empty")
	}
	if cfg.DBTimeout < 0 {
		return fmt.Errorf("negative DB timeout %v", cfg.DBTimeout)
	}
	return nil
}

// GetDbBackend opens the kvdb bolt database described by cfg.
func (cfg *DBConfig) GetDbBackend() (kvdb.Backend, error) {
	return kvdb.GetBoltBackend(&kvdb.BoltBackendConfig{
		DBPath:            cfg.DBPath,
		DBFileName:        cfg.DBFileName,
		NoFreelistSync:    cfg.NoFreelistSync,
		AutoCompact:       cfg.AutoCompact,
		AutoCompactMinAge: cfg.AutoCompactMinAge,
		DBTimeout:         cfg.DBTimeout,
	})
}

// OpenStore opens the store of the configured backend. The caller must
// close it.
func (cfg *DBConfig) OpenStore() (store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BboltBackend:
		return bbolt.NewBboltStore(bbolt.Options{
			Path:    filepath.Join(cfg.DBPath, cfg.DBFileName),
			Timeout: cfg.DBTimeout,
		})
	default:
		db, err := cfg.GetDbBackend()
		if err != nil {
			return nil, fmt.Errorf("failed to open the kvdb backend: %w", err)
		}
		return store.NewKvdbStore(db), nil
	}
}
