package spv

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/babylonchain/btc-bridge/store"
	"github.com/babylonchain/btc-bridge/types"
)

var chainHeadKey = []byte("btcBlockStoreChainHead")

// CacheCounters count lookups served by the header cache. Nil counters are
// ignored.
type CacheCounters struct {
	Hits   prometheus.Counter
	Misses prometheus.Counter
}

// FactoryConfig configures the block stores handed to each execution
// context.
type FactoryConfig struct {
	Params *chaincfg.Params
	// CacheSize bounds the number of headers kept in memory.
	CacheSize int
	// CacheRetention is the depth below the chain head past which headers
	// are no longer cached on insertion.
	CacheRetention int32
	// Checkpoint is the first header of an empty store. Defaults to the
	// network's genesis header.
	Checkpoint *StoredBlock
	Counters   CacheCounters
}

// cacheKey scopes cached headers to the owner they were read from or
// written under.
type cacheKey struct {
	owner string
	hash  chainhash.Hash
}

// Factory creates block stores that share one header cache. A Factory
// serves the stores of one database; entries are keyed by owner and block
// hash so stores kept under different owners never see each other's blocks.
type Factory struct {
	cfg    FactoryConfig
	cache  *lru.Cache[cacheKey, *StoredBlock]
	logger *zap.Logger
}

func NewFactory(cfg FactoryConfig, logger *zap.Logger) (*Factory, error) {
	if cfg.Params == nil {
		return nil, fmt.Errorf("bitcoin network params not specified")
	}
	if cfg.CacheRetention < 0 {
		return nil, fmt.Errorf("negative cache retention %d", cfg.CacheRetention)
	}
	cache, err := lru.New[cacheKey, *StoredBlock](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	if cfg.Checkpoint == nil {
		cfg.Checkpoint = GenesisStoredBlock(&cfg.Params.GenesisBlock.Header)
	}

	return &Factory{cfg: cfg, cache: cache, logger: logger}, nil
}

// NewBlockStore opens the header store kept under owner, writing the
// checkpoint when the store is empty.
func (f *Factory) NewBlockStore(accessor store.Accessor, owner []byte, act types.Activations) (*BlockStore, error) {
	s := &BlockStore{
		factory:  f,
		accessor: accessor,
		owner:    owner,
		wide:     act.IsActive(types.FlagWideChainWork),
	}

	head, err := s.ChainHead()
	if err != nil {
		return nil, err
	}
	if head == nil {
		f.logger.Info("initializing the SPV block store",
			zap.String("checkpoint", f.cfg.Checkpoint.Hash().String()),
			zap.Int32("height", f.cfg.Checkpoint.Height))
		if err := s.Put(f.cfg.Checkpoint); err != nil {
			return nil, err
		}
		if err := s.SetChainHead(f.cfg.Checkpoint); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// BlockStore is the header store of one execution context. It must not be
// shared between contexts.
type BlockStore struct {
	factory  *Factory
	accessor store.Accessor
	owner    []byte
	wide     bool

	head *StoredBlock
}

func (s *BlockStore) Params() *chaincfg.Params {
	return s.factory.cfg.Params
}

// Put writes the record of a block. Blocks deeper than the cache
// retention below the chain head bypass the cache.
func (s *BlockStore) Put(b *StoredBlock) error {
	data, err := b.Serialize(s.wide)
	if err != nil {
		return err
	}
	hash := b.Hash()
	if err := s.accessor.PutBytes(s.owner, hash[:], data); err != nil {
		return err
	}

	s.maybeCache(hash, b)
	return nil
}

// Get returns the record of a block, or nil when unknown.
func (s *BlockStore) Get(hash chainhash.Hash) (*StoredBlock, error) {
	if b, ok := s.factory.cache.Get(s.cacheKey(hash)); ok {
		s.count(s.factory.cfg.Counters.Hits)
		return b, nil
	}
	s.count(s.factory.cfg.Counters.Misses)

	data, err := s.accessor.GetBytes(s.owner, hash[:])
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	b, err := DeserializeStoredBlock(data)
	if err != nil {
		return nil, err
	}

	s.maybeCache(hash, b)
	return b, nil
}

func (s *BlockStore) maybeCache(hash chainhash.Hash, b *StoredBlock) {
	if s.head != nil && b.Height < s.head.Height-s.factory.cfg.CacheRetention {
		return
	}
	s.factory.cache.Add(s.cacheKey(hash), b)
}

func (s *BlockStore) cacheKey(hash chainhash.Hash) cacheKey {
	return cacheKey{owner: string(s.owner), hash: hash}
}

func (s *BlockStore) count(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// ChainHead returns the tip of the best known chain, or nil if the store
// was never initialized.
func (s *BlockStore) ChainHead() (*StoredBlock, error) {
	if s.head != nil {
		return s.head, nil
	}

	data, err := s.accessor.GetBytes(s.owner, chainHeadKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	hash, err := chainhash.NewHash(data)
	if err != nil {
		return nil, &BlockStoreError{Msg: "malformed chain head", Err: err}
	}
	head, err := s.Get(*hash)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, storeErr("chain head %s is not stored", hash)
	}

	s.head = head
	return head, nil
}

func (s *BlockStore) SetChainHead(b *StoredBlock) error {
	hash := b.Hash()
	if err := s.accessor.PutBytes(s.owner, chainHeadKey, hash[:]); err != nil {
		return err
	}
	s.head = b
	return nil
}

// StoredBlockAtMainChainHeight walks back from the chain head to the block
// at the given height.
func (s *BlockStore) StoredBlockAtMainChainHeight(height int32) (*StoredBlock, error) {
	head, err := s.ChainHead()
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, storeErr("the store has no chain head")
	}
	depth := head.Height - height
	if depth < 0 {
		return nil, fmt.Errorf("%w: height %d is above the chain head at %d", types.ErrHeightTooHigh, height, head.Height)
	}
	return s.StoredBlockAtMainChainDepth(depth)
}

// StoredBlockAtMainChainDepth returns the ancestor of the chain head depth
// blocks below it.
func (s *BlockStore) StoredBlockAtMainChainDepth(depth int32) (*StoredBlock, error) {
	head, err := s.ChainHead()
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, storeErr("the store has no chain head")
	}
	if depth < 0 || depth > head.Height {
		return nil, storeErr("depth %d out of range for chain head at height %d", depth, head.Height)
	}

	expected := head.Height - depth
	cursor := head
	for i := int32(0); i < depth; i++ {
		prev, err := s.Get(cursor.Header.PrevBlock)
		if err != nil {
			return nil, err
		}
		if prev == nil {
			return nil, storeErr("ancestor %s of block %s at height %d is missing",
				cursor.Header.PrevBlock, cursor.Hash(), cursor.Height)
		}
		cursor = prev
	}
	if cursor.Height != expected {
		return nil, storeErr("block %s found at height %d, expected %d", cursor.Hash(), cursor.Height, expected)
	}

	return cursor, nil
}

// IsInMainChain reports whether b is an ancestor of, or is, the chain head.
func (s *BlockStore) IsInMainChain(b *StoredBlock) (bool, error) {
	head, err := s.ChainHead()
	if err != nil {
		return false, err
	}
	if head == nil || b.Height > head.Height {
		return false, nil
	}
	atHeight, err := s.StoredBlockAtMainChainHeight(b.Height)
	if err != nil {
		return false, err
	}
	return atHeight.Hash() == b.Hash(), nil
}
