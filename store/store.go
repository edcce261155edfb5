package store

// Accessor is the byte-level storage the bridge state is kept in. Values
// are namespaced by owner, the ledger account the state belongs to.
type Accessor interface {
	// GetBytes returns the value stored under key, or nil when absent.
	GetBytes(owner, key []byte) ([]byte, error)
	// PutBytes stores value under key. A nil value removes the key.
	PutBytes(owner, key, value []byte) error
}

// Store is an Accessor over a database that can be enumerated and closed.
type Store interface {
	Accessor
	// List returns the pairs of owner whose key starts with keyPrefix, in
	// key order.
	List(owner, keyPrefix []byte) ([]*KVPair, error)
	// Close must be called when the work with the key-value store is done.
	Close() error
}

// KVPair represents {Key, Value} pair
type KVPair struct {
	Key   []byte
	Value []byte
}
