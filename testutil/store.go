package testutil

import (
	"math/rand"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/store"
)

// CreateStore opens a kvdb backed store in a temporary directory that is
// closed when the test ends.
func CreateStore(r *rand.Rand, t testing.TB) store.Store {
	db, err := kvdb.GetBoltBackend(&kvdb.BoltBackendConfig{
		DBPath:            t.TempDir(),
		DBFileName:        GenRandomHexStr(r, 10) + "-bridge.db",
		NoFreelistSync:    true,
		AutoCompact:       false,
		AutoCompactMinAge: kvdb.DefaultBoltAutoCompactMinAge,
		DBTimeout:         time.Minute,
	})
	require.NoError(t, err)

	s := store.NewKvdbStore(db)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

// CheckStoreBehaviour exercises the get/put/list contract of a store.
func CheckStoreBehaviour(r *rand.Rand, t *testing.T, s store.Store) {
	owner := GenRandomByteArray(r, 20)
	kvNum := r.Intn(10) + 1
	kvList := make([]*store.KVPair, kvNum)
	for i := range kvList {
		kvList[i] = &store.KVPair{
			Key:   append([]byte("key-"), GenRandomByteArray(r, 8)...),
			Value: GenRandomByteArray(r, uint64(r.Intn(64)+1)),
		}
	}
	randIndex := r.Intn(kvNum)

	// Initially the key shouldn't exist
	v, err := s.GetBytes(owner, kvList[randIndex].Key)
	require.NoError(t, err)
	require.Nil(t, v)

	// Deleting a non-existing key-value pair should NOT lead to an error
	require.NoError(t, s.PutBytes(owner, kvList[randIndex].Key, nil))

	for _, kv := range kvList {
		require.NoError(t, s.PutBytes(owner, kv.Key, kv.Value))
		// Storing it again should not lead to an error but just overwrite it
		require.NoError(t, s.PutBytes(owner, kv.Key, kv.Value))

		v, err = s.GetBytes(owner, kv.Key)
		require.NoError(t, err)
		require.Equal(t, kv.Value, v)
	}

	// Another owner does not see the values
	v, err = s.GetBytes(GenRandomByteArray(r, 20), kvList[randIndex].Key)
	require.NoError(t, err)
	require.Nil(t, v)

	listed, err := s.List(owner, []byte("key-"))
	require.NoError(t, err)
	require.Len(t, listed, kvNum)

	require.NoError(t, s.PutBytes(owner, kvList[randIndex].Key, nil))
	v, err = s.GetBytes(owner, kvList[randIndex].Key)
	require.NoError(t, err)
	require.Nil(t, v)

	listed, err = s.List(owner, nil)
	require.NoError(t, err)
	require.Len(t, listed, kvNum-1)
}
