package store

import (
	flowdist "github.com/flowdist/flowdist"
)

// Alias the ledger storage types for shorter names everywhere.

type KVStore = flowdist.KVStore
type ReadOnlyKVStore = flowdist.ReadOnlyKVStore
type CacheableKVStore = flowdist.CacheableKVStore
type KVCacheWrap = flowdist.KVCacheWrap
type CommitKVStore = flowdist.CommitKVStore
type SetDeleter = flowdist.SetDeleter
type Batch = flowdist.Batch

// MemStore returns a simple in-memory store useful for tests and for
// hosts that do not need persistence.
func MemStore() CacheableKVStore {
	e := EmptyKVStore{}
	return NewBTreeCacheWrap(e, e.NewBatch(), nil)
}
