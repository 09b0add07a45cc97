package flowdist

// Defines the public interfaces for interacting with the slot ledger.
//
// The distribution agreement stores all of its state as fixed-width
// byte-array slots owned by accounts. Storage backends only need point
// access; enumeration questions ("which pools is this account connected
// to") are answered by the connection bitmap, never by a key scan.

// ReadOnlyKVStore provides read access to the slot ledger.
type ReadOnlyKVStore interface {
	// Get returns nil if the key does not exist. Panics on nil key.
	Get(key []byte) ([]byte, error)

	// Has checks if a key exists. Panics on nil key.
	Has(key []byte) (bool, error)
}

// KVStore is the read-write slot ledger.
type KVStore interface {
	ReadOnlyKVStore

	// Set overwrites the value stored under the key. Panics on nil key.
	Set(key, value []byte) error

	// Delete removes the key. Deleting a non-existent key is a noop.
	Delete(key []byte) error
}

// SetDeleter is the write subset of KVStore.
type SetDeleter interface {
	Set(key, value []byte) error
	Delete(key []byte) error
}

// Batch groups writes to be applied to a store at once.
type Batch interface {
	SetDeleter
	Write() error
}

// CacheableKVStore is a KVStore that supports cache wrapping.
//
// Every agreement operation runs inside a cache wrap: on success the wrap
// is written back, on any error it is discarded whole. This is what makes
// each entry point atomic - no partially applied mutation is ever visible
// to the backing store.
type CacheableKVStore interface {
	KVStore
	CacheWrap() KVCacheWrap
}

// KVCacheWrap is a scratch pad of uncommitted writes over a store.
//
// Call Write to apply the cached writes to the backing store, or Discard
// to drop them.
type KVCacheWrap interface {
	CacheableKVStore

	// Write applies all cached writes to the backing store.
	Write() error

	// Discard drops all cached writes and invalidates this wrap.
	Discard()
}

// CommitKVStore is a store that can persist committed state and reload it
// on startup.
type CommitKVStore interface {
	CacheableKVStore

	// Commit flushes the current state to stable storage and returns
	// the new version number.
	Commit() (int64, error)

	// LoadLatestVersion loads the latest persisted state. If the last
	// commit was interrupted it is guaranteed to return a stable state,
	// even if older.
	LoadLatestVersion() error

	// Close releases the underlying resources.
	Close() error
}
