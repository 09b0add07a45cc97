// Package bolt provides a persistent slot ledger backed by bbolt.
//
// Writes issued through a cache wrap are applied in a single bolt
// transaction, so a committed operation is durable as a whole or not at
// all.
package bolt

import (
	bbolt "go.etcd.io/bbolt"

	flowdist "github.com/flowdist/flowdist"
	"github.com/flowdist/flowdist/errors"
	"github.com/flowdist/flowdist/store"
)

var (
	dataBucket = []byte("flowdist")
	metaBucket = []byte("flowdist-meta")
	versionKey = []byte("version")
)

// BoltStore is a CommitKVStore that keeps the ledger in a bbolt file.
type BoltStore struct {
	db      *bbolt.DB
	version int64
}

var _ flowdist.CommitKVStore = (*BoltStore)(nil)

// Open opens (creating if needed) a bolt backed store at the given path.
func Open(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "open %q: %v", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(dataBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(errors.ErrDatabase, "prepare buckets: %v", err)
	}
	return &BoltStore{db: db}, nil
}

// Get returns nil if the key does not exist.
func (s *BoltStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket(dataBucket).Get(key); raw != nil {
			value = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "get: %v", err)
	}
	return value, nil
}

// Has checks if a key exists.
func (s *BoltStore) Has(key []byte) (bool, error) {
	value, err := s.Get(key)
	return value != nil, err
}

// Set overwrites the value stored under the key.
func (s *BoltStore) Set(key, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(dataBucket).Put(key, value)
	})
	return errors.Wrapf(err, "set")
}

// Delete removes the key.
func (s *BoltStore) Delete(key []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(dataBucket).Delete(key)
	})
	return errors.Wrapf(err, "delete")
}

// CacheWrap returns a scratch pad over this store. Written wraps land in
// one bolt transaction.
func (s *BoltStore) CacheWrap() flowdist.KVCacheWrap {
	return store.NewBTreeCacheWrap(s, &atomicBatch{db: s.db}, nil)
}

// Commit bumps and persists the version counter. Data writes are durable
// as soon as their transaction commits; the version marks an operation
// boundary for the host.
func (s *BoltStore) Commit() (int64, error) {
	s.version++
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(metaBucket).Put(versionKey, encodeVersion(s.version))
	})
	if err != nil {
		s.version--
		return s.version, errors.Wrapf(errors.ErrDatabase, "commit: %v", err)
	}
	return s.version, nil
}

// LoadLatestVersion loads the last committed version counter.
func (s *BoltStore) LoadLatestVersion() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket(metaBucket).Get(versionKey); raw != nil {
			s.version = decodeVersion(raw)
		}
		return nil
	})
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func encodeVersion(v int64) []byte {
	raw := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		raw[i] = byte(v)
		v >>= 8
	}
	return raw
}

func decodeVersion(raw []byte) int64 {
	var v int64
	for _, b := range raw {
		v = v<<8 | int64(b)
	}
	return v
}

// atomicBatch collects writes and applies them in a single bolt
// transaction.
type atomicBatch struct {
	db  *bbolt.DB
	ops []store.Op
}

var _ flowdist.Batch = (*atomicBatch)(nil)

func (b *atomicBatch) Set(key, value []byte) error {
	b.ops = append(b.ops, store.SetOp(key, value))
	return nil
}

func (b *atomicBatch) Delete(key []byte) error {
	b.ops = append(b.ops, store.DelOp(key))
	return nil
}

func (b *atomicBatch) Write() error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return b.applyAll(tx)
	})
	if err != nil {
		return errors.Wrapf(errors.ErrDatabase, "write batch: %v", err)
	}
	b.ops = nil
	return nil
}

func (b *atomicBatch) applyAll(tx *bbolt.Tx) error {
	bucket := tx.Bucket(dataBucket)
	return store.ApplyOps(b.ops, bucketWriter{bucket})
}

// bucketWriter adapts a bolt bucket to the SetDeleter interface.
type bucketWriter struct {
	bucket *bbolt.Bucket
}

func (w bucketWriter) Set(key, value []byte) error {
	return w.bucket.Put(key, value)
}

func (w bucketWriter) Delete(key []byte) error {
	return w.bucket.Delete(key)
}
