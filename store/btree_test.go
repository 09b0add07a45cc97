package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBTreeCacheGetSet(t *testing.T) {
	base := MemStore()

	k, v := []byte("french"), []byte("fry")

	// Empty read.
	got, err := base.Get(k)
	require.NoError(t, err)
	assert.Nil(t, got)
	has, err := base.Has(k)
	require.NoError(t, err)
	assert.False(t, has)

	// Set and read back.
	require.NoError(t, base.Set(k, v))
	got, err = base.Get(k)
	require.NoError(t, err)
	assert.Equal(t, v, got)
	has, err = base.Has(k)
	require.NoError(t, err)
	assert.True(t, has)

	// Deleted key reads as missing.
	require.NoError(t, base.Delete(k))
	got, err = base.Get(k)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBTreeCacheConflicts(t *testing.T) {
	k1, v1 := []byte("a"), []byte("1")
	k2, v2 := []byte("b"), []byte("2")
	v3 := []byte("3")

	base := MemStore()
	require.NoError(t, base.Set(k1, v1))

	cache := base.CacheWrap()

	// Cache sees the parent data and its own writes, parent does not see
	// the cache writes.
	require.NoError(t, cache.Set(k2, v2))
	require.NoError(t, cache.Set(k1, v3))

	got, err := cache.Get(k1)
	require.NoError(t, err)
	assert.Equal(t, v3, got)
	got, err = base.Get(k1)
	require.NoError(t, err)
	assert.Equal(t, v1, got)
	has, err := base.Has(k2)
	require.NoError(t, err)
	assert.False(t, has)

	// Deletes shadow the parent value inside the cache only.
	require.NoError(t, cache.Delete(k1))
	got, err = cache.Get(k1)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = base.Get(k1)
	require.NoError(t, err)
	assert.Equal(t, v1, got)
}

func TestBTreeCacheWrite(t *testing.T) {
	k1, v1 := []byte("a"), []byte("1")
	k2, v2 := []byte("b"), []byte("2")

	base := MemStore()
	require.NoError(t, base.Set(k1, v1))

	cache := base.CacheWrap()
	require.NoError(t, cache.Set(k2, v2))
	require.NoError(t, cache.Delete(k1))
	require.NoError(t, cache.Write())

	got, err := base.Get(k2)
	require.NoError(t, err)
	assert.Equal(t, v2, got)
	got, err = base.Get(k1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBTreeCacheDiscard(t *testing.T) {
	k1, v1 := []byte("a"), []byte("1")
	k2, v2 := []byte("b"), []byte("2")

	base := MemStore()
	require.NoError(t, base.Set(k1, v1))

	cache := base.CacheWrap()
	require.NoError(t, cache.Set(k2, v2))
	require.NoError(t, cache.Delete(k1))
	cache.Discard()

	// Nothing from the discarded wrap leaked into the parent.
	got, err := base.Get(k1)
	require.NoError(t, err)
	assert.Equal(t, v1, got)
	has, err := base.Has(k2)
	require.NoError(t, err)
	assert.False(t, has)
}
