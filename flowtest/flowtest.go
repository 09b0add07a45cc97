// Package flowtest provides shared test fixtures: deterministic
// addresses and fresh in-memory stores.
package flowtest

import (
	"testing"

	flowdist "github.com/flowdist/flowdist"
	"github.com/flowdist/flowdist/store"
)

// Address returns a deterministic test address derived from the seed.
func Address(t testing.TB, seed string) flowdist.Address {
	t.Helper()
	c := flowdist.NewCondition("test", "addr", []byte(seed))
	addr := c.Address()
	if err := addr.Validate(); err != nil {
		t.Fatalf("cannot derive %q address: %s", seed, err)
	}
	return addr
}

// Store returns a fresh empty in-memory store.
func Store() flowdist.CacheableKVStore {
	return store.MemStore()
}
