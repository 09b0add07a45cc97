/*
Package engine implements the distribution agreement orchestration: pool
lifecycle, membership, instantaneous and continuous distribution, buffer
custody and liquidation.

The engine is the sole writer of its slot namespace. All time passing is
observed lazily; balances are projections of stored particles, computed
only when read or written.
*/
package engine
