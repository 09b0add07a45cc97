/*
Package money implements the settlement algebra of the distribution
agreement.

Continuously changing balances are represented as particles: compact,
immutable snapshots of settled value and flow rate as of a settlement
time. All functions here are pure and total over their inputs; nothing in
this package touches storage. Time passing is observed lazily, only when a
balance is projected forward from its settlement time.
*/
package money
