/*
Package flowdist provides the shared primitives of the flow distribution
agreement: the slot ledger interfaces and condition-derived account
addresses.

The agreement itself lives in the sub packages. money implements the
settlement algebra, ledger the bit-exact record storage, pool the
distribution pool entity and engine the public operation surface.
*/
package flowdist
