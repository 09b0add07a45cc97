/*
Package ledger implements the storage records of the distribution
agreement and their bit-exact packings.

Records are packed into 32 byte storage words at the agreement's slot
namespace. The packing is a serialization boundary only; all logic
operates on the plain structs. An all-zero record is the semantic "does
not exist" state and is surfaced to callers as an explicit presence flag.
*/
package ledger
