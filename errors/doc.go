/*
Package errors implements the error taxonomy of the distribution agreement.

Every error returned by this module wraps one of the root errors declared
here. Test for a kind with the root's Is method, never by comparing error
instances:

	if errors.ErrNotFound.Is(err) {
	    ...
	}

All errors are immediate, synchronous and all-or-nothing. There is no retry
policy inside this module; retries, if any, are the caller's responsibility
at the transaction level.
*/
package errors
