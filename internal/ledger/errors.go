package ledger

import "errors"

var (
	// ErrNotFound is returned when an operation references an id absent from the store.
	ErrNotFound = errors.New("ledger: document not found")
	// ErrMalformedInput covers stage selectors, statuses, columns and fields outside their enumeration.
	ErrMalformedInput = errors.New("ledger: malformed input")
	// ErrStoreUnavailable wraps any failure of the underlying Document Store on a write path.
	ErrStoreUnavailable = errors.New("ledger: document store unavailable")
	// ErrIllegalTransition is returned when the transition table forbids current -> next.
	ErrIllegalTransition = errors.New("ledger: illegal status transition")
	// ErrVersionConflict signals a stale writer: the record changed since it was read.
	ErrVersionConflict = errors.New("ledger: version conflict")
	// ErrCorruptStore is returned by stores whose persisted data cannot be decoded.
	ErrCorruptStore = errors.New("ledger: corrupt document store")
)
