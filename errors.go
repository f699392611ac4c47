package cowvec

import "errors"

var (
	// ErrOwned is returned when attaching foreign storage to a Vector
	// that already owns its storage.
	ErrOwned = errors.New("cowvec: vector already owns its storage")

	// ErrNotEmpty is returned when adopting a slice into a Vector that
	// is not in the empty state.
	ErrNotEmpty = errors.New("cowvec: vector is not empty")

	// ErrOutOfRange is returned by bounds-checked element access when
	// the index is not less than the current length.
	ErrOutOfRange = errors.New("cowvec: index out of range")
)
