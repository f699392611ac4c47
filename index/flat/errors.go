package flat

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("flat: k must be positive")

	// ErrDuplicateID is returned when adding an ID that already exists.
	ErrDuplicateID = errors.New("flat: duplicate id")

	// ErrNotFound is returned when an ID is not in the index.
	ErrNotFound = errors.New("flat: id not found")

	// ErrLengthMismatch is returned when batch slices differ in length.
	ErrLengthMismatch = errors.New("flat: ids and vectors length mismatch")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("flat: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("flat: invalid dimension: %d", e.Dimension)
}
