package persistence

import (
	"fmt"

	"github.com/hupe1980/cowvec"
	"github.com/hupe1980/cowvec/internal/conv"
)

// The attachment protocol: deserialize a length-prefixed sequence into
// a cowvec.Vector, zero-copy when the reader allows it.
//
// When r implements DirectReader, the vector is attached straight to
// the reader's backing storage and no element is copied; the storage
// must then outlive the vector (or the vector must be promoted before
// the storage goes away). Any other reader falls back to an element-wise
// read into owned storage. Either way the cursor advances by exactly
// the field's byte span.

// ReadVector reads a length-prefixed run of T into vec, which must be
// empty. Counts at or above MaxElementCount fail with ErrCorruptLength
// and leave vec untouched.
func ReadVector[T cowvec.Scalar](r Reader, vec *cowvec.Vector[T]) error {
	count, err := readCount(r)
	if err != nil {
		return err
	}
	return readInto(r, vec, count, count*sizeOf[T]())
}

// ReadPackedVector reads a length-prefixed packed byte field into vec,
// which must be empty. The prefix counts PackedGroupSize-byte groups;
// the attached vector holds the raw bytes, count*PackedGroupSize of
// them. The corruption guard applies to the group count, before
// scaling.
func ReadPackedVector(r Reader, vec *cowvec.Vector[uint8]) error {
	count, err := readCount(r)
	if err != nil {
		return err
	}
	return readInto(r, vec, count*PackedGroupSize, count*PackedGroupSize)
}

func readCount(r Reader) (int, error) {
	n, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	if n >= MaxElementCount {
		return 0, fmt.Errorf("%w: element count %d exceeds 2^40", ErrCorruptLength, n)
	}
	count, err := conv.Uint64ToInt(n)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptLength, err)
	}
	return count, nil
}

func readInto[T cowvec.Scalar](r Reader, vec *cowvec.Vector[T], elems, nbytes int) error {
	if dr, ok := r.(DirectReader); ok {
		b, err := dr.ReadPointer(nbytes)
		if err != nil {
			return err
		}
		view, err := viewSlice[T](b, elems)
		if err != nil {
			return err
		}
		return vec.Attach(view)
	}

	out := make([]T, elems)
	if elems > 0 {
		dst, err := sliceBytes(out)
		if err != nil {
			return err
		}
		if err := r.ReadInto(dst); err != nil {
			return err
		}
	}
	return vec.Adopt(out)
}
