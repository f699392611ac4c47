package cowvec

// Scalar is the set of fixed-width element types a Vector can hold.
// Only types with a stable in-memory layout are allowed, so that a
// Vector can alias serialized data directly.
type Scalar interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 |
		~int64 | ~uint64 | ~float32 | ~float64
}

// mode is the storage variant a Vector is currently in.
type mode uint8

const (
	modeEmpty mode = iota
	modeAttached
	modeOwned
)

// Vector is a copy-on-write, array-like container. It either aliases a
// read-only view of foreign memory (typically a range inside a
// memory-mapped file) or holds an exclusively owned slice, never both.
//
// A Vector starts empty. Attach binds it to foreign storage without
// copying; every read then goes straight to that storage. The first
// mutating call promotes the Vector: the current elements are copied
// into owned storage, the foreign reference is dropped (not freed), and
// all further operations work on the owned slice.
//
// The foreign storage is borrowed. Its owner (e.g. an mmap.Mapping)
// must keep it valid for as long as the Vector stays attached; once the
// Vector has been promoted or cleared the storage may go away.
//
// The zero value is an empty, ready-to-use Vector. A Vector is not safe
// for concurrent use; concurrent reads of an attached Vector are safe
// only while no goroutine mutates it.
type Vector[T Scalar] struct {
	view  []T // borrowed, read-only; len is the logical size
	owned []T
	mode  mode
}

// FromSlice returns a Vector that takes ownership of s.
func FromSlice[T Scalar](s []T) *Vector[T] {
	return &Vector[T]{owned: s, mode: modeOwned}
}

// Attach binds v to foreign storage without copying. The view's length
// becomes the logical size and its capacity the reported capacity.
//
// Attaching is legal while v is empty or already attached (the previous
// view is simply replaced). Once v owns its storage, Attach fails with
// ErrOwned: the owned elements would be silently discarded otherwise.
func (v *Vector[T]) Attach(view []T) error {
	if v.mode == modeOwned {
		return ErrOwned
	}
	v.view = view
	v.mode = modeAttached
	return nil
}

// Adopt hands v ownership of s. It is legal only on an empty Vector;
// use Attach for borrowing and the mutating methods for everything else.
func (v *Vector[T]) Adopt(s []T) error {
	if v.mode != modeEmpty {
		return ErrNotEmpty
	}
	v.owned = s
	v.mode = modeOwned
	return nil
}

// promote converts v to owned storage. The current elements are copied
// in order and the foreign reference is dropped. It runs at most once
// per attachment; every mutating method calls it first.
func (v *Vector[T]) promote() {
	if v.mode == modeOwned {
		return
	}
	owned := make([]T, len(v.view))
	copy(owned, v.view)
	v.owned = owned
	v.view = nil
	v.mode = modeOwned
}

// Len returns the number of elements.
func (v *Vector[T]) Len() int {
	if v.mode == modeOwned {
		return len(v.owned)
	}
	return len(v.view)
}

// Cap returns the capacity of the active storage.
func (v *Vector[T]) Cap() int {
	if v.mode == modeOwned {
		return cap(v.owned)
	}
	return cap(v.view)
}

// Empty reports whether the Vector holds no elements.
func (v *Vector[T]) Empty() bool { return v.Len() == 0 }

// Attached reports whether v currently aliases foreign storage.
func (v *Vector[T]) Attached() bool { return v.mode == modeAttached }

// Owned reports whether v has been promoted to owned storage.
func (v *Vector[T]) Owned() bool { return v.mode == modeOwned }

// Data returns the active backing slice without copying. While v is
// attached the slice aliases foreign read-only memory and must not be
// written to or retained past the life of that memory.
func (v *Vector[T]) Data() []T {
	if v.mode == modeOwned {
		return v.owned
	}
	return v.view
}

// At returns the element at index i, or ErrOutOfRange if i is not less
// than Len. It never promotes.
func (v *Vector[T]) At(i int) (T, error) {
	var zero T
	if i < 0 || i >= v.Len() {
		return zero, ErrOutOfRange
	}
	return v.Data()[i], nil
}

// Get returns the element at index i without a bounds check of its own;
// an out-of-range index panics. It never promotes.
func (v *Vector[T]) Get(i int) T {
	return v.Data()[i]
}

// Front returns the first element, or ErrOutOfRange when empty.
func (v *Vector[T]) Front() (T, error) { return v.At(0) }

// Back returns the last element, or ErrOutOfRange when empty.
func (v *Vector[T]) Back() (T, error) { return v.At(v.Len() - 1) }

// Set writes val at index i, promoting first so the write never lands
// in foreign memory. Returns ErrOutOfRange if i is not less than Len.
func (v *Vector[T]) Set(i int, val T) error {
	if i < 0 || i >= v.Len() {
		return ErrOutOfRange
	}
	v.promote()
	v.owned[i] = val
	return nil
}

// PushBack appends val, promoting first if needed.
func (v *Vector[T]) PushBack(val T) {
	v.promote()
	v.owned = append(v.owned, val)
}

// Append appends all vals, promoting first if needed.
func (v *Vector[T]) Append(vals ...T) {
	v.promote()
	v.owned = append(v.owned, vals...)
}

// PopBack removes and returns the last element, promoting first.
// Returns ErrOutOfRange when empty.
func (v *Vector[T]) PopBack() (T, error) {
	var zero T
	if v.Len() == 0 {
		return zero, ErrOutOfRange
	}
	v.promote()
	last := v.owned[len(v.owned)-1]
	v.owned = v.owned[:len(v.owned)-1]
	return last, nil
}

// Resize grows or shrinks the Vector to n elements, promoting first.
// New elements are set to fill. n must not be negative.
func (v *Vector[T]) Resize(n int, fill T) error {
	if n < 0 {
		return ErrOutOfRange
	}
	v.promote()
	switch {
	case n <= len(v.owned):
		v.owned = v.owned[:n]
	case n <= cap(v.owned):
		old := len(v.owned)
		v.owned = v.owned[:n]
		for i := old; i < n; i++ {
			v.owned[i] = fill
		}
	default:
		grown := make([]T, n)
		copy(grown, v.owned)
		for i := len(v.owned); i < n; i++ {
			grown[i] = fill
		}
		v.owned = grown
	}
	return nil
}

// Swap exchanges v's contents with *other, promoting first. After the
// call *other holds the elements v had and v owns the slice *other held.
func (v *Vector[T]) Swap(other *[]T) {
	v.promote()
	v.owned, *other = *other, v.owned
}

// Clear resets v to the empty state. An attached view is dropped
// without being freed (it was never owned); owned storage is released
// for collection.
func (v *Vector[T]) Clear() {
	v.view = nil
	v.owned = nil
	v.mode = modeEmpty
}
