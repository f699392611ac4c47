package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Reader is the element-wise read surface of a snapshot source. Every
// reader supports it; it is the fallback path of the attachment
// protocol when the source cannot hand out direct pointers.
type Reader interface {
	// ReadBytes returns the next n bytes and advances the cursor. The
	// returned slice may alias the reader's backing storage.
	ReadBytes(n int) ([]byte, error)
	// ReadInto fills p from the source and advances the cursor.
	ReadInto(p []byte) error
	ReadUint32() (uint32, error)
	ReadUint64() (uint64, error)
	// Offset returns the number of bytes consumed so far.
	Offset() int
}

// DirectReader is the capability that enables zero-copy attachment: a
// reader whose backing storage is already resident in memory (a mapped
// file, a decompressed buffer) and can be aliased directly.
type DirectReader interface {
	Reader
	// ReadPointer returns a window of n bytes of backing storage
	// without copying and advances the cursor exactly as if the bytes
	// had been read. The window stays valid for as long as the backing
	// storage does.
	ReadPointer(n int) ([]byte, error)
}

// SliceReader provides bounds-checked reads over an in-memory byte
// slice, typically a memory-mapped file region. It implements
// DirectReader.
type SliceReader struct {
	b   []byte
	off int
}

var _ DirectReader = (*SliceReader)(nil)

func NewSliceReader(b []byte) *SliceReader {
	return &SliceReader{b: b, off: 0}
}

func (r *SliceReader) Offset() int {
	if r == nil {
		return 0
	}
	return r.off
}

func (r *SliceReader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.b) {
		return nil, fmt.Errorf("persistence: out of bounds read (%d bytes at %d, len=%d)", n, r.off, len(r.b))
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

// ReadPointer implements DirectReader. Same as ReadBytes; the name
// carries the aliasing contract.
func (r *SliceReader) ReadPointer(n int) ([]byte, error) {
	return r.ReadBytes(n)
}

func (r *SliceReader) ReadInto(p []byte) error {
	b, err := r.ReadBytes(len(p))
	if err != nil {
		return err
	}
	copy(p, b)
	return nil
}

func (r *SliceReader) ReadUint32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *SliceReader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Remaining returns the unread tail of the backing slice without
// advancing the cursor.
func (r *SliceReader) Remaining() []byte {
	if r.off >= len(r.b) {
		return nil
	}
	return r.b[r.off:]
}

// StreamReader adapts an io.Reader to the Reader surface. It cannot
// expose backing storage, so vectors read through it always take the
// element-wise copy path.
type StreamReader struct {
	r   io.Reader
	off int
}

var _ Reader = (*StreamReader)(nil)

func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r}
}

func (r *StreamReader) Offset() int {
	if r == nil {
		return 0
	}
	return r.off
}

func (r *StreamReader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("persistence: negative read size %d", n)
	}
	out := make([]byte, n)
	if err := r.ReadInto(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *StreamReader) ReadInto(p []byte) error {
	n, err := io.ReadFull(r.r, p)
	r.off += n
	if err != nil {
		return fmt.Errorf("persistence: short read at offset %d: %w", r.off, err)
	}
	return nil
}

func (r *StreamReader) ReadUint32() (uint32, error) {
	var buf [4]byte
	if err := r.ReadInto(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (r *StreamReader) ReadUint64() (uint64, error) {
	var buf [8]byte
	if err := r.ReadInto(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadHeader reads and validates the file header from any Reader.
func ReadHeader(r Reader) (*FileHeader, error) {
	if HeaderSize <= 0 {
		return nil, fmt.Errorf("persistence: invalid FileHeader size: %d", HeaderSize)
	}
	b, err := r.ReadBytes(HeaderSize)
	if err != nil {
		return nil, err
	}
	var h FileHeader
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if h.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, h.Version)
	}
	return &h, nil
}
