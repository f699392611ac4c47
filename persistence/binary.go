// Package persistence provides the binary snapshot format and the
// zero-copy attachment protocol for cowvec vectors.
package persistence

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/cowvec"
	"github.com/hupe1980/cowvec/internal/conv"
)

// Writer writes snapshot sections in the binary format the readers in
// this package understand. All integers are little-endian; slices are
// written as their raw in-memory bytes so loaders can alias them.
type Writer struct {
	w         io.Writer
	byteOrder binary.ByteOrder
}

// NewWriter creates a new binary writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:         w,
		byteOrder: binary.LittleEndian, // Native on x86/ARM
	}
}

// WriteHeader writes the file header, stamping magic and version.
func (bw *Writer) WriteHeader(header *FileHeader) error {
	header.Magic = MagicNumber
	header.Version = Version
	return binary.Write(bw.w, bw.byteOrder, header)
}

// WriteUint64 writes a single little-endian uint64.
func (bw *Writer) WriteUint64(v uint64) error {
	var buf [8]byte
	bw.byteOrder.PutUint64(buf[:], v)
	_, err := bw.w.Write(buf[:])
	return err
}

// WriteUint32 writes a single little-endian uint32.
func (bw *Writer) WriteUint32(v uint32) error {
	var buf [4]byte
	bw.byteOrder.PutUint32(buf[:], v)
	_, err := bw.w.Write(buf[:])
	return err
}

// WriteSlice writes s as raw bytes with no length prefix.
// Safety: validates alignment before the unsafe conversion.
func WriteSlice[T cowvec.Scalar](bw *Writer, s []T) error {
	if len(s) == 0 {
		return nil
	}
	b, err := sliceBytes(s)
	if err != nil {
		return err
	}
	_, err = bw.w.Write(b)
	return err
}

// WriteVector writes the length-prefixed run ReadVector expects:
// a uint64 element count followed by the raw elements.
func WriteVector[T cowvec.Scalar](bw *Writer, s []T) error {
	n, err := conv.IntToUint64(len(s))
	if err != nil {
		return err
	}
	if err := bw.WriteUint64(n); err != nil {
		return err
	}
	return WriteSlice(bw, s)
}

// WritePackedVector writes the packed-group form ReadPackedVector
// expects: a uint64 group count followed by the raw bytes. len(s) must
// be a multiple of PackedGroupSize.
func WritePackedVector(bw *Writer, s []uint8) error {
	if len(s)%PackedGroupSize != 0 {
		return ErrCorruptLength
	}
	groups, err := conv.IntToUint64(len(s) / PackedGroupSize)
	if err != nil {
		return err
	}
	if err := bw.WriteUint64(groups); err != nil {
		return err
	}
	return WriteSlice(bw, s)
}

// SaveToFile writes a snapshot atomically: the data goes to a temp file
// in the target directory, which is fsynced and renamed over the
// destination.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	// Match typical file permissions (best-effort).
	_ = tmp.Chmod(0644)

	// Buffered writer to batch writes (critical for performance)
	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// Success: prevent deferred cleanup from removing the final file.
	tmpName = ""
	return nil
}

// LoadFromFile opens a snapshot for streaming reads.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewReaderSize(f, 256*1024)
	return readFunc(buf)
}
