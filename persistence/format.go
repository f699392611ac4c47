package persistence

import (
	"encoding/binary"
	"errors"
)

const (
	// MagicNumber identifies cowvec snapshot files (ASCII: "COW1")
	MagicNumber = 0x434F5731
	// Version is the current file format version (v1.0.0)
	Version = 0x00010000

	// Index types
	IndexTypeFlat = 1
)

// MaxElementCount is the exclusive upper bound on decoded length
// prefixes. A count at or above 2^40 cannot come from a well-formed
// file and is treated as corruption before any allocation or pointer
// arithmetic happens.
const MaxElementCount = uint64(1) << 40

// PackedGroupSize is the number of raw bytes per logical element in
// packed byte fields, whose length prefix counts 4-byte groups.
const PackedGroupSize = 4

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrInvalidIndex   = errors.New("invalid index type")

	// ErrCorruptLength is returned when a decoded length prefix exceeds
	// MaxElementCount.
	ErrCorruptLength = errors.New("corrupt length prefix")
)

// FileHeader is the fixed-size header at the start of every snapshot.
// Always stored uncompressed and little-endian, so loaders can decide
// how to read the body. Its encoded size is a multiple of 8 so the body
// sections stay 8-byte aligned for zero-copy reinterpretation.
type FileHeader struct {
	Magic       uint32
	Version     uint32
	IndexType   uint8 // 1=Flat
	Compression uint8 // CompressionType of the body
	Padding1    [2]byte
	VectorCount uint64 // Total number of vectors, tombstones included
	Dimension   uint32 // Vector dimensionality
	Padding2    [8]byte
	Reserved    [16]byte // Future use
}

// HeaderSize is the encoded size of FileHeader in bytes.
var HeaderSize = binary.Size(FileHeader{})
