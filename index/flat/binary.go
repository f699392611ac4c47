package flat

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/cowvec"
	"github.com/hupe1980/cowvec/internal/conv"
	"github.com/hupe1980/cowvec/mmap"
	"github.com/hupe1980/cowvec/persistence"
)

// Snapshot layout:
//
//	FileHeader (always uncompressed)
//	body:
//	  ids       uint64 count + raw int64s
//	  vectors   uint64 count + raw float32s
//	  deleted   uint64 count + roaring bitmap bytes
//	  trailer   uint32 CRC32 of everything above (after the header)
//
// With compression enabled the body (trailer included) is wrapped in
// the block codec. IDs come before vectors so that every section's
// payload stays 8-byte aligned for zero-copy reinterpretation.

// Save writes a snapshot of the index. Tombstoned vectors are kept and
// persisted via the deleted bitmap.
func (f *Flat) Save(w io.Writer) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var payload bytes.Buffer
	cw := persistence.NewChecksumWriter(&payload)
	bw := persistence.NewWriter(cw)

	if err := persistence.WriteVector(bw, f.ids.Data()); err != nil {
		return fmt.Errorf("flat: write ids: %w", err)
	}
	if err := persistence.WriteVector(bw, f.vectors.Data()); err != nil {
		return fmt.Errorf("flat: write vectors: %w", err)
	}
	delBytes, err := f.deleted.ToBytes()
	if err != nil {
		return fmt.Errorf("flat: serialize deleted bitmap: %w", err)
	}
	if err := persistence.WriteVector(bw, delBytes); err != nil {
		return fmt.Errorf("flat: write deleted bitmap: %w", err)
	}
	crc := cw.Sum()

	count, err := conv.IntToUint64(f.ids.Len())
	if err != nil {
		return err
	}
	dim, err := conv.IntToUint32(f.opts.Dimension)
	if err != nil {
		return err
	}

	out := persistence.NewWriter(w)
	if err := out.WriteHeader(&persistence.FileHeader{
		IndexType:   persistence.IndexTypeFlat,
		Compression: uint8(f.opts.Compression),
		VectorCount: count,
		Dimension:   dim,
	}); err != nil {
		return fmt.Errorf("flat: write header: %w", err)
	}

	if f.opts.Compression == persistence.CompressionNone {
		if _, err := w.Write(payload.Bytes()); err != nil {
			return err
		}
		return out.WriteUint32(crc)
	}

	cbw := persistence.NewCompressedBlockWriter(w, f.opts.Compression, 0)
	if _, err := cbw.Write(payload.Bytes()); err != nil {
		return err
	}
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc)
	if _, err := cbw.Write(trailer[:]); err != nil {
		return err
	}
	return cbw.Flush()
}

// SaveToFile writes a snapshot atomically to path.
func (f *Flat) SaveToFile(path string) error {
	err := persistence.SaveToFile(path, f.Save)
	f.logger.LogSave(context.Background(), path, f.ids.Len(), err)
	return err
}

// Load reads a snapshot from a stream. Streams cannot hand out direct
// pointers, so every section is copied into owned storage.
func Load(r io.Reader, optFns ...func(o *Options)) (*Flat, error) {
	sr := persistence.NewStreamReader(r)
	h, err := persistence.ReadHeader(sr)
	if err != nil {
		return nil, err
	}

	ct := persistence.CompressionType(h.Compression)
	if ct != persistence.CompressionNone {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return loadCompressed(h, body, ct, optFns)
	}

	// Checksum everything after the header, then compare against the
	// trailer, which is read from the raw stream so it does not feed
	// back into the sum.
	cr := persistence.NewChecksumReader(r)
	f, err := loadSections(persistence.NewStreamReader(cr), h, optFns)
	if err != nil {
		return nil, err
	}
	var trailer [4]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, fmt.Errorf("flat: read checksum trailer: %w", err)
	}
	if err := cr.Verify(binary.LittleEndian.Uint32(trailer[:])); err != nil {
		return nil, err
	}
	return f, nil
}

// LoadFromFile reads a snapshot from path through the stream path.
func LoadFromFile(path string, optFns ...func(o *Options)) (*Flat, error) {
	var f *Flat
	err := persistence.LoadFromFile(path, func(r io.Reader) error {
		var loadErr error
		f, loadErr = Load(r, optFns...)
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	f.logger.LogLoad(context.Background(), path, f.ids.Len(), false, nil)
	return f, nil
}

// Open memory-maps the snapshot at path and attaches the index to it
// zero-copy: vector data is read straight from the mapped file until
// the first mutation. The mapping stays open until Close.
//
// Compressed snapshots cannot be aliased; they are decompressed to the
// heap and the mapping is closed before Open returns.
func Open(path string, optFns ...func(o *Options)) (*Flat, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	f, err := openMapped(m, optFns)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	f.logger.LogLoad(context.Background(), path, f.ids.Len(), f.vectors.Attached(), nil)
	return f, nil
}

func openMapped(m *mmap.Mapping, optFns []func(o *Options)) (*Flat, error) {
	data := m.Bytes()
	sr := persistence.NewSliceReader(data)
	h, err := persistence.ReadHeader(sr)
	if err != nil {
		return nil, err
	}

	ct := persistence.CompressionType(h.Compression)
	if ct != persistence.CompressionNone {
		f, err := loadCompressed(h, sr.Remaining(), ct, optFns)
		if err != nil {
			return nil, err
		}
		// Everything lives on the heap now; the file is no longer needed.
		if err := m.Close(); err != nil {
			return nil, err
		}
		return f, nil
	}

	if len(data) < persistence.HeaderSize+4 {
		return nil, fmt.Errorf("flat: snapshot truncated (%d bytes)", len(data))
	}
	payload := data[persistence.HeaderSize : len(data)-4]
	want := binary.LittleEndian.Uint32(data[len(data)-4:])
	if got := persistence.CalculateChecksum(payload); got != want {
		return nil, &persistence.ChecksumMismatchError{Expected: want, Actual: got}
	}

	f, err := loadSections(persistence.NewSliceReader(payload), h, optFns)
	if err != nil {
		return nil, err
	}
	f.mapping = m
	return f, nil
}

func loadCompressed(h *persistence.FileHeader, body []byte, ct persistence.CompressionType, optFns []func(o *Options)) (*Flat, error) {
	raw, err := persistence.DecompressAll(body, ct)
	if err != nil {
		return nil, err
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("flat: snapshot truncated (%d bytes after decompression)", len(raw))
	}
	payload := raw[:len(raw)-4]
	want := binary.LittleEndian.Uint32(raw[len(raw)-4:])
	if got := persistence.CalculateChecksum(payload); got != want {
		return nil, &persistence.ChecksumMismatchError{Expected: want, Actual: got}
	}
	// The sections attach to the decompressed heap buffer; the buffer
	// stays alive for as long as they do.
	return loadSections(persistence.NewSliceReader(payload), h, optFns)
}

func loadSections(r persistence.Reader, h *persistence.FileHeader, optFns []func(o *Options)) (*Flat, error) {
	if h.IndexType != persistence.IndexTypeFlat {
		return nil, fmt.Errorf("%w: expected flat (%d), got %d", persistence.ErrInvalidIndex, persistence.IndexTypeFlat, h.IndexType)
	}
	dim, err := conv.Uint32ToInt(h.Dimension)
	if err != nil {
		return nil, err
	}
	count, err := conv.Uint64ToInt(h.VectorCount)
	if err != nil {
		return nil, err
	}

	f, err := New(append(optFns, func(o *Options) {
		o.Dimension = dim
		o.Compression = persistence.CompressionType(h.Compression)
	})...)
	if err != nil {
		return nil, err
	}

	if err := persistence.ReadVector(r, &f.ids); err != nil {
		return nil, fmt.Errorf("flat: read ids: %w", err)
	}
	if err := persistence.ReadVector(r, &f.vectors); err != nil {
		return nil, fmt.Errorf("flat: read vectors: %w", err)
	}
	var delVec cowvec.Vector[uint8]
	if err := persistence.ReadVector(r, &delVec); err != nil {
		return nil, fmt.Errorf("flat: read deleted bitmap: %w", err)
	}

	if f.ids.Len() != count {
		return nil, fmt.Errorf("%w: header count %d, ids section %d", persistence.ErrCorruptLength, count, f.ids.Len())
	}
	if f.vectors.Len() != count*dim {
		return nil, fmt.Errorf("%w: header count %d x dim %d, vectors section %d", persistence.ErrCorruptLength, count, dim, f.vectors.Len())
	}

	f.deleted = roaring.New()
	if delVec.Len() > 0 {
		// UnmarshalBinary copies, so the bitmap never aliases the
		// snapshot and Remove works in zero-copy mode.
		if err := f.deleted.UnmarshalBinary(delVec.Data()); err != nil {
			return nil, fmt.Errorf("flat: parse deleted bitmap: %w", err)
		}
	}

	for pos, id := range f.ids.Data() {
		if f.deleted.Contains(uint32(pos)) {
			continue
		}
		f.byID[id] = uint32(pos)
	}
	return f, nil
}
