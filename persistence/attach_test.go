package persistence

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cowvec"
)

func encodeVector[T cowvec.Scalar](t *testing.T, s []T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteVector(NewWriter(&buf), s))
	return buf.Bytes()
}

func TestReadVector_DirectAttachesZeroCopy(t *testing.T) {
	data := encodeVector(t, []float32{1, 2, 3, 4, 5})
	r := NewSliceReader(data)

	var vec cowvec.Vector[float32]
	require.NoError(t, ReadVector(r, &vec))

	assert.True(t, vec.Attached())
	assert.Equal(t, 5, vec.Len())
	assert.Equal(t, 5, vec.Cap())

	x, err := vec.At(2)
	require.NoError(t, err)
	assert.Equal(t, float32(3), x)

	// The vector aliases the reader's backing storage: its first
	// element sits right after the 8-byte length prefix.
	assert.Same(t, (*float32)(unsafe.Pointer(&data[8])), &vec.Data()[0])
}

func TestReadVector_StreamCopies(t *testing.T) {
	data := encodeVector(t, []int64{10, 20, 30})
	r := NewStreamReader(bytes.NewReader(data))

	var vec cowvec.Vector[int64]
	require.NoError(t, ReadVector(r, &vec))

	assert.True(t, vec.Owned())
	assert.False(t, vec.Attached())
	assert.Equal(t, []int64{10, 20, 30}, vec.Data())
	assert.Equal(t, len(data), r.Offset())
}

func TestReadVector_CursorAdvanceMatchesCopyRead(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, WriteVector(w, []float32{1, 2}))
	require.NoError(t, WriteVector(w, []int64{7}))

	// Direct path
	sr := NewSliceReader(buf.Bytes())
	var f cowvec.Vector[float32]
	var i cowvec.Vector[int64]
	require.NoError(t, ReadVector(sr, &f))
	require.NoError(t, ReadVector(sr, &i))
	assert.Equal(t, buf.Len(), sr.Offset())

	// Stream path lands on the same offsets
	st := NewStreamReader(bytes.NewReader(buf.Bytes()))
	var f2 cowvec.Vector[float32]
	var i2 cowvec.Vector[int64]
	require.NoError(t, ReadVector(st, &f2))
	require.NoError(t, ReadVector(st, &i2))
	assert.Equal(t, sr.Offset(), st.Offset())

	x, err := i.At(0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), x)
	assert.Equal(t, i.Data(), i2.Data())
}

func TestReadVector_CorruptCountRejected(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteUint64(uint64(1)<<41)) // 2^41 elements

	var vec cowvec.Vector[float32]
	err := ReadVector(NewSliceReader(buf.Bytes()), &vec)
	assert.ErrorIs(t, err, ErrCorruptLength)

	// The vector is untouched.
	assert.True(t, vec.Empty())
	assert.False(t, vec.Attached())
	assert.False(t, vec.Owned())
}

func TestReadVector_CountJustBelowGuard(t *testing.T) {
	// 2^40-1 passes the guard and then fails on the short buffer,
	// not on the corruption check.
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteUint64(uint64(1)<<40-1))

	var vec cowvec.Vector[uint8]
	err := ReadVector(NewSliceReader(buf.Bytes()), &vec)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCorruptLength)
}

func TestReadVector_EmptyCount(t *testing.T) {
	data := encodeVector(t, []float32{})
	r := NewSliceReader(data)

	var vec cowvec.Vector[float32]
	require.NoError(t, ReadVector(r, &vec))

	assert.True(t, vec.Attached())
	assert.True(t, vec.Empty())
	assert.Equal(t, 8, r.Offset())
}

func TestReadVector_TruncatedPayload(t *testing.T) {
	data := encodeVector(t, []float32{1, 2, 3})
	truncated := data[:len(data)-4]

	var vec cowvec.Vector[float32]
	err := ReadVector(NewSliceReader(truncated), &vec)
	assert.Error(t, err)

	var vec2 cowvec.Vector[float32]
	err = ReadVector(NewStreamReader(bytes.NewReader(truncated)), &vec2)
	assert.Error(t, err)
}

func TestReadPackedVector_GroupStride(t *testing.T) {
	packed := []uint8{1, 2, 3, 4, 5, 6, 7, 8} // 2 groups of 4
	var buf bytes.Buffer
	require.NoError(t, WritePackedVector(NewWriter(&buf), packed))

	// Prefix counts groups, not bytes.
	r := NewSliceReader(buf.Bytes())
	n, err := r.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	var vec cowvec.Vector[uint8]
	require.NoError(t, ReadPackedVector(NewSliceReader(buf.Bytes()), &vec))
	assert.True(t, vec.Attached())
	assert.Equal(t, 8, vec.Len())
	assert.Equal(t, packed, vec.Data())

	// Stream path yields identical contents, owned.
	var vec2 cowvec.Vector[uint8]
	require.NoError(t, ReadPackedVector(NewStreamReader(bytes.NewReader(buf.Bytes())), &vec2))
	assert.True(t, vec2.Owned())
	assert.Equal(t, packed, vec2.Data())
}

func TestWritePackedVector_RejectsRaggedInput(t *testing.T) {
	var buf bytes.Buffer
	err := WritePackedVector(NewWriter(&buf), []uint8{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptLength)
}

func TestReadVector_PromotionDetachesFromBuffer(t *testing.T) {
	data := encodeVector(t, []float32{1, 2, 3})
	var vec cowvec.Vector[float32]
	require.NoError(t, ReadVector(NewSliceReader(data), &vec))

	vec.PushBack(4)

	assert.True(t, vec.Owned())
	assert.Equal(t, []float32{1, 2, 3, 4}, vec.Data())
	// Original serialized bytes are unchanged.
	assert.Equal(t, encodeVector(t, []float32{1, 2, 3}), data)
}
