package flat

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cowvec/persistence"
)

func snapshotPath(t *testing.T, f *Flat) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.cow")
	require.NoError(t, f.SaveToFile(path))
	return path
}

func assertSameIndex(t *testing.T, want, got *Flat) {
	t.Helper()
	assert.Equal(t, want.Len(), got.Len())
	assert.Equal(t, want.Dimension(), got.Dimension())

	for _, id := range want.ids.Data() {
		wantVec, wantErr := want.Reconstruct(id)
		gotVec, gotErr := got.Reconstruct(id)
		assert.Equal(t, wantErr, gotErr)
		assert.Equal(t, wantVec, gotVec)
	}
}

func TestFlat_SaveLoadStream(t *testing.T) {
	f := newTestIndex(t)
	require.NoError(t, f.Remove(4))

	var buf bytes.Buffer
	require.NoError(t, f.Save(&buf))

	got, err := Load(&buf)
	require.NoError(t, err)

	// Stream loads copy; nothing stays attached.
	assert.False(t, got.ZeroCopy())
	assertSameIndex(t, f, got)

	// Tombstones survived the round trip.
	_, err = got.Reconstruct(4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlat_OpenZeroCopy(t *testing.T) {
	f := newTestIndex(t)
	path := snapshotPath(t, f)

	got, err := Open(path)
	require.NoError(t, err)
	defer got.Close()

	assert.True(t, got.ZeroCopy())
	assertSameIndex(t, f, got)

	results, err := got.Search([]float32{0.9, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), results[0].ID)

	// Searching never promotes.
	assert.True(t, got.ZeroCopy())
}

func TestFlat_OpenThenMutatePromotes(t *testing.T) {
	f := newTestIndex(t)
	path := snapshotPath(t, f)

	got, err := Open(path)
	require.NoError(t, err)
	defer got.Close()

	require.True(t, got.ZeroCopy())
	require.NoError(t, got.Add(5, []float32{9, 9}))

	// The first mutation detached the index from the file.
	assert.False(t, got.ZeroCopy())
	assert.Equal(t, 5, got.Len())

	// The promoted copy outlives the mapping.
	require.NoError(t, got.Close())
	results, err := got.Search([]float32{9, 9}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), results[0].ID)

	// The snapshot on disk is untouched.
	reread, err := Open(path)
	require.NoError(t, err)
	defer reread.Close()
	assert.Equal(t, 4, reread.Len())
}

func TestFlat_OpenRemoveStaysZeroCopy(t *testing.T) {
	f := newTestIndex(t)
	path := snapshotPath(t, f)

	got, err := Open(path)
	require.NoError(t, err)
	defer got.Close()

	// Tombstoning only touches the bitmap, not the attached vectors.
	require.NoError(t, got.Remove(1))
	assert.True(t, got.ZeroCopy())
	assert.Equal(t, 3, got.Len())
}

func TestFlat_CompressedRoundTrip(t *testing.T) {
	for _, ct := range []persistence.CompressionType{
		persistence.CompressionLZ4,
		persistence.CompressionZSTD,
	} {
		f, err := New(func(o *Options) { o.Dimension = 4 }, WithCompression(ct))
		require.NoError(t, err)
		for i := int64(0); i < 100; i++ {
			require.NoError(t, f.Add(i, []float32{float32(i), 0, 0, 1}))
		}

		path := snapshotPath(t, f)

		// Compressed snapshots load through the copy path even via Open.
		got, err := Open(path)
		require.NoError(t, err)
		assert.False(t, got.ZeroCopy())
		assertSameIndex(t, f, got)
		require.NoError(t, got.Close())

		// Stream load agrees.
		streamed, err := LoadFromFile(path)
		require.NoError(t, err)
		assertSameIndex(t, f, streamed)
	}
}

func TestFlat_CorruptedSnapshotRejected(t *testing.T) {
	f := newTestIndex(t)
	path := snapshotPath(t, f)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip a payload byte past the header.
	data[persistence.HeaderSize+9] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Open(path)
	require.Error(t, err)
	assert.True(t, persistence.IsChecksumMismatch(err))

	_, err = LoadFromFile(path)
	require.Error(t, err)
}

func TestFlat_TruncatedSnapshotRejected(t *testing.T) {
	f := newTestIndex(t)
	path := snapshotPath(t, f)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:persistence.HeaderSize-8], 0o644))

	_, err = Open(path)
	assert.Error(t, err)
}

func TestFlat_WrongMagicRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.cow")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0}, 128), 0o644))

	_, err := Open(path)
	assert.ErrorIs(t, err, persistence.ErrInvalidMagic)
}

func TestFlat_EmptyIndexRoundTrip(t *testing.T) {
	f, err := New(func(o *Options) { o.Dimension = 3 })
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Save(&buf))

	got, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, 3, got.Dimension())
}
