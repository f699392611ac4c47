package flat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Flat {
	t.Helper()
	f, err := New(func(o *Options) { o.Dimension = 2 })
	require.NoError(t, err)

	require.NoError(t, f.Add(1, []float32{0, 0}))
	require.NoError(t, f.Add(2, []float32{1, 0}))
	require.NoError(t, f.Add(3, []float32{0, 3}))
	require.NoError(t, f.Add(4, []float32{5, 5}))
	return f
}

func TestNew_RequiresDimension(t *testing.T) {
	_, err := New()
	require.Error(t, err)

	var dimErr *ErrInvalidDimension
	assert.ErrorAs(t, err, &dimErr)
}

func TestFlat_AddAndSearch(t *testing.T) {
	f := newTestIndex(t)

	assert.Equal(t, 4, f.Len())

	results, err := f.Search([]float32{0.9, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].ID)
	assert.Equal(t, int64(1), results[1].ID)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestFlat_SearchKLargerThanIndex(t *testing.T) {
	f := newTestIndex(t)

	results, err := f.Search([]float32{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 4)

	_, err = f.Search([]float32{0, 0}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestFlat_SearchDimensionMismatch(t *testing.T) {
	f := newTestIndex(t)

	_, err := f.Search([]float32{1, 2, 3}, 1)
	var dimErr *ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Actual)
}

func TestFlat_AddDuplicateID(t *testing.T) {
	f := newTestIndex(t)
	err := f.Add(1, []float32{9, 9})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestFlat_Remove(t *testing.T) {
	f := newTestIndex(t)

	require.NoError(t, f.Remove(2))
	assert.Equal(t, 3, f.Len())

	results, err := f.Search([]float32{0.9, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)

	assert.ErrorIs(t, f.Remove(2), ErrNotFound)
	assert.ErrorIs(t, f.Remove(99), ErrNotFound)
}

func TestFlat_Reconstruct(t *testing.T) {
	f := newTestIndex(t)

	vec, err := f.Reconstruct(3)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 3}, vec)

	// The copy is detached from index storage.
	vec[0] = 42
	again, err := f.Reconstruct(3)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 3}, again)

	_, err = f.Reconstruct(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlat_AddBatch(t *testing.T) {
	f, err := New(func(o *Options) { o.Dimension = 2 })
	require.NoError(t, err)

	require.NoError(t, f.AddBatch(
		[]int64{10, 11},
		[][]float32{{1, 1}, {2, 2}},
	))
	assert.Equal(t, 2, f.Len())

	assert.ErrorIs(t, f.AddBatch([]int64{1}, nil), ErrLengthMismatch)
}

func TestFlat_SearchBatch(t *testing.T) {
	f := newTestIndex(t)

	queries := [][]float32{{0.9, 0}, {0, 2.9}, {4.9, 4.9}}
	results, err := f.SearchBatch(context.Background(), queries, 1)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, int64(2), results[0][0].ID)
	assert.Equal(t, int64(3), results[1][0].ID)
	assert.Equal(t, int64(4), results[2][0].ID)
}

func TestFlat_SearchBatch_PropagatesError(t *testing.T) {
	f := newTestIndex(t)

	_, err := f.SearchBatch(context.Background(), [][]float32{{0, 0}, {1, 2, 3}}, 1)
	var dimErr *ErrDimensionMismatch
	assert.ErrorAs(t, err, &dimErr)
}
