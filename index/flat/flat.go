// Package flat provides a brute-force vector index whose storage is
// copy-on-write: loaded snapshots stay attached to their source bytes
// (a memory-mapped file or a decompressed buffer) until the first
// mutation.
package flat

import (
	"container/heap"
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/cowvec"
	"github.com/hupe1980/cowvec/mmap"
	"github.com/hupe1980/cowvec/persistence"
)

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all adds and searches.
	Dimension int

	// Compression selects the snapshot body compression. Compressed
	// snapshots trade zero-copy loading for smaller files.
	Compression persistence.CompressionType

	// Logger receives load/save/search events. Defaults to a noop logger.
	Logger *cowvec.Logger
}

// WithCompression sets the snapshot compression type.
func WithCompression(ct persistence.CompressionType) func(o *Options) {
	return func(o *Options) {
		o.Compression = ct
	}
}

// WithLogger sets the logger.
func WithLogger(l *cowvec.Logger) func(o *Options) {
	return func(o *Options) {
		o.Logger = l
	}
}

// Result is a single search hit.
type Result struct {
	ID       int64
	Distance float32 // squared L2
}

// Flat is a brute-force L2 index. Vectors are stored as one contiguous
// row-major cowvec.Vector, IDs in a parallel vector, deletions as
// roaring tombstones.
//
// An index loaded with Open keeps its vectors attached to the mapped
// snapshot; searches read the file pages directly. The first Add or
// other mutation promotes the storage to an owned copy. Writes are
// serialized by an internal mutex; reads take it shared.
type Flat struct {
	mu      sync.RWMutex
	opts    Options
	vectors cowvec.Vector[float32] // row-major: vectors[pos*dim : (pos+1)*dim]
	ids     cowvec.Vector[int64]
	deleted *roaring.Bitmap  // positions, not IDs
	byID    map[int64]uint32 // ID -> position
	mapping *mmap.Mapping    // non-nil while backed by a mapped snapshot
	logger  *cowvec.Logger
}

// New creates an empty flat index. Dimension is required.
func New(optFns ...func(o *Options)) (*Flat, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: opts.Dimension}
	}
	if opts.Logger == nil {
		opts.Logger = cowvec.NoopLogger()
	}
	return &Flat{
		opts:    opts,
		deleted: roaring.New(),
		byID:    make(map[int64]uint32),
		logger:  opts.Logger,
	}, nil
}

// Dimension returns the vector dimensionality.
func (f *Flat) Dimension() int { return f.opts.Dimension }

// Len returns the number of live (non-deleted) vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ids.Len() - int(f.deleted.GetCardinality())
}

// ZeroCopy reports whether the index still reads vectors straight out
// of its loaded snapshot.
func (f *Flat) ZeroCopy() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.vectors.Attached()
}

// Add appends a vector under id. Adding to a snapshot-backed index
// promotes the storage to an owned copy first.
func (f *Flat) Add(id int64, vec []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(id, vec)
}

// AddBatch appends several vectors at once. It stops at the first
// failure; prior vectors stay added.
func (f *Flat) AddBatch(ids []int64, vecs [][]float32) error {
	if len(ids) != len(vecs) {
		return ErrLengthMismatch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range ids {
		if err := f.addLocked(id, vecs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flat) addLocked(id int64, vec []float32) error {
	if len(vec) != f.opts.Dimension {
		return &ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(vec)}
	}
	if _, ok := f.byID[id]; ok {
		return ErrDuplicateID
	}
	pos := uint32(f.ids.Len())
	f.vectors.Append(vec...)
	f.ids.PushBack(id)
	f.byID[id] = pos
	return nil
}

// Remove tombstones id. The vector data stays in place (and, for
// snapshot-backed indexes, stays attached); the position is dropped
// from search results and the tombstone is persisted by Save.
func (f *Flat) Remove(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	pos, ok := f.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(f.byID, id)
	f.deleted.Add(pos)
	f.logger.LogRemove(context.Background(), id, nil)
	return nil
}

// Reconstruct returns a copy of the vector stored under id.
func (f *Flat) Reconstruct(id int64) ([]float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	pos, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	dim := f.opts.Dimension
	row := f.vectors.Data()[int(pos)*dim : (int(pos)+1)*dim]
	out := make([]float32, dim)
	copy(out, row)
	return out, nil
}

// Search returns the k nearest neighbors of query by squared L2
// distance, nearest first. Fewer than k results are returned when the
// index holds fewer live vectors.
func (f *Flat) Search(query []float32, k int) ([]Result, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.searchLocked(query, k)
}

// SearchBatch runs one search per query concurrently and returns the
// results in query order.
func (f *Flat) SearchBatch(ctx context.Context, queries [][]float32, k int) ([][]Result, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	results := make([][]Result, len(queries))
	g, _ := errgroup.WithContext(ctx)
	for qi, q := range queries {
		qi, q := qi, q
		g.Go(func() error {
			r, err := f.searchLocked(q, k)
			if err != nil {
				return err
			}
			results[qi] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.logger.LogSearch(ctx, k, 0, err)
		return nil, err
	}
	return results, nil
}

func (f *Flat) searchLocked(query []float32, k int) ([]Result, error) {
	if len(query) != f.opts.Dimension {
		return nil, &ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(query)}
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}

	dim := f.opts.Dimension
	data := f.vectors.Data()
	idData := f.ids.Data()

	// Max-heap of the k best candidates seen so far.
	h := make(resultHeap, 0, k)
	for pos := 0; pos < len(idData); pos++ {
		if f.deleted.Contains(uint32(pos)) {
			continue
		}
		d := l2Squared(query, data[pos*dim:(pos+1)*dim])
		if len(h) < k {
			heap.Push(&h, Result{ID: idData[pos], Distance: d})
		} else if d < h[0].Distance {
			h[0] = Result{ID: idData[pos], Distance: d}
			heap.Fix(&h, 0)
		}
	}

	// Pop yields worst-first; reverse into nearest-first order.
	out := make([]Result, len(h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Result)
	}
	return out, nil
}

// Close releases the snapshot mapping, if any. The index must not be
// used for zero-copy reads afterwards; promoted (owned) indexes are
// unaffected.
func (f *Flat) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.mapping == nil {
		return nil
	}
	// Attached vectors would dangle once the mapping is gone.
	if f.vectors.Attached() {
		f.vectors.Clear()
	}
	if f.ids.Attached() {
		f.ids.Clear()
	}
	err := f.mapping.Close()
	f.mapping = nil
	return err
}

func l2Squared(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// resultHeap is a max-heap on Distance, so the worst candidate is
// always at the root.
type resultHeap []Result

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
