// Package cowvec provides copy-on-write, buffer-backed vectors for
// zero-copy deserialization of large numeric arrays.
//
// A Vector either aliases foreign read-only memory (typically a range
// inside a memory-mapped index file) or holds a normally allocated,
// fully mutable slice. Deserializers attach Vectors directly to mapped
// file contents via the persistence package, so loading a multi-gigabyte
// index copies none of its payload. Read-only use stays zero-copy
// forever; the first mutation transparently promotes the Vector to an
// owned copy.
//
// # Quick Start
//
// Zero-copy load of a flat index:
//
//	idx, _ := flat.Open("index.cow")
//	defer idx.Close()
//
//	results, _ := idx.Search(query, 10)
//
// Direct use of the container:
//
//	var v cowvec.Vector[float32]
//	_ = v.Attach(view)      // borrow mapped memory, no copy
//	x, _ := v.At(2)         // reads never copy
//	v.PushBack(1.5)         // first mutation promotes to an owned copy
//
// # Ownership
//
// Attached memory is borrowed: whoever supplied it (an mmap.Mapping,
// a decompressed snapshot buffer) must keep it valid while the Vector
// stays attached. The Vector never frees foreign memory, and promotion
// or Clear drops the reference without touching it.
package cowvec
