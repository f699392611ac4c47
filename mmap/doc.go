// Package mmap provides read-only memory-mapped file access, the
// foreign-memory supplier for zero-copy vector attachment.
//
// # Usage
//
//	m, err := mmap.Open("index.cow")
//	if err != nil { ... }
//	defer m.Close()
//
//	// Zero-copy access to file contents
//	data := m.Bytes()
//
//	// View into a specific section
//	region, _ := m.Region(offset, size)
//
//	// Kernel hints for the expected access pattern
//	m.Advise(mmap.AccessSequential)
//
// # Lifetime
//
// Bytes and Region slices alias the mapped file and are valid only
// until Close. Vectors attached to them (see the persistence package)
// inherit that lifetime; the index owning the mapping must keep it open
// for as long as any attached vector is in use. After Close, Bytes
// returns nil.
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with madvise(2) access hints
//   - Windows: CreateFileMapping/MapViewOfFile (hints are a no-op)
package mmap
