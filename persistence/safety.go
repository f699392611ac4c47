// Platform and alignment checks guarding the unsafe slice reinterpretation
// this package relies on for zero-copy reads and raw-slice writes.
package persistence

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/hupe1980/cowvec"
)

var (
	// ErrUnsupportedArchitecture is returned when running on unsupported CPU architecture
	ErrUnsupportedArchitecture = errors.New("unsupported architecture: only amd64 and arm64 are supported")

	// ErrBigEndian is returned when running on big-endian systems
	ErrBigEndian = errors.New("big-endian systems are not supported")

	// ErrUnalignedAccess is returned when attempting unaligned memory access
	ErrUnalignedAccess = errors.New("unaligned memory access detected")
)

// init performs startup validation of platform requirements
func init() {
	if err := validatePlatform(); err != nil {
		panic(fmt.Sprintf("cowvec/persistence: %v", err))
	}
}

// validatePlatform checks if the current platform supports unsafe operations
func validatePlatform() error {
	arch := runtime.GOARCH
	if arch != "amd64" && arch != "arm64" {
		return fmt.Errorf("%w: %s", ErrUnsupportedArchitecture, arch)
	}

	// On-disk data is little-endian and reinterpreted in place.
	if !isLittleEndian() {
		return ErrBigEndian
	}

	return nil
}

// isLittleEndian checks if the system is little-endian
func isLittleEndian() bool {
	var test uint16 = 0x0001
	firstByte := *(*byte)(unsafe.Pointer(&test))
	return firstByte == 1
}

// sizeOf returns the in-memory (and on-disk) size of T in bytes.
func sizeOf[T cowvec.Scalar]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// viewSlice reinterprets b as a []T of count elements without copying.
// The returned slice aliases b; it fails on misaligned or short input.
func viewSlice[T cowvec.Scalar](b []byte, count int) ([]T, error) {
	if count == 0 {
		return []T{}, nil
	}
	var zero T
	if len(b) < count*sizeOf[T]() {
		return nil, fmt.Errorf("persistence: buffer too small for %d elements (%d bytes)", count, len(b))
	}
	ptr := uintptr(unsafe.Pointer(&b[0]))
	if align := unsafe.Alignof(zero); ptr%align != 0 {
		return nil, fmt.Errorf("%w: buffer at address 0x%x", ErrUnalignedAccess, ptr)
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), count), nil
}

// sliceBytes reinterprets s as its raw little-endian byte representation
// without copying. It fails on misaligned storage.
func sliceBytes[T cowvec.Scalar](s []T) ([]byte, error) {
	if len(s) == 0 {
		return nil, nil
	}
	var zero T
	ptr := uintptr(unsafe.Pointer(&s[0]))
	if align := unsafe.Alignof(zero); ptr%align != 0 {
		return nil, fmt.Errorf("%w: slice at address 0x%x", ErrUnalignedAccess, ptr)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*sizeOf[T]()), nil
}

// PlatformInfo returns information about the current platform
func PlatformInfo() string {
	endian := "little-endian"
	if !isLittleEndian() {
		endian = "big-endian"
	}
	return fmt.Sprintf("GOOS=%s GOARCH=%s endianness=%s", runtime.GOOS, runtime.GOARCH, endian)
}
