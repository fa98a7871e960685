//go:build !alloccheck_nozero

package shim

import "unsafe"

// zeroCheckEnabled reports whether this build scans zero-initializing
// allocations.
const zeroCheckEnabled = true

// scanZeroed scans the size bytes at ptr and returns the offset of
// the first nonzero byte, or clean=true if the region is all zero.
//
// The scan reads the region exactly once, before the pointer is
// handed to the caller, so a dirty byte is attributable to the
// delegate rather than to the host.
func scanZeroed(ptr, size uintptr) (offset uintptr, clean bool) {
	if size == 0 {
		return 0, true
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)
	for i, c := range buf {
		if c != 0 {
			return uintptr(i), false
		}
	}
	return 0, true
}
