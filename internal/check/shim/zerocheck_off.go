//go:build alloccheck_nozero

package shim

// zeroCheckEnabled reports whether this build scans zero-initializing
// allocations.
const zeroCheckEnabled = false

// scanZeroed is compiled out in this build: every region passes.
func scanZeroed(_, _ uintptr) (offset uintptr, clean bool) {
	return 0, true
}
