// Package event defines the data model for the allocation audit.
//
// Every allocation tracked by the shim is described by a [Region]
// (address, requested size, alignment) and a [Kind] (plain or
// zero-initialized). Inconsistencies detected by the ledger or the
// verifier are reported as [Violation] values, and the verifier
// consumes immutable [Snapshot] values and produces a [Result].
//
// The package is a leaf: it holds plain data and formatting only, no
// bookkeeping logic and no global state. All types are safe to copy.
package event

import "fmt"

// Region describes a single allocated span of memory as requested by
// the caller: base address, requested size in bytes, and alignment.
//
// Region is a value type. Two regions compare equal when address, size
// and alignment are all equal.
type Region struct {
	// Addr is the base address of the allocation.
	Addr uintptr

	// Size is the requested size in bytes.
	Size uintptr

	// Align is the requested alignment in bytes (a power of two).
	Align uintptr
}

// End returns the exclusive end address of the region.
//
// The addition saturates instead of wrapping so that a corrupt size
// near the top of the address space cannot make End() compare below
// Addr and confuse overlap checks.
func (r Region) End() uintptr {
	end := r.Addr + r.Size
	if end < r.Addr {
		return ^uintptr(0)
	}
	return end
}

// Overlaps reports whether other's base address falls inside this
// region's span [Addr, End).
func (r Region) Overlaps(other Region) bool {
	return r.Addr <= other.Addr && other.Addr < r.End()
}

// SameSpan reports whether both regions cover the same address range,
// ignoring alignment.
func (r Region) SameSpan(other Region) bool {
	return r.Addr == other.Addr && r.Size == other.Size
}

// Aligned reports whether the base address satisfies the region's own
// alignment. Align zero or one always passes.
func (r Region) Aligned() bool {
	if r.Align <= 1 {
		return true
	}
	return r.Addr%r.Align == 0
}

// String renders the region as "0xSTART-0xEND (size: N, align: M)".
// Used in violation reports only, never on the hot path.
func (r Region) String() string {
	return fmt.Sprintf("0x%x-0x%x (size: %d, align: %d)", r.Addr, r.End(), r.Size, r.Align)
}

// Kind classifies how a region was allocated.
type Kind uint8

const (
	// Alloc is a plain allocation with undefined contents.
	Alloc Kind = iota

	// AllocZeroed is a zero-initializing allocation. The zero-check
	// capability scans these regions before they reach the caller.
	AllocZeroed
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case Alloc:
		return "alloc"
	case AllocZeroed:
		return "alloc-zeroed"
	default:
		return "unknown"
	}
}
