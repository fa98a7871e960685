package check

// Delegate is the real allocator underneath the shim. Implementations
// must be safe for concurrent use; a zero return from the allocating
// methods signals ordinary exhaustion.
//
// The platform default (anonymous mappings on unix, the Go heap
// elsewhere) is installed by Init unless WithDelegate overrides it.
type Delegate interface {
	// Allocate returns the address of a block of at least size
	// bytes aligned to align, or 0 on failure. Contents undefined.
	Allocate(size, align uintptr) uintptr

	// AllocateZeroed is Allocate with all bytes guaranteed zero.
	AllocateZeroed(size, align uintptr) uintptr

	// Deallocate releases a block previously returned by this
	// delegate. Size and alignment are advisory.
	Deallocate(ptr, size, align uintptr)

	// Reallocate resizes the block at ptr, possibly moving it, and
	// returns the new address, or 0 on failure with the original
	// block left valid.
	Reallocate(ptr, oldSize, align, newSize uintptr) uintptr
}
