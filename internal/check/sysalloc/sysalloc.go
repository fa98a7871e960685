// Package sysalloc provides the system delegate: the real allocator
// underneath the auditing shim.
//
// The delegate is a pass-through leaf with no auditing logic. The shim
// forwards every allocate/free/realloc to it unconditionally, even
// when accounting found the request inconsistent, so the host
// process's memory behavior is never altered by the audit.
//
// Two delegates exist:
//
//   - [Heap]: backed by the Go heap. Blocks are carved from ordinary
//     byte slices pinned in an internal registry until deallocated.
//     Always available; used on platforms without mmap and as the
//     deterministic delegate in tests.
//
//   - the mmap delegate (unix builds, see system_unix.go): pages
//     mapped anonymously via golang.org/x/sys, unmapped on free.
//
// [System] returns the platform default.
package sysalloc

import (
	"sync"
	"unsafe"
)

// Delegate is the allocation entry point the shim stands in front of.
//
// All methods are synchronous and safe for concurrent use. A zero
// return from Allocate/AllocateZeroed/Reallocate signals exhaustion
// (or an unsatisfiable request); that is an ordinary allocation
// failure propagated to the caller, never a violation.
type Delegate interface {
	// Allocate returns the address of a block of at least size
	// bytes aligned to align, or 0 on failure. Contents undefined.
	Allocate(size, align uintptr) uintptr

	// AllocateZeroed is Allocate with all bytes guaranteed zero.
	AllocateZeroed(size, align uintptr) uintptr

	// Deallocate releases a block previously returned by this
	// delegate. Deallocation never fails at the memory-manager
	// level; size and align are advisory.
	Deallocate(ptr, size, align uintptr)

	// Reallocate resizes the block at ptr from oldSize to newSize,
	// possibly moving it, and returns the new address. On failure it
	// returns 0 and the original block remains valid.
	Reallocate(ptr, oldSize, align, newSize uintptr) uintptr
}

// Heap is a Delegate backed by the Go heap.
//
// Each allocation over-sizes a byte slice by the requested alignment,
// returns an aligned address inside it, and pins the backing slice in
// a registry keyed by the returned address. Deallocate drops the pin
// and lets the garbage collector reclaim the memory.
type Heap struct {
	mu     sync.Mutex
	pinned map[uintptr][]byte
}

// NewHeap returns an empty Go-heap delegate.
func NewHeap() *Heap {
	return &Heap{pinned: make(map[uintptr][]byte)}
}

// Allocate carves an aligned block out of a fresh byte slice.
func (h *Heap) Allocate(size, align uintptr) uintptr {
	if size == 0 {
		return 0
	}
	if align == 0 {
		align = 1
	}

	// Over-allocate so an aligned address always exists inside the
	// slice, then round the base up.
	buf := make([]byte, size+align-1)
	base := uintptr(unsafe.Pointer(&buf[0]))
	addr := alignUp(base, align)

	h.mu.Lock()
	h.pinned[addr] = buf
	h.mu.Unlock()
	return addr
}

// AllocateZeroed returns a zero-filled aligned block. Fresh Go slices
// are already zeroed, so this is Allocate.
func (h *Heap) AllocateZeroed(size, align uintptr) uintptr {
	return h.Allocate(size, align)
}

// Deallocate unpins the backing slice. Unknown addresses are ignored:
// the real memory manager tolerates nothing, but the audit layer has
// already classified such a free as a violation before forwarding it,
// and the delegate must not crash the host on its behalf.
func (h *Heap) Deallocate(ptr, _, _ uintptr) {
	h.mu.Lock()
	delete(h.pinned, ptr)
	h.mu.Unlock()
}

// Reallocate allocates a new block, copies min(oldSize, newSize)
// bytes, and releases the old block. Returns 0 (leaving the original
// block valid) when the new allocation cannot be satisfied.
func (h *Heap) Reallocate(ptr, oldSize, align, newSize uintptr) uintptr {
	if ptr == 0 {
		return h.Allocate(newSize, align)
	}
	newPtr := h.Allocate(newSize, align)
	if newPtr == 0 {
		return 0
	}
	copyMemory(newPtr, ptr, min(oldSize, newSize))
	h.Deallocate(ptr, oldSize, align)
	return newPtr
}

// alignUp rounds addr up to the nearest multiple of align (a power of
// two).
func alignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}

// copyMemory copies size bytes between raw addresses.
func copyMemory(dst, src, size uintptr) {
	if size == 0 {
		return
	}
	dstSlice := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)
	srcSlice := unsafe.Slice((*byte)(unsafe.Pointer(src)), size)
	copy(dstSlice, srcSlice)
}
