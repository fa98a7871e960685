//go:build unix

package sysalloc

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mapped is a Delegate backed by anonymous memory mappings.
//
// Every block lives in its own private mapping obtained with
// unix.Mmap and is returned to the kernel with unix.Munmap on free.
// Mappings are page-aligned; requests with larger alignment over-map
// and return an aligned address inside the mapping. The full mapping
// slice is retained in a registry keyed by the returned address so
// Munmap can be handed the exact original slice.
type Mapped struct {
	mu       sync.Mutex
	mappings map[uintptr][]byte
}

// NewMapped returns an empty mmap-backed delegate.
func NewMapped() *Mapped {
	return &Mapped{mappings: make(map[uintptr][]byte)}
}

// System returns the platform default delegate: anonymous mappings on
// unix builds.
func System() Delegate {
	return NewMapped()
}

// Allocate maps a fresh anonymous region and returns an address
// inside it satisfying align.
func (m *Mapped) Allocate(size, align uintptr) uintptr {
	if size == 0 {
		return 0
	}
	if align == 0 {
		align = 1
	}

	length := size
	pageSize := uintptr(unix.Getpagesize())
	if align > pageSize {
		// The mapping base is only page-aligned; over-map so an
		// address satisfying the larger alignment exists inside.
		length += align
	}

	buf, err := unix.Mmap(-1, 0, int(length),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		// Exhaustion is an ordinary allocation failure, not a
		// violation. Report it the way a real allocator does.
		return 0
	}

	addr := alignUp(uintptr(unsafe.Pointer(&buf[0])), align)

	m.mu.Lock()
	m.mappings[addr] = buf
	m.mu.Unlock()
	return addr
}

// AllocateZeroed is Allocate: anonymous mappings are zero-filled by
// the kernel.
func (m *Mapped) AllocateZeroed(size, align uintptr) uintptr {
	return m.Allocate(size, align)
}

// Deallocate unmaps the block's backing mapping. Unknown addresses
// are ignored (the audit layer has already flagged them; the delegate
// must not crash the host).
func (m *Mapped) Deallocate(ptr, _, _ uintptr) {
	m.mu.Lock()
	buf, ok := m.mappings[ptr]
	if ok {
		delete(m.mappings, ptr)
	}
	m.mu.Unlock()
	if ok {
		// Errors from Munmap are unreachable for a mapping we own;
		// there is also nobody to report them to mid-free.
		_ = unix.Munmap(buf)
	}
}

// Reallocate maps a new region, copies min(oldSize, newSize) bytes
// and unmaps the old region. Returns 0 on failure with the original
// mapping left intact.
func (m *Mapped) Reallocate(ptr, oldSize, align, newSize uintptr) uintptr {
	if ptr == 0 {
		return m.Allocate(newSize, align)
	}
	newPtr := m.Allocate(newSize, align)
	if newPtr == 0 {
		return 0
	}
	copyMemory(newPtr, ptr, min(oldSize, newSize))
	m.Deallocate(ptr, oldSize, align)
	return newPtr
}
