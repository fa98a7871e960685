//go:build !unix

package sysalloc

// System returns the platform default delegate. Without mmap the Go
// heap delegate stands in for the system allocator.
func System() Delegate {
	return NewHeap()
}
