//go:build alloccheck_norealloc

package shim

import (
	"github.com/kolkov/alloccheck/event"
	"github.com/kolkov/alloccheck/internal/check/guard"
)

// Reallocate without realloc-aware tracking: the move is recorded as
// a validated free of the old region plus a fresh allocation at the
// new address. Record identity is not preserved in this build, so a
// block moved inside a verified window counts as a window allocation.
func (s *Shim) Reallocate(ptr, oldSize, align, newSize uintptr) uintptr {
	newPtr := s.delegate.Reallocate(ptr, oldSize, align, newSize)
	if newPtr == 0 || !s.enabled.Load() || guard.Active() {
		return newPtr
	}

	guard.Enter()
	defer guard.Exit()
	s.ledger.RecordFree(event.Region{Addr: ptr, Size: oldSize, Align: align})
	s.ledger.RecordAlloc(event.Region{Addr: newPtr, Size: newSize, Align: align}, event.Alloc)
	return newPtr
}
