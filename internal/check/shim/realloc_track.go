//go:build !alloccheck_norealloc

package shim

import (
	"github.com/kolkov/alloccheck/event"
	"github.com/kolkov/alloccheck/internal/check/guard"
)

// Reallocate forwards a reallocation to the delegate and updates the
// record at the old address, preserving record identity across the
// move (the verifier sees one allocation, relocated, not a free plus
// a fresh allocation).
//
// A failed delegate reallocation (zero return) leaves the original
// record untouched, matching the guarantee that a failed realloc
// leaves the original block valid. The caller-supplied old size is
// validated inside the ledger; a mismatch is a SizeMismatch violation
// but the update still proceeds, because the real reallocation did.
func (s *Shim) Reallocate(ptr, oldSize, align, newSize uintptr) uintptr {
	newPtr := s.delegate.Reallocate(ptr, oldSize, align, newSize)
	if newPtr == 0 || !s.enabled.Load() || guard.Active() {
		return newPtr
	}

	guard.Enter()
	defer guard.Exit()
	s.ledger.RecordRealloc(event.Region{Addr: ptr, Size: oldSize, Align: align}, newPtr, newSize)
	return newPtr
}
