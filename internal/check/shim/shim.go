// Package shim implements the allocator interception path.
//
// The shim stands in for the process's allocation entry point. Every
// call forwards to the system delegate unconditionally; recording in
// the ledger happens only when the shim is enabled and the reentrancy
// guard is inactive for the calling goroutine. The real pointer (or
// the real free) is never withheld because of an accounting problem:
// detected violations are logged and surfaced later, at verification
// time, so the host's memory behavior is unaffected by the audit.
//
// This is the CRITICAL HOT PATH: it runs on every tracked allocation
// in the process, including ones made inside host locks or during
// error formatting. Nothing here blocks beyond a short-held shard or
// log mutex, and every ledger call is bracketed by the guard so the
// ledger's own allocations bypass tracking instead of recursing.
package shim

import (
	"sync/atomic"

	"github.com/kolkov/alloccheck/event"
	"github.com/kolkov/alloccheck/internal/check/guard"
	"github.com/kolkov/alloccheck/internal/check/ledger"
	"github.com/kolkov/alloccheck/internal/check/sysalloc"
)

// Shim wires a system delegate to a ledger behind the reentrancy
// guard. All methods are safe for concurrent use from an arbitrary
// number of goroutines.
type Shim struct {
	// enabled gates recording. When false the shim is a pure
	// pass-through to the delegate (fast atomic load up front).
	enabled atomic.Bool

	delegate sysalloc.Delegate
	ledger   *ledger.Ledger
}

// New returns an enabled shim over the given delegate and ledger.
func New(delegate sysalloc.Delegate, l *ledger.Ledger) *Shim {
	s := &Shim{delegate: delegate, ledger: l}
	s.enabled.Store(true)
	return s
}

// Enable turns recording on.
func (s *Shim) Enable() { s.enabled.Store(true) }

// Disable turns recording off. Allocation traffic still flows to the
// delegate untouched.
func (s *Shim) Disable() { s.enabled.Store(false) }

// Enabled reports whether recording is on.
func (s *Shim) Enabled() bool { return s.enabled.Load() }

// Ledger returns the shim's ledger, for the verifier.
func (s *Shim) Ledger() *ledger.Ledger { return s.ledger }

// Allocate forwards an allocation to the delegate and, on success,
// records it. The pointer is returned regardless of recording
// outcome; a zero return is ordinary exhaustion and is not recorded.
func (s *Shim) Allocate(size, align uintptr) uintptr {
	ptr := s.delegate.Allocate(size, align)
	if ptr == 0 || !s.enabled.Load() || guard.Active() {
		return ptr
	}

	guard.Enter()
	defer guard.Exit()
	s.ledger.RecordAlloc(event.Region{Addr: ptr, Size: size, Align: align}, event.Alloc)
	return ptr
}

// AllocateZeroed forwards a zero-initializing allocation and records
// it. With the zero-check capability compiled in (default build) the
// returned region is scanned before it reaches the caller; a nonzero
// byte raises one NonZeroedMemory violation. Purely diagnostic: the
// pointer is handed out either way, since denying memory is worse
// than flagging an anomaly.
func (s *Shim) AllocateZeroed(size, align uintptr) uintptr {
	ptr := s.delegate.AllocateZeroed(size, align)
	if ptr == 0 || !s.enabled.Load() || guard.Active() {
		return ptr
	}

	guard.Enter()
	defer guard.Exit()
	r := event.Region{Addr: ptr, Size: size, Align: align}
	s.ledger.RecordAlloc(r, event.AllocZeroed)
	if offset, clean := scanZeroed(ptr, size); !clean {
		s.ledger.NoteViolation(event.NonZeroedMemory, r, offset)
	}
	return ptr
}

// Deallocate validates the free against the ledger first (so the
// accounting check runs against live state), then forwards the real
// free to the delegate. The free is always forwarded, even when
// accounting found it inconsistent: the memory manager owns the
// block's fate, the audit only observes.
func (s *Shim) Deallocate(ptr, size, align uintptr) {
	if ptr != 0 && s.enabled.Load() && !guard.Active() {
		s.recordFree(event.Region{Addr: ptr, Size: size, Align: align})
	}
	s.delegate.Deallocate(ptr, size, align)
}

// recordFree brackets the ledger call with the guard, released on
// every exit path.
func (s *Shim) recordFree(r event.Region) {
	guard.Enter()
	defer guard.Exit()
	s.ledger.RecordFree(r)
}
