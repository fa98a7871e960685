// Package guard implements the per-goroutine reentrancy guard that
// keeps the ledger's own bookkeeping out of the tracking path.
//
// The ledger must allocate (its record map grows, its violation log
// appends). If those internal allocations re-entered the shim they
// would recurse into the ledger's own locks. The shim therefore wraps
// every ledger call in Enter/Exit, and skips recording entirely when
// the guard is already active for the calling goroutine.
//
// The guard is strictly per-goroutine, never global. A global flag
// would permanently disable tracking for every goroutine the moment
// any one goroutine performed an internal allocation, and would turn
// concurrent bookkeeping on independent goroutines into false
// bypasses. Depth counters support nesting so that bookkeeping which
// itself calls guarded helpers stays balanced.
//
// Thread safety: the depth map is a sync.Map keyed by goroutine ID.
// Each counter is only ever mutated by its owning goroutine, so the
// counter itself needs no atomics; the map handles concurrent
// insertion and deletion across goroutines.
package guard

import "sync"

// depths maps goroutine ID -> *depth for every goroutine currently
// inside guarded bookkeeping. Entries are removed when the depth
// returns to zero, so the map only holds goroutines that are mid-call
// and never grows with the lifetime of the process.
var depths sync.Map

// depth is the nesting counter for one goroutine. Only the owning
// goroutine reads or writes n, so a plain int is safe.
type depth struct {
	n int
}

// Enter marks the current goroutine as inside ledger bookkeeping.
// Nested calls stack; every Enter must be paired with exactly one
// Exit, on every exit path (use defer).
func Enter() {
	gid := goroutineID()
	if v, ok := depths.Load(gid); ok {
		v.(*depth).n++
		return
	}
	depths.Store(gid, &depth{n: 1})
}

// Exit unwinds one level of guard nesting for the current goroutine.
// The depth entry is dropped when it reaches zero so dead goroutines
// leave nothing behind.
//
// Exit without a matching Enter panics: an unbalanced guard would
// silently stop or corrupt tracking, which is exactly the class of
// bug this library exists to catch.
func Exit() {
	gid := goroutineID()
	v, ok := depths.Load(gid)
	if !ok {
		panic("alloccheck: guard exit without matching enter")
	}
	d := v.(*depth)
	d.n--
	if d.n == 0 {
		depths.Delete(gid)
	}
}

// Active reports whether the current goroutine is inside guarded
// bookkeeping. The shim consults this before recording; callers that
// allocate while the guard is active bypass tracking and go straight
// to the system delegate.
func Active() bool {
	v, ok := depths.Load(goroutineID())
	return ok && v.(*depth).n > 0
}
