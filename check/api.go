// Package check provides the public API for the allocation audit.
//
// See doc.go for detailed documentation and examples.
package check

import (
	"go.uber.org/zap"

	"github.com/kolkov/alloccheck/event"
	internal "github.com/kolkov/alloccheck/internal/check/api"
)

// Option configures Init.
type Option = internal.Option

// WithDelegate overrides the backing allocator the shim forwards to.
// The default is the platform system delegate. Intended for tests
// that need deterministic or intentionally misbehaving backing memory
// (for example, to exercise the zero-check extension).
func WithDelegate(d Delegate) Option {
	return internal.WithDelegate(d)
}

// WithLogger installs a structured logger for the core's diagnostics.
// Without it the core logs nothing and emits no user-facing text.
func WithLogger(log *zap.Logger) Option {
	return internal.WithLogger(log)
}

// WithFilterCapacity sizes the freed-address history used to tell a
// double free from a free of unmanaged memory.
func WithFilterCapacity(capacity uint) Option {
	return internal.WithFilterCapacity(capacity)
}

// Init installs the audit shim as the process's allocation entry
// point.
//
// Init must run exactly once, before any tracked allocation, typically
// at the top of main() or TestMain():
//
//	func TestMain(m *testing.M) {
//		check.Init()
//		os.Exit(m.Run())
//	}
//
// Calling Init twice is a fatal programmer error and panics:
// re-wiring the process allocator mid-run would silently corrupt the
// ledger rather than report a bug.
func Init(opts ...Option) {
	internal.Init(opts...)
}

// Alloc allocates size bytes aligned to align through the audited
// path and returns the block's address, or 0 on exhaustion (which is
// an ordinary allocation failure, never a violation).
//
// Example (manual instrumentation of code under test):
//
//	p := check.Alloc(64, 8)
//	defer check.Free(p, 64, 8)
func Alloc(size, align uintptr) uintptr {
	return internal.Alloc(size, align)
}

// AllocZeroed allocates size bytes aligned to align with all bytes
// zero. In default builds the returned region is scanned before it
// reaches the caller; a nonzero byte records one NonZeroedMemory
// violation, but the pointer is handed out regardless.
func AllocZeroed(size, align uintptr) uintptr {
	return internal.AllocZeroed(size, align)
}

// Free releases the block at ptr through the audited path.
//
// The address is validated against the ledger before the real free
// runs: an unknown address records InvalidFree (or DoubleFree when
// the address was already released once), a size or alignment that
// disagrees with the allocation records SizeMismatch or
// AlignmentMismatch. In every case the real free is still forwarded —
// the audit never leaks or double-frees real memory by policy.
func Free(ptr, size, align uintptr) {
	internal.Free(ptr, size, align)
}

// Realloc resizes the block at ptr from oldSize to newSize, possibly
// moving it, and returns the new address. On failure it returns 0 and
// the original block remains valid and tracked.
//
// In default builds the ledger preserves record identity across the
// move, so a verified region that merely reallocates a pre-existing
// block does not report a leak for it.
func Realloc(ptr, oldSize, align, newSize uintptr) uintptr {
	return internal.Realloc(ptr, oldSize, align, newSize)
}

// Snapshot returns an immutable point-in-time summary of ledger
// totals (sequence number, outstanding count, outstanding bytes).
func Snapshot() event.Snapshot {
	return internal.Snapshot()
}

// Verify diffs before against the current ledger state and returns a
// result carrying the count/byte deltas and every violation recorded
// in the window, including one Leak per allocation still live from
// inside the window.
//
// Verify panics when called while the reentrancy guard is active for
// the calling goroutine; that can only happen from inside ledger
// bookkeeping and would verify a ledger mid-mutation.
func Verify(before event.Snapshot) *event.Result {
	return internal.Verify(before)
}

// Enable turns recording on.
func Enable() {
	internal.Enable()
}

// Disable turns recording off. Allocations still reach the real
// allocator untouched; they are just not audited.
func Disable() {
	internal.Disable()
}

// Enabled reports whether recording is active.
func Enabled() bool {
	return internal.Enabled()
}

// SetLogger swaps the core's diagnostic logger at runtime. Nil
// restores the silent default.
func SetLogger(log *zap.Logger) {
	internal.SetLogger(log)
}

// DrainViolations empties the violation log, returning its contents.
// Harnesses use it to isolate consecutive test bodies.
func DrainViolations() []event.Violation {
	return internal.DrainViolations()
}
