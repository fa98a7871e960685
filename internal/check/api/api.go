// Package api holds the process-global audit engine behind the public
// check facade.
//
// A process has exactly one allocator, so the engine is deliberately
// modeled as process-wide state with one-time initialization and no
// teardown: Init wires delegate -> shim -> ledger -> verifier exactly
// once, and everything after that is synchronous calls into that one
// instance. The global is inherent to the problem domain, not an
// implementation shortcut.
package api

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kolkov/alloccheck/event"
	"github.com/kolkov/alloccheck/internal/check/ledger"
	"github.com/kolkov/alloccheck/internal/check/shim"
	"github.com/kolkov/alloccheck/internal/check/sysalloc"
	"github.com/kolkov/alloccheck/internal/check/verify"
)

// Global engine state. Written exactly once by Init, read-only
// afterwards; the shim and ledger handle their own concurrency.
var (
	// initialized flips exactly once. A second Init is a programmer
	// error and fatal: silently re-wiring the allocator mid-process
	// would corrupt the ledger rather than report a bug.
	initialized atomic.Bool

	globalShim   *shim.Shim
	globalDiffer *verify.Differ
)

// config collects Init options.
type config struct {
	delegate       sysalloc.Delegate
	logger         *zap.Logger
	filterCapacity uint
}

// Option configures Init.
type Option func(*config)

// WithDelegate overrides the system delegate. Used by tests that need
// a deterministic or intentionally misbehaving backing allocator; the
// default is the platform delegate from sysalloc.System().
func WithDelegate(d sysalloc.Delegate) Option {
	return func(c *config) {
		if d != nil {
			c.delegate = d
		}
	}
}

// WithLogger installs a structured diagnostic logger. The default is
// zap.NewNop(); the core emits nothing unless the host opts in.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) { c.logger = log }
}

// WithFilterCapacity sizes the ledger's freed-address history.
func WithFilterCapacity(capacity uint) Option {
	return func(c *config) { c.filterCapacity = capacity }
}

// Init installs the shim as the process's allocation entry point.
//
// Must run exactly once, before any tracked allocation. A second call
// panics. Not safe for concurrent calls: like the rest of one-time
// process setup it belongs at startup, before goroutines that
// allocate through the shim exist.
func Init(opts ...Option) {
	if !initialized.CompareAndSwap(false, true) {
		panic("alloccheck: Init called twice")
	}

	c := config{delegate: sysalloc.System()}
	for _, opt := range opts {
		opt(&c)
	}

	ledgerOpts := []ledger.Option{}
	if c.logger != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithLogger(c.logger))
	}
	if c.filterCapacity > 0 {
		ledgerOpts = append(ledgerOpts, ledger.WithFilterCapacity(c.filterCapacity))
	}

	l := ledger.New(ledgerOpts...)
	globalShim = shim.New(c.delegate, l)
	globalDiffer = verify.New(l)

	if c.logger != nil {
		c.logger.Info("alloccheck initialized")
	}
}

// Initialized reports whether Init has run.
func Initialized() bool {
	return initialized.Load()
}

// mustShim returns the global shim or panics: using the audit layer
// before Init is the same class of fatal programmer error as Init
// twice.
func mustShim() *shim.Shim {
	if globalShim == nil {
		panic("alloccheck: not initialized (call check.Init first)")
	}
	return globalShim
}

// Alloc allocates size bytes aligned to align through the audited
// path and returns the address, or 0 on exhaustion.
func Alloc(size, align uintptr) uintptr {
	return mustShim().Allocate(size, align)
}

// AllocZeroed is Alloc with zero-initialized contents, verified by
// the zero-check capability when compiled in.
func AllocZeroed(size, align uintptr) uintptr {
	return mustShim().AllocateZeroed(size, align)
}

// Free releases the block at ptr through the audited path. The free
// always reaches the real allocator, even when accounting disagrees
// with the supplied size or alignment.
func Free(ptr, size, align uintptr) {
	mustShim().Deallocate(ptr, size, align)
}

// Realloc resizes the block at ptr through the audited path and
// returns the new address, or 0 on failure (the original block stays
// valid and tracked).
func Realloc(ptr, oldSize, align, newSize uintptr) uintptr {
	return mustShim().Reallocate(ptr, oldSize, align, newSize)
}

// Snapshot returns an immutable summary of current ledger totals.
func Snapshot() event.Snapshot {
	if globalDiffer == nil {
		panic("alloccheck: not initialized (call check.Init first)")
	}
	return globalDiffer.Snapshot()
}

// Verify diffs before against the current ledger state. Panics if the
// reentrancy guard is active for the calling goroutine.
func Verify(before event.Snapshot) *event.Result {
	if globalDiffer == nil {
		panic("alloccheck: not initialized (call check.Init first)")
	}
	return globalDiffer.Verify(before)
}

// Enable turns recording on.
func Enable() {
	mustShim().Enable()
}

// Disable turns recording off. Allocation traffic still reaches the
// delegate; it is just not audited.
func Disable() {
	mustShim().Disable()
}

// Enabled reports whether recording is on.
func Enabled() bool {
	return mustShim().Enabled()
}

// SetLogger swaps the ledger's diagnostic logger at runtime.
func SetLogger(log *zap.Logger) {
	mustShim().Ledger().SetLogger(log)
}

// DrainViolations empties the ledger's violation log, returning what
// was in it. Intended for harnesses that isolate consecutive test
// bodies against violation bleed-through.
func DrainViolations() []event.Violation {
	return mustShim().Ledger().Drain()
}
