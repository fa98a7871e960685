// Package check provides a memory-allocation auditing layer for test
// suites: every allocation routed through the shim is recorded as a
// structured event, and a snapshot/diff verifier asserts that a
// bounded region of execution left the heap consistent and leak-free.
//
// It gives regression protection against leaks, double frees, frees of
// unmanaged memory, and size/alignment inconsistencies, without
// adopting an external instrumentation tool.
//
// # Quick Start
//
//	func TestMain(m *testing.M) {
//		check.Init()
//		os.Exit(m.Run())
//	}
//
//	func TestNoLeaks(t *testing.T) {
//		checktest.Verify(t, func() {
//			p := check.Alloc(64, 8)
//			// ... exercise code under test ...
//			check.Free(p, 64, 8)
//		})
//	}
//
// Or without the harness adapter:
//
//	before := check.Snapshot()
//	p := check.Alloc(64, 8)
//	check.Free(p, 64, 8)
//	if res := check.Verify(before); !res.Empty() {
//		t.Fatal(res.Report())
//	}
//
// # API Overview
//
// The package provides functions for:
//   - Initialization: [Init] (exactly once per process)
//   - Audited allocation: [Alloc], [AllocZeroed], [Free], [Realloc]
//   - Verification: [Snapshot], [Verify], [DrainViolations]
//   - Runtime control: [Enable], [Disable], [SetLogger]
//
// # How It Works
//
// Every call enters the shim, which forwards the real operation to
// the system delegate unconditionally and records it in a
// process-wide concurrent ledger: an address-keyed map of live
// allocation records plus atomic running totals and a violation log.
// A strictly increasing sequence number totally orders all recorded
// events, so two snapshots delimit a window, and [Verify] reports
// every violation inside that window plus one Leak per allocation
// still live from it — per-allocation attribution, not an aggregate
// signal.
//
// The ledger's own structures allocate. A per-goroutine reentrancy
// guard keeps that internal allocation out of the tracking path:
// anything allocated while the guard is active passes straight to the
// delegate. The guard is per-goroutine, never global — a global flag
// would permanently disable tracking for every goroutine after the
// first internal allocation anywhere.
//
// Detected violations never block or alter the real memory operation.
// The underlying allocate/free/realloc always completes, so the host
// process behaves identically with and without the audit; violations
// surface only when verification is requested.
//
// # Capability Selection
//
// Capabilities are fixed per build, not dispatched at runtime:
//
//   - default: realloc-aware record identity and the sharded
//     hash-based record map
//   - alloccheck_norealloc: plain mutex map; realloc tracked as
//     free + fresh alloc
//   - alloccheck_nozero: the zero-initialization scan is compiled out
//   - the test-harness adapter is the separate checktest package;
//     importing it is the opt-in
//
// # Scope
//
// The audit detects accounting inconsistencies. It does not detect
// buffer overflows, use-after-free of data, or byte-level corruption
// beyond the zero-fill check; it does not track across processes and
// keeps no state beyond the process lifetime.
package check
