// Package checktest is the test-harness adapter for the allocation
// audit: it brackets an arbitrary body with snapshot-before /
// verify-after and turns a non-empty result into a test failure with
// an itemized report.
//
// The adapter is an external collaborator of the core. It consumes
// only Snapshot and Verify, and it is the layer responsible for
// presenting reports to humans — the core itself never formats or
// emits user-facing messages.
//
//	func TestMain(m *testing.M) {
//		check.Init()
//		os.Exit(m.Run())
//	}
//
//	func TestParserAllocations(t *testing.T) {
//		checktest.Verify(t, func() {
//			p := check.Alloc(64, 8)
//			// ... code under test ...
//			check.Free(p, 64, 8)
//		})
//	}
//
// Callers must not hold the reentrancy guard across the verification
// boundary; the body runs outside the guard by construction, and
// Verify panics if invoked with the guard active.
package checktest

import (
	"testing"

	"github.com/kolkov/alloccheck/check"
	"github.com/kolkov/alloccheck/event"
)

// Run executes fn between a snapshot and a verification and returns
// the result. The region passes when fn nets zero outstanding
// allocations and triggers no violations, regardless of intermediate
// churn.
func Run(fn func()) *event.Result {
	before := check.Snapshot()
	fn()
	return check.Verify(before)
}

// Verify runs fn like Run and fails tb with the itemized report when
// the result is non-empty.
func Verify(tb testing.TB, fn func()) {
	tb.Helper()
	if res := Run(fn); !res.Empty() {
		tb.Errorf("allocation audit failed:\n%s", res.Report())
	}
}

// VerifyFatal is Verify with Fatalf: the test stops at the failure
// point instead of running further assertions against a heap already
// known to be inconsistent.
func VerifyFatal(tb testing.TB, fn func()) {
	tb.Helper()
	if res := Run(fn); !res.Empty() {
		tb.Fatalf("allocation audit failed:\n%s", res.Report())
	}
}
