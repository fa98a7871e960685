package verify

import (
	"testing"

	"github.com/kolkov/alloccheck/event"
	"github.com/kolkov/alloccheck/internal/check/guard"
	"github.com/kolkov/alloccheck/internal/check/ledger"
)

func region(addr, size, align uintptr) event.Region {
	return event.Region{Addr: addr, Size: size, Align: align}
}

// TestVerifyBalanced tests that a region allocating N and freeing all
// N passes regardless of intermediate churn.
func TestVerifyBalanced(t *testing.T) {
	l := ledger.New()
	d := New(l)

	before := d.Snapshot()
	addrs := []uintptr{0x1000, 0x2000, 0x3000}
	for _, a := range addrs {
		l.RecordAlloc(region(a, 32, 8), event.Alloc)
	}
	for _, a := range addrs {
		l.RecordFree(region(a, 32, 8))
	}

	res := d.Verify(before)
	if !res.Empty() {
		t.Fatalf("balanced region failed: %s", res.Report())
	}
	if res.CountDelta != 0 || res.BytesDelta != 0 {
		t.Fatalf("deltas = %d/%d, want 0/0", res.CountDelta, res.BytesDelta)
	}
	if err := res.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
}

// TestVerifyLeakAttribution tests per-allocation leak reporting:
// allocate 8, 16, and 32 bytes, free the 8 and the 32, and the result
// must name exactly the 16-byte block.
func TestVerifyLeakAttribution(t *testing.T) {
	l := ledger.New()
	d := New(l)

	before := d.Snapshot()
	l.RecordAlloc(region(0x1000, 8, 8), event.Alloc)
	leakSeq := l.RecordAlloc(region(0x2000, 16, 8), event.Alloc)
	l.RecordAlloc(region(0x3000, 32, 8), event.Alloc)
	l.RecordFree(region(0x1000, 8, 8))
	l.RecordFree(region(0x3000, 32, 8))

	res := d.Verify(before)
	if res.Empty() {
		t.Fatal("leaking region passed")
	}
	if res.CountDelta != 1 {
		t.Fatalf("CountDelta = %d, want 1", res.CountDelta)
	}
	if res.BytesDelta != 16 {
		t.Fatalf("BytesDelta = %d, want 16", res.BytesDelta)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("got %d violations, want 1: %s", len(res.Violations), res.Report())
	}

	v := res.Violations[0]
	if !v.IsLeakWith(func(r event.Region) bool { return r.Addr == 0x2000 && r.Size == 16 }) {
		t.Fatalf("violation = %+v, want leak of the 16-byte block", v)
	}
	if v.Seq != leakSeq {
		t.Fatalf("leak seq = %d, want originating seq %d", v.Seq, leakSeq)
	}
	if res.TotalsDrift != 0 {
		t.Fatalf("TotalsDrift = %d on a consistent ledger", res.TotalsDrift)
	}
}

// TestVerifyWindowExcludesEarlierLeaks tests that records allocated
// before the snapshot are never reported as leaks of this window, and
// violations logged before the window stay outside it.
func TestVerifyWindowExcludesEarlierLeaks(t *testing.T) {
	l := ledger.New()
	d := New(l)

	// Pre-window state: one live allocation and one violation.
	l.RecordAlloc(region(0x1000, 64, 8), event.Alloc)
	l.RecordFree(region(0xBAD, 8, 8)) // invalid free before the window

	before := d.Snapshot()
	l.RecordAlloc(region(0x2000, 16, 8), event.Alloc) // window leak

	res := d.Verify(before)
	if res.CountDelta != 1 {
		t.Fatalf("CountDelta = %d, want 1", res.CountDelta)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("violations = %v, want only the window leak", res.Violations)
	}
	if res.Violations[0].Requested.Addr != 0x2000 {
		t.Fatalf("leak = %v, want the in-window block", res.Violations[0])
	}
}

// TestVerifyReallocNotALeak tests origin preservation: a pre-window
// block moved by realloc inside the window is not a window leak, even
// when another allocation makes the count delta positive.
func TestVerifyReallocNotALeak(t *testing.T) {
	l := ledger.New()
	d := New(l)

	l.RecordAlloc(region(0x1000, 16, 8), event.Alloc)

	before := d.Snapshot()
	l.RecordRealloc(region(0x1000, 16, 8), 0x5000, 128) // moved inside window
	leakSeq := l.RecordAlloc(region(0x2000, 8, 8), event.Alloc)

	res := d.Verify(before)
	if res.CountDelta != 1 {
		t.Fatalf("CountDelta = %d, want 1", res.CountDelta)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("got %d violations, want only the fresh leak: %s", len(res.Violations), res.Report())
	}
	v := res.Violations[0]
	if v.Kind != event.Leak || v.Requested.Addr != 0x2000 || v.Seq != leakSeq {
		t.Fatalf("violation = %+v, want leak of the fresh 8-byte block", v)
	}
}

// TestVerifyNegativeDelta tests that freeing more than was allocated
// in the window fails with the free's violation, not a leak.
func TestVerifyNegativeDelta(t *testing.T) {
	l := ledger.New()
	d := New(l)

	l.RecordAlloc(region(0x1000, 32, 8), event.Alloc)

	before := d.Snapshot()
	l.RecordFree(region(0x1000, 32, 8))

	res := d.Verify(before)
	if res.Empty() {
		t.Fatal("negative count delta passed")
	}
	if res.CountDelta != -1 {
		t.Fatalf("CountDelta = %d, want -1", res.CountDelta)
	}
	for _, v := range res.Violations {
		if v.Kind == event.Leak {
			t.Fatalf("negative delta produced a leak: %+v", v)
		}
	}
}

// TestVerifyViolationsSorted tests that mixed violations come back
// ordered by sequence number.
func TestVerifyViolationsSorted(t *testing.T) {
	l := ledger.New()
	d := New(l)

	before := d.Snapshot()
	l.RecordFree(region(0x1, 8, 1))                  // invalid free
	l.RecordAlloc(region(0x2000, 16, 8), event.Alloc) // leak
	l.RecordFree(region(0x2, 8, 1))                  // invalid free

	res := d.Verify(before)
	if len(res.Violations) != 3 {
		t.Fatalf("got %d violations, want 3: %s", len(res.Violations), res.Report())
	}
	for i := 1; i < len(res.Violations); i++ {
		if res.Violations[i-1].Seq > res.Violations[i].Seq {
			t.Fatalf("violations out of order: %v", res.Violations)
		}
	}
}

// TestDiffPanicsUnderGuard tests that verifying mid-bookkeeping is
// rejected loudly.
func TestDiffPanicsUnderGuard(t *testing.T) {
	l := ledger.New()
	d := New(l)

	guard.Enter()
	defer guard.Exit()
	defer func() {
		if recover() == nil {
			t.Fatal("Diff under active guard did not panic")
		}
	}()
	d.Diff(event.Snapshot{}, event.Snapshot{})
}
