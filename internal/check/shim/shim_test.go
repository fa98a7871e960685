package shim

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/kolkov/alloccheck/event"
	"github.com/kolkov/alloccheck/internal/check/guard"
	"github.com/kolkov/alloccheck/internal/check/ledger"
	"github.com/kolkov/alloccheck/internal/check/sysalloc"
)

// countingDelegate wraps the heap delegate and counts forwarded calls,
// so tests can assert that real memory traffic is never withheld. The
// knobs simulate delegate failure and a broken zeroed path.
type countingDelegate struct {
	heap *sysalloc.Heap

	mu        sync.Mutex
	allocs    int
	zeroed    int
	frees     int
	reallocs  int
	failNext  bool
	dirtyZero bool
}

func newCountingDelegate() *countingDelegate {
	return &countingDelegate{heap: sysalloc.NewHeap()}
}

func (d *countingDelegate) Allocate(size, align uintptr) uintptr {
	d.mu.Lock()
	d.allocs++
	fail := d.failNext
	d.failNext = false
	d.mu.Unlock()
	if fail {
		return 0
	}
	return d.heap.Allocate(size, align)
}

func (d *countingDelegate) AllocateZeroed(size, align uintptr) uintptr {
	d.mu.Lock()
	d.zeroed++
	dirty := d.dirtyZero
	d.mu.Unlock()

	ptr := d.heap.AllocateZeroed(size, align)
	if ptr != 0 && dirty && size > 0 {
		// Corrupt the last byte, as a faulty zeroed path would.
		buf := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)
		buf[size-1] = 1
	}
	return ptr
}

func (d *countingDelegate) Deallocate(ptr, size, align uintptr) {
	d.mu.Lock()
	d.frees++
	d.mu.Unlock()
	d.heap.Deallocate(ptr, size, align)
}

func (d *countingDelegate) Reallocate(ptr, oldSize, align, newSize uintptr) uintptr {
	d.mu.Lock()
	d.reallocs++
	fail := d.failNext
	d.failNext = false
	d.mu.Unlock()
	if fail {
		return 0
	}
	return d.heap.Reallocate(ptr, oldSize, align, newSize)
}

func (d *countingDelegate) counts() (allocs, zeroed, frees, reallocs int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocs, d.zeroed, d.frees, d.reallocs
}

func newTestShim() (*Shim, *countingDelegate, *ledger.Ledger) {
	d := newCountingDelegate()
	l := ledger.New()
	return New(d, l), d, l
}

// TestAllocateRecords tests the allocate-then-record path.
func TestAllocateRecords(t *testing.T) {
	s, d, l := newTestShim()

	ptr := s.Allocate(64, 8)
	if ptr == 0 {
		t.Fatal("Allocate returned 0")
	}
	if allocs, _, _, _ := d.counts(); allocs != 1 {
		t.Fatalf("delegate saw %d allocs, want 1", allocs)
	}
	if snap := l.Snapshot(); snap.Count != 1 || snap.Bytes != 64 {
		t.Fatalf("ledger totals = %v, want count 1 bytes 64", snap)
	}

	s.Deallocate(ptr, 64, 8)
	if snap := l.Snapshot(); snap.Count != 0 || snap.Bytes != 0 {
		t.Fatalf("ledger totals after free = %v, want 0/0", snap)
	}
	if vs := l.Drain(); len(vs) != 0 {
		t.Fatalf("clean roundtrip logged %v", vs)
	}
}

// TestAllocateFailureNotRecorded tests that delegate exhaustion is
// propagated without touching the ledger.
func TestAllocateFailureNotRecorded(t *testing.T) {
	s, d, l := newTestShim()
	d.failNext = true

	if ptr := s.Allocate(64, 8); ptr != 0 {
		t.Fatalf("Allocate = 0x%x, want 0 on delegate failure", ptr)
	}
	if snap := l.Snapshot(); snap.Seq != 0 || snap.Count != 0 {
		t.Fatalf("failed alloc touched ledger: %v", snap)
	}
	if vs := l.Drain(); len(vs) != 0 {
		t.Fatalf("failed alloc logged %v; exhaustion is not a violation", vs)
	}
}

// TestDisabledPassesThrough tests that a disabled shim forwards
// traffic without recording.
func TestDisabledPassesThrough(t *testing.T) {
	s, d, l := newTestShim()
	s.Disable()
	if s.Enabled() {
		t.Fatal("Enabled() = true after Disable")
	}

	ptr := s.Allocate(32, 8)
	if ptr == 0 {
		t.Fatal("disabled shim withheld memory")
	}
	s.Deallocate(ptr, 32, 8)

	if allocs, _, frees, _ := d.counts(); allocs != 1 || frees != 1 {
		t.Fatalf("delegate saw %d/%d alloc/free, want 1/1", allocs, frees)
	}
	if snap := l.Snapshot(); snap.Seq != 0 {
		t.Fatalf("disabled shim recorded events: %v", snap)
	}

	s.Enable()
	if !s.Enabled() {
		t.Fatal("Enabled() = false after Enable")
	}
}

// TestGuardBypass tests that allocations made while the calling
// goroutine holds the guard are forwarded but not recorded.
func TestGuardBypass(t *testing.T) {
	s, d, l := newTestShim()

	guard.Enter()
	ptr := s.Allocate(16, 8)
	s.Deallocate(ptr, 16, 8)
	guard.Exit()

	if ptr == 0 {
		t.Fatal("guarded allocation withheld memory")
	}
	if allocs, _, frees, _ := d.counts(); allocs != 1 || frees != 1 {
		t.Fatalf("delegate saw %d/%d alloc/free, want 1/1", allocs, frees)
	}
	if snap := l.Snapshot(); snap.Seq != 0 {
		t.Fatalf("guarded traffic recorded events: %v", snap)
	}
}

// TestDeallocateAlwaysForwarded tests that even a free the ledger
// rejects still reaches the delegate.
func TestDeallocateAlwaysForwarded(t *testing.T) {
	s, d, l := newTestShim()

	s.Deallocate(0xBAD0, 16, 8) // never allocated

	if _, _, frees, _ := d.counts(); frees != 1 {
		t.Fatalf("delegate saw %d frees, want 1", frees)
	}
	vs := l.Drain()
	if len(vs) != 1 || vs[0].Kind != event.InvalidFree {
		t.Fatalf("violations = %v, want one InvalidFree", vs)
	}
}

// TestAllocateZeroedClean tests the zeroed path on a well-behaved
// delegate.
func TestAllocateZeroedClean(t *testing.T) {
	s, d, l := newTestShim()

	ptr := s.AllocateZeroed(128, 16)
	if ptr == 0 {
		t.Fatal("AllocateZeroed returned 0")
	}
	if _, zeroed, _, _ := d.counts(); zeroed != 1 {
		t.Fatalf("delegate saw %d zeroed allocs, want 1", zeroed)
	}
	s.Deallocate(ptr, 128, 16)

	if vs := l.Drain(); len(vs) != 0 {
		t.Fatalf("clean zeroed roundtrip logged %v", vs)
	}
}

// TestAllocateZeroedDirty tests that a delegate handing back nonzero
// bytes from the zeroed path is flagged with the right offset, while
// the pointer is still returned.
func TestAllocateZeroedDirty(t *testing.T) {
	if !zeroCheckEnabled {
		t.Skip("zero-check capability compiled out")
	}

	s, d, l := newTestShim()
	d.dirtyZero = true
	const size = 32

	ptr := s.AllocateZeroed(size, 8)
	if ptr == 0 {
		t.Fatal("dirty zeroed allocation withheld memory")
	}
	defer s.Deallocate(ptr, size, 8)

	var dirty []event.Violation
	for _, v := range l.Drain() {
		if v.Kind == event.NonZeroedMemory {
			dirty = append(dirty, v)
		}
	}
	if len(dirty) != 1 {
		t.Fatalf("got %d NonZeroedMemory violations, want 1", len(dirty))
	}
	if dirty[0].Offset != size-1 {
		t.Fatalf("offset = %d, want %d", dirty[0].Offset, size-1)
	}
	if dirty[0].Requested.Addr != ptr || dirty[0].Requested.Size != size {
		t.Fatalf("violation region = %v", dirty[0].Requested)
	}
}

// TestConcurrentTraffic runs parallel alloc/free through the full shim
// path; run with -race.
func TestConcurrentTraffic(t *testing.T) {
	s, _, l := newTestShim()
	const goroutines = 8
	const cycles = 200

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < cycles; i++ {
				ptr := s.Allocate(48, 8)
				if ptr == 0 {
					t.Error("Allocate returned 0")
					return
				}
				s.Deallocate(ptr, 48, 8)
			}
		}()
	}
	wg.Wait()

	if snap := l.Snapshot(); snap.Count != 0 || snap.Bytes != 0 {
		t.Fatalf("totals after concurrent traffic = %v, want 0/0", snap)
	}
	if vs := l.Drain(); len(vs) != 0 {
		t.Fatalf("concurrent traffic logged %d violations", len(vs))
	}
}

// BenchmarkAllocateDeallocate measures the full tracked hot path,
// including guard entry and delegate work.
func BenchmarkAllocateDeallocate(b *testing.B) {
	s, _, _ := newTestShim()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ptr := s.Allocate(64, 8)
		s.Deallocate(ptr, 64, 8)
	}
}
