// Package ledger implements the process-wide concurrent store of live
// allocation records, the running totals, and the violation log.
//
// The ledger is the single piece of process-wide mutable state in the
// audit layer. It lives from one-time initialization to process end
// with no teardown. Only the shim mutates it; the verifier reads
// snapshots and the violation log.
//
// All mutating operations are linearizable with respect to each other
// at the granularity that matters: operations on the same address are
// serialized by the record map's per-shard lock (and cannot race
// anyway, because the memory manager guarantees one live owner per
// address), totals are atomic, and the violation log is guarded by a
// short-held mutex. Nothing here blocks indefinitely, so the shim can
// run inside arbitrary host locks without deadlocking.
//
// The ledger's own operations allocate (map growth, log append). The
// shim is responsible for wrapping every call in the reentrancy guard
// so that those internal allocations never re-enter the tracking path.
package ledger

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	cuckoo "github.com/seiflotfy/cuckoofilter"
	"go.uber.org/zap"

	"github.com/kolkov/alloccheck/event"
	"github.com/kolkov/alloccheck/internal/check/recmap"
)

// defaultFilterCapacity sizes the freed-address cuckoo filter. One
// million distinct freed addresses at ~2 bytes each keeps the filter
// around 2MB with a false-positive rate under 1%.
const defaultFilterCapacity = 1 << 20

// Ledger is the concurrent allocation bookkeeping engine.
type Ledger struct {
	// seq is the global event sequence. Every recorded event claims
	// the next value, giving a strictly increasing total order over
	// all events across all goroutines.
	seq atomic.Uint64

	// count and bytes are the outstanding totals. Kept as plain
	// atomics so concurrent allocations on distinct addresses never
	// contend on a lock for the totals.
	count atomic.Int64
	bytes atomic.Int64

	// records maps live base addresses to their records.
	records *recmap.Map

	// vmu guards violations. Held only for append/copy.
	vmu        sync.Mutex
	violations []event.Violation

	// fmu guards freed, the bounded-memory history of addresses
	// that were validly released at least once. A free that misses
	// the record map consults it to tell a double free from a free
	// of memory this layer never managed. Approximate membership is
	// acceptable: a rare false positive swaps one invalid-free label
	// for the other, it never hides a violation.
	fmu   sync.Mutex
	freed *cuckoo.Filter

	// log receives structured diagnostics. Nop unless the host
	// installs a logger; the core never emits user-facing text on
	// its own.
	log *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger installs a structured logger for violation and lifecycle
// diagnostics. The default is zap.NewNop().
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithFilterCapacity overrides the freed-address filter capacity.
func WithFilterCapacity(capacity uint) Option {
	return func(l *Ledger) {
		if capacity > 0 {
			l.freed = cuckoo.NewFilter(capacity)
		}
	}
}

// New returns an empty ledger. All internal structures are allocated
// up front, during one-time initialization, so first-use growth on
// the hot path stays minimal.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		records: recmap.New(),
		freed:   cuckoo.NewFilter(defaultFilterCapacity),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetLogger swaps the diagnostic logger. Nil restores the nop logger.
func (l *Ledger) SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	l.log = log
}

// RecordAlloc records a successful allocation of region r and returns
// the event's sequence number.
//
// Diagnostic checks, in order:
//   - base address not satisfying the requested alignment is a
//     MisalignedAlloc violation
//   - an address the ledger still considers live is a
//     ConflictingAlloc violation (the stale record is displaced, so
//     the one-live-record-per-address invariant holds afterwards)
//
// The record is inserted in all cases: the memory really was handed
// out, and accounting must follow reality so the eventual free of
// this block validates cleanly.
func (l *Ledger) RecordAlloc(r event.Region, kind event.Kind) uint64 {
	seq := l.seq.Add(1)

	if !r.Aligned() {
		l.note(event.Violation{Kind: event.MisalignedAlloc, Requested: r, Seq: seq})
	}

	rec := &recmap.Record{Region: r, Kind: kind, Seq: seq, Origin: seq}
	displaced := l.records.Insert(rec)
	if displaced != nil {
		l.note(event.Violation{
			Kind:      event.ConflictingAlloc,
			Requested: r,
			Existing:  displaced.Region,
			Seq:       seq,
		})
		// The displaced record leaves the totals; the new one
		// replaces it, so the live count is unchanged.
		l.bytes.Add(-int64(displaced.Region.Size))
	} else {
		l.count.Add(1)
	}
	l.bytes.Add(int64(r.Size))

	// The address is live again; drop any stale freed-history entry
	// so a future invalid free of it is not misread as a double free.
	l.forgetFreed(r.Addr)
	return seq
}

// RecordFree validates and removes the record for a deallocation
// request. It returns the event's sequence number.
//
// The lookup-and-remove is atomic: two racing frees of the same
// address can never both observe the record. A miss is classified as
// DoubleFree when the address has a freed-history hit, InvalidFree
// otherwise, and causes no structural change. A hit validates the
// caller-supplied size and alignment against the record (size first,
// one violation per free) and removes the record regardless: the real
// free is always forwarded by the shim, so keeping the record would
// manufacture a bogus leak later.
func (l *Ledger) RecordFree(r event.Region) uint64 {
	seq := l.seq.Add(1)

	rec, ok := l.records.Delete(r.Addr)
	if !ok {
		kind := event.InvalidFree
		if l.wasFreed(r.Addr) {
			kind = event.DoubleFree
		}
		l.note(event.Violation{Kind: kind, Requested: r, Seq: seq})
		return seq
	}

	switch {
	case rec.Region.Size != r.Size:
		l.note(event.Violation{
			Kind:      event.SizeMismatch,
			Requested: r,
			Existing:  rec.Region,
			Seq:       seq,
		})
	case rec.Region.Align != r.Align:
		l.note(event.Violation{
			Kind:      event.AlignmentMismatch,
			Requested: r,
			Existing:  rec.Region,
			Seq:       seq,
		})
	}

	// Totals follow the recorded size, not the caller's claim, so
	// the byte total always equals the sum over live records.
	l.count.Add(-1)
	l.bytes.Add(-int64(rec.Region.Size))
	l.rememberFreed(r.Addr)
	return seq
}

// RecordRealloc updates the record at old.Addr for a reallocation
// that already succeeded at the delegate, moving it to newAddr with
// newSize. Identity is preserved: the new record carries the original
// allocation's Origin, so the verifier never mistakes a moved block
// for a fresh allocation.
//
// The caller-supplied old size is validated against the record and a
// mismatch is a SizeMismatch violation, but the update still proceeds
// because the underlying reallocation already did. A realloc of an
// address the ledger does not know is an InvalidFree violation and
// the new block is tracked as a fresh allocation (accounting follows
// reality).
//
// The shim must not call this when the delegate reported failure; a
// failed reallocation leaves the original record untouched.
func (l *Ledger) RecordRealloc(old event.Region, newAddr, newSize uintptr) uint64 {
	seq := l.seq.Add(1)

	rec, ok := l.records.Delete(old.Addr)
	if !ok {
		kind := event.InvalidFree
		if l.wasFreed(old.Addr) {
			kind = event.DoubleFree
		}
		l.note(event.Violation{Kind: kind, Requested: old, Seq: seq})

		fresh := &recmap.Record{
			Region: event.Region{Addr: newAddr, Size: newSize, Align: old.Align},
			Kind:   event.Alloc,
			Seq:    seq,
			Origin: seq,
		}
		if displaced := l.records.Insert(fresh); displaced != nil {
			l.note(event.Violation{
				Kind:      event.ConflictingAlloc,
				Requested: fresh.Region,
				Existing:  displaced.Region,
				Seq:       seq,
			})
			l.bytes.Add(-int64(displaced.Region.Size))
		} else {
			l.count.Add(1)
		}
		l.bytes.Add(int64(newSize))
		l.forgetFreed(newAddr)
		return seq
	}

	if rec.Region.Size != old.Size {
		l.note(event.Violation{
			Kind:      event.SizeMismatch,
			Requested: old,
			Existing:  rec.Region,
			Seq:       seq,
		})
	}

	moved := &recmap.Record{
		Region: event.Region{Addr: newAddr, Size: newSize, Align: rec.Region.Align},
		Kind:   rec.Kind,
		Seq:    seq,
		Origin: rec.Origin,
	}
	if displaced := l.records.Insert(moved); displaced != nil {
		l.note(event.Violation{
			Kind:      event.ConflictingAlloc,
			Requested: moved.Region,
			Existing:  displaced.Region,
			Seq:       seq,
		})
		l.bytes.Add(-int64(displaced.Region.Size))
		l.count.Add(-1)
	}
	l.bytes.Add(int64(newSize) - int64(rec.Region.Size))

	if newAddr != old.Addr {
		l.rememberFreed(old.Addr)
		l.forgetFreed(newAddr)
	}
	return seq
}

// NoteViolation appends a violation produced outside the ledger's own
// validation (the zero-check extension) under a fresh sequence number,
// which it returns.
func (l *Ledger) NoteViolation(kind event.ViolationKind, r event.Region, offset uintptr) uint64 {
	seq := l.seq.Add(1)
	l.note(event.Violation{Kind: kind, Requested: r, Offset: offset, Seq: seq})
	return seq
}

// Snapshot reads the current totals as an immutable value: sequence
// number, outstanding count, outstanding bytes. The three loads are
// individually race-free; mutual consistency against in-flight
// mutations is approximate by design.
func (l *Ledger) Snapshot() event.Snapshot {
	return event.Snapshot{
		Seq:   l.seq.Load(),
		Count: l.count.Load(),
		Bytes: l.bytes.Load(),
	}
}

// ViolationsBetween returns copies of all logged violations with
// sequence numbers in the half-open window (after, upTo]. Order
// follows log-append order; the verifier sorts by sequence.
func (l *Ledger) ViolationsBetween(after, upTo uint64) []event.Violation {
	l.vmu.Lock()
	defer l.vmu.Unlock()

	var out []event.Violation
	for _, v := range l.violations {
		if v.Seq > after && v.Seq <= upTo {
			out = append(out, v)
		}
	}
	return out
}

// Drain returns the entire violation log and clears it.
func (l *Ledger) Drain() []event.Violation {
	l.vmu.Lock()
	defer l.vmu.Unlock()

	out := l.violations
	l.violations = nil
	return out
}

// Range walks copies of the live records. Used by the verifier's leak
// scan and the totals audit, never by the shim.
func (l *Ledger) Range(f func(recmap.Record) bool) {
	l.records.Range(f)
}

// Live returns the number of live records in the map itself (as
// opposed to the atomic count total).
func (l *Ledger) Live() int {
	return l.records.Len()
}

// AccountedBytes recomputes the byte total from the live records. The
// verifier compares it against the atomic total when diagnosing a
// failing diff (ledger invariant: the two always agree).
func (l *Ledger) AccountedBytes() int64 {
	var sum int64
	l.records.Range(func(rec recmap.Record) bool {
		sum += int64(rec.Region.Size)
		return true
	})
	return sum
}

// note appends a violation to the log and emits a debug diagnostic.
func (l *Ledger) note(v event.Violation) {
	l.vmu.Lock()
	l.violations = append(l.violations, v)
	l.vmu.Unlock()

	l.log.Debug("violation recorded",
		zap.Stringer("kind", v.Kind),
		zap.Uint64("seq", v.Seq),
		zap.String("detail", v.String()),
	)
}

// rememberFreed records addr in the freed-address history.
func (l *Ledger) rememberFreed(addr uintptr) {
	key := freedKey(addr)
	l.fmu.Lock()
	l.freed.Insert(key[:])
	l.fmu.Unlock()
}

// forgetFreed drops addr from the freed-address history when the
// address becomes live again.
func (l *Ledger) forgetFreed(addr uintptr) {
	key := freedKey(addr)
	l.fmu.Lock()
	l.freed.Delete(key[:])
	l.fmu.Unlock()
}

// wasFreed reports whether addr has a freed-history hit.
func (l *Ledger) wasFreed(addr uintptr) bool {
	key := freedKey(addr)
	l.fmu.Lock()
	ok := l.freed.Lookup(key[:])
	l.fmu.Unlock()
	return ok
}

// freedKey encodes an address as the filter's byte key.
func freedKey(addr uintptr) [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(addr))
	return b
}
