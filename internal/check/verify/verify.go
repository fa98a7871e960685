// Package verify implements the snapshot/diff verification engine.
//
// The verifier operates purely on ledger state: it reads snapshots of
// the totals, windows the violation log by sequence number, and scans
// live records for leaks. It never touches the system delegate and
// never mutates the ledger.
package verify

import (
	"sort"

	"github.com/kolkov/alloccheck/event"
	"github.com/kolkov/alloccheck/internal/check/guard"
	"github.com/kolkov/alloccheck/internal/check/ledger"
	"github.com/kolkov/alloccheck/internal/check/recmap"
)

// Differ produces snapshots of a ledger and computes the difference
// between two snapshots, classifying every discrepancy.
type Differ struct {
	ledger *ledger.Ledger
}

// New returns a Differ over the given ledger.
func New(l *ledger.Ledger) *Differ {
	return &Differ{ledger: l}
}

// Snapshot delegates to the ledger.
func (d *Differ) Snapshot() event.Snapshot {
	return d.ledger.Snapshot()
}

// Verify diffs before against a snapshot taken now. Equivalent to
// Diff(before, Snapshot()).
func (d *Differ) Verify(before event.Snapshot) *event.Result {
	return d.Diff(before, d.Snapshot())
}

// Diff computes the difference between two snapshots: the delta in
// outstanding count and bytes, plus every violation logged with a
// sequence number in the half-open window (before.Seq, after.Seq].
//
// Leak attribution is per allocation, not aggregate: when the count
// delta is positive, every record still live whose originating
// sequence number falls in the window is reported as one Leak
// violation carrying its address and size. Records allocated before
// the window (even if moved inside it by realloc, which preserves
// Origin) are not window leaks.
//
// Calling Diff while the reentrancy guard is active for this
// goroutine is a programmer error and panics: the caller is inside
// ledger bookkeeping, and continuing would verify a ledger that is
// mid-mutation on this very goroutine.
func (d *Differ) Diff(before, after event.Snapshot) *event.Result {
	if guard.Active() {
		panic("alloccheck: verification invoked while reentrancy guard is active")
	}

	res := &event.Result{
		Before:     before,
		After:      after,
		CountDelta: after.Count - before.Count,
		BytesDelta: after.Bytes - before.Bytes,
		Violations: d.ledger.ViolationsBetween(before.Seq, after.Seq),
	}

	if res.CountDelta > 0 {
		d.ledger.Range(func(rec recmap.Record) bool {
			if rec.Origin > before.Seq && rec.Origin <= after.Seq {
				res.Violations = append(res.Violations, event.Violation{
					Kind:      event.Leak,
					Requested: rec.Region,
					Seq:       rec.Origin,
				})
			}
			return true
		})
	}

	sort.Slice(res.Violations, func(i, j int) bool {
		return res.Violations[i].Seq < res.Violations[j].Seq
	})

	if !res.Empty() {
		// While diagnosing a failure, re-check that the atomic byte
		// total equals the sum over live records. Nonzero drift
		// points at the bookkeeping itself, not the host.
		res.TotalsDrift = d.ledger.Snapshot().Bytes - d.ledger.AccountedBytes()
	}
	return res
}
