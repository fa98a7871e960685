package event

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Result is the outcome of diffing two snapshots over a verified
// region of execution.
//
// A result is failing when the region did not net out: a nonzero
// outstanding-count delta, or any violation logged inside the window.
// A region that allocates N blocks and frees all N passes even if
// arbitrary churn happened in between.
type Result struct {
	// Before and After are the snapshots that delimit the window.
	Before Snapshot
	After  Snapshot

	// CountDelta is After.Count - Before.Count.
	CountDelta int64

	// BytesDelta is After.Bytes - Before.Bytes. Informational: a
	// byte delta with a zero count delta (e.g. a block from outside
	// the window grown by realloc inside it) is not failing.
	BytesDelta int64

	// TotalsDrift is the difference between the ledger's atomic byte
	// total and the byte sum recomputed from live records, measured
	// only when the result is already failing. Nonzero drift means
	// the ledger's own bookkeeping is inconsistent.
	TotalsDrift int64

	// Violations are all violations whose sequence number falls in
	// the half-open window (Before.Seq, After.Seq], including one
	// Leak per live record allocated inside the window when
	// CountDelta is positive. Ordered by sequence number.
	Violations []Violation
}

// Empty reports whether the verified region left the heap consistent:
// zero count delta and no violations.
func (r *Result) Empty() bool {
	return r.CountDelta == 0 && len(r.Violations) == 0
}

// Report renders an itemized, human-readable account of the result:
// one summary line followed by one line per violation. The empty
// result renders a single "ok" line.
//
// The core never prints this anywhere; consuming and presenting the
// report is the harness adapter's contract.
func (r *Result) Report() string {
	var b strings.Builder
	if r.Empty() {
		fmt.Fprintf(&b, "ok: count delta 0, bytes delta %+d over seq window (%d, %d]",
			r.BytesDelta, r.Before.Seq, r.After.Seq)
		return b.String()
	}

	fmt.Fprintf(&b, "%d violation(s), count delta %+d, bytes delta %+d over seq window (%d, %d]",
		len(r.Violations), r.CountDelta, r.BytesDelta, r.Before.Seq, r.After.Seq)
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "\n  seq %d: %s: %s", v.Seq, v.Kind, v)
	}
	if r.TotalsDrift != 0 {
		fmt.Fprintf(&b, "\n  ledger totals drift: %+d bytes (atomic total vs live record sum)", r.TotalsDrift)
	}
	return b.String()
}

// Err returns nil for an empty result, or an aggregate error carrying
// one error per violation plus a summary for any nonzero count delta.
func (r *Result) Err() error {
	if r.Empty() {
		return nil
	}
	var err error
	if r.CountDelta != 0 {
		err = multierr.Append(err, fmt.Errorf("outstanding allocations changed by %+d (%+d bytes)", r.CountDelta, r.BytesDelta))
	}
	for _, v := range r.Violations {
		err = multierr.Append(err, fmt.Errorf("seq %d: %s: %s", v.Seq, v.Kind, v))
	}
	return err
}
