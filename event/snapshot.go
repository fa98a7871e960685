package event

import "fmt"

// Snapshot is an immutable point-in-time summary of ledger totals.
//
// A snapshot does not reference ledger internals; it is three plain
// numbers read from the atomic counters. Snapshots taken while other
// goroutines are mid-operation are approximate by design: the three
// loads are individually race-free but not mutually linearized, which
// is sufficient because verification always brackets a quiesced region.
type Snapshot struct {
	// Seq is the value of the global event sequence at snapshot
	// time. Sequence numbers strictly increase and totally order all
	// recorded events, so two snapshots delimit a half-open window
	// (before.Seq, after.Seq] of events.
	Seq uint64

	// Count is the number of outstanding (live) allocations.
	Count int64

	// Bytes is the sum of requested sizes over all live records.
	Bytes int64
}

// String renders the snapshot for debugging output.
func (s Snapshot) String() string {
	return fmt.Sprintf("seq=%d count=%d bytes=%d", s.Seq, s.Count, s.Bytes)
}
