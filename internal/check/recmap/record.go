package recmap

import "github.com/kolkov/alloccheck/event"

// Record is the ledger's bookkeeping entry for one live allocation.
//
// A record is created on successful allocation, removed on validated
// deallocation, and mutated only by reallocation (region and Seq are
// updated; Origin and therefore record identity are preserved).
// The ledger is the exclusive owner; nothing else mutates records.
type Record struct {
	// Region is the caller-visible span: address, requested size,
	// alignment. Realloc rewrites it to the new span.
	Region event.Region

	// Kind records how the region was allocated.
	Kind event.Kind

	// Seq is the sequence number of the most recent event that
	// touched this record (allocation or reallocation).
	Seq uint64

	// Origin is the sequence number of the original allocation.
	// Reallocation carries it forward so the verifier never mistakes
	// a moved block for a fresh allocation: leak windowing keys off
	// Origin, not Seq.
	Origin uint64
}
