package event

import "fmt"

// ViolationKind identifies the class of inconsistency detected between
// expected and actual allocation behavior.
type ViolationKind uint8

const (
	// InvalidFree is a free of an address the ledger has never seen
	// live. The real free is still forwarded; only accounting failed.
	InvalidFree ViolationKind = iota

	// DoubleFree is a specialization of InvalidFree: the address was
	// previously tracked and already released once.
	DoubleFree

	// SizeMismatch is a free or realloc whose caller-supplied size
	// differs from the size recorded at allocation time.
	SizeMismatch

	// AlignmentMismatch is a free whose caller-supplied alignment
	// differs from the alignment recorded at allocation time.
	AlignmentMismatch

	// Leak is a record still live at verification time whose
	// allocation falls inside the verified window.
	Leak

	// NonZeroedMemory is a zero-initializing allocation that handed
	// back at least one nonzero byte.
	NonZeroedMemory

	// ConflictingAlloc is an allocation overlapping a region the
	// ledger still considers live.
	ConflictingAlloc

	// MisalignedAlloc is an allocation whose base address does not
	// satisfy the requested alignment.
	MisalignedAlloc
)

// String returns a stable identifier for the violation kind.
func (k ViolationKind) String() string {
	switch k {
	case InvalidFree:
		return "invalid-free"
	case DoubleFree:
		return "double-free"
	case SizeMismatch:
		return "size-mismatch"
	case AlignmentMismatch:
		return "alignment-mismatch"
	case Leak:
		return "leak"
	case NonZeroedMemory:
		return "non-zeroed-memory"
	case ConflictingAlloc:
		return "conflicting-alloc"
	case MisalignedAlloc:
		return "misaligned-alloc"
	default:
		return "unknown"
	}
}

// Violation records one detected inconsistency. Violations are
// immutable once created: the ledger appends them to its log and the
// verifier copies them into results, nothing mutates them afterwards.
//
// Requested always holds the region as supplied by the caller (or, for
// Leak, the leaked record itself). Existing holds the conflicting
// ledger record where one exists; it is the zero Region otherwise.
type Violation struct {
	// Kind classifies the violation.
	Kind ViolationKind

	// Requested is the region the caller supplied to the operation
	// that was found inconsistent.
	Requested Region

	// Existing is the live ledger record the request conflicted
	// with, when there is one.
	Existing Region

	// Offset is the byte offset of the first nonzero byte for
	// NonZeroedMemory violations. Zero for all other kinds.
	Offset uintptr

	// Seq is the sequence number of the event that produced the
	// violation. The verifier windows violations by this value.
	Seq uint64
}

// String renders a one-line human-readable description of the
// violation. Report formatting for end users is the harness adapter's
// job; this rendering exists for reports and log fields.
func (v Violation) String() string {
	switch v.Kind {
	case InvalidFree:
		return fmt.Sprintf("freed unknown region (%s)", v.Requested)
	case DoubleFree:
		return fmt.Sprintf("region (%s) freed twice", v.Requested)
	case SizeMismatch:
		return fmt.Sprintf("freed region (%s) size differs from existing (%s)", v.Requested, v.Existing)
	case AlignmentMismatch:
		return fmt.Sprintf("freed region (%s) has different alignment from existing (%s)", v.Requested, v.Existing)
	case Leak:
		return fmt.Sprintf("dangling region (%s)", v.Requested)
	case NonZeroedMemory:
		return fmt.Sprintf("zeroed allocation (%s) has nonzero byte at offset %d", v.Requested, v.Offset)
	case ConflictingAlloc:
		return fmt.Sprintf("requested allocation (%s) overlaps with existing (%s)", v.Requested, v.Existing)
	case MisalignedAlloc:
		return fmt.Sprintf("allocated region (%s) is misaligned", v.Requested)
	default:
		return fmt.Sprintf("unknown violation (%s)", v.Requested)
	}
}

// IsLeakWith reports whether this violation is a Leak whose region
// matches the given predicate. Convenient in tests asserting on a
// specific leaked block.
func (v Violation) IsLeakWith(f func(Region) bool) bool {
	return v.Kind == Leak && f(v.Requested)
}
