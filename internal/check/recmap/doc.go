// Package recmap stores the live allocation records, keyed by base
// address.
//
// # Overview
//
// The map holds exactly one [Record] per live address (ledger
// invariant). Records enter on allocation, leave on validated
// deallocation, and are replaced (old out, new in) on reallocation.
// Addresses are unique keys at any instant because the underlying
// memory manager never hands out the same address twice while it is
// live.
//
// # Implementations
//
// Two implementations are selected at build time:
//
//   - Default: a 256-shard map with xxhash shard selection. Operations
//     on distinct addresses almost always hit distinct shards, so
//     concurrent allocations contend only on the totals, not on the
//     map. This is the fast hash-based map that ships with the
//     realloc-aware capability.
//
//   - alloccheck_norealloc: a single-mutex map. Smaller and simpler,
//     for builds that also drop realloc-aware record identity.
//
// # Performance
//
// Map access is on the hot path of every tracked allocation:
//
//   - Get/Delete (hit): one shard lock + map access, no allocation
//   - Insert: one shard lock + map assign, amortized growth
//   - Range/Len: lock shards one at a time, only used by the verifier
//
// # Thread safety
//
// All operations are safe for concurrent use. Operations on the same
// address never race by construction (at most one live owner of an
// address at a time), so a Record needs no internal locking; the
// ledger is its exclusive owner.
package recmap
