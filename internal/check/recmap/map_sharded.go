//go:build !alloccheck_norealloc

package recmap

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// shardCount is the number of independent shards. 256 keeps the shard
// index a single byte of the hash and makes lock contention between
// goroutines allocating at distinct addresses negligible.
const shardCount = 256

// shard is one lock-striped segment of the record map.
type shard struct {
	mu   sync.Mutex
	recs map[uintptr]*Record
}

// Map is the sharded, hash-distributed implementation of the live
// record store. This is the default (realloc-capable) build.
type Map struct {
	shards [shardCount]shard
}

// New returns an empty record map with all shards initialized.
//
// Shard maps are pre-allocated here, during one-time initialization,
// so that the very first tracked allocation does not trigger map
// creation inside the hot path.
func New() *Map {
	m := &Map{}
	for i := range m.shards {
		m.shards[i].recs = make(map[uintptr]*Record)
	}
	return m
}

// shardFor hashes the address and picks a shard.
//
// xxhash gives a strong spread even though heap addresses share high
// bits and alignment zeros in the low bits; taking the address bytes
// directly modulo shardCount would lump everything into the aligned
// shards.
func (m *Map) shardFor(addr uintptr) *shard {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(addr))
	return &m.shards[xxhash.Sum64(b[:])&(shardCount-1)]
}

// Insert stores rec under its base address and returns the record it
// displaced, if the address was (inconsistently) already live. The
// caller reports a displaced record as a conflicting allocation.
func (m *Map) Insert(rec *Record) (displaced *Record) {
	s := m.shardFor(rec.Region.Addr)
	s.mu.Lock()
	displaced = s.recs[rec.Region.Addr]
	s.recs[rec.Region.Addr] = rec
	s.mu.Unlock()
	return displaced
}

// Get returns the live record at addr, if any.
func (m *Map) Get(addr uintptr) (*Record, bool) {
	s := m.shardFor(addr)
	s.mu.Lock()
	rec, ok := s.recs[addr]
	s.mu.Unlock()
	return rec, ok
}

// Delete atomically removes and returns the record at addr. The
// lookup and removal happen under one shard lock, so two racing frees
// of the same address can never both observe the record.
func (m *Map) Delete(addr uintptr) (*Record, bool) {
	s := m.shardFor(addr)
	s.mu.Lock()
	rec, ok := s.recs[addr]
	if ok {
		delete(s.recs, addr)
	}
	s.mu.Unlock()
	return rec, ok
}

// Len returns the number of live records. Shards are counted one at a
// time; the total is approximate while mutations are in flight, which
// is fine for its only consumers (verifier diagnostics and tests).
func (m *Map) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.recs)
		s.mu.Unlock()
	}
	return n
}

// Range calls f for every live record until f returns false. Each
// shard is locked only while it is being walked, and f is called on a
// copy of the record so the callback never holds a shard lock against
// concurrent shim traffic.
func (m *Map) Range(f func(Record) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		recs := make([]Record, 0, len(s.recs))
		for _, rec := range s.recs {
			recs = append(recs, *rec)
		}
		s.mu.Unlock()
		for _, rec := range recs {
			if !f(rec) {
				return
			}
		}
	}
}
