//go:build alloccheck_norealloc

package recmap

import "sync"

// Map is the single-mutex implementation of the live record store,
// selected by the alloccheck_norealloc build tag together with the
// non-identity-preserving realloc path. Same contract as the sharded
// default, minus the lock striping.
type Map struct {
	mu   sync.Mutex
	recs map[uintptr]*Record
}

// New returns an empty record map.
func New() *Map {
	return &Map{recs: make(map[uintptr]*Record)}
}

// Insert stores rec under its base address and returns any record it
// displaced.
func (m *Map) Insert(rec *Record) (displaced *Record) {
	m.mu.Lock()
	displaced = m.recs[rec.Region.Addr]
	m.recs[rec.Region.Addr] = rec
	m.mu.Unlock()
	return displaced
}

// Get returns the live record at addr, if any.
func (m *Map) Get(addr uintptr) (*Record, bool) {
	m.mu.Lock()
	rec, ok := m.recs[addr]
	m.mu.Unlock()
	return rec, ok
}

// Delete atomically removes and returns the record at addr.
func (m *Map) Delete(addr uintptr) (*Record, bool) {
	m.mu.Lock()
	rec, ok := m.recs[addr]
	if ok {
		delete(m.recs, addr)
	}
	m.mu.Unlock()
	return rec, ok
}

// Len returns the number of live records.
func (m *Map) Len() int {
	m.mu.Lock()
	n := len(m.recs)
	m.mu.Unlock()
	return n
}

// Range calls f for every live record until f returns false. Records
// are copied out under the lock; f runs without it.
func (m *Map) Range(f func(Record) bool) {
	m.mu.Lock()
	recs := make([]Record, 0, len(m.recs))
	for _, rec := range m.recs {
		recs = append(recs, *rec)
	}
	m.mu.Unlock()
	for _, rec := range recs {
		if !f(rec) {
			return
		}
	}
}
