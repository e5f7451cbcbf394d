// revmap.go: a reversible immutable multi-map from int64 keys to int64
// values.
//
// The table uses closed addressing: each bucket is a singly-linked chain
// of immutable cells. Insert is the only mutator; it allocates a fresh
// cell from the arena, makes it the new bucket head through the trail and
// bumps a trail-protected item count. When the item count exceeds twice
// the bucket count the bucket array is doubled; the array pointer itself
// is trail-protected, so rehashing in the middle of a search branch is
// undone like any other mutation.
package cpsolver

// mapCell is one immutable (key, value, next) triple. Cells are never
// modified after Insert publishes them.
type mapCell struct {
	key   int64
	value int64
	next  *mapCell
}

const revMapInitialBuckets = 16

// RevMap is the reversible immutable multi-map. A key may be inserted
// several times with distinct values; lookups walk the chain newest-first.
type RevMap struct {
	buckets []*mapCell
	items   int
}

// NewRevMap returns an empty map.
func NewRevMap() *RevMap {
	return &RevMap{buckets: make([]*mapCell, revMapInitialBuckets)}
}

func revMapHash(key int64, buckets int) int {
	h := uint64(key)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return int(h & uint64(buckets-1))
}

// Size returns the number of inserted pairs in the current branch.
func (m *RevMap) Size() int {
	return m.items
}

// Insert adds the pair (key, value). The insertion is reversible: undoing
// the enclosing mark removes it again.
func (m *RevMap) Insert(s *Solver, key, value int64) {
	if m.items+1 > 2*len(m.buckets) {
		m.rehash(s)
	}
	b := revMapHash(key, len(m.buckets))
	cell := s.arena.allocMapCell(key, value, m.buckets[b])
	SaveAndSetValue(&s.trail, &m.buckets[b], cell)
	SaveAndSetValue(&s.trail, &m.items, m.items+1)
}

// rehash doubles the bucket array and relinks every live cell. The new
// array is built aside and swapped in through the trail, so a backtrack
// restores the previous array together with its chains.
func (m *RevMap) rehash(s *Solver) {
	next := make([]*mapCell, 2*len(m.buckets))
	for _, head := range m.buckets {
		for c := head; c != nil; c = c.next {
			b := revMapHash(c.key, len(next))
			next[b] = s.arena.allocMapCell(c.key, c.value, next[b])
		}
	}
	SaveAndSetValue(&s.trail, &m.buckets, next)
}

// ContainsKey reports whether at least one pair with the given key exists.
func (m *RevMap) ContainsKey(key int64) bool {
	for c := m.buckets[revMapHash(key, len(m.buckets))]; c != nil; c = c.next {
		if c.key == key {
			return true
		}
	}
	return false
}

// Contains reports whether the exact pair (key, value) exists.
func (m *RevMap) Contains(key, value int64) bool {
	for c := m.buckets[revMapHash(key, len(m.buckets))]; c != nil; c = c.next {
		if c.key == key && c.value == value {
			return true
		}
	}
	return false
}

// FirstValue returns the most recently inserted value for key.
func (m *RevMap) FirstValue(key int64) (int64, bool) {
	for c := m.buckets[revMapHash(key, len(m.buckets))]; c != nil; c = c.next {
		if c.key == key {
			return c.value, true
		}
	}
	return 0, false
}

// Values returns every value stored under key, newest first.
func (m *RevMap) Values(key int64) []int64 {
	var out []int64
	for c := m.buckets[revMapHash(key, len(m.buckets))]; c != nil; c = c.next {
		if c.key == key {
			out = append(out, c.value)
		}
	}
	return out
}
