package cpsolver

import "testing"

func TestRevMapInsertAndLookup(t *testing.T) {
	s := NewSolver("revmap")
	m := NewRevMap()

	m.Insert(s, 1, 10)
	m.Insert(s, 1, 20)
	m.Insert(s, 2, 30)

	if m.Size() != 3 {
		t.Fatalf("Size = %d, want 3", m.Size())
	}
	if !m.ContainsKey(1) || !m.ContainsKey(2) || m.ContainsKey(3) {
		t.Error("ContainsKey wrong")
	}
	if !m.Contains(1, 10) || !m.Contains(1, 20) || m.Contains(1, 30) {
		t.Error("Contains wrong")
	}
	if v, ok := m.FirstValue(1); !ok || v != 20 {
		t.Errorf("FirstValue(1) = %d/%v, want 20 (newest first)", v, ok)
	}
	vals := m.Values(1)
	if len(vals) != 2 || vals[0] != 20 || vals[1] != 10 {
		t.Errorf("Values(1) = %v, want [20 10]", vals)
	}
}

func TestRevMapUndo(t *testing.T) {
	s := NewSolver("revmap")
	m := NewRevMap()
	m.Insert(s, 7, 70)

	mark := s.Mark()
	m.Insert(s, 7, 71)
	m.Insert(s, 8, 80)
	if m.Size() != 3 {
		t.Fatalf("Size = %d, want 3", m.Size())
	}
	s.UndoTo(mark)
	if m.Size() != 1 {
		t.Fatalf("Size after undo = %d, want 1", m.Size())
	}
	if m.Contains(7, 71) || m.ContainsKey(8) {
		t.Error("scoped insertions survived undo")
	}
	if !m.Contains(7, 70) {
		t.Error("pre-scope insertion lost")
	}
}

func TestRevMapRehashIsReversible(t *testing.T) {
	s := NewSolver("revmap")
	m := NewRevMap()

	// Fill to just under the rehash threshold of the initial table.
	for i := int64(0); i < 32; i++ {
		m.Insert(s, i, i*10)
	}
	mark := s.Mark()
	// These insertions force at least one doubling.
	for i := int64(32); i < 200; i++ {
		m.Insert(s, i, i*10)
	}
	if m.Size() != 200 {
		t.Fatalf("Size = %d, want 200", m.Size())
	}
	for i := int64(0); i < 200; i++ {
		if !m.Contains(i, i*10) {
			t.Fatalf("missing pair (%d, %d) before undo", i, i*10)
		}
	}
	s.UndoTo(mark)
	if m.Size() != 32 {
		t.Fatalf("Size after undo = %d, want 32", m.Size())
	}
	for i := int64(0); i < 32; i++ {
		if !m.Contains(i, i*10) {
			t.Errorf("missing pair (%d, %d) after undo", i, i*10)
		}
	}
	for i := int64(32); i < 200; i++ {
		if m.ContainsKey(i) {
			t.Errorf("key %d survived undo", i)
		}
	}
}

func TestRevMapDuplicatePairs(t *testing.T) {
	s := NewSolver("revmap")
	m := NewRevMap()
	m.Insert(s, 5, 1)
	m.Insert(s, 5, 1)
	if m.Size() != 2 {
		t.Errorf("multi-map must keep duplicate pairs, Size = %d", m.Size())
	}
	if got := len(m.Values(5)); got != 2 {
		t.Errorf("Values(5) has %d entries, want 2", got)
	}
}
