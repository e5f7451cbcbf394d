package cpsolver

import "testing"

func TestRevBitSetBasics(t *testing.T) {
	s := NewSolver("bitset")
	b := NewRevBitSet(130)

	if b.Size() != 130 {
		t.Fatalf("Size = %d, want 130", b.Size())
	}
	b.SetBit(s, 0)
	b.SetBit(s, 63)
	b.SetBit(s, 64)
	b.SetBit(s, 129)
	if got := b.Cardinality(); got != 4 {
		t.Fatalf("Cardinality = %d, want 4", got)
	}
	for _, i := range []int{0, 63, 64, 129} {
		if !b.Bit(i) {
			t.Errorf("bit %d should be set", i)
		}
	}
	if b.Bit(1) || b.Bit(128) {
		t.Error("unset bits report set")
	}
	b.ClearBit(s, 63)
	if b.Bit(63) {
		t.Error("bit 63 should be cleared")
	}
}

func TestRevBitSetUndo(t *testing.T) {
	s := NewSolver("bitset")
	b := NewRevBitSet(100)
	b.SetBit(s, 10)
	b.SetBit(s, 70)

	m := s.Mark()
	b.ClearBit(s, 10)
	b.SetBit(s, 20)
	b.SetBit(s, 21)
	b.SetBit(s, 90)
	s.UndoTo(m)

	if !b.Bit(10) || !b.Bit(70) {
		t.Error("original bits lost after undo")
	}
	if b.Bit(20) || b.Bit(21) || b.Bit(90) {
		t.Error("bits set inside the scope survived undo")
	}
}

func TestRevBitSetStampSavesOncePerDepth(t *testing.T) {
	s := NewSolver("bitset")
	b := NewRevBitSet(64)

	m := s.Mark()
	before := s.trail.Len()
	b.SetBit(s, 1)
	afterFirst := s.trail.Len()
	b.SetBit(s, 2)
	b.SetBit(s, 3)
	if got := s.trail.Len(); got != afterFirst {
		t.Errorf("same-depth mutations of one word saved %d extra entries", got-afterFirst)
	}
	if afterFirst == before {
		t.Error("first mutation at a new depth must save the word")
	}
	s.UndoTo(m)
	if !b.IsCardinalityZero() {
		t.Error("bits survived undo")
	}
	// A fresh mutation after the undo must save again even though the
	// stamp was current before the undo.
	m2 := s.Mark()
	b.SetBit(s, 1)
	s.UndoTo(m2)
	if b.Bit(1) {
		t.Error("bit 1 survived second undo")
	}
}

func TestRevBitSetClearAll(t *testing.T) {
	s := NewSolver("bitset")
	b := NewRevBitSet(200)
	for i := 0; i < 200; i += 7 {
		b.SetBit(s, i)
	}
	want := b.Cardinality()

	m := s.Mark()
	b.ClearAll(s)
	if !b.IsCardinalityZero() {
		t.Fatal("ClearAll left bits set")
	}
	s.UndoTo(m)
	if got := b.Cardinality(); got != want {
		t.Fatalf("Cardinality after undo = %d, want %d", got, want)
	}
}

func TestRevBitSetFirstLast(t *testing.T) {
	s := NewSolver("bitset")
	b := NewRevBitSet(150)
	b.SetBit(s, 5)
	b.SetBit(s, 77)
	b.SetBit(s, 140)

	tests := []struct {
		name  string
		got   int
		want  int
	}{
		{"first from 0", b.GetFirstBit(0), 5},
		{"first from 6", b.GetFirstBit(6), 77},
		{"first from 78", b.GetFirstBit(78), 140},
		{"first from 141", b.GetFirstBit(141), -1},
		{"last from 149", b.GetLastBit(149), 140},
		{"last from 139", b.GetLastBit(139), 77},
		{"last from 76", b.GetLastBit(76), 5},
		{"last from 4", b.GetLastBit(4), -1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestRevBitSetCardinalityOne(t *testing.T) {
	s := NewSolver("bitset")
	b := NewRevBitSet(128)
	if b.IsCardinalityOne() {
		t.Error("empty set reported cardinality one")
	}
	b.SetBit(s, 100)
	if !b.IsCardinalityOne() {
		t.Error("singleton not detected")
	}
	b.SetBit(s, 3)
	if b.IsCardinalityOne() {
		t.Error("two-element set reported cardinality one")
	}
}

func TestRevBitMatrix(t *testing.T) {
	s := NewSolver("bitset")
	m := NewRevBitMatrix(5, 9)

	if m.Rows() != 5 || m.Columns() != 9 {
		t.Fatalf("dimensions = %dx%d", m.Rows(), m.Columns())
	}
	mk := s.Mark()
	m.SetCell(s, 2, 3)
	m.SetCell(s, 4, 8)
	if !m.Cell(2, 3) || !m.Cell(4, 8) {
		t.Error("cells not set")
	}
	if m.Cell(3, 2) {
		t.Error("transposed cell set")
	}
	m.ClearCell(s, 2, 3)
	if m.Cell(2, 3) {
		t.Error("cell not cleared")
	}
	s.UndoTo(mk)
	if m.Cell(4, 8) {
		t.Error("cell survived undo")
	}
}
