package cpsolver

import "testing"

func TestRevRoundTrip(t *testing.T) {
	s := NewSolver("trail")
	r := NewRev[int](7)

	m := s.Mark()
	r.SetValue(s, 9)
	r.SetValue(s, 11)
	if got := r.Value(); got != 11 {
		t.Fatalf("Value() = %d, want 11", got)
	}
	s.UndoTo(m)
	if got := r.Value(); got != 7 {
		t.Fatalf("after UndoTo, Value() = %d, want 7", got)
	}
}

func TestRevSetSameValueAddsNoEntry(t *testing.T) {
	s := NewSolver("trail")
	r := NewRev[int](5)
	before := s.trail.Len()
	r.SetValue(s, 5)
	if got := s.trail.Len(); got != before {
		t.Errorf("trail grew by %d entries on a no-op store", got-before)
	}
}

func TestNestedMarks(t *testing.T) {
	s := NewSolver("trail")
	r := NewRev[int64](1)

	m1 := s.Mark()
	r.SetValue(s, 2)
	m2 := s.Mark()
	r.SetValue(s, 3)
	m3 := s.Mark()
	r.SetValue(s, 4)

	s.UndoTo(m3)
	if got := r.Value(); got != 3 {
		t.Errorf("after inner undo, value = %d, want 3", got)
	}
	s.UndoTo(m2)
	if got := r.Value(); got != 2 {
		t.Errorf("after middle undo, value = %d, want 2", got)
	}
	s.UndoTo(m1)
	if got := r.Value(); got != 1 {
		t.Errorf("after outer undo, value = %d, want 1", got)
	}
}

func TestUndoRestoresMultipleCells(t *testing.T) {
	s := NewSolver("trail")
	cells := make([]Rev[int], 10)
	for i := range cells {
		cells[i] = NewRev(i)
	}
	m := s.Mark()
	for round := 0; round < 3; round++ {
		for i := range cells {
			cells[i].SetValue(s, cells[i].Value()*2+1)
		}
	}
	s.UndoTo(m)
	for i := range cells {
		if got := cells[i].Value(); got != i {
			t.Errorf("cell %d = %d after undo, want %d", i, got, i)
		}
	}
}

func TestNumericalRev(t *testing.T) {
	s := NewSolver("trail")
	n := NewNumericalRev[int64](10)

	m := s.Mark()
	n.Incr(s)
	n.Incr(s)
	n.Decr(s)
	n.Add(s, 5)
	if got := n.Value(); got != 16 {
		t.Fatalf("Value() = %d, want 16", got)
	}
	s.UndoTo(m)
	if got := n.Value(); got != 10 {
		t.Fatalf("after UndoTo, Value() = %d, want 10", got)
	}
}

func TestRevSwitch(t *testing.T) {
	s := NewSolver("trail")
	var sw RevSwitch

	if sw.Switched() {
		t.Fatal("fresh switch should be off")
	}
	m := s.Mark()
	sw.Switch(s)
	if !sw.Switched() {
		t.Fatal("switch should be on")
	}
	// Switching again must not add a second trail entry.
	before := s.trail.Len()
	sw.Switch(s)
	if s.trail.Len() != before {
		t.Error("double switch added a trail entry")
	}
	s.UndoTo(m)
	if sw.Switched() {
		t.Fatal("switch should be off after undo")
	}
	// It can be switched again afterwards.
	sw.Switch(s)
	if !sw.Switched() {
		t.Fatal("switch should turn on again after undo")
	}
}

func TestReapplyAfterUndoProducesSameTrail(t *testing.T) {
	s := NewSolver("trail")
	r := NewRev[int](0)

	apply := func() {
		r.SetValue(s, 1)
		r.SetValue(s, 2)
	}
	m := s.Mark()
	apply()
	depth := s.trail.Len()
	s.UndoTo(m)
	m2 := s.Mark()
	apply()
	if got := s.trail.Len(); got != depth {
		t.Errorf("re-applied trail depth = %d, want %d", got, depth)
	}
	s.UndoTo(m2)
	if got := r.Value(); got != 0 {
		t.Errorf("value = %d after final undo, want 0", got)
	}
}
