package cpsolver

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestAssignmentStoreRestore(t *testing.T) {
	s := NewSolver("assignment")
	x := s.MakeIntVar(0, 10, "x")
	y := s.MakeIntVar(0, 10, "y")

	a := s.MakeAssignment()
	a.AddVars([]IntVar{x, y})

	m := s.Mark()
	x.SetValue(3)
	y.SetValue(7)
	a.Store()
	s.UndoTo(m)

	if x.Bound() || y.Bound() {
		t.Fatal("undo did not relax the variables")
	}
	if a.Value(x) != 3 || a.Value(y) != 7 {
		t.Fatalf("stored values (%d, %d), want (3, 7)", a.Value(x), a.Value(y))
	}

	m2 := s.Mark()
	a.Restore()
	s.propagate()
	if x.Value() != 3 || y.Value() != 7 {
		t.Error("restore did not re-pin the variables")
	}
	s.UndoTo(m2)
}

func TestAssignmentActivation(t *testing.T) {
	s := NewSolver("assignment")
	x := s.MakeIntVar(0, 10, "x")
	a := s.MakeAssignment()
	a.Add(x)
	a.SetValue(x, 4)

	if !a.Activated(x) {
		t.Fatal("fresh element should be activated")
	}
	a.Deactivate(x)
	if a.Activated(x) {
		t.Fatal("Deactivate had no effect")
	}
	// A deactivated element is skipped by restrict.
	m := s.Mark()
	a.Restore()
	if x.Bound() {
		t.Error("deactivated element still restricted the variable")
	}
	s.UndoTo(m)
	a.Activate(x)
	if !a.Activated(x) {
		t.Error("Activate had no effect")
	}
}

func TestAssignmentCopyAndIntersection(t *testing.T) {
	s := NewSolver("assignment")
	x := s.MakeIntVar(0, 10, "x")
	y := s.MakeIntVar(0, 10, "y")

	a := s.MakeAssignment()
	a.AddVars([]IntVar{x, y})
	a.SetValue(x, 1)
	a.SetValue(y, 2)

	c := a.Copy()
	c.SetValue(x, 9)
	if a.Value(x) != 1 {
		t.Error("copy shares element state with the original")
	}

	// Intersection pulls matching variables only.
	other := s.MakeAssignment()
	other.Add(x)
	other.SetValue(x, 5)
	a.CopyIntersection(other)
	if a.Value(x) != 5 {
		t.Errorf("x = %d after intersection, want 5", a.Value(x))
	}
	if a.Value(y) != 2 {
		t.Errorf("y = %d after intersection, want 2 (untouched)", a.Value(y))
	}
}

func TestAssignmentSaveLoadRoundTrip(t *testing.T) {
	s := NewSolver("assignment")
	x := s.MakeIntVar(0, 100, "x")
	y := s.MakeIntVar(-50, 50, "y")
	iv := s.MakeIntervalVar(0, 20, 5, true, "task")
	sv := s.MakeSequenceVar([]*IntervalVar{iv}, "seq")

	a := s.MakeAssignment()
	a.AddVars([]IntVar{x, y})
	a.AddInterval(iv)
	a.AddSequence(sv)
	a.SetValue(x, 42)
	a.SetValue(y, -7)
	a.Deactivate(y)

	var buf bytes.Buffer
	if err := a.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	b := s.MakeAssignment()
	b.AddVars([]IntVar{x, y})
	b.AddInterval(iv)
	b.AddSequence(sv)
	if err := b.Load(&buf); err != nil {
		t.Fatalf("Load: %v", err)
	}

	opts := []cmp.Option{
		cmp.AllowUnexported(IntVarElement{}, IntervalVarElement{}, SequenceVarElement{}),
		cmpopts.IgnoreFields(IntVarElement{}, "Var"),
		cmpopts.IgnoreFields(IntervalVarElement{}, "Var"),
		cmpopts.IgnoreFields(SequenceVarElement{}, "Var"),
		cmpopts.EquateEmpty(),
	}
	for i := range a.ints {
		if diff := cmp.Diff(a.ints[i], b.ints[i], opts...); diff != "" {
			t.Errorf("int element %d differs (-want +got):\n%s", i, diff)
		}
	}
	for i := range a.intervals {
		if diff := cmp.Diff(a.intervals[i], b.intervals[i], opts...); diff != "" {
			t.Errorf("interval element %d differs (-want +got):\n%s", i, diff)
		}
	}
	for i := range a.sequences {
		if diff := cmp.Diff(a.sequences[i], b.sequences[i], opts...); diff != "" {
			t.Errorf("sequence element %d differs (-want +got):\n%s", i, diff)
		}
	}
}

func TestAssignmentLoadRejectsBadHeader(t *testing.T) {
	s := NewSolver("assignment")
	a := s.MakeAssignment()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}},
		{"truncated", []byte{0x43, 0x50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := a.Load(bytes.NewReader(tt.data)); err == nil {
				t.Error("Load accepted a bad header")
			}
		})
	}
}

func TestAssignmentFileRoundTrip(t *testing.T) {
	s := NewSolver("assignment")
	x := s.MakeIntVar(0, 9, "x")
	a := s.MakeAssignment()
	a.Add(x)
	a.SetValue(x, 6)

	path := filepath.Join(t.TempDir(), "solution.cpsa")
	if err := a.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}
	b := s.MakeAssignment()
	b.Add(x)
	if err := b.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if b.Value(x) != 6 {
		t.Errorf("loaded value = %d, want 6", b.Value(x))
	}
}

func TestAssignmentClearAndEmpty(t *testing.T) {
	s := NewSolver("assignment")
	x := s.MakeIntVar(0, 9, "x")
	a := s.MakeAssignment()
	a.Add(x)
	a.SetValue(x, 1)

	if a.Empty() {
		t.Fatal("assignment with an active element is not empty")
	}
	if a.ActivatedCount() != 1 {
		t.Fatalf("ActivatedCount = %d, want 1", a.ActivatedCount())
	}
	a.Clear()
	if !a.Empty() {
		t.Fatal("Clear left active elements")
	}
}
