package cpsolver

import "testing"

func TestIntervalVarWindows(t *testing.T) {
	s := NewSolver("interval")
	iv := s.MakeIntervalVar(0, 10, 3, false, "task")

	if iv.StartMin() != 0 || iv.StartMax() != 10 {
		t.Fatalf("start window [%d..%d], want [0..10]", iv.StartMin(), iv.StartMax())
	}
	if iv.EndMin() != 3 || iv.EndMax() != 13 {
		t.Fatalf("end window [%d..%d], want [3..13]", iv.EndMin(), iv.EndMax())
	}
	if !iv.MustBePerformed() {
		t.Fatal("mandatory interval must be performed")
	}

	m := s.Mark()
	iv.SetStartMin(4)
	iv.SetEndMax(9) // start <= 6
	if iv.StartMin() != 4 || iv.StartMax() != 6 {
		t.Errorf("start window [%d..%d], want [4..6]", iv.StartMin(), iv.StartMax())
	}
	s.UndoTo(m)
	if iv.StartMin() != 0 || iv.StartMax() != 10 {
		t.Error("backtrack did not restore the start window")
	}
}

func TestIntervalVarEmptyWindow(t *testing.T) {
	s := NewSolver("interval")
	must := s.MakeIntervalVar(0, 5, 2, false, "must")
	if !failCaught(t, func() { must.SetStartMin(6) }) {
		t.Error("emptying a mandatory interval's window must fail")
	}

	opt := s.MakeIntervalVar(0, 5, 2, true, "opt")
	opt.SetStartMin(6) // optional: becomes unperformed instead
	if opt.MayBePerformed() {
		t.Error("optional interval with an empty window should be unperformed")
	}
}

func TestIntervalVarPerformedTransitions(t *testing.T) {
	s := NewSolver("interval")
	iv := s.MakeIntervalVar(0, 5, 1, true, "opt")

	if !iv.MayBePerformed() || iv.MustBePerformed() {
		t.Fatal("optional interval starts undecided")
	}
	m := s.Mark()
	iv.SetPerformed(true)
	if !iv.MustBePerformed() {
		t.Error("SetPerformed(true) did not pin the state")
	}
	if !failCaught(t, func() { iv.SetPerformed(false) }) {
		t.Error("contradicting a pinned performed state must fail")
	}
	s.UndoTo(m)
	if iv.MustBePerformed() {
		t.Error("performed state survived backtrack")
	}
}

func TestIntervalVarDemons(t *testing.T) {
	s := NewSolver("interval")
	iv := s.MakeIntervalVar(0, 10, 2, false, "task")

	runs := 0
	iv.WhenAnything(s.MakeDemon("watch", func(*Solver) { runs++ }))
	iv.SetStartMin(3)
	s.propagate()
	if runs != 1 {
		t.Errorf("demon ran %d times, want 1", runs)
	}
	iv.SetStartMin(3) // no-op
	s.propagate()
	if runs != 1 {
		t.Errorf("no-op mutation woke the demon (%d runs)", runs)
	}
}

func TestSequenceVarRanking(t *testing.T) {
	s := NewSolver("sequence")
	ivs := []*IntervalVar{
		s.MakeIntervalVar(0, 100, 10, false, "a"),
		s.MakeIntervalVar(0, 100, 10, false, "b"),
		s.MakeIntervalVar(0, 100, 10, true, "c"),
	}
	sv := s.MakeSequenceVar(ivs, "machine")

	if sv.Size() != 3 {
		t.Fatalf("Size = %d, want 3", sv.Size())
	}
	m := s.Mark()
	sv.RankFirst(0)
	// Everything unranked now starts after a's earliest end.
	if ivs[1].StartMin() != 10 {
		t.Errorf("b.StartMin = %d, want 10", ivs[1].StartMin())
	}
	sv.RankFirst(1)
	if got := sv.RankedFirstOrder(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("RankedFirstOrder = %v, want [0 1]", got)
	}
	ranked, notRanked, unperformed := sv.ComputeStatistics()
	if ranked != 2 || notRanked != 1 || unperformed != 0 {
		t.Errorf("stats = (%d, %d, %d), want (2, 1, 0)", ranked, notRanked, unperformed)
	}

	sv.MarkUnperformed(2)
	ranked, notRanked, unperformed = sv.ComputeStatistics()
	if ranked != 2 || notRanked != 0 || unperformed != 1 {
		t.Errorf("stats = (%d, %d, %d), want (2, 0, 1)", ranked, notRanked, unperformed)
	}

	s.UndoTo(m)
	ranked, notRanked, unperformed = sv.ComputeStatistics()
	if ranked != 0 || notRanked != 3 {
		t.Errorf("stats after undo = (%d, %d, %d), want (0, 3, 0)", ranked, notRanked, unperformed)
	}
	if got := sv.RankedFirstOrder(); len(got) != 0 {
		t.Errorf("RankedFirstOrder after undo = %v, want empty", got)
	}
}

func TestSequenceVarRankLast(t *testing.T) {
	s := NewSolver("sequence")
	ivs := []*IntervalVar{
		s.MakeIntervalVar(0, 100, 10, false, "a"),
		s.MakeIntervalVar(0, 100, 10, false, "b"),
	}
	sv := s.MakeSequenceVar(ivs, "machine")

	sv.RankLast(1)
	// a must end before b can start at the latest.
	if ivs[0].EndMax() > ivs[1].StartMax() {
		t.Errorf("a.EndMax = %d exceeds b.StartMax = %d", ivs[0].EndMax(), ivs[1].StartMax())
	}
	if got := sv.RankedLastOrder(); len(got) != 1 || got[0] != 1 {
		t.Errorf("RankedLastOrder = %v, want [1]", got)
	}
}
