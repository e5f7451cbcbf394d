package cpsolver

import "testing"

// mirrorBreaker exploits the left-right mirror symmetry of a row of
// variables: assigning value w to position i is symmetric to assigning
// w to the mirrored position.
type mirrorBreaker struct {
	BaseSymmetryBreaker
	vars []IntVar
	pos  map[IntVar]int
}

func newMirrorBreaker(vars []IntVar) *mirrorBreaker {
	b := &mirrorBreaker{vars: vars, pos: make(map[IntVar]int)}
	for i, v := range vars {
		b.pos[v] = i
	}
	return b
}

func (b *mirrorBreaker) VisitSetVariableValue(v IntVar, value int64) {
	if i, ok := b.pos[v]; ok {
		b.AddTerm(b.vars[len(b.vars)-1-i], value)
	}
}

func TestSymmetryBreakerPrunesMirrors(t *testing.T) {
	// Two variables, all-different: without breaking there are two
	// solutions mirroring each other; the mirror breaker removes one.
	s := NewSolver("symmetry")
	vars := []IntVar{
		s.MakeIntVar(1, 2, "a"),
		s.MakeIntVar(1, 2, "b"),
	}
	if err := s.AddConstraint(s.NewAllDifferent(vars)); err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}

	proto := s.MakeAssignment()
	proto.AddVars(vars)
	collector := s.NewAllSolutionsCollector(proto)
	manager := s.NewSymmetryManager(newMirrorBreaker(vars))
	db := NewAssignVariablesPhase(vars, ChooseFirstUnbound, AssignMinValue)

	if st := s.Solve(db, manager, collector); st != SearchSuccess {
		t.Fatalf("Solve = %v, want success", st)
	}
	if got := collector.SolutionCount(); got != 1 {
		t.Fatalf("found %d solutions with symmetry breaking, want 1", got)
	}
	sol := collector.Solution(0)
	if sol.Value(vars[0]) != 1 || sol.Value(vars[1]) != 2 {
		t.Errorf("kept solution (%d, %d), want the canonical (1, 2)",
			sol.Value(vars[0]), sol.Value(vars[1]))
	}
}

func TestSymmetryBreakerKeepsAllWithoutSymmetry(t *testing.T) {
	// A breaker that never adds terms must not change the solution set.
	s := NewSolver("symmetry")
	vars := []IntVar{
		s.MakeIntVar(1, 2, "a"),
		s.MakeIntVar(1, 2, "b"),
	}
	if err := s.AddConstraint(s.NewAllDifferent(vars)); err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}
	proto := s.MakeAssignment()
	proto.AddVars(vars)
	collector := s.NewAllSolutionsCollector(proto)
	manager := s.NewSymmetryManager(&BaseSymmetryBreaker{})
	db := NewAssignVariablesPhase(vars, ChooseFirstUnbound, AssignMinValue)

	if st := s.Solve(db, manager, collector); st != SearchSuccess {
		t.Fatalf("Solve = %v, want success", st)
	}
	if got := collector.SolutionCount(); got != 2 {
		t.Errorf("found %d solutions, want 2", got)
	}
}
