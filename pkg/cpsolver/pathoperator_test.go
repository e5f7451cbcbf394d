package cpsolver

import "testing"

// pathFixture builds next variables for n nodes plus the end sentinel n,
// optional path-id variables, and a base assignment encoding the given
// successor table.
func pathFixture(t *testing.T, s *Solver, nexts []int64, withPaths bool) ([]IntVar, []IntVar, *Assignment) {
	t.Helper()
	n := len(nexts)
	nextVars := make([]IntVar, n)
	for i := range nextVars {
		nextVars[i] = s.MakeIntVar(0, int64(n), "next")
	}
	var pathVars []IntVar
	if withPaths {
		pathVars = make([]IntVar, n)
		for i := range pathVars {
			pathVars[i] = s.MakeIntVar(-1, int64(n), "path")
		}
	}
	base := s.MakeAssignment()
	base.AddVars(nextVars)
	for i, v := range nexts {
		base.SetValue(nextVars[i], v)
	}
	if withPaths {
		base.AddVars(pathVars)
		for i := range pathVars {
			base.SetValue(pathVars[i], 0)
		}
	}
	return nextVars, pathVars, base
}

func TestMoveChain(t *testing.T) {
	s := NewSolver("path")
	// Path 0 -> 1 -> 2 -> 3 -> 4 -> end(5).
	_, _, base := pathFixture(t, s, []int64{1, 2, 3, 4, 5}, true)

	op := NewRelocate(makeVarsOf(base, 5), makePathVarsOf(base, 5))
	op.Start(base)

	if !op.MoveChain(0, 2, 3) {
		t.Fatal("MoveChain(0, 2, 3) refused a valid move")
	}
	// Expected: 0 -> 3 -> 1 -> 2 -> 4 -> end.
	want := []int{3, 2, 4, 1, 5}
	for i, w := range want {
		if got := op.Next(i); got != w {
			t.Errorf("Next(%d) = %d, want %d", i, got, w)
		}
	}
	// Single path: path ids of the moved nodes are unchanged.
	if op.Path(1) != 0 || op.Path(2) != 0 {
		t.Errorf("path ids changed: Path(1)=%d Path(2)=%d", op.Path(1), op.Path(2))
	}
	if !op.IsPathEnd(5) {
		t.Error("IsPathEnd(5) should be true")
	}
	if op.IsPathEnd(4) {
		t.Error("IsPathEnd(4) should be false")
	}

	// Walk the new path: every node exactly once.
	seen := map[int]bool{}
	node := 0
	for !op.IsPathEnd(node) {
		if seen[node] {
			t.Fatalf("node %d appears twice", node)
		}
		seen[node] = true
		node = op.Next(node)
	}
	if len(seen) != 5 {
		t.Errorf("path visits %d nodes, want 5", len(seen))
	}
}

func makeVarsOf(a *Assignment, n int) []IntVar {
	vars := make([]IntVar, n)
	for i := 0; i < n; i++ {
		vars[i] = a.IntVarElementAt(i).Var
	}
	return vars
}

func makePathVarsOf(a *Assignment, n int) []IntVar {
	vars := make([]IntVar, n)
	for i := 0; i < n; i++ {
		vars[i] = a.IntVarElementAt(n + i).Var
	}
	return vars
}

func TestMoveChainRejectsDestinationInsideChain(t *testing.T) {
	s := NewSolver("path")
	_, _, base := pathFixture(t, s, []int64{1, 2, 3, 4, 5}, false)

	op := NewRelocate(makeVarsOf(base, 5), nil)
	op.Start(base)

	if op.MoveChain(0, 3, 2) {
		t.Error("destination inside the moved chain must be rejected")
	}
	if op.CheckChainValidity(0, 3, 2) {
		t.Error("CheckChainValidity must spot the inclusion")
	}
	// The proposal is untouched after a rejected move.
	for i, want := range []int{1, 2, 3, 4, 5} {
		if got := op.Next(i); got != want {
			t.Errorf("Next(%d) = %d after rejected move, want %d", i, got, want)
		}
	}
}

func TestReverseChain(t *testing.T) {
	s := NewSolver("path")
	// Path 0 -> 1 -> 2 -> 3 -> 4 -> end(5).
	_, _, base := pathFixture(t, s, []int64{1, 2, 3, 4, 5}, false)

	op := NewTwoOpt(makeVarsOf(base, 5), nil)
	op.Start(base)

	var last int
	// Reverse the chain strictly between node 0 and node 4: 1,2,3.
	if !op.ReverseChain(0, 4, &last) {
		t.Fatal("ReverseChain refused a valid reversal")
	}
	if last != 1 {
		t.Errorf("chainLast = %d, want 1 (the old first node)", last)
	}
	want := []int{3, 4, 1, 2, 5}
	for i, w := range want {
		if got := op.Next(i); got != w {
			t.Errorf("Next(%d) = %d, want %d", i, got, w)
		}
	}
}

func TestMakeActiveAndInactive(t *testing.T) {
	s := NewSolver("path")
	// Path 0 -> 1 -> 3 -> end(4); node 2 inactive (next[2] = 2).
	_, _, base := pathFixture(t, s, []int64{1, 3, 2, 4}, true)

	op := NewRelocate(makeVarsOf(base, 4), makePathVarsOf(base, 4))
	op.Start(base)

	if !op.IsInactive(2) {
		t.Fatal("node 2 should start inactive")
	}
	if !op.MakeActive(2, 1) {
		t.Fatal("MakeActive(2, 1) refused")
	}
	if op.Next(1) != 2 || op.Next(2) != 3 {
		t.Errorf("insertion wrong: Next(1)=%d Next(2)=%d", op.Next(1), op.Next(2))
	}
	if op.IsInactive(2) {
		t.Error("node 2 should be active now")
	}

	// Remove the chain (1 .. 2) again.
	if !op.MakeChainInactive(0, 2) {
		t.Fatal("MakeChainInactive(0, 2) refused")
	}
	if op.Next(0) != 3 {
		t.Errorf("Next(0) = %d, want 3", op.Next(0))
	}
	if !op.IsInactive(1) || !op.IsInactive(2) {
		t.Error("removed nodes should be inactive")
	}
	if op.Path(1) != -1 || op.Path(2) != -1 {
		t.Error("removed nodes should leave their path")
	}
}

func TestRelocateEnumeratesNeighbors(t *testing.T) {
	s := NewSolver("path")
	// Path 0 -> 1 -> 2 -> end(3).
	_, _, base := pathFixture(t, s, []int64{1, 2, 3}, false)

	nexts := makeVarsOf(base, 3)
	op := NewRelocate(nexts, nil)
	op.Start(base)

	delta := s.MakeAssignment()
	count := 0
	for op.MakeNextNeighbor(delta, nil) {
		count++
		// Each neighbor must stay a permutation path over all nodes.
		next := map[int]int{}
		for i := 0; i < 3; i++ {
			next[i] = int(op.OldValue(i))
		}
		for i := 0; i < delta.NumIntVars(); i++ {
			e := delta.IntVarElementAt(i)
			for j, v := range nexts {
				if v == e.Var {
					next[j] = int(e.Min)
				}
			}
		}
		seen := map[int]bool{}
		node := 0
		steps := 0
		for node < 3 && steps < 5 {
			if seen[node] {
				t.Fatalf("neighbor %d revisits node %d", count, node)
			}
			seen[node] = true
			node = next[node]
			steps++
		}
		if count > 50 {
			t.Fatal("runaway neighborhood")
		}
	}
	if count == 0 {
		t.Fatal("relocate produced no neighbors")
	}
}

func TestPathLocalSearchImprovesTour(t *testing.T) {
	// Open tour over nodes 0..3 ending at sentinel 4. Arc cost is
	// |i - j| (0 to the sentinel). The base tour 0->2->1->3 costs 5;
	// the optimal 0->1->2->3 costs 3. Relocate and two-opt both reach
	// it; the filter prunes non-improving candidates first.
	s := NewSolver("tour")
	n := 4
	dist := func(i, j int) int64 {
		if j == n {
			return 0
		}
		d := i - j
		if d < 0 {
			d = -d
		}
		return int64(d)
	}

	nexts := make([]IntVar, n)
	for i := range nexts {
		nexts[i] = s.MakeIntVar(0, int64(n), "next")
	}
	costs := make([]IntVar, n)
	for i := range costs {
		costs[i] = s.MakeIntVar(0, 100, "cost")
		row := make([]int64, n+1)
		for j := 0; j <= n; j++ {
			row[j] = dist(i, j)
		}
		if err := s.AddConstraint(s.NewElement(row, nexts[i], costs[i])); err != nil {
			t.Fatalf("AddConstraint: %v", err)
		}
	}
	if err := s.AddConstraint(s.NewAllDifferent(nexts)); err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}
	total := s.MakeIntVar(0, 400, "total")
	if err := s.AddConstraint(s.NewSumEquality(costs, total)); err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}

	base := s.MakeAssignment()
	base.AddVars(nexts)
	base.Add(total)
	// 0 -> 2 -> 1 -> 3 -> end.
	base.SetValue(nexts[0], 2)
	base.SetValue(nexts[2], 1)
	base.SetValue(nexts[1], 3)
	base.SetValue(nexts[3], 4)
	base.SetValue(total, 5)
	if !s.CheckAssignment(base) {
		t.Fatal("base tour should be feasible")
	}

	filter := NewSumObjectiveFilter(nexts, func(i int, next int64) int64 {
		return dist(i, int(next))
	})
	ops := []LocalSearchOperator{NewTwoOpt(nexts, nil), NewRelocate(nexts, nil)}
	best := s.RunLocalSearch(base, total, ops, []LocalSearchFilter{filter},
		WithMaxNeighbors(10000))

	if got := best.Value(total); got != 3 {
		t.Fatalf("best tour cost = %d, want 3", got)
	}
	if best.Value(nexts[0]) != 1 || best.Value(nexts[1]) != 2 || best.Value(nexts[2]) != 3 {
		t.Errorf("best tour is not 0->1->2->3: nexts = [%d %d %d %d]",
			best.Value(nexts[0]), best.Value(nexts[1]),
			best.Value(nexts[2]), best.Value(nexts[3]))
	}
}
