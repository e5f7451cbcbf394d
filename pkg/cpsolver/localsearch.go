// localsearch.go: local search around a feasible base assignment.
//
// A neighborhood operator synchronizes with a complete base assignment
// and then emits candidate deltas one at a time. Filters cheaply reject
// candidates; survivors are re-applied inside a trail-marked scope where
// full propagation validates feasibility and computes cost. An accepted
// candidate becomes the new base; a rejected one is undone and the
// operator is asked for its next neighbor.
//
// IntVarLocalSearchOperator is the workhorse: it diffs a proposal
// against the base over parallel value and activation arrays and emits
// the minimal delta. ChangeValue, the LNS operators and the path
// operators all build on it.
package cpsolver

import (
	"time"
)

// LocalSearchOperator enumerates the neighborhood of a base assignment.
type LocalSearchOperator interface {
	// Start synchronizes the operator with a complete base assignment.
	Start(base *Assignment)
	// MakeNextNeighbor writes the next candidate into delta (the change
	// against the base) and deltadelta (the change against the previous
	// candidate; left empty by non-incremental operators). It returns
	// false when the neighborhood is exhausted.
	MakeNextNeighbor(delta, deltadelta *Assignment) bool
}

// LocalSearchFilter vets candidate deltas without touching the solver.
// Accept must be conservative: a true result promises the filter's
// invariant holds for the candidate; false may reject speculatively.
type LocalSearchFilter interface {
	// Synchronize is called with the base after every accepted move.
	Synchronize(base *Assignment)
	// Accept is called with every candidate delta.
	Accept(delta, deltadelta *Assignment) bool
}

// neighborMaker is the hook concrete operators implement: mutate the
// proposal arrays through SetValue/Activate/Deactivate and return true,
// or return false when out of neighbors.
type neighborMaker interface {
	MakeOneNeighbor() bool
}

// IntVarLocalSearchOperator maintains the proposal state for a fixed set
// of variables: current values, base values, and the two activation
// bitmaps. Concrete operators plug in through the neighborMaker hook.
type IntVarLocalSearchOperator struct {
	vars         []IntVar
	values       []int64
	oldValues    []int64
	activated    []bool
	wasActivated []bool

	changes    []int
	hasChanged []bool

	incremental bool
	maker       neighborMaker
	onStart     func()
}

// initOperator sizes the parallel arrays for vars.
func (op *IntVarLocalSearchOperator) initOperator(vars []IntVar, maker neighborMaker) {
	op.vars = make([]IntVar, len(vars))
	copy(op.vars, vars)
	op.values = make([]int64, len(vars))
	op.oldValues = make([]int64, len(vars))
	op.activated = make([]bool, len(vars))
	op.wasActivated = make([]bool, len(vars))
	op.hasChanged = make([]bool, len(vars))
	op.maker = maker
}

// Size returns the number of tracked variables.
func (op *IntVarLocalSearchOperator) Size() int {
	return len(op.vars)
}

// VarAt returns the i-th tracked variable.
func (op *IntVarLocalSearchOperator) VarAt(i int) IntVar {
	return op.vars[i]
}

// Start implements LocalSearchOperator: both value arrays and both
// bitmaps are loaded from the base assignment.
func (op *IntVarLocalSearchOperator) Start(base *Assignment) {
	for i, v := range op.vars {
		val := base.Value(v)
		act := base.Activated(v)
		op.values[i] = val
		op.oldValues[i] = val
		op.activated[i] = act
		op.wasActivated[i] = act
		op.hasChanged[i] = false
	}
	op.changes = op.changes[:0]
	if op.onStart != nil {
		op.onStart()
	}
}

// Value returns the proposed value at position i.
func (op *IntVarLocalSearchOperator) Value(i int) int64 {
	return op.values[i]
}

// OldValue returns the base value at position i.
func (op *IntVarLocalSearchOperator) OldValue(i int) int64 {
	return op.oldValues[i]
}

// SetValue proposes value v at position i.
func (op *IntVarLocalSearchOperator) SetValue(i int, v int64) {
	op.values[i] = v
	op.markChanged(i)
}

// Activate marks position i active in the proposal.
func (op *IntVarLocalSearchOperator) Activate(i int) {
	op.activated[i] = true
	op.markChanged(i)
}

// Deactivate marks position i relaxed in the proposal.
func (op *IntVarLocalSearchOperator) Deactivate(i int) {
	op.activated[i] = false
	op.markChanged(i)
}

// Activated reports the proposed activation of position i.
func (op *IntVarLocalSearchOperator) Activated(i int) bool {
	return op.activated[i]
}

func (op *IntVarLocalSearchOperator) markChanged(i int) {
	if !op.hasChanged[i] {
		op.hasChanged[i] = true
		op.changes = append(op.changes, i)
	}
}

// ApplyChanges walks the change list and emits the minimal delta: only
// positions whose value or activation differs from the base appear.
// Incremental operators additionally mirror the entries into deltadelta.
func (op *IntVarLocalSearchOperator) ApplyChanges(delta, deltadelta *Assignment) bool {
	emitted := false
	for _, i := range op.changes {
		valueChanged := op.values[i] != op.oldValues[i]
		actChanged := op.activated[i] != op.wasActivated[i]
		if !valueChanged && !actChanged {
			continue
		}
		emitted = true
		e := delta.Add(op.vars[i])
		if op.activated[i] {
			e.Min, e.Max = op.values[i], op.values[i]
			e.Activated = true
		} else {
			e.Activated = false
		}
		if op.incremental && deltadelta != nil {
			de := deltadelta.Add(op.vars[i])
			*de = *e
			de.Var = op.vars[i]
		}
	}
	return emitted
}

// RevertChanges rolls the proposal back to the base. With incremental
// true only the change flags are reset, keeping the value arrays for the
// next incremental step; otherwise values and activations are restored
// from the base arrays.
func (op *IntVarLocalSearchOperator) RevertChanges(incremental bool) {
	for _, i := range op.changes {
		if !incremental {
			op.values[i] = op.oldValues[i]
			op.activated[i] = op.wasActivated[i]
		}
		op.hasChanged[i] = false
	}
	op.changes = op.changes[:0]
}

// MakeNextNeighbor implements LocalSearchOperator on top of the
// neighborMaker hook.
func (op *IntVarLocalSearchOperator) MakeNextNeighbor(delta, deltadelta *Assignment) bool {
	for {
		op.RevertChanges(op.incremental)
		delta.Clear()
		if deltadelta != nil {
			deltadelta.Clear()
		}
		if op.maker == nil || !op.maker.MakeOneNeighbor() {
			return false
		}
		if op.ApplyChanges(delta, deltadelta) {
			return true
		}
		// The proposal collapsed to the base; try the next one.
	}
}

// ChangeValue enumerates single-variable moves: for each position in
// turn it asks the modify callback for a replacement value and emits the
// singleton delta.
type ChangeValue struct {
	IntVarLocalSearchOperator
	modify func(index int, value int64) (int64, bool)
	index  int
}

// NewChangeValue returns an operator proposing modify(i, base value) for
// each position i. The callback returns false to skip a position.
func NewChangeValue(vars []IntVar, modify func(index int, value int64) (int64, bool)) *ChangeValue {
	op := &ChangeValue{modify: modify}
	op.initOperator(vars, op)
	op.onStart = func() { op.index = 0 }
	return op
}

// MakeOneNeighbor implements neighborMaker.
func (op *ChangeValue) MakeOneNeighbor() bool {
	for op.index < op.Size() {
		i := op.index
		op.index++
		if v, ok := op.modify(i, op.OldValue(i)); ok {
			op.SetValue(i, v)
			return true
		}
	}
	return false
}

// BaseLNS emits large-neighborhood fragments: each neighbor deactivates
// one fragment of variables, leaving the rest pinned to the base. The
// driver rebuilds the relaxed fragment by nested search.
type BaseLNS struct {
	IntVarLocalSearchOperator
	next     func(fragment []int) ([]int, bool)
	fragment []int
}

// NewBaseLNS returns an LNS operator driven by the next callback, which
// returns the indices of the fragment to relax, or false when done. The
// callback receives a reusable scratch slice.
func NewBaseLNS(vars []IntVar, next func(fragment []int) ([]int, bool)) *BaseLNS {
	op := &BaseLNS{next: next}
	op.initOperator(vars, op)
	return op
}

// NewSimpleLNS returns an LNS operator relaxing fragmentSize consecutive
// positions at a time, sweeping once over the variables.
func NewSimpleLNS(vars []IntVar, fragmentSize int) *BaseLNS {
	if fragmentSize < 1 {
		fragmentSize = 1
	}
	pos := 0
	op := NewBaseLNS(vars, func(fragment []int) ([]int, bool) {
		if pos >= len(vars) {
			return nil, false
		}
		fragment = fragment[:0]
		for i := pos; i < pos+fragmentSize && i < len(vars); i++ {
			fragment = append(fragment, i)
		}
		pos += fragmentSize
		return fragment, true
	})
	op.onStart = func() { pos = 0 }
	return op
}

// MakeOneNeighbor implements neighborMaker.
func (op *BaseLNS) MakeOneNeighbor() bool {
	frag, ok := op.next(op.fragment[:0])
	if !ok {
		return false
	}
	op.fragment = frag
	for _, i := range frag {
		op.Deactivate(i)
	}
	return true
}

// IntVarLocalSearchFilter gives filters a hashless variable-to-position
// lookup over a fixed variable set. Embed it and call Index in Accept.
type IntVarLocalSearchFilter struct {
	vars  []IntVar
	index map[IntVar]int
}

// InitFilter records the variable set.
func (f *IntVarLocalSearchFilter) InitFilter(vars []IntVar) {
	f.vars = make([]IntVar, len(vars))
	copy(f.vars, vars)
	f.index = make(map[IntVar]int, len(vars))
	for i, v := range vars {
		f.index[v] = i
	}
}

// Index returns the position of v, or false if the filter does not track
// it.
func (f *IntVarLocalSearchFilter) Index(v IntVar) (int, bool) {
	i, ok := f.index[v]
	return i, ok
}

// SumObjectiveFilter rejects candidates whose cost, computed as the sum
// of a per-position term, does not improve on the best synchronized
// cost. Rejection is conservative in the required direction: it never
// accepts a candidate whose true cost is worse.
type SumObjectiveFilter struct {
	IntVarLocalSearchFilter
	term      func(index int, value int64) int64
	baseCost  int64
	baseTerms []int64
}

// NewSumObjectiveFilter returns a filter with cost sum(term(i, value i)).
// Deactivated delta entries contribute nothing, keeping the estimate an
// optimistic lower bound for LNS fragments.
func NewSumObjectiveFilter(vars []IntVar, term func(index int, value int64) int64) *SumObjectiveFilter {
	f := &SumObjectiveFilter{term: term}
	f.InitFilter(vars)
	f.baseTerms = make([]int64, len(vars))
	return f
}

// Synchronize implements LocalSearchFilter.
func (f *SumObjectiveFilter) Synchronize(base *Assignment) {
	f.baseCost = 0
	for i, v := range f.vars {
		f.baseTerms[i] = f.term(i, base.Value(v))
		f.baseCost += f.baseTerms[i]
	}
}

// Accept implements LocalSearchFilter.
func (f *SumObjectiveFilter) Accept(delta, deltadelta *Assignment) bool {
	cost := f.baseCost
	for i := 0; i < delta.NumIntVars(); i++ {
		e := delta.IntVarElementAt(i)
		idx, ok := f.Index(e.Var)
		if !ok {
			continue
		}
		if e.Activated {
			cost += f.term(idx, e.Min) - f.baseTerms[idx]
		} else {
			cost -= f.baseTerms[idx]
		}
	}
	return cost < f.baseCost
}

// Cost returns the synchronized base cost.
func (f *SumObjectiveFilter) Cost() int64 {
	return f.baseCost
}

// LocalSearchOption configures the local search driver.
type LocalSearchOption func(*localSearchConfig)

type localSearchConfig struct {
	maxNeighbors int64
	timeLimit    time.Duration
}

// WithMaxNeighbors bounds the number of candidate neighbors examined.
func WithMaxNeighbors(n int64) LocalSearchOption {
	return func(c *localSearchConfig) { c.maxNeighbors = n }
}

// WithLocalSearchTimeLimit bounds the driver's wall clock.
func WithLocalSearchTimeLimit(d time.Duration) LocalSearchOption {
	return func(c *localSearchConfig) { c.timeLimit = d }
}

// RunLocalSearch improves base by local search, minimizing objective,
// and returns the best assignment found (a copy of base if no move was
// accepted). To maximize, pass the opposite variable as the objective.
//
// The base must be a feasible complete assignment covering objective
// and every variable the operators touch.
// Operators are tried in registration order; after an accepted move the
// search restarts from the first operator on the new base. A candidate
// is accepted when every filter passes, propagation inside a reversible
// scope succeeds, relaxed variables can be rebuilt by nested search, and
// the objective strictly improves.
func (s *Solver) RunLocalSearch(base *Assignment, objective IntVar, operators []LocalSearchOperator, filters []LocalSearchFilter, opts ...LocalSearchOption) *Assignment {
	cfg := &localSearchConfig{}
	for _, o := range opts {
		o(cfg)
	}
	start := time.Now()

	best := base.Copy()
	bestCost := best.Value(objective)
	for _, f := range filters {
		f.Synchronize(best)
	}

	delta := s.MakeAssignment()
	deltadelta := s.MakeAssignment()
	neighbors := int64(0)

	improvedRound := true
	for improvedRound {
		improvedRound = false
		for _, op := range operators {
			op.Start(best)
			for op.MakeNextNeighbor(delta, deltadelta) {
				neighbors++
				if cfg.maxNeighbors > 0 && neighbors > cfg.maxNeighbors {
					return best
				}
				if cfg.timeLimit > 0 && time.Since(start) >= cfg.timeLimit {
					return best
				}
				accepted := true
				for _, f := range filters {
					if !f.Accept(delta, deltadelta) {
						accepted = false
						break
					}
				}
				if !accepted {
					continue
				}
				if cand, cost, ok := s.evaluateDelta(best, delta, objective, bestCost); ok {
					best = cand
					bestCost = cost
					for _, f := range filters {
						f.Synchronize(best)
					}
					improvedRound = true
					break
				}
			}
			if improvedRound {
				break
			}
		}
	}
	return best
}

// evaluateDelta applies delta over base inside a reversible scope, runs
// propagation, rebuilds relaxed variables by nested search under the
// bound cost, and returns the committed candidate on success. All solver
// effects are undone before returning.
func (s *Solver) evaluateDelta(base, delta *Assignment, objective IntVar, bound int64) (cand *Assignment, cost int64, ok bool) {
	m := s.Mark()
	defer func() {
		if r := recover(); r != nil {
			if _, isFail := r.(searchFailure); !isFail {
				panic(r)
			}
			ok = false
		}
		s.UndoTo(m)
	}()

	var relaxed []IntVar
	for i := 0; i < base.NumIntVars(); i++ {
		e := base.IntVarElementAt(i)
		if e.Var == objective {
			// The objective stays free so the candidate can improve on
			// the incumbent; the bound below constrains it.
			continue
		}
		if delta.Contains(e.Var) {
			de := delta.element(e.Var)
			if de.Activated {
				e.Var.SetValue(de.Min)
			} else {
				relaxed = append(relaxed, e.Var)
			}
			continue
		}
		if e.Activated {
			e.Var.SetValue(e.Min)
		}
	}
	objective.SetMax(bound - 1)
	s.propagate()

	if len(relaxed) > 0 {
		// Rebuild the fragment: first improving completion wins.
		proto := s.MakeAssignment()
		proto.AddVars(relaxed)
		collector := s.NewLastSolutionCollector(proto)
		db := NewAssignVariablesPhase(relaxed, ChooseMinSize, AssignMinValue)
		st := s.Solve(db, collector, NewSearchLimit(WithSolutionLimit(1)))
		if st != SearchSuccess && st != SearchAborted {
			return nil, 0, false
		}
		if collector.SolutionCount() == 0 {
			return nil, 0, false
		}
		sol := collector.Solution(0)
		for _, v := range relaxed {
			v.SetValue(sol.Value(v))
		}
		s.propagate()
	}

	if !objective.Bound() {
		objective.SetValue(objective.Min())
		s.propagate()
	}
	cand = base.Copy()
	cand.Store()
	return cand, objective.Value(), true
}
